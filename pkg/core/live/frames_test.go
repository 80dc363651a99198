package live

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"
)

type fakeFrameSource struct {
	mu    sync.Mutex
	img   image.Image
	err   error
	calls int
}

func (s *fakeFrameSource) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.img, nil
}

func (s *fakeFrameSource) set(img image.Image, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.img = img
	s.err = err
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 32), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	return img
}

func TestSampler_EncodesAndForwards(t *testing.T) {
	source := &fakeFrameSource{img: testImage()}
	sender := &recordSender{}
	s := NewSampler(DefaultSamplerConfig(), source, sender, discardLogger())

	s.sampleOnce()

	if got := sender.frameCount(); got != 1 {
		t.Fatalf("frames sent = %d, want 1", got)
	}
	sender.mu.Lock()
	payload := sender.frames[0]
	sender.mu.Unlock()

	if payload.MIMEType != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", payload.MIMEType)
	}
	raw, err := DecodeTransport(payload.Data)
	if err != nil {
		t.Fatalf("payload is not valid transport text: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("payload is not a decodable JPEG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 8 {
		t.Errorf("decoded frame = %dx%d, want 8x8", b.Dx(), b.Dy())
	}
}

func TestSampler_NotReadySkipped(t *testing.T) {
	source := &fakeFrameSource{err: ErrFrameNotReady}
	sender := &recordSender{}
	s := NewSampler(DefaultSamplerConfig(), source, sender, discardLogger())

	s.sampleOnce()
	s.sampleOnce()

	if got := sender.frameCount(); got != 0 {
		t.Errorf("frames sent = %d, want 0 while source not ready", got)
	}
}

func TestSampler_SourceErrorKeepsSampling(t *testing.T) {
	source := &fakeFrameSource{err: errors.New("capture device wedged")}
	sender := &recordSender{}
	s := NewSampler(DefaultSamplerConfig(), source, sender, discardLogger())

	s.sampleOnce()
	if got := sender.frameCount(); got != 0 {
		t.Fatalf("frames sent = %d, want 0 after error", got)
	}

	// The source recovers; the next tick succeeds.
	source.set(testImage(), nil)
	s.sampleOnce()
	if got := sender.frameCount(); got != 1 {
		t.Errorf("frames sent = %d, want 1 after recovery", got)
	}
}

func TestSampler_StartStopStart(t *testing.T) {
	source := &fakeFrameSource{img: testImage()}
	sender := &recordSender{}
	cfg := SamplerConfig{Interval: 10 * time.Millisecond, JPEGQuality: 80}
	s := NewSampler(cfg, source, sender, discardLogger())

	s.Start()
	s.Start() // no-op while running
	waitFor(t, func() bool { return sender.frameCount() >= 1 }, "sampler never produced a frame")

	s.Stop()
	s.Stop() // idempotent
	settled := sender.frameCount()
	time.Sleep(50 * time.Millisecond)
	if got := sender.frameCount(); got > settled+1 {
		t.Errorf("frames kept flowing after stop: %d -> %d", settled, got)
	}

	// Restart schedules a fresh ticker.
	before := sender.frameCount()
	s.Start()
	waitFor(t, func() bool { return sender.frameCount() > before }, "sampler did not resume after restart")
	s.Stop()
}
