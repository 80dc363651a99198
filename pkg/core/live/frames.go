package live

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"log/slog"
	"sync"
	"time"
)

// ErrFrameNotReady means the source has no decodable frame yet. The
// sampler skips the tick silently; this is expected while a device
// warms up and is never a failure.
var ErrFrameNotReady = errors.New("frame not ready")

// FrameSource supplies the most recent camera or screen frame.
type FrameSource interface {
	Frame() (image.Image, error)
}

// Sampler pulls the current frame on a fixed interval, encodes it as
// JPEG, and forwards it to the sender.
type Sampler struct {
	cfg    SamplerConfig
	source FrameSource
	sender MediaSender
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	quit    chan struct{}
}

// NewSampler creates a frame sampler. Zero config fields take defaults.
func NewSampler(cfg SamplerConfig, source FrameSource, sender MediaSender, logger *slog.Logger) *Sampler {
	def := DefaultSamplerConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{
		cfg:    cfg,
		source: source,
		sender: sender,
		logger: logger,
	}
}

// Start begins ticking. Calling Start on a running sampler is a no-op;
// a restart after Stop is allowed.
func (s *Sampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.quit = make(chan struct{})
	go s.loop(s.quit)
}

// Stop halts the ticker goroutine. Idempotent.
func (s *Sampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.quit)
}

func (s *Sampler) loop(quit chan struct{}) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sampleOnce()
		case <-quit:
			return
		}
	}
}

// sampleOnce captures, encodes, and forwards a single frame. Source
// errors skip the tick; the sampler keeps running.
func (s *Sampler) sampleOnce() {
	img, err := s.source.Frame()
	if err != nil {
		if !errors.Is(err, ErrFrameNotReady) {
			s.logger.Warn("frame capture failed", "error", err)
		}
		return
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
		s.logger.Warn("frame encode failed", "error", err)
		return
	}

	s.sender.SendImageFrame(EncodedPayload{
		Data:     EncodeTransport(buf.Bytes()),
		MIMEType: MIMETypeJPEG,
	})
}
