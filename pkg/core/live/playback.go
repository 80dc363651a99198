package live

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Clock reports the monotonic position of the audio output device.
type Clock interface {
	// Now returns the time elapsed since the output opened.
	Now() time.Duration
}

// NewSystemClock returns a Clock measuring from the moment of creation.
func NewSystemClock() Clock {
	return systemClock{start: time.Now()}
}

type systemClock struct {
	start time.Time
}

func (c systemClock) Now() time.Duration { return time.Since(c.start) }

// AudioSink receives scheduled PCM in submission order. The device is
// expected to play appended buffers back to back.
type AudioSink interface {
	// WriteAudio appends 16-bit signed little-endian PCM.
	WriteAudio(pcm []byte) error

	// Flush drops buffered audio that has not yet reached the device.
	Flush()

	// Close releases the device.
	Close() error
}

// Playback schedules decoded speech chunks gap-free on a single output
// clock. Chunks are written to the sink immediately; the cursor tracks
// where the next chunk would start so arrivals during playback queue
// behind the current tail rather than overlapping it.
type Playback struct {
	audio  AudioConfig
	clock  Clock
	sink   AudioSink
	logger *slog.Logger

	mu     sync.Mutex
	cursor time.Duration
	live   map[*playingChunk]struct{}
	closed bool
}

// playingChunk is one scheduled window. Its timer removes it from the
// live set when the window naturally ends.
type playingChunk struct {
	start time.Duration
	dur   time.Duration
	timer *time.Timer
}

// NewPlayback creates a scheduler over one clock and one sink.
func NewPlayback(cfg PlaybackConfig, clock Clock, sink AudioSink, logger *slog.Logger) *Playback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Playback{
		audio: AudioConfig{
			SampleRate:    cfg.SampleRate,
			Channels:      cfg.Channels,
			BitsPerSample: 16,
		},
		clock:  clock,
		sink:   sink,
		logger: logger,
		live:   make(map[*playingChunk]struct{}),
	}
}

// Enqueue decodes one transport chunk and schedules it at
// max(cursor, now). Malformed transport text is a loud error; an empty
// chunk is a no-op.
func (p *Playback) Enqueue(data string) error {
	pcm, err := DecodeTransport(data)
	if err != nil {
		return err
	}
	if len(pcm) == 0 {
		return nil
	}
	dur := p.audio.Duration(len(pcm))

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}

	now := p.clock.Now()
	start := p.cursor
	if now > start {
		start = now
	}
	p.cursor = start + dur

	chunk := &playingChunk{start: start, dur: dur}
	p.live[chunk] = struct{}{}
	chunk.timer = time.AfterFunc(start+dur-now, func() { p.expire(chunk) })

	// Written under the lock so the sink sees chunks in schedule order.
	err = p.sink.WriteAudio(pcm)
	p.mu.Unlock()

	if err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	p.logger.Debug("scheduled audio chunk", "start", start, "duration", dur)
	return nil
}

func (p *Playback) expire(chunk *playingChunk) {
	p.mu.Lock()
	delete(p.live, chunk)
	p.mu.Unlock()
}

// Live returns the number of chunks whose playback window is still open.
func (p *Playback) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Buffered returns how much scheduled audio lies beyond the clock.
func (p *Playback) Buffered() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0
	}
	left := p.cursor - p.clock.Now()
	if left < 0 {
		return 0
	}
	return left
}

// Interrupt stops every live chunk immediately, flushes the sink, and
// resets the cursor to zero so the next enqueue schedules from "now".
func (p *Playback) Interrupt() {
	p.mu.Lock()
	for chunk := range p.live {
		chunk.timer.Stop()
		delete(p.live, chunk)
	}
	p.cursor = 0
	closed := p.closed
	p.mu.Unlock()

	if !closed {
		p.sink.Flush()
		p.logger.Debug("playback interrupted")
	}
}

// Close stops every live chunk and closes the sink. Idempotent.
func (p *Playback) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	for chunk := range p.live {
		chunk.timer.Stop()
		delete(p.live, chunk)
	}
	p.cursor = 0
	p.mu.Unlock()

	return p.sink.Close()
}
