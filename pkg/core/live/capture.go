package live

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spotter-ai/spotter/pkg/core"
)

// AudioSource is a push source of float samples, typically a capture
// device. The slice passed to onBlock is only valid during the call.
type AudioSource interface {
	Start(onBlock func(samples []float32)) error
	Stop() error
}

// MediaSender accepts outbound media payloads. Session implements it;
// senders tolerate a not-yet-open session as a silent no-op.
type MediaSender interface {
	SendAudio(p EncodedPayload)
	SendImageFrame(p EncodedPayload)
}

// Capture assembles source samples into fixed-size blocks, encodes each
// block for transport, and forwards it to the sender. A one-slot queue
// sits between assembly and the sender: when a block is still pending
// as the next one completes, the stale block is replaced. Recency wins
// over completeness for live speech.
type Capture struct {
	cfg    CaptureConfig
	source AudioSource
	sender MediaSender
	logger *slog.Logger

	// OnEvent, when set before Start, receives EnergyLevelEvent values.
	OnEvent func(Event)

	mu        sync.Mutex
	pending   []float32
	lastLevel time.Time
	started   bool
	stopped   bool

	slot     chan EncodedPayload
	quit     chan struct{}
	stopOnce sync.Once
}

// NewCapture creates a capture pipeline. Zero config fields take
// defaults.
func NewCapture(cfg CaptureConfig, source AudioSource, sender MediaSender, logger *slog.Logger) *Capture {
	def := DefaultCaptureConfig()
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = def.BlockSize
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = def.Channels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		cfg:    cfg,
		source: source,
		sender: sender,
		logger: logger,
		slot:   make(chan EncodedPayload, 1),
		quit:   make(chan struct{}),
	}
}

// Start opens the source and begins forwarding blocks. Calling Start on
// a running capture is a no-op; a stopped capture cannot be restarted.
func (c *Capture) Start() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return fmt.Errorf("capture already stopped")
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	if err := c.source.Start(c.onSamples); err != nil {
		return core.NewMediaError("start audio source", err)
	}
	go c.forward()
	c.logger.Debug("audio capture started",
		"block_size", c.cfg.BlockSize,
		"sample_rate", c.cfg.SampleRate)
	return nil
}

// Stop halts the source before releasing the pipeline. Idempotent and
// safe when never started.
func (c *Capture) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		c.mu.Lock()
		started := c.started
		c.stopped = true
		c.mu.Unlock()

		if started {
			err = c.source.Stop()
		}
		close(c.quit)
	})
	return err
}

// onSamples is the source callback. It runs on the device's thread, so
// work is limited to block assembly and encoding.
func (c *Capture) onSamples(samples []float32) {
	var blocks []EncodedPayload
	var levels []EnergyLevelEvent

	c.mu.Lock()
	c.pending = append(c.pending, samples...)
	for len(c.pending) >= c.cfg.BlockSize {
		pcm := FloatsToPCM16(c.pending[:c.cfg.BlockSize])
		c.pending = append(c.pending[:0], c.pending[c.cfg.BlockSize:]...)

		blocks = append(blocks, EncodedPayload{
			Data:     EncodeTransport(pcm),
			MIMEType: PCMMIMEType(c.cfg.SampleRate),
		})
		if c.cfg.LevelInterval > 0 && time.Since(c.lastLevel) >= c.cfg.LevelInterval {
			c.lastLevel = time.Now()
			levels = append(levels, EnergyLevelEvent{
				RMS:  CalculateRMSEnergy(pcm),
				Peak: CalculatePeakAmplitude(pcm),
			})
		}
	}
	c.mu.Unlock()

	for _, p := range blocks {
		c.offer(p)
	}
	if c.OnEvent != nil {
		for i := range levels {
			c.OnEvent(&levels[i])
		}
	}
}

// offer places a block in the slot, replacing any stale occupant.
func (c *Capture) offer(p EncodedPayload) {
	for {
		select {
		case c.slot <- p:
			return
		default:
		}
		select {
		case <-c.slot:
			c.logger.Debug("dropped stale audio block")
		default:
		}
	}
}

func (c *Capture) forward() {
	for {
		select {
		case p := <-c.slot:
			c.sender.SendAudio(p)
		case <-c.quit:
			return
		}
	}
}
