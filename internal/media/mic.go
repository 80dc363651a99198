package media

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// Microphone captures float samples from the default input device and
// pushes them to a callback, one device period at a time.
type Microphone struct {
	sampleRate int
	channels   int

	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	started bool

	// scratch is reused across device callbacks; malgo serializes them.
	scratch []float32
}

// NewMicrophone creates a capture device handle. Zero values take the
// usual speech rate, 16 kHz mono.
func NewMicrophone(sampleRate, channels int) *Microphone {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	return &Microphone{sampleRate: sampleRate, channels: channels}
}

// Start opens the capture device and begins delivering sample blocks to
// onBlock. The slice passed to onBlock is only valid during the call.
func (m *Microphone) Start(onBlock func(samples []float32)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return fmt.Errorf("microphone already started")
	}

	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(m.channels)
	deviceConfig.SampleRate = uint32(m.sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			onBlock(m.floats(input))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("start capture device: %w", err)
	}

	m.ctx = ctx
	m.device = device
	m.started = true
	return nil
}

// floats reinterprets one period of device bytes as float32 samples.
func (m *Microphone) floats(data []byte) []float32 {
	n := len(data) / 4
	if cap(m.scratch) < n {
		m.scratch = make([]float32, n)
	}
	out := m.scratch[:n]
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Stop halts capture and releases the device and context. Safe to call
// more than once.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	if m.ctx != nil {
		_ = m.ctx.Uninit()
		m.ctx.Free()
		m.ctx = nil
	}
	return nil
}
