package live

import (
	"time"
)

// ChannelState represents the lifecycle of the live connection.
type ChannelState int

const (
	// ChannelClosed is the initial and final state.
	ChannelClosed ChannelState = iota
	// ChannelOpening is while dialing and waiting for setup acknowledgement.
	ChannelOpening
	// ChannelOpen is when media and tool traffic may flow.
	ChannelOpen
)

// String returns a human-readable state name.
func (s ChannelState) String() string {
	switch s {
	case ChannelClosed:
		return "CLOSED"
	case ChannelOpening:
		return "OPENING"
	case ChannelOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// Status is the coarse condition reported to the UI layer. Every fatal
// or recoverable condition maps to exactly one value.
type Status int

const (
	// StatusReady is before any connection attempt.
	StatusReady Status = iota
	// StatusConnecting is while the session is being established.
	StatusConnecting
	// StatusLive is when the session is open and streaming.
	StatusLive
	// StatusMediaDenied means a local capture device could not be opened.
	StatusMediaDenied
	// StatusBadCredential means the service rejected the API key.
	StatusBadCredential
	// StatusQuota means the service reported quota or rate exhaustion.
	StatusQuota
	// StatusFailed is any other fatal transport condition.
	StatusFailed
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "READY"
	case StatusConnecting:
		return "CONNECTING"
	case StatusLive:
		return "LIVE"
	case StatusMediaDenied:
		return "MEDIA_DENIED"
	case StatusBadCredential:
		return "BAD_CREDENTIAL"
	case StatusQuota:
		return "QUOTA"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// DefaultSystemInstruction is the assistant persona sent at setup time.
const DefaultSystemInstruction = "You are a visual spotter assistant. You see " +
	"the user's environment through periodic camera frames and hear them through " +
	"their microphone. Answer briefly and out loud. When the user asks where " +
	"something is or what you can see, call the display-detections tool with a " +
	"normalized bounding box for each object you locate. Call clear-detections " +
	"when the annotations are no longer relevant."

// SessionConfig holds all configuration for a live session.
type SessionConfig struct {
	// APIKey authenticates with the generative language service.
	APIKey string `json:"api_key"`

	// Endpoint is the service base URL. http(s) schemes are converted to
	// ws(s) when dialing. Empty uses the public endpoint.
	Endpoint string `json:"endpoint,omitempty"`

	// Model is the live model to converse with.
	// Default: "models/gemini-2.0-flash-live-001"
	Model string `json:"model"`

	// SystemInstruction is the persona and tool guidance sent at setup.
	// Default: DefaultSystemInstruction
	SystemInstruction string `json:"system_instruction,omitempty"`

	// EnableSearch adds the built-in search grounding tool so spoken
	// answers can cite web references.
	// Default: true
	EnableSearch bool `json:"enable_search"`

	// InputAudio is the upstream microphone format.
	// Default: 16 kHz mono 16-bit.
	InputAudio AudioConfig `json:"input_audio"`

	// OutputAudio is the model speech format played back.
	// Default: 24 kHz mono 16-bit.
	OutputAudio AudioConfig `json:"output_audio"`

	// EventBuffer is the capacity of the Events() channel. Emission never
	// blocks; events beyond this backlog are dropped.
	// Default: 256
	EventBuffer int `json:"event_buffer"`

	// ConnectTimeout bounds the dial plus setup handshake.
	// Default: 15s
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Model:             "models/gemini-2.0-flash-live-001",
		SystemInstruction: DefaultSystemInstruction,
		EnableSearch:      true,
		InputAudio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			BitsPerSample: 16,
		},
		OutputAudio: AudioConfig{
			SampleRate:    24000,
			Channels:      1,
			BitsPerSample: 16,
		},
		EventBuffer:    256,
		ConnectTimeout: 15 * time.Second,
	}
}

// CaptureConfig configures the microphone block pipeline.
type CaptureConfig struct {
	// BlockSize is the number of samples accumulated per outbound chunk.
	// Default: 4096
	BlockSize int `json:"block_size"`

	// SampleRate of the source in Hz. Default: 16000
	SampleRate int `json:"sample_rate"`

	// Channels of the source. Default: 1 (mono)
	Channels int `json:"channels"`

	// LevelInterval is how often an energy level event is emitted while
	// capturing. Zero disables level events.
	// Default: 200ms
	LevelInterval time.Duration `json:"level_interval"`
}

// DefaultCaptureConfig returns a CaptureConfig with sensible defaults.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		BlockSize:     4096,
		SampleRate:    16000,
		Channels:      1,
		LevelInterval: 200 * time.Millisecond,
	}
}

// SamplerConfig configures the periodic frame pipeline.
type SamplerConfig struct {
	// Interval between frame submissions. Default: 250ms
	Interval time.Duration `json:"interval"`

	// JPEGQuality from 1 to 100. Default: 80
	JPEGQuality int `json:"jpeg_quality"`
}

// DefaultSamplerConfig returns a SamplerConfig with sensible defaults.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		Interval:    250 * time.Millisecond,
		JPEGQuality: 80,
	}
}

// PlaybackConfig configures the output scheduler.
type PlaybackConfig struct {
	// SampleRate of model speech in Hz. Default: 24000
	SampleRate int `json:"sample_rate"`

	// Channels of model speech. Default: 1 (mono)
	Channels int `json:"channels"`
}

// DefaultPlaybackConfig returns a PlaybackConfig with sensible defaults.
func DefaultPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		SampleRate: 24000,
		Channels:   1,
	}
}

// AudioConfig specifies audio format parameters.
type AudioConfig struct {
	// SampleRate in Hz. Common values: 16000, 24000, 44100, 48000.
	SampleRate int `json:"sample_rate"`

	// Channels: 1 for mono, 2 for stereo.
	Channels int `json:"channels"`

	// BitsPerSample: typically 16 for PCM.
	BitsPerSample int `json:"bits_per_sample"`
}

// DefaultAudioConfig returns the standard playback audio configuration.
func DefaultAudioConfig() AudioConfig {
	return AudioConfig{
		SampleRate:    24000,
		Channels:      1,
		BitsPerSample: 16,
	}
}

// BytesPerSecond returns the audio byte rate.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * (c.BitsPerSample / 8)
}

// DurationMs returns the duration in milliseconds for the given byte count.
func (c AudioConfig) DurationMs(bytes int) int {
	if c.BytesPerSecond() == 0 {
		return 0
	}
	return (bytes * 1000) / c.BytesPerSecond()
}

// Duration returns the playback time of the given byte count.
func (c AudioConfig) Duration(bytes int) time.Duration {
	bps := c.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(bytes) * time.Second / time.Duration(bps)
}

// BytesForDurationMs returns the byte count for the given duration in milliseconds.
func (c AudioConfig) BytesForDurationMs(ms int) int {
	return (c.BytesPerSecond() * ms) / 1000
}
