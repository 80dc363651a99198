package live

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// AudioBuffer holds decoded audio as channel-major float32 samples in
// the range -1.0 to 1.0. Data[ch][i] is sample i of channel ch.
type AudioBuffer struct {
	SampleRate int
	Channels   int
	Data       [][]float32
}

// Frames returns the number of samples per channel.
func (b AudioBuffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// EncodedPayload is a transport chunk tagged with its MIME type, for
// example "audio/pcm;rate=16000" or "image/jpeg". Data is base64.
type EncodedPayload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

// PCMMIMEType returns the MIME type for raw PCM at the given rate.
func PCMMIMEType(sampleRate int) string {
	return fmt.Sprintf("audio/pcm;rate=%d", sampleRate)
}

// MIMETypeJPEG is the MIME type for encoded video frames.
const MIMETypeJPEG = "image/jpeg"

// FloatsToPCM16 converts float samples in -1.0..1.0 to 16-bit signed
// little-endian PCM. Values are scaled by 32768 and truncated toward
// zero; out-of-range input is clamped to the int16 rails.
func FloatsToPCM16(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int32(s * 32768)
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v)))
	}
	return pcm
}

// PCM16ToFloats converts 16-bit signed little-endian PCM to float
// samples in -1.0..1.0. Odd byte counts are an error, never silently
// truncated.
func PCM16ToFloats(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("pcm data has odd length %d", len(pcm))
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples, nil
}

// SamplesToTransport encodes float samples as base64 PCM16 LE for the
// wire. 4096 zero samples produce exactly 8192 PCM bytes before the
// base64 overhead.
func SamplesToTransport(samples []float32) string {
	return base64.StdEncoding.EncodeToString(FloatsToPCM16(samples))
}

// TransportToBuffer decodes base64 PCM16 LE into a channel-major float
// buffer. No resampling happens; the result reports the given rate.
func TransportToBuffer(text string, sampleRate, channels int) (AudioBuffer, error) {
	if channels <= 0 {
		return AudioBuffer{}, fmt.Errorf("invalid channel count %d", channels)
	}
	pcm, err := DecodeTransport(text)
	if err != nil {
		return AudioBuffer{}, err
	}
	samples, err := PCM16ToFloats(pcm)
	if err != nil {
		return AudioBuffer{}, err
	}
	if len(samples)%channels != 0 {
		return AudioBuffer{}, fmt.Errorf("sample count %d not divisible by %d channels", len(samples), channels)
	}

	frames := len(samples) / channels
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			data[ch][i] = samples[i*channels+ch]
		}
	}
	return AudioBuffer{SampleRate: sampleRate, Channels: channels, Data: data}, nil
}

// EncodeTransport encodes raw bytes for the wire (standard base64).
func EncodeTransport(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// DecodeTransport decodes a wire chunk back to raw bytes. Invalid
// base64 is a loud error.
func DecodeTransport(text string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("decode transport chunk: %w", err)
	}
	return raw, nil
}

// CalculateRMSEnergy computes the root-mean-square energy of PCM audio.
// Input is assumed to be 16-bit signed little-endian PCM.
// Returns a value between 0.0 and 1.0.
func CalculateRMSEnergy(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}

	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		// Little-endian 16-bit signed integer
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		// Normalize to -1.0 to 1.0
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}

	return math.Sqrt(sum / float64(samples))
}

// CalculatePeakAmplitude returns the maximum absolute amplitude in the PCM data.
// Returns a value between 0.0 and 1.0.
func CalculatePeakAmplitude(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}

	var maxAbs float64
	for i := 0; i < len(pcm)-1; i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		// Use float64 to avoid overflow when negating -32768
		abs := math.Abs(float64(sample))
		if abs > maxAbs {
			maxAbs = abs
		}
	}

	return maxAbs / 32768.0
}
