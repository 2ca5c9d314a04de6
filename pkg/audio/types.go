// ABOUTME: Audio type definitions
// ABOUTME: Defines the PCM format and 16-bit little-endian sample helpers
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	// Reference PCM format
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	BitDepth          = 16

	// BytesPerSample is the width of one s16le sample
	BytesPerSample = BitDepth / 8

	// 16-bit range constants
	MaxInt16 = math.MaxInt16
	MinInt16 = math.MinInt16
)

// Format describes an interleaved s16le PCM stream
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat returns 48kHz stereo
func DefaultFormat() Format {
	return Format{
		SampleRate: DefaultSampleRate,
		Channels:   DefaultChannels,
	}
}

// FrameWidth returns the size in bytes of one frame (one sample per channel)
func (f Format) FrameWidth() int {
	return f.Channels * BytesPerSample
}

// FramesFor returns the number of frames covering d
func (f Format) FramesFor(d time.Duration) int {
	return int(int64(f.SampleRate) * int64(d) / int64(time.Second))
}

// BytesFor returns the number of bytes covering d, always a whole number of frames
func (f Format) BytesFor(d time.Duration) int {
	return f.FramesFor(d) * f.FrameWidth()
}

// DurationOf returns the playback duration of n bytes
func (f Format) DurationOf(n int) time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	frames := int64(n / f.FrameWidth())
	return time.Duration(frames * int64(time.Second) / int64(f.SampleRate))
}

// Valid reports whether the format can describe a stream
func (f Format) Valid() bool {
	return f.SampleRate > 0 && f.Channels > 0
}

// ReadSample reads the i-th int16 sample from an s16le byte slice
func ReadSample(data []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(data[i*BytesPerSample:]))
}

// PutSample writes the i-th int16 sample into an s16le byte slice
func PutSample(data []byte, i int, sample int16) {
	binary.LittleEndian.PutUint16(data[i*BytesPerSample:], uint16(sample))
}

// Clamp16 saturates a 32-bit intermediate to the int16 range
func Clamp16(v int32) int16 {
	if v > MaxInt16 {
		return MaxInt16
	}
	if v < MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// Scale applies a linear gain to a sample, rounding half away from zero.
// The result is not clamped so that callers can accumulate before saturating.
func Scale(sample int16, gain float64) int32 {
	return int32(math.Round(float64(sample) * gain))
}

// FromBitDepth converts a sample of the given bit depth to 16-bit
func FromBitDepth(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return int16(sample)
	case bitDepth > 16:
		return int16(sample >> uint(bitDepth-16))
	case bitDepth > 0:
		return int16(sample << uint(16-bitDepth))
	default:
		return 0
	}
}

// Silence returns an all-zero buffer of n bytes
func Silence(n int) []byte {
	return make([]byte, n)
}
