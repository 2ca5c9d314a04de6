// ABOUTME: Test tone generator
// ABOUTME: Generates a sine wave, endless or of fixed duration
package decode

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/Sendspin/mixbus/pkg/audio"
)

// ToneDecoder generates a sine test tone
type ToneDecoder struct {
	mu          sync.Mutex
	format      audio.Format
	frequency   float64
	amplitude   float64
	frameIndex  uint64
	totalFrames uint64 // 0 means endless
}

// NewTone creates a tone at frequency Hz with amplitude in [0,1].
// A zero duration generates forever.
func NewTone(format audio.Format, frequency, amplitude float64, duration time.Duration) *ToneDecoder {
	return &ToneDecoder{
		format:      format,
		frequency:   frequency,
		amplitude:   amplitude,
		totalFrames: uint64(format.FramesFor(duration)),
	}
}

func (s *ToneDecoder) Read(samples []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := s.format.Channels
	numFrames := len(samples) / channels
	if s.totalFrames > 0 {
		if s.frameIndex >= s.totalFrames {
			return 0, io.EOF
		}
		if remaining := s.totalFrames - s.frameIndex; uint64(numFrames) > remaining {
			numFrames = int(remaining)
		}
	}

	for i := 0; i < numFrames; i++ {
		t := float64(s.frameIndex+uint64(i)) / float64(s.format.SampleRate)
		value := int16(math.Sin(2*math.Pi*s.frequency*t) * audio.MaxInt16 * s.amplitude)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = value
		}
	}

	s.frameIndex += uint64(numFrames)
	return numFrames * channels, nil
}

func (s *ToneDecoder) SampleRate() int { return s.format.SampleRate }
func (s *ToneDecoder) Channels() int   { return s.format.Channels }
func (s *ToneDecoder) Metadata() (string, string, string) {
	return "Test Tone", "mixbus", ""
}
func (s *ToneDecoder) Close() error { return nil }
