// ABOUTME: PCM audio encoder
// ABOUTME: Passes s16le through or widens it to 24-bit little-endian
package encode

import (
	"fmt"
	"time"

	"github.com/Sendspin/mixbus/pkg/audio"
)

// PCMEncoder encodes PCM audio
type PCMEncoder struct {
	bitDepth int
}

// NewPCM creates a new PCM encoder
func NewPCM(format audio.Format, bitDepth int) (*PCMEncoder, error) {
	if !format.Valid() {
		return nil, fmt.Errorf("invalid format: %+v", format)
	}

	if bitDepth != 16 && bitDepth != 24 {
		return nil, fmt.Errorf("unsupported bit depth: %d (supported: 16, 24)", bitDepth)
	}

	return &PCMEncoder{
		bitDepth: bitDepth,
	}, nil
}

// Encode converts an s16le frame to PCM bytes at the configured depth
func (e *PCMEncoder) Encode(frame []byte) ([]byte, error) {
	if e.bitDepth == 16 {
		output := make([]byte, len(frame))
		copy(output, frame)
		return output, nil
	}

	// 24-bit PCM: 3 bytes per sample, low byte zero
	numSamples := len(frame) / audio.BytesPerSample
	output := make([]byte, numSamples*3)
	for i := 0; i < numSamples; i++ {
		v := int32(audio.ReadSample(frame, i)) << 8
		output[i*3] = byte(v)
		output[i*3+1] = byte(v >> 8)
		output[i*3+2] = byte(v >> 16)
	}
	return output, nil
}

func (e *PCMEncoder) FrameDuration() time.Duration {
	return 0
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}
