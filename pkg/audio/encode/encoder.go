// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio encoders
package encode

import (
	"fmt"
	"time"

	"github.com/Sendspin/mixbus/pkg/audio"
)

// Encoder encodes s16le PCM frames to a wire format
type Encoder interface {
	// Encode converts one PCM frame to an encoded packet
	Encode(frame []byte) ([]byte, error)

	// FrameDuration is the exact input duration each Encode call expects, or 0 for any
	FrameDuration() time.Duration

	// Close releases encoder resources
	Close() error
}

// New creates an encoder by codec name
func New(codec string, format audio.Format, bitrate int) (Encoder, error) {
	var (
		enc Encoder
		err error
	)
	switch codec {
	case "opus":
		enc, err = NewOpus(format, bitrate)
	case "pcm", "pcm16":
		enc, err = NewPCM(format, 16)
	case "pcm24":
		enc, err = NewPCM(format, 24)
	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// toInt16 decodes an s16le frame into dst
func toInt16(frame []byte, dst []int16) []int16 {
	n := len(frame) / audio.BytesPerSample
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = audio.ReadSample(frame, i)
	}
	return dst
}
