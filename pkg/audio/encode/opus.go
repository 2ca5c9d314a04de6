// ABOUTME: Opus audio encoder
// ABOUTME: Encodes 20ms s16le frames to Opus packets
package encode

import (
	"fmt"
	"time"

	"github.com/Sendspin/mixbus/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// OpusFrameDuration is the packet duration fed to the Opus encoder
const OpusFrameDuration = 20 * time.Millisecond

// maxOpusPacket is the largest packet libopus will emit
const maxOpusPacket = 4000

// OpusEncoder encodes Opus audio
type OpusEncoder struct {
	encoder    *opus.Encoder
	sampleRate int
	channels   int
	frameBytes int
	pcm        []int16
}

// NewOpus creates a new Opus encoder. A zero bitrate keeps the libopus default.
func NewOpus(format audio.Format, bitrate int) (*OpusEncoder, error) {
	switch format.SampleRate {
	case 8000, 12000, 16000, 24000, 48000:
	default:
		return nil, fmt.Errorf("invalid sample rate for Opus: %d", format.SampleRate)
	}

	encoder, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	if bitrate > 0 {
		if err := encoder.SetBitrate(bitrate); err != nil {
			return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
		}
	}

	return &OpusEncoder{
		encoder:    encoder,
		sampleRate: format.SampleRate,
		channels:   format.Channels,
		frameBytes: format.BytesFor(OpusFrameDuration),
	}, nil
}

// Encode converts one 20ms s16le frame to an Opus packet
func (e *OpusEncoder) Encode(frame []byte) ([]byte, error) {
	if len(frame) != e.frameBytes {
		return nil, fmt.Errorf("opus frame must be %d bytes, got %d", e.frameBytes, len(frame))
	}

	e.pcm = toInt16(frame, e.pcm)

	data := make([]byte, maxOpusPacket)
	n, err := e.encoder.Encode(e.pcm, data)
	if err != nil {
		return nil, fmt.Errorf("opus encode error: %w", err)
	}

	return data[:n], nil
}

func (e *OpusEncoder) FrameDuration() time.Duration {
	return OpusFrameDuration
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	return nil
}
