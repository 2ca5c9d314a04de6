// ABOUTME: Encoding sink delivering fixed-duration packets
// ABOUTME: Splits or joins mixer frames to the encoder's frame size
package output

import (
	"fmt"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/Sendspin/mixbus/pkg/audio/encode"
)

// PacketSink encodes frames and delivers each packet to a callback,
// typically a voice transport sending Opus packets.
type PacketSink struct {
	encoder    encode.Encoder
	deliver    func(packet []byte) error
	chunkBytes int
	pending    []byte
}

// NewPacketSink creates a sink feeding encoder at its native frame duration
func NewPacketSink(format audio.Format, encoder encode.Encoder, deliver func([]byte) error) (*PacketSink, error) {
	chunk := 0
	if d := encoder.FrameDuration(); d > 0 {
		chunk = format.BytesFor(d)
		if chunk == 0 {
			return nil, fmt.Errorf("encoder frame duration %v too short for %dHz", d, format.SampleRate)
		}
	}
	return &PacketSink{
		encoder:    encoder,
		deliver:    deliver,
		chunkBytes: chunk,
	}, nil
}

func (s *PacketSink) WriteFrame(frame []byte) error {
	if s.chunkBytes == 0 {
		return s.emit(frame)
	}

	s.pending = append(s.pending, frame...)
	for len(s.pending) >= s.chunkBytes {
		if err := s.emit(s.pending[:s.chunkBytes]); err != nil {
			s.pending = s.pending[s.chunkBytes:]
			return err
		}
		s.pending = s.pending[s.chunkBytes:]
	}
	// Compact so the backing array does not grow without bound
	if len(s.pending) == 0 {
		s.pending = s.pending[:0:0]
	}
	return nil
}

func (s *PacketSink) emit(chunk []byte) error {
	packet, err := s.encoder.Encode(chunk)
	if err != nil {
		return err
	}
	return s.deliver(packet)
}

// Close releases the encoder
func (s *PacketSink) Close() error {
	return s.encoder.Close()
}
