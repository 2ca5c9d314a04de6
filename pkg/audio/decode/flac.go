// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames with mewkiz/flac and reduces them to 16-bit
package decode

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes a FLAC stream
type FLACDecoder struct {
	closer     io.Closer
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int
	pending    []int16 // interleaved samples from the current frame not yet returned
	title      string
}

// NewFLAC decodes FLAC from r
func NewFLAC(r io.ReadCloser, title string) (*FLACDecoder, error) {
	stream, err := flac.New(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACDecoder{
		closer:     r,
		stream:     stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		bitDepth:   int(info.BitsPerSample),
		title:      title,
	}, nil
}

// NewFLACFile opens a FLAC file
func NewFLACFile(filePath string) (*FLACDecoder, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	d, err := NewFLAC(f, titleFromPath(filePath))
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		d.title, d.sampleRate, d.channels, d.bitDepth)
	return d, nil
}

func (d *FLACDecoder) Read(samples []int16) (int, error) {
	for len(d.pending) == 0 {
		frame, err := d.stream.ParseNext()
		if err != nil {
			return 0, err
		}

		blockSize := int(frame.BlockSize)
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < d.channels; ch++ {
				d.pending = append(d.pending, audio.FromBitDepth(frame.Subframes[ch].Samples[i], d.bitDepth))
			}
		}
	}

	n := copy(samples, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *FLACDecoder) SampleRate() int { return d.sampleRate }
func (d *FLACDecoder) Channels() int   { return d.channels }
func (d *FLACDecoder) Metadata() (string, string, string) {
	return d.title, "Unknown Artist", ""
}
func (d *FLACDecoder) Close() error {
	return d.closer.Close()
}
