// ABOUTME: Raw PCM decoder
// ABOUTME: Reads interleaved s16le bytes of a known format as int16 samples
package decode

import (
	"encoding/binary"
	"io"

	"github.com/Sendspin/mixbus/pkg/audio"
)

// PCMDecoder decodes headerless s16le PCM
type PCMDecoder struct {
	r      io.Reader
	format audio.Format
	buf    []byte
	odd    []byte // a dangling byte from a read that split a sample
	title  string
}

// NewPCM wraps a raw s16le reader whose format is agreed out-of-band
func NewPCM(r io.Reader, format audio.Format, title string) *PCMDecoder {
	return &PCMDecoder{
		r:      r,
		format: format,
		title:  title,
	}
}

func (d *PCMDecoder) Read(samples []int16) (int, error) {
	numBytes := len(samples) * audio.BytesPerSample
	if cap(d.buf) < numBytes {
		d.buf = make([]byte, numBytes)
	}
	buf := d.buf[:numBytes]

	carried := copy(buf, d.odd)
	d.odd = d.odd[:0]

	n, err := d.r.Read(buf[carried:])
	n += carried

	numSamples := n / audio.BytesPerSample
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	if n%audio.BytesPerSample != 0 {
		d.odd = append(d.odd, buf[n-1])
	}

	if err == io.EOF && numSamples > 0 {
		return numSamples, nil
	}
	return numSamples, err
}

func (d *PCMDecoder) SampleRate() int { return d.format.SampleRate }
func (d *PCMDecoder) Channels() int   { return d.format.Channels }
func (d *PCMDecoder) Metadata() (string, string, string) {
	return d.title, "", ""
}

func (d *PCMDecoder) Close() error {
	if c, ok := d.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
