// ABOUTME: WAV audio decoder
// ABOUTME: Reads PCM WAV files through go-audio/wav
package decode

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/Sendspin/mixbus/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrNotWavFile is returned when the RIFF header is not a valid WAV
var ErrNotWavFile = errors.New("not a valid WAV file")

// WAVDecoder decodes a PCM WAV stream
type WAVDecoder struct {
	closer     io.Closer
	dec        *wav.Decoder
	intBuf     *goaudio.IntBuffer
	sampleRate int
	channels   int
	bitDepth   int
	title      string
}

// NewWAV decodes WAV from a seekable reader
func NewWAV(r io.ReadSeeker, closer io.Closer, title string) (*WAVDecoder, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("failed to locate WAV PCM chunk: %w", err)
	}

	return &WAVDecoder{
		closer:     closer,
		dec:        dec,
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		bitDepth:   int(dec.BitDepth),
		title:      title,
	}, nil
}

// NewWAVFile opens a WAV file
func NewWAVFile(filePath string) (*WAVDecoder, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	d, err := NewWAV(f, f, titleFromPath(filePath))
	if err != nil {
		f.Close()
		return nil, err
	}
	log.Printf("Loaded WAV: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		d.title, d.sampleRate, d.channels, d.bitDepth)
	return d, nil
}

func (d *WAVDecoder) Read(samples []int16) (int, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	if d.intBuf == nil || cap(d.intBuf.Data) < len(samples) {
		d.intBuf = &goaudio.IntBuffer{
			Data:   make([]int, len(samples)),
			Format: d.dec.Format(),
		}
	} else {
		d.intBuf.Data = d.intBuf.Data[:len(samples)]
	}

	n, err := d.dec.PCMBuffer(d.intBuf)
	if n == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	for i := 0; i < n; i++ {
		samples[i] = audio.FromBitDepth(int32(d.intBuf.Data[i]), d.bitDepth)
	}
	return n, nil
}

func (d *WAVDecoder) SampleRate() int { return d.sampleRate }
func (d *WAVDecoder) Channels() int   { return d.channels }
func (d *WAVDecoder) Metadata() (string, string, string) {
	return d.title, "Unknown Artist", ""
}
func (d *WAVDecoder) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
