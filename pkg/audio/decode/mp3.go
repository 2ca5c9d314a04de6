// ABOUTME: MP3 audio decoders for local files and HTTP streams
// ABOUTME: Wraps go-mp3 which always emits 16-bit stereo
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Decoder decodes an MP3 byte stream
type MP3Decoder struct {
	closer     io.Closer
	decoder    *mp3.Decoder
	buf        []byte
	sampleRate int
	title      string
	artist     string
}

func newMP3(r io.ReadCloser, title, artist string) (*MP3Decoder, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &MP3Decoder{
		closer:     r,
		decoder:    decoder,
		sampleRate: decoder.SampleRate(),
		title:      title,
		artist:     artist,
	}, nil
}

// NewMP3File opens an MP3 file
func NewMP3File(filePath string) (*MP3Decoder, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	d, err := newMP3(f, titleFromPath(filePath), "Unknown Artist")
	if err != nil {
		return nil, err
	}
	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", d.title, d.sampleRate)
	return d, nil
}

// NewHTTPMP3 streams MP3 from an HTTP URL
func NewHTTPMP3(url string) (*MP3Decoder, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	d, err := newMP3(resp.Body, "HTTP Stream", url)
	if err != nil {
		return nil, err
	}
	log.Printf("Streaming MP3 from HTTP: %s (sample rate: %d Hz)", url, d.sampleRate)
	return d, nil
}

func (d *MP3Decoder) Read(samples []int16) (int, error) {
	numBytes := len(samples) * 2
	if cap(d.buf) < numBytes {
		d.buf = make([]byte, numBytes)
	}
	buf := d.buf[:numBytes]

	n, err := d.decoder.Read(buf)
	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	if err == io.EOF && numSamples > 0 {
		// Deliver the samples now, EOF on the next call
		return numSamples, nil
	}
	return numSamples, err
}

func (d *MP3Decoder) SampleRate() int { return d.sampleRate }

// Channels is always 2, go-mp3 upmixes mono
func (d *MP3Decoder) Channels() int { return 2 }

func (d *MP3Decoder) Metadata() (string, string, string) {
	return d.title, d.artist, ""
}

func (d *MP3Decoder) Close() error {
	return d.closer.Close()
}
