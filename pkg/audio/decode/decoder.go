// ABOUTME: Decoder interface and source dispatcher
// ABOUTME: Opens files and URLs as PCM decoders based on scheme and extension
package decode

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sendspin/mixbus/pkg/audio"
)

// ErrUnsupportedFormat is returned when no decoder handles a file extension
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Decoder provides interleaved int16 PCM samples at a native rate
type Decoder interface {
	// Read reads PCM samples into the buffer. Returns number of samples read or error.
	Read(samples []int16) (int, error)
	// SampleRate returns the sample rate of the audio
	SampleRate() int
	// Channels returns the number of channels
	Channels() int
	// Metadata returns title, artist, album
	Metadata() (title, artist, album string)
	// Close closes the audio source
	Close() error
}

// Open creates a PCM reader from a file path or HTTP URL, converted to target.
// HTTP URLs ending in .mp3 are decoded in-process; every other URL goes through ffmpeg.
func Open(pathOrURL string, target audio.Format) (*Reader, error) {
	dec, err := OpenDecoder(pathOrURL, target)
	if err != nil {
		return nil, err
	}
	return NewReader(dec, target), nil
}

// OpenDecoder selects a decoder for pathOrURL without format conversion
func OpenDecoder(pathOrURL string, target audio.Format) (Decoder, error) {
	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		if strings.HasSuffix(strings.ToLower(stripQuery(pathOrURL)), ".mp3") {
			log.Printf("Streaming from HTTP URL: %s", pathOrURL)
			return NewHTTPMP3(pathOrURL)
		}
		log.Printf("Streaming via ffmpeg: %s", pathOrURL)
		return NewFFmpeg(pathOrURL, target)
	}

	if _, err := os.Stat(pathOrURL); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", pathOrURL)
	}

	ext := strings.ToLower(filepath.Ext(pathOrURL))
	switch ext {
	case ".mp3":
		return NewMP3File(pathOrURL)
	case ".flac":
		return NewFLACFile(pathOrURL)
	case ".wav":
		return NewWAVFile(pathOrURL)
	default:
		if ffmpegAvailable() {
			return NewFFmpeg(pathOrURL, target)
		}
		return nil, fmt.Errorf("%w: %s (supported: .mp3, .flac, .wav)", ErrUnsupportedFormat, ext)
	}
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// titleFromPath extracts the filename without extension
func titleFromPath(path string) string {
	filename := filepath.Base(path)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
