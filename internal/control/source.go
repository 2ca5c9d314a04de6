// ABOUTME: Source opening for streams added over HTTP
// ABOUTME: Maps add requests to decoders normalised to the mixer format
package control

import (
	"fmt"
	"io"
	"time"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/Sendspin/mixbus/pkg/audio/decode"
)

const (
	defaultToneFrequency = 440.0
	toneAmplitude        = 0.3
)

// Opener turns an add request into a PCM source at the mixer format
type Opener interface {
	Open(req AddStreamRequest) (io.ReadCloser, map[string]string, error)
}

// DecodeOpener opens files, URLs and test tones with pkg/audio/decode
type DecodeOpener struct {
	Format audio.Format
}

// Open implements Opener
func (o DecodeOpener) Open(req AddStreamRequest) (io.ReadCloser, map[string]string, error) {
	metadata := map[string]string{"source": req.Source}

	switch req.Source {
	case "tone":
		freq := req.Frequency
		if freq <= 0 {
			freq = defaultToneFrequency
		}
		duration := time.Duration(req.DurationMs) * time.Millisecond
		tone := decode.NewTone(o.Format, freq, toneAmplitude, duration)
		title, _, _ := tone.Metadata()
		metadata["title"] = title
		return decode.NewReader(tone, o.Format), withTitle(metadata, req.Title), nil

	case "file", "url":
		if req.URL == "" {
			return nil, nil, fmt.Errorf("url is required for %s sources", req.Source)
		}
		r, err := decode.Open(req.URL, o.Format)
		if err != nil {
			return nil, nil, err
		}
		title, artist, album := r.Metadata()
		metadata["url"] = req.URL
		metadata["title"] = title
		if artist != "" {
			metadata["artist"] = artist
		}
		if album != "" {
			metadata["album"] = album
		}
		return r, withTitle(metadata, req.Title), nil

	default:
		return nil, nil, fmt.Errorf("unknown source %q", req.Source)
	}
}

func withTitle(metadata map[string]string, title string) map[string]string {
	if title != "" {
		metadata["title"] = title
	}
	return metadata
}
