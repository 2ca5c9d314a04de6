// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays mixed frames on local speakers through a persistent oto player
package output

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto only allows one context per process
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoFmt  audio.Format
	otoErr  error
)

// Oto plays frames on the default audio device
type Oto struct {
	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	ready      bool
}

// NewOto opens the audio device for format and starts a player fed by a pipe
func NewOto(format audio.Format) (*Oto, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   format.SampleRate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		}

		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-readyChan
		otoCtx = ctx
		otoFmt = format
	})
	if otoErr != nil {
		return nil, otoErr
	}

	if otoFmt != format {
		log.Printf("Warning: format change detected (%dHz %dch -> %dHz %dch) but oto doesn't support reinitialization. Continuing with existing context.",
			otoFmt.SampleRate, otoFmt.Channels, format.SampleRate, format.Channels)
	}

	o := &Oto{}
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = otoCtx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels", otoFmt.SampleRate, otoFmt.Channels)
	return o, nil
}

// WriteFrame blocks until the player has consumed the frame from the pipe
func (o *Oto) WriteFrame(frame []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return fmt.Errorf("output not initialized")
	}

	if _, err := o.pipeWriter.Write(frame); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.ready = false
	return nil
}
