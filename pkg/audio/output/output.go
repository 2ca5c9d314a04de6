// ABOUTME: Audio output sink interface definition
// ABOUTME: Common interface for frame consumers plus writer, null and fan-out sinks
package output

import (
	"io"
	"sync"

	"go.uber.org/multierr"
)

// Sink consumes mixed frames
type Sink interface {
	// WriteFrame consumes one mixed frame. The slice is only valid for the call.
	WriteFrame(frame []byte) error
}

// WriterSink writes frames to an io.Writer
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink writing every frame to w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.w.Write(frame)
	return err
}

// Close closes the writer if it is an io.Closer
func (s *WriterSink) Close() error {
	if c, ok := s.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// NullSink discards frames
type NullSink struct{}

func (NullSink) WriteFrame([]byte) error { return nil }

// MultiSink writes every frame to each sink in order
type MultiSink []Sink

func (m MultiSink) WriteFrame(frame []byte) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.WriteFrame(frame))
	}
	return err
}

// Close closes every sink that is an io.Closer
func (m MultiSink) Close() error {
	var err error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			err = multierr.Append(err, c.Close())
		}
	}
	return err
}
