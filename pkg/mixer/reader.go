// ABOUTME: Source pump goroutine feeding a stream's byte queue
// ABOUTME: Applies backpressure and turns EOF and read errors into stream events
package mixer

import (
	"errors"
	"io"
)

// readChunk is the size of each source read
const readChunk = 16 * 1024

// pump copies the source into the stream queue until EOF, error or removal
func (m *Mixer) pump(s *stream) {
	buf := make([]byte, readChunk)
	for {
		if !s.queue.WaitBelow(m.highWater) {
			return
		}

		n, err := s.source.Read(buf)
		if n > 0 && !s.queue.Write(buf[:n]) {
			return
		}

		if errors.Is(err, io.EOF) {
			m.sourceEnded(s)
			return
		}
		if err != nil {
			m.sourceFailed(s, err)
			return
		}
	}
}

// sourceEnded pads the trailing partial frame and marks the stream ended
func (m *Mixer) sourceEnded(s *stream) {
	m.mu.Lock()
	if m.streams[s.id] != s {
		m.mu.Unlock()
		return
	}
	s.queue.PadTo(m.frameBytes)
	s.ended = true
	m.emitLocked(Event{Type: EventStreamEnded, StreamID: s.id, Metadata: copyMetadata(s.metadata)})
	m.debugf("stream %s source ended, %d bytes left", s.id, s.queue.Len())
	m.unlockAndFlush(nil)
}

// sourceFailed removes the stream and reports the error
func (m *Mixer) sourceFailed(s *stream, err error) {
	m.mu.Lock()
	if m.streams[s.id] != s {
		m.mu.Unlock()
		return
	}
	m.logf("stream %s source error: %v", s.id, err)
	m.emitLocked(Event{Type: EventStreamError, StreamID: s.id, Err: err})
	m.removeLocked(s.id)
	m.unlockAndFlush(nil)
}
