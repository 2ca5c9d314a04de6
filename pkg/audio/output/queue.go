// ABOUTME: Bounded frame queue sink
// ABOUTME: Decouples the mixer clock from a transport reading at its own pace
package output

import (
	"context"
	"errors"
	"io"
	"sync"
)

// ErrQueueClosed is returned by Next after Close once the queue is drained
var ErrQueueClosed = errors.New("frame queue closed")

// FrameQueue buffers frames for a consumer. When full, the oldest frame is
// dropped so the mixer never blocks on a slow transport.
type FrameQueue struct {
	frames  chan []byte
	mu      sync.Mutex
	closed  bool
	dropped uint64
	partial []byte // unread tail of the last frame handed to Read
}

// NewFrameQueue creates a queue holding up to capacity frames
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &FrameQueue{
		frames: make(chan []byte, capacity),
	}
}

func (q *FrameQueue) WriteFrame(frame []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	buf := make([]byte, len(frame))
	copy(buf, frame)

	for {
		select {
		case q.frames <- buf:
			return nil
		default:
		}
		// Full: drop the oldest frame and retry
		select {
		case <-q.frames:
			q.dropped++
		default:
		}
	}
}

// Next blocks until a frame is available, the queue is closed, or ctx ends
func (q *FrameQueue) Next(ctx context.Context) ([]byte, error) {
	select {
	case frame, ok := <-q.frames:
		if !ok {
			return nil, ErrQueueClosed
		}
		return frame, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Read implements io.Reader over the frame stream, returning io.EOF after Close
func (q *FrameQueue) Read(p []byte) (int, error) {
	if len(q.partial) == 0 {
		frame, ok := <-q.frames
		if !ok {
			return 0, io.EOF
		}
		q.partial = frame
	}
	n := copy(p, q.partial)
	q.partial = q.partial[n:]
	return n, nil
}

// Len returns the number of queued frames
func (q *FrameQueue) Len() int {
	return len(q.frames)
}

// Dropped returns how many frames were discarded because the queue was full
func (q *FrameQueue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close stops accepting frames; queued frames can still be read
func (q *FrameQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.frames)
	}
	return nil
}
