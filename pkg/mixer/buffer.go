// ABOUTME: Per-stream byte queue between the source pump and the mix tick
// ABOUTME: Append at the back, consume whole frames from the front, with backpressure
package mixer

import "sync"

// byteQueue is a growable FIFO of bytes. The pump appends; the tick takes
// from the front. WaitBelow blocks the pump above a high-water mark.
type byteQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	data   []byte
	head   int
	closed bool
}

func newByteQueue() *byteQueue {
	q := &byteQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Write appends p. Returns false once the queue is closed.
func (q *byteQueue) Write(p []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.data = append(q.data, p...)
	return true
}

// Len returns the number of unconsumed bytes
func (q *byteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data) - q.head
}

// Take fills dst from the front if at least len(dst) bytes are queued
func (q *byteQueue) Take(dst []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.data)-q.head < len(dst) {
		return false
	}
	copy(dst, q.data[q.head:])
	q.head += len(dst)

	// Compact once the consumed prefix dominates
	if q.head >= len(q.data)/2 {
		n := copy(q.data, q.data[q.head:])
		q.data = q.data[:n]
		q.head = 0
	}
	q.cond.Broadcast()
	return true
}

// PadTo appends zero bytes until the length is a multiple of n
func (q *byteQueue) PadTo(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || n <= 0 {
		return
	}
	if rem := (len(q.data) - q.head) % n; rem != 0 {
		q.data = append(q.data, make([]byte, n-rem)...)
	}
}

// WaitBelow blocks while the queue holds limit bytes or more.
// Returns false if the queue was closed.
func (q *byteQueue) WaitBelow(limit int) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for !q.closed && len(q.data)-q.head >= limit {
		q.cond.Wait()
	}
	return !q.closed
}

// Close discards queued bytes and wakes any waiting writer
func (q *byteQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.data = nil
	q.head = 0
	q.cond.Broadcast()
}
