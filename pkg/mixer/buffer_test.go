// ABOUTME: Tests for the per-stream byte queue
// ABOUTME: Tests frame takes, silence padding and backpressure wakeups
package mixer

import (
	"bytes"
	"testing"
	"time"
)

func TestByteQueueTake(t *testing.T) {
	q := newByteQueue()
	q.Write([]byte{1, 2, 3})
	q.Write([]byte{4, 5})

	dst := make([]byte, 4)
	if !q.Take(dst) {
		t.Fatal("expected take to succeed")
	}
	if !bytes.Equal(dst, []byte{1, 2, 3, 4}) {
		t.Errorf("unexpected bytes %v", dst)
	}
	if q.Take(dst) {
		t.Error("expected take to fail with one byte queued")
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 byte left, got %d", q.Len())
	}

	q.Write([]byte{6, 7, 8})
	q.Take(dst)
	if !bytes.Equal(dst, []byte{5, 6, 7, 8}) {
		t.Errorf("unexpected bytes after compaction %v", dst)
	}
}

func TestByteQueuePadTo(t *testing.T) {
	tests := []struct {
		name     string
		queued   int
		multiple int
		expected int
	}{
		{"partial frame", 5, 4, 8},
		{"whole frames", 8, 4, 8},
		{"empty", 0, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newByteQueue()
			q.Write(bytes.Repeat([]byte{9}, tt.queued))
			q.PadTo(tt.multiple)
			if q.Len() != tt.expected {
				t.Errorf("expected %d bytes, got %d", tt.expected, q.Len())
			}
		})
	}
}

func TestByteQueueBackpressure(t *testing.T) {
	q := newByteQueue()
	q.Write(make([]byte, 8))

	released := make(chan bool)
	go func() {
		released <- q.WaitBelow(8)
	}()

	select {
	case <-released:
		t.Fatal("expected writer to block at the high-water mark")
	case <-time.After(20 * time.Millisecond):
	}

	q.Take(make([]byte, 4))

	select {
	case ok := <-released:
		if !ok {
			t.Error("expected open queue")
		}
	case <-time.After(time.Second):
		t.Fatal("writer not released after take")
	}
}

func TestByteQueueCloseReleasesWriter(t *testing.T) {
	q := newByteQueue()
	q.Write(make([]byte, 8))

	released := make(chan bool)
	go func() {
		released <- q.WaitBelow(4)
	}()

	q.Close()

	select {
	case ok := <-released:
		if ok {
			t.Error("expected WaitBelow to report closed")
		}
	case <-time.After(time.Second):
		t.Fatal("writer not released after close")
	}

	if q.Write([]byte{1}) {
		t.Error("expected write to closed queue to fail")
	}
	if q.Len() != 0 {
		t.Errorf("expected closed queue to be empty, got %d", q.Len())
	}
}
