// ABOUTME: Audio output sink tests
// ABOUTME: Verifies sink implementations, frame queue dropping and packetising
package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Sendspin/mixbus/pkg/audio"
	"github.com/Sendspin/mixbus/pkg/audio/encode"
)

func TestSinksImplementSink(t *testing.T) {
	var _ Sink = (*WriterSink)(nil)
	var _ Sink = (*FrameQueue)(nil)
	var _ Sink = (*Oto)(nil)
	var _ Sink = (*PacketSink)(nil)
	var _ Sink = NullSink{}
	var _ Sink = MultiSink{}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewWriterSink(&buf)

	if err := s.WriteFrame([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := s.WriteFrame([]byte{5, 6, 7, 8}); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if !bytes.Equal(buf.Bytes(), []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("unexpected output %v", buf.Bytes())
	}
}

type failingSink struct{ err error }

func (f failingSink) WriteFrame([]byte) error { return f.err }

func TestMultiSinkCombinesErrors(t *testing.T) {
	var buf bytes.Buffer
	errA := errors.New("a")
	errB := errors.New("b")
	m := MultiSink{failingSink{errA}, NewWriterSink(&buf), failingSink{errB}}

	err := m.WriteFrame([]byte{9, 9})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("expected both errors, got %v", err)
	}
	if buf.Len() != 2 {
		t.Errorf("expected healthy sink to still receive the frame, got %d bytes", buf.Len())
	}
}

func TestFrameQueueDropsOldest(t *testing.T) {
	q := NewFrameQueue(2)

	for i := byte(1); i <= 3; i++ {
		if err := q.WriteFrame([]byte{i}); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if q.Dropped() != 1 {
		t.Errorf("expected 1 dropped frame, got %d", q.Dropped())
	}

	ctx := context.Background()
	for _, want := range []byte{2, 3} {
		frame, err := q.Next(ctx)
		if err != nil {
			t.Fatalf("next failed: %v", err)
		}
		if frame[0] != want {
			t.Errorf("expected frame %d, got %d", want, frame[0])
		}
	}
}

func TestFrameQueueCopiesFrames(t *testing.T) {
	q := NewFrameQueue(1)
	frame := []byte{1, 2}
	q.WriteFrame(frame)
	frame[0] = 99

	got, _ := q.Next(context.Background())
	if got[0] != 1 {
		t.Errorf("expected queued frame to be a copy, got %v", got)
	}
}

func TestFrameQueueReadAndClose(t *testing.T) {
	q := NewFrameQueue(4)
	q.WriteFrame([]byte{1, 2, 3})
	q.WriteFrame([]byte{4})
	q.Close()

	if err := q.WriteFrame([]byte{5}); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}

	data, err := io.ReadAll(q)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3, 4}) {
		t.Errorf("unexpected data %v", data)
	}

	if _, err := q.Next(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed from Next, got %v", err)
	}
}

func TestFrameQueueNextHonoursContext(t *testing.T) {
	q := NewFrameQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := q.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPacketSinkSplitsFrames(t *testing.T) {
	format := audio.DefaultFormat()
	enc, err := encode.NewOpus(format, 0)
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}

	var packets [][]byte
	sink, err := NewPacketSink(format, enc, func(p []byte) error {
		packets = append(packets, p)
		return nil
	})
	if err != nil {
		t.Fatalf("NewPacketSink() failed: %v", err)
	}
	defer sink.Close()

	// 40ms mixer frame -> two 20ms Opus packets
	if err := sink.WriteFrame(make([]byte, format.BytesFor(40*time.Millisecond))); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if len(packets) != 2 {
		t.Errorf("expected 2 packets, got %d", len(packets))
	}

	// 10ms frames are joined until a full packet exists
	half := make([]byte, format.BytesFor(10*time.Millisecond))
	sink.WriteFrame(half)
	if len(packets) != 2 {
		t.Errorf("expected no packet after half a frame, got %d", len(packets))
	}
	sink.WriteFrame(half)
	if len(packets) != 3 {
		t.Errorf("expected 3 packets, got %d", len(packets))
	}
}

func TestPacketSinkPCMPassthrough(t *testing.T) {
	format := audio.DefaultFormat()
	enc, _ := encode.NewPCM(format, 16)

	var got []byte
	sink, err := NewPacketSink(format, enc, func(p []byte) error {
		got = append(got, p...)
		return nil
	})
	if err != nil {
		t.Fatalf("NewPacketSink() failed: %v", err)
	}

	sink.WriteFrame([]byte{1, 2, 3, 4})
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("unexpected packet %v", got)
	}
}
