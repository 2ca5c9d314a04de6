// ABOUTME: Tests for the mixer event bridge
// ABOUTME: Uses a real mixer with a mock clock and an in-memory bus
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/Sendspin/mixbus/pkg/audio/output"
	"github.com/Sendspin/mixbus/pkg/mixer"
	"github.com/Sendspin/mixbus/pkg/protocol"
)

type published struct {
	name    string
	payload interface{}
}

// memoryBus records publishes and lets tests deliver events
type memoryBus struct {
	mu        sync.Mutex
	handlers  map[string]protocol.Handler
	removed   int
	published chan published
}

func newMemoryBus() *memoryBus {
	return &memoryBus{
		handlers:  make(map[string]protocol.Handler),
		published: make(chan published, 100),
	}
}

func (b *memoryBus) Subscribe(name string, fn protocol.Handler) *protocol.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = fn
	return &protocol.Subscription{}
}

func (b *memoryBus) Unsubscribe(*protocol.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed++
}

func (b *memoryBus) Publish(name string, payload interface{}) error {
	b.published <- published{name, payload}
	return nil
}

func (b *memoryBus) deliver(t *testing.T, name, payload string) {
	t.Helper()
	b.mu.Lock()
	fn := b.handlers[name]
	b.mu.Unlock()
	if fn == nil {
		t.Fatalf("no handler for %s", name)
	}
	fn(json.RawMessage(payload))
}

// next returns the next publish whose name matches
func (b *memoryBus) next(t *testing.T, name string) published {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case p := <-b.published:
			if p.name == name {
				return p
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", name)
			return published{}
		}
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

type testBridge struct {
	*Bridge
	mixer *mixer.Mixer
	bus   *memoryBus
	clock *clock.Mock
}

func startBridge(t *testing.T, config Config) *testBridge {
	t.Helper()
	mock := clock.NewMock()
	m := mixer.New(mixer.Config{
		Sink:         output.NullSink{},
		Clock:        mock,
		TickInterval: time.Hour,
		MaxBuffer:    100 * time.Millisecond,
	})
	bus := newMemoryBus()
	b := New(config, m, bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		m.Close()
	})

	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.mu.Lock()
		n := len(bus.handlers)
		bus.mu.Unlock()
		if n == 2 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("bridge did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	return &testBridge{Bridge: b, mixer: m, bus: bus, clock: mock}
}

func (tb *testBridge) add(t *testing.T, opts mixer.StreamOptions) string {
	t.Helper()
	id, err := tb.mixer.AddStream(zeroReader{}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestMixerEventsArePublished(t *testing.T) {
	tb := startBridge(t, Config{})

	id := tb.add(t, mixer.StreamOptions{Metadata: map[string]string{"title": "Intro"}})

	p := tb.bus.next(t, "mixer:streamAdded")
	payload := p.payload.(Payload)
	if payload.StreamID != id || payload.Metadata["title"] != "Intro" {
		t.Errorf("unexpected payload %+v", payload)
	}

	tb.mixer.SetStreamVolume(id, 0.25)
	p = tb.bus.next(t, "mixer:streamVolumeChanged")
	if v := p.payload.(Payload).Volume; v == nil || *v != 0.25 {
		t.Errorf("expected volume 0.25, got %v", v)
	}

	data, _ := json.Marshal(p.payload)
	if !strings.Contains(string(data), `"streamId":"`+id+`"`) {
		t.Errorf("unexpected wire payload %s", data)
	}
}

func TestVolumeMainAppliesToAllStreams(t *testing.T) {
	tb := startBridge(t, Config{})
	a := tb.add(t, mixer.StreamOptions{})
	b := tb.add(t, mixer.StreamOptions{Volume: mixer.Gain(1.5)})

	tb.bus.deliver(t, EventVolumeMain, `{"newVolume":40}`)

	for _, id := range []string{a, b} {
		info, _ := tb.mixer.GetStreamInfo(id)
		if info.Volume != 0.4 {
			t.Errorf("expected %s at 0.4, got %v", id, info.Volume)
		}
	}

	tb.bus.deliver(t, EventVolumeMain, `{"newVolume":250}`)
	if info, _ := tb.mixer.GetStreamInfo(a); info.Volume != 1 {
		t.Errorf("expected clamp to 100%%, got %v", info.Volume)
	}

	// Malformed payloads are ignored
	tb.bus.deliver(t, EventVolumeMain, `{"volume":10}`)
	tb.bus.deliver(t, EventVolumeMain, `nope`)
	if info, _ := tb.mixer.GetStreamInfo(a); info.Volume != 1 {
		t.Errorf("expected volume unchanged, got %v", info.Volume)
	}
}

func TestCommands(t *testing.T) {
	tb := startBridge(t, Config{})
	a := tb.add(t, mixer.StreamOptions{})
	b := tb.add(t, mixer.StreamOptions{StartPaused: true})

	tests := []struct {
		name    string
		cmd     Command
		wantErr error
	}{
		{"pause", Command{Action: "pause", StreamID: a}, nil},
		{"resume", Command{Action: "resume", StreamID: a}, nil},
		{"volume", Command{Action: "volume", StreamID: a, Volume: mixer.Gain(0.5)}, nil},
		{"volume without value", Command{Action: "volume", StreamID: a}, errAny},
		{"missing stream id", Command{Action: "pause"}, errAny},
		{"fade-in playing", Command{Action: "fade-in", StreamID: a}, mixer.ErrInvalidState},
		{"fade-out unknown", Command{Action: "fade-out", StreamID: "nope"}, mixer.ErrNotFound},
		{"crossfade missing ids", Command{Action: "crossfade", OutID: a}, errAny},
		{"crossfade", Command{Action: "crossfade", OutID: a, InID: b, DurationMs: 500}, nil},
		{"unknown action", Command{Action: "explode"}, errAny},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tb.Apply(tt.cmd)
			switch {
			case tt.wantErr == nil && err != nil:
				t.Errorf("unexpected error: %v", err)
			case tt.wantErr == errAny && err == nil:
				t.Error("expected an error")
			case tt.wantErr != nil && tt.wantErr != errAny && !errors.Is(err, tt.wantErr):
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	info, _ := tb.mixer.GetStreamInfo(b)
	if info.CrossfadePartner != a {
		t.Errorf("expected crossfade partner %s, got %q", a, info.CrossfadePartner)
	}
}

var errAny = errors.New("any error")

func TestFailedCommandIsReported(t *testing.T) {
	tb := startBridge(t, Config{})

	tb.bus.deliver(t, EventCommand, `{"action":"fade-out","streamId":"stream_99","durationMs":100}`)

	p := tb.bus.next(t, EventCommandError)
	report := p.payload.(CommandError)
	if report.Action != "fade-out" || report.StreamID != "stream_99" || report.Error == "" {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestProgressThrottling(t *testing.T) {
	b := New(Config{ProgressInterval: 100 * time.Millisecond}, nil, nil)
	start := time.Unix(1000, 0)

	tests := []struct {
		offset   time.Duration
		progress float64
		expected bool
	}{
		{0, 0.1, true},
		{20 * time.Millisecond, 0.2, false},
		{100 * time.Millisecond, 0.3, true},
		{120 * time.Millisecond, 1, true},
	}

	for _, tt := range tests {
		ev := mixer.Event{Type: mixer.EventFadeProgress, StreamID: "s", Time: start.Add(tt.offset), Progress: tt.progress}
		if got := b.progressDue(ev); got != tt.expected {
			t.Errorf("at %v progress %.1f: expected %v, got %v", tt.offset, tt.progress, tt.expected, got)
		}
	}
}

func TestPayloadFor(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	p := PayloadFor(mixer.Event{Type: mixer.EventStreamError, StreamID: "s", Time: now, Err: errors.New("boom")})
	if p.Error != "boom" || p.Time != 1700000000000 {
		t.Errorf("unexpected error payload %+v", p)
	}

	p = PayloadFor(mixer.Event{Type: mixer.EventCrossfadeStarted, StreamID: "a", PartnerID: "b", Duration: 1500 * time.Millisecond})
	if p.PartnerID != "b" || p.DurationMs != 1500 {
		t.Errorf("unexpected crossfade payload %+v", p)
	}

	p = PayloadFor(mixer.Event{Type: mixer.EventFadeProgress, Progress: 0.5, Volume: 0.5, FadeState: mixer.FadingIn})
	if p.FadeState != "fading_in" || p.Progress == nil || *p.Progress != 0.5 {
		t.Errorf("unexpected progress payload %+v", p)
	}

	p = PayloadFor(mixer.Event{Type: mixer.EventStreamPaused, StreamID: "s"})
	if p.Volume != nil || p.Progress != nil {
		t.Errorf("expected no volume or progress on pause, got %+v", p)
	}
}

func TestQueueOverflowDrops(t *testing.T) {
	b := New(Config{QueueSize: 1}, nil, nil)
	b.enqueue("a", nil)
	b.enqueue("b", nil)
	if b.Dropped() != 1 {
		t.Errorf("expected one dropped event, got %d", b.Dropped())
	}
}
