// ABOUTME: Tests for the event client
// ABOUTME: Runs the client against an in-process WebSocket broker stub
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// stubBroker records what clients send and lets tests push events
type stubBroker struct {
	srv      *httptest.Server
	secret   string
	received chan Message
	conns    chan *websocket.Conn
}

func newStubBroker(t *testing.T, secret string) *stubBroker {
	t.Helper()
	b := &stubBroker{
		secret:   secret,
		received: make(chan Message, 100),
		conns:    make(chan *websocket.Conn, 10),
	}
	upgrader := websocket.Upgrader{}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if r.Header.Get(AuthHeader) != b.secret {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(CloseUnauthorized, "Unauthorized"),
				time.Now().Add(time.Second))
			conn.Close()
			return
		}
		b.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err == nil {
				b.received <- msg
			}
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *stubBroker) addr() string {
	return strings.TrimPrefix(b.srv.URL, "http://")
}

func (b *stubBroker) next(t *testing.T) Message {
	t.Helper()
	select {
	case msg := <-b.received:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client message")
		return Message{}
	}
}

func (b *stubBroker) conn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-b.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client connection")
		return nil
	}
}

func (b *stubBroker) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case msg := <-b.received:
		t.Fatalf("unexpected message %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestClient(t *testing.T, b *stubBroker, secret string) *Client {
	t.Helper()
	c := NewClient(Config{
		ServerAddr:        b.addr(),
		Secret:            secret,
		Name:              "test",
		ReconnectInterval: 10 * time.Millisecond,
	})
	t.Cleanup(func() { c.Close() })
	return c
}

func sendEvent(t *testing.T, conn *websocket.Conn, name string, payload string) {
	t.Helper()
	msg := NewEvent(name, json.RawMessage(payload))
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("failed to send event: %v", err)
	}
}

func TestPublishQueueOrdering(t *testing.T) {
	b := newStubBroker(t, "s3cret")
	c := newTestClient(t, b, "s3cret")

	for i := 1; i <= 3; i++ {
		if err := c.Publish("M", i); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}
	if c.Pending() != 3 {
		t.Fatalf("expected 3 queued messages, got %d", c.Pending())
	}

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	for i := 1; i <= 3; i++ {
		msg := b.next(t)
		if msg.Type != TypeEmit || string(msg.Payload) != string(rune('0'+i)) {
			t.Errorf("expected emit %d, got %+v", i, msg)
		}
	}
	if c.Pending() != 0 {
		t.Errorf("expected empty queue, got %d", c.Pending())
	}

	// Connected publishes go straight out
	if err := c.Publish("M", 4); err != nil {
		t.Fatal(err)
	}
	if msg := b.next(t); string(msg.Payload) != "4" {
		t.Errorf("expected payload 4, got %s", msg.Payload)
	}
}

func TestSubscribeUpstreamOncePerName(t *testing.T) {
	b := newStubBroker(t, "")
	c := newTestClient(t, b, "")
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn := b.conn(t)

	got := make(chan string, 10)
	first := c.Subscribe("X", func(p json.RawMessage) { got <- "first:" + string(p) })
	second := c.Subscribe("X", func(p json.RawMessage) { got <- "second:" + string(p) })

	if msg := b.next(t); msg.Type != TypeSubscribe || msg.EventName != "X" {
		t.Fatalf("expected subscribe X, got %+v", msg)
	}
	b.expectNothing(t)

	sendEvent(t, conn, "X", `{"v":1}`)
	for _, want := range []string{`first:{"v":1}`, `second:{"v":1}`} {
		select {
		case s := <-got:
			if s != want {
				t.Errorf("expected %s, got %s", want, s)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for dispatch")
		}
	}

	c.Unsubscribe(first)
	b.expectNothing(t)

	c.Unsubscribe(second)
	if msg := b.next(t); msg.Type != TypeUnsubscribe || msg.EventName != "X" {
		t.Errorf("expected unsubscribe X, got %+v", msg)
	}

	// Idempotent
	c.Unsubscribe(second)
	c.Unsubscribe(nil)
	b.expectNothing(t)
}

func TestSubscriptionsReplayedOnReconnect(t *testing.T) {
	b := newStubBroker(t, "")
	c := newTestClient(t, b, "")

	c.Subscribe("A", func(json.RawMessage) {})
	c.Subscribe("B", func(json.RawMessage) {})
	c.Publish("queued", "hello")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	conn := b.conn(t)
	for _, want := range []Message{
		{Type: TypeSubscribe, EventName: "A"},
		{Type: TypeSubscribe, EventName: "B"},
		{Type: TypeEmit, EventName: "queued"},
	} {
		msg := b.next(t)
		if msg.Type != want.Type || msg.EventName != want.EventName {
			t.Errorf("expected %s %s, got %+v", want.Type, want.EventName, msg)
		}
	}

	// Simulate a broker restart
	conn.Close()
	b.conn(t)

	for _, name := range []string{"A", "B"} {
		msg := b.next(t)
		if msg.Type != TypeSubscribe || msg.EventName != name {
			t.Errorf("expected replayed subscribe %s, got %+v", name, msg)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestUnauthorized(t *testing.T) {
	b := newStubBroker(t, "right")

	disconnected := make(chan error, 1)
	c := NewClient(Config{
		ServerAddr:        b.addr(),
		Secret:            "wrong",
		ReconnectInterval: 10 * time.Millisecond,
		OnDisconnect:      func(err error) { disconnected <- err },
	})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Run(ctx); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := <-disconnected; !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected OnDisconnect(ErrUnauthorized), got %v", err)
	}
}

func TestMalformedMessagesAreIgnored(t *testing.T) {
	b := newStubBroker(t, "")
	c := newTestClient(t, b, "")

	got := make(chan string, 1)
	c.Subscribe("X", func(p json.RawMessage) { got <- string(p) })
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn := b.conn(t)
	b.next(t)

	conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"event"}`))
	sendEvent(t, conn, "X", `"still here"`)

	select {
	case p := <-got:
		if p != `"still here"` {
			t.Errorf("unexpected payload %s", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not survive malformed messages")
	}
	if !c.IsConnected() {
		t.Error("expected client to stay connected")
	}
}

func TestHandlerMayPublish(t *testing.T) {
	b := newStubBroker(t, "")
	c := newTestClient(t, b, "")

	c.Subscribe("ping", func(json.RawMessage) {
		c.Publish("pong", nil)
	})
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	conn := b.conn(t)
	b.next(t)

	sendEvent(t, conn, "ping", `{}`)
	if msg := b.next(t); msg.Type != TypeEmit || msg.EventName != "pong" {
		t.Errorf("expected pong emit, got %+v", msg)
	}
}

func TestClosedClient(t *testing.T) {
	c := NewClient(Config{ServerAddr: "127.0.0.1:1"})
	c.Close()

	if err := c.Publish("x", 1); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Publish, got %v", err)
	}
	if err := c.Connect(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Connect, got %v", err)
	}
	if err := c.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Run, got %v", err)
	}
}

func TestResolveWhenNoAddress(t *testing.T) {
	b := newStubBroker(t, "")
	resolved := false
	c := NewClient(Config{
		Resolve: func(ctx context.Context) (string, error) {
			resolved = true
			return b.addr(), nil
		},
	})
	defer c.Close()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if !resolved {
		t.Error("expected Resolve to be used")
	}
	if !strings.HasPrefix(c.Name(), "client-") {
		t.Errorf("expected generated name, got %q", c.Name())
	}
}
