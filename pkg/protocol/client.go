// ABOUTME: WebSocket event client for the mixbus broker
// ABOUTME: Handles subscriptions, publish queuing and reconnection
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second

	// DefaultReconnectInterval is the first backoff step of Run
	DefaultReconnectInterval = time.Second

	// DefaultMaxReconnectInterval caps the Run backoff
	DefaultMaxReconnectInterval = 30 * time.Second
)

var (
	// ErrNotConnected is returned when an operation needs a live connection
	ErrNotConnected = errors.New("not connected")

	// ErrUnauthorized is reported when the broker rejects the secret
	ErrUnauthorized = errors.New("unauthorized")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("client closed")
)

// Handler receives the raw JSON payload of an event
type Handler func(payload json.RawMessage)

// Config holds client configuration
type Config struct {
	ServerAddr string // host:port; resolved with Resolve when empty
	Path       string
	Secret     string
	Name       string

	ReconnectInterval    time.Duration
	MaxReconnectInterval time.Duration

	// Resolve finds a broker address, typically via mDNS
	Resolve func(ctx context.Context) (string, error)

	OnConnect    func()
	OnDisconnect func(err error)

	Dialer *websocket.Dialer
	Debug  bool
}

// Subscription identifies one registered handler
type Subscription struct {
	name string
	id   uint64
}

// EventName returns the event the subscription listens to
func (s *Subscription) EventName() string {
	return s.name
}

type handlerEntry struct {
	id uint64
	fn Handler
}

// session is one live connection
type session struct {
	conn *websocket.Conn
	done chan struct{}
	err  error
}

// Client is a broker connection with local fan-out to handlers
type Client struct {
	config Config

	mu       sync.Mutex
	sess     *session
	handlers map[string][]handlerEntry
	names    []string // subscription order, replayed on connect
	pending  []Message
	nextID   uint64
	closed   bool
}

// NewClient creates a new event client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/"
	}
	if config.Name == "" {
		config.Name = "client-" + uuid.New().String()[:8]
	}
	if config.ReconnectInterval <= 0 {
		config.ReconnectInterval = DefaultReconnectInterval
	}
	if config.MaxReconnectInterval < config.ReconnectInterval {
		config.MaxReconnectInterval = DefaultMaxReconnectInterval
		if config.MaxReconnectInterval < config.ReconnectInterval {
			config.MaxReconnectInterval = config.ReconnectInterval
		}
	}
	if config.Dialer == nil {
		config.Dialer = websocket.DefaultDialer
	}

	return &Client{
		config:   config,
		handlers: make(map[string][]handlerEntry),
	}
}

// Name returns the client's log name
func (c *Client) Name() string {
	return c.config.Name
}

// IsConnected reports whether a connection is live
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess != nil
}

// Pending returns the number of queued publishes
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Subscribe registers fn for eventName. The first handler for a name
// subscribes upstream; while disconnected the name is sent on connect.
func (c *Client) Subscribe(eventName string, fn Handler) *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	sub := &Subscription{name: eventName, id: c.nextID}

	first := len(c.handlers[eventName]) == 0
	c.handlers[eventName] = append(c.handlers[eventName], handlerEntry{id: sub.id, fn: fn})
	if first {
		c.names = append(c.names, eventName)
		if c.sess != nil {
			c.sendLocked(Message{Type: TypeSubscribe, EventName: eventName})
		}
	}
	return sub
}

// Unsubscribe removes the handler. Removing the last handler for a name
// unsubscribes upstream and forgets the name. Unknown handles are ignored.
func (c *Client) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.handlers[sub.name]
	for i, e := range entries {
		if e.id != sub.id {
			continue
		}
		remaining := make([]handlerEntry, 0, len(entries)-1)
		remaining = append(remaining, entries[:i]...)
		remaining = append(remaining, entries[i+1:]...)
		if len(remaining) > 0 {
			c.handlers[sub.name] = remaining
			return
		}

		delete(c.handlers, sub.name)
		for j, n := range c.names {
			if n == sub.name {
				c.names = append(c.names[:j], c.names[j+1:]...)
				break
			}
		}
		if c.sess != nil {
			c.sendLocked(Message{Type: TypeUnsubscribe, EventName: sub.name})
		}
		return
	}
}

// Publish emits an event. While disconnected the message is queued and
// delivered in order on the next connect.
func (c *Client) Publish(eventName string, payload interface{}) error {
	msg, err := NewEmit(eventName, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.sess == nil {
		c.pending = append(c.pending, msg)
		if c.config.Debug {
			log.Printf("[DEBUG] EventClient[%s]: queued %s (%d pending)", c.config.Name, eventName, len(c.pending))
		}
		return nil
	}
	if !c.sendLocked(msg) {
		c.pending = append(c.pending, msg)
	}
	return nil
}

// sendLocked writes msg on the live connection. A failed write drops the
// connection and reports false.
func (c *Client) sendLocked(msg Message) bool {
	sess := c.sess
	sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sess.conn.WriteJSON(msg); err != nil {
		log.Printf("EventClient[%s]: write failed: %v", c.config.Name, err)
		c.sess = nil
		sess.conn.Close()
		return false
	}
	return true
}

// Connect makes a single connection attempt. Subscriptions are replayed
// and queued publishes flushed before it returns.
func (c *Client) Connect(ctx context.Context) error {
	_, err := c.connect(ctx)
	return err
}

func (c *Client) connect(ctx context.Context) (*session, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.sess != nil {
		sess := c.sess
		c.mu.Unlock()
		return sess, nil
	}
	c.mu.Unlock()

	addr := c.config.ServerAddr
	if addr == "" {
		if c.config.Resolve == nil {
			return nil, fmt.Errorf("no broker address configured")
		}
		resolved, err := c.config.Resolve(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve broker: %w", err)
		}
		addr = resolved
	}

	u := url.URL{Scheme: "ws", Host: addr, Path: c.config.Path}
	log.Printf("EventClient[%s]: connecting to %s", c.config.Name, u.String())

	header := http.Header{}
	header.Set(AuthHeader, c.config.Secret)

	conn, resp, err := c.config.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	sess := &session{conn: conn, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return nil, ErrClosed
	}
	c.sess = sess

	for _, name := range c.names {
		if !c.sendLocked(Message{Type: TypeSubscribe, EventName: name}) {
			c.mu.Unlock()
			close(sess.done)
			return nil, fmt.Errorf("failed to replay subscriptions")
		}
	}

	flushed := 0
	for _, msg := range c.pending {
		if !c.sendLocked(msg) {
			break
		}
		flushed++
	}
	c.pending = c.pending[flushed:]
	if len(c.pending) == 0 {
		c.pending = nil
	}
	if c.sess == nil {
		c.mu.Unlock()
		close(sess.done)
		return nil, fmt.Errorf("failed to flush queued messages")
	}
	subscriptions := len(c.names)
	c.mu.Unlock()

	log.Printf("EventClient[%s]: connected (%d subscriptions, %d queued messages sent)", c.config.Name, subscriptions, flushed)

	go c.readMessages(sess)

	if c.config.OnConnect != nil {
		c.config.OnConnect()
	}
	return sess, nil
}

// readMessages dispatches incoming events until the connection ends
func (c *Client) readMessages(sess *session) {
	var err error
	for {
		var data []byte
		_, data, err = sess.conn.ReadMessage()
		if err != nil {
			break
		}

		msg, perr := Parse(data)
		if perr != nil {
			log.Printf("EventClient[%s]: ignoring message: %v", c.config.Name, perr)
			continue
		}
		if msg.Type != TypeEvent {
			if c.config.Debug {
				log.Printf("[DEBUG] EventClient[%s]: ignoring %s message", c.config.Name, msg.Type)
			}
			continue
		}
		c.dispatch(msg)
	}

	if websocket.IsCloseError(err, CloseUnauthorized) {
		err = ErrUnauthorized
		log.Printf("EventClient[%s]: broker rejected credentials", c.config.Name)
	} else if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		log.Printf("EventClient[%s]: connection lost: %v", c.config.Name, err)
	}
	c.drop(sess, err)
}

// dispatch calls handlers for msg over a snapshot, in registration order
func (c *Client) dispatch(msg Message) {
	c.mu.Lock()
	entries := c.handlers[msg.EventName]
	snapshot := make([]Handler, len(entries))
	for i, e := range entries {
		snapshot[i] = e.fn
	}
	c.mu.Unlock()

	if c.config.Debug {
		log.Printf("[DEBUG] EventClient[%s]: %s -> %d handlers", c.config.Name, msg.EventName, len(snapshot))
	}
	for _, fn := range snapshot {
		fn(msg.Payload)
	}
}

func (c *Client) drop(sess *session, err error) {
	c.mu.Lock()
	if c.sess == sess {
		c.sess = nil
	}
	c.mu.Unlock()

	sess.conn.Close()
	sess.err = err
	close(sess.done)

	if c.config.OnDisconnect != nil {
		c.config.OnDisconnect(err)
	}
}

// Run keeps the client connected until ctx is done, the client is closed
// or the broker rejects the secret.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.config.ReconnectInterval

	for {
		sess, err := c.connect(ctx)
		if err == nil {
			backoff = c.config.ReconnectInterval
			select {
			case <-sess.done:
				err = sess.err
			case <-ctx.Done():
				c.disconnect()
				return ctx.Err()
			}
		}

		switch {
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrClosed):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			log.Printf("EventClient[%s]: %v, retrying in %v", c.config.Name, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
		if backoff > c.config.MaxReconnectInterval {
			backoff = c.config.MaxReconnectInterval
		}
	}
}

// disconnect closes the live connection, keeping handlers and queue
func (c *Client) disconnect() {
	c.mu.Lock()
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	if sess != nil {
		sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		sess.conn.Close()
	}
}

// Close disconnects and rejects further publishes
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.disconnect()
	return nil
}
