// ABOUTME: Event broker server implementation
// ABOUTME: Manages WebSocket connections, auth and topic fan-out
package broker

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/Sendspin/mixbus/pkg/discovery"
	"github.com/Sendspin/mixbus/pkg/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// DefaultSendBuffer is the per-connection outbound queue length
	DefaultSendBuffer = 256

	maxMessageSize = 1 << 20
	writeDeadline  = 10 * time.Second
	pingInterval   = 30 * time.Second
)

// Metrics receives broker activity counts
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	AuthRejected()
	MessageReceived(msgType string)
	Malformed()
	Fanout(delivered, dropped int)
}

type nopMetrics struct{}

func (nopMetrics) ConnectionOpened()      {}
func (nopMetrics) ConnectionClosed()      {}
func (nopMetrics) AuthRejected()          {}
func (nopMetrics) MessageReceived(string) {}
func (nopMetrics) Malformed()             {}
func (nopMetrics) Fanout(int, int)        {}

// Config holds broker configuration
type Config struct {
	Port       int
	Secret     string // empty disables the check
	Name       string
	EnableMDNS bool
	Debug      bool
	SendBuffer int

	Metrics        Metrics
	MetricsHandler http.Handler // mounted at /metrics when set
}

// Server is the event broker
type Server struct {
	config   Config
	serverID string
	metrics  Metrics

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	subs *subscriptions

	conns   map[string]*connection
	connsMu sync.RWMutex

	mdnsManager *discovery.Manager
	startTime   time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// connection is one connected client
type connection struct {
	ID         string
	RemoteAddr string
	Conn       *websocket.Conn

	sendChan chan []byte

	// guarded by subscriptions.mu
	topics map[string]struct{}
}

// New creates a new broker
func New(config Config) *Server {
	if config.Port == 0 {
		config.Port = protocol.DefaultPort
	}
	if config.Name == "" {
		config.Name = "mixbus-broker"
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultSendBuffer
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		metrics:  metrics,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || origin == "http://localhost" || origin == "http://127.0.0.1" {
					return true
				}
				log.Printf("Warning: accepting WebSocket from origin: %s", origin)
				return true
			},
		},
		subs:      newSubscriptions(),
		conns:     make(map[string]*connection),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}

	s.mux.HandleFunc("/healthz", s.handleHealth)
	if config.MetricsHandler != nil {
		s.mux.Handle("/metrics", config.MetricsHandler)
	}
	s.mux.HandleFunc("/", s.handleWebSocket)

	return s
}

// ServeHTTP makes the broker usable behind any http.Server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Start listens on the configured port and blocks until Stop
func (s *Server) Start() error {
	log.Printf("Broker starting: %s (ID: %s)", s.config.Name, s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("Event broker listening on %s", addr)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Broker shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.Shutdown()
	log.Printf("Broker stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops a broker started with Start
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Shutdown rejects new connections, closes live ones and waits for their
// goroutines. Start calls it; embedders serving via ServeHTTP call it.
func (s *Server) Shutdown() {
	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	s.connsMu.RLock()
	for _, c := range s.conns {
		c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		c.Conn.Close()
	}
	s.connsMu.RUnlock()

	s.wg.Wait()
}

// Topics returns subscriber counts per event name
func (s *Server) Topics() map[string]int {
	return s.subs.counts()
}

// TopicCount returns the number of names with at least one subscriber
func (s *Server) TopicCount() int {
	return s.subs.len()
}

// ConnectionCount returns the number of live connections
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"id":          s.serverID,
		"connections": s.ConnectionCount(),
		"topics":      s.TopicCount(),
		"uptime":      time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleWebSocket upgrades and serves one client
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.shutdownMu.RUnlock()
	defer s.wg.Done()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	if !s.authorized(r) {
		log.Printf("Rejecting unauthorized connection from %s", r.RemoteAddr)
		s.metrics.AuthRejected()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(protocol.CloseUnauthorized, "Unauthorized"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	s.handleConnection(conn, r.RemoteAddr)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.config.Secret == "" {
		return true
	}
	got := r.Header.Get(protocol.AuthHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.config.Secret)) == 1
}

// handleConnection runs the read loop until the client goes away
func (s *Server) handleConnection(conn *websocket.Conn, remoteAddr string) {
	c := &connection{
		ID:         uuid.New().String(),
		RemoteAddr: remoteAddr,
		Conn:       conn,
		sendChan:   make(chan []byte, s.config.SendBuffer),
		topics:     make(map[string]struct{}),
	}
	conn.SetReadLimit(maxMessageSize)

	s.connsMu.Lock()
	s.conns[c.ID] = c
	s.connsMu.Unlock()
	s.metrics.ConnectionOpened()

	// Shutdown may have scanned conns before this one was registered
	s.shutdownMu.RLock()
	if s.isShutdown {
		conn.Close()
	}
	s.shutdownMu.RUnlock()

	log.Printf("Connection %s from %s", c.ID, remoteAddr)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.clientWriter(c)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleMessage(c, data)
	}

	names := s.subs.removeAll(c)
	close(c.sendChan)
	<-writerDone
	conn.Close()

	s.connsMu.Lock()
	delete(s.conns, c.ID)
	s.connsMu.Unlock()
	s.metrics.ConnectionClosed()

	log.Printf("Connection %s closed (%d subscriptions purged)", c.ID, len(names))
}

// clientWriter drains the send queue and keeps the connection alive
func (s *Server) clientWriter(c *connection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.sendChan:
			if !ok {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("Error writing to %s: %v", c.ID, err)
				c.Conn.Close()
				// Keep draining so fan-out never waits on a dead writer
				for range c.sendChan {
				}
				return
			}

		case <-ticker.C:
			if err := c.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				c.Conn.Close()
				for range c.sendChan {
				}
				return
			}
		}
	}
}

// handleMessage processes one client message
func (s *Server) handleMessage(c *connection, data []byte) {
	msg, err := protocol.Parse(data)
	if err != nil {
		log.Printf("Ignoring message from %s: %v", c.ID, err)
		s.metrics.Malformed()
		return
	}
	s.metrics.MessageReceived(msg.Type)

	switch msg.Type {
	case protocol.TypeSubscribe:
		if s.subs.subscribe(c, msg.EventName) && s.config.Debug {
			log.Printf("[DEBUG] %s subscribed to %s", c.ID, msg.EventName)
		}

	case protocol.TypeUnsubscribe:
		if s.subs.unsubscribe(c, msg.EventName) && s.config.Debug {
			log.Printf("[DEBUG] %s unsubscribed from %s", c.ID, msg.EventName)
		}

	case protocol.TypeEmit:
		s.Publish(msg.EventName, msg.Payload)

	default:
		log.Printf("Ignoring %s message from %s", msg.Type, c.ID)
	}
}

// Publish relays payload to every subscriber of eventName and returns how
// many connections it was queued for. No subscribers is not an error.
func (s *Server) Publish(eventName string, payload json.RawMessage) int {
	var data []byte
	delivered, dropped := 0, 0

	total := s.subs.each(eventName, func(c *connection) {
		if data == nil {
			encoded, err := json.Marshal(protocol.NewEvent(eventName, payload))
			if err != nil {
				log.Printf("Error marshaling event %s: %v", eventName, err)
				return
			}
			data = encoded
		}
		if err := s.send(c, data); err != nil {
			log.Printf("Dropping %s for %s: %v", eventName, c.ID, err)
			dropped++
			return
		}
		delivered++
	})

	if total == 0 {
		if s.config.Debug {
			log.Printf("[DEBUG] No subscribers for %s", eventName)
		}
		return 0
	}
	if s.config.Debug {
		log.Printf("[DEBUG] %s -> %d subscribers", eventName, delivered)
	}
	s.metrics.Fanout(delivered, dropped)
	return delivered
}

// send queues data without blocking
func (s *Server) send(c *connection, data []byte) error {
	select {
	case c.sendChan <- data:
		return nil
	default:
		return fmt.Errorf("client send buffer full")
	}
}
