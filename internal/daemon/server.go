// Package daemon is the board event hub. Writers hand it committed events over a
// unix socket; it fans them out to every viewer subscribed to the project, replays
// the event log to viewers that fell behind, and relays events to Redis.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/types"
)

const (
	defaultBroadcastBuffer = 100
	defaultClientBuffer    = 10
	defaultPingInterval    = 30 * time.Second
	relayTimeout           = 2 * time.Second
	replayWait             = 5 * time.Second
)

// LogReader serves replays from the committed event log.
type LogReader interface {
	EventsSince(ctx context.Context, projectID types.ProjectID, after types.Seq) ([]events.Event, error)
}

// client represents a connected viewer or writer
type client struct {
	conn         net.Conn
	send         chan events.Message
	subscription events.SubscribeMessage
	lastPong     time.Time
	closed       bool
	mu           sync.Mutex // Protects subscription, lastPong and closed
}

// offer queues msg without blocking. It reports false when the queue is full or
// the client is gone.
func (c *client) offer(msg events.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) subscribed(projectID types.ProjectID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 0 on either side means all projects
	return projectID == 0 || c.subscription.ProjectID == 0 || c.subscription.ProjectID == projectID
}

// Server represents the central event daemon
type Server struct {
	socketPath string
	listener   net.Listener
	clients    map[*client]bool
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
	broadcast  chan events.Event
	metrics    *Metrics

	log   LogReader
	relay events.Sink

	broadcastBuffer int
	clientBuffer    int
	pingInterval    time.Duration
	shutdownOnce    sync.Once
}

// Option configures the server.
type Option func(*Server)

// WithBuffers sets the broadcast queue and per-client queue sizes. Non-positive
// values keep the defaults.
func WithBuffers(broadcast, perClient int) Option {
	return func(s *Server) {
		if broadcast > 0 {
			s.broadcastBuffer = broadcast
		}
		if perClient > 0 {
			s.clientBuffer = perClient
		}
	}
}

// WithLogReader enables replay requests.
func WithLogReader(r LogReader) Option {
	return func(s *Server) { s.log = r }
}

// WithRelay forwards every broadcast event to sink, typically a events.RedisRelay.
func WithRelay(sink events.Sink) Option {
	return func(s *Server) { s.relay = sink }
}

// WithPingInterval sets the health check period; clients silent for three periods
// are dropped.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// NewServer creates a new daemon server
func NewServer(socketPath string, opts ...Option) (*Server, error) {
	// Ensure the directory exists
	dir := filepath.Dir(socketPath)

	if dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create socket directory: %w", err)
		}
	}

	// Remove stale socket file if it exists
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	// Create Unix domain socket listener
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		socketPath:      socketPath,
		listener:        listener,
		clients:         make(map[*client]bool),
		ctx:             ctx,
		cancel:          cancel,
		metrics:         NewMetrics(),
		broadcastBuffer: defaultBroadcastBuffer,
		clientBuffer:    defaultClientBuffer,
		pingInterval:    defaultPingInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.broadcast = make(chan events.Event, s.broadcastBuffer)
	return s, nil
}

// Metrics exposes the daemon counters.
func (s *Server) Metrics() *Metrics { return s.metrics }

// Start runs the daemon server
// It starts three main goroutines: accept, broadcast, and health monitoring
func (s *Server) Start(ctx context.Context) error {
	log.Printf("Daemon starting, listening on %s", s.socketPath)

	// Create a combined context that cancels when either the daemon context or caller context is done
	combinedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-s.ctx.Done()
		cancel()
	}()

	// Start accept loop
	acceptErr := make(chan error, 1)
	go func() {
		acceptErr <- s.acceptLoop(combinedCtx)
	}()

	go s.broadcastLoop(combinedCtx)
	go s.monitorHealth(combinedCtx)

	// Wait for context or accept error
	select {
	case <-combinedCtx.Done():
		log.Println("Daemon context cancelled, shutting down")
	case err := <-acceptErr:
		if err != nil {
			log.Printf("Accept loop error: %v", err)
		}
	}

	// Graceful shutdown
	return s.Shutdown()
}

// acceptLoop accepts incoming client connections
func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		// Set a deadline so we can check for context cancellation
		if err := s.listener.(*net.UnixListener).SetDeadline(time.Now().Add(1 * time.Second)); err != nil {
			log.Printf("Error setting listener deadline: %v", err)
		}

		conn, err := s.listener.Accept()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept error: %w", err)
		}

		c := &client{
			conn:     conn,
			send:     make(chan events.Message, s.clientBuffer),
			lastPong: time.Now(),
		}

		s.mu.Lock()
		s.clients[c] = true
		s.mu.Unlock()
		s.updateClientCount()

		log.Printf("Client connected, total clients: %d", s.getClientCount())

		go s.handleClient(c)
		go s.clientWriter(c)
	}
}

// broadcastLoop distributes events to subscribed clients in arrival order
func (s *Server) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case event := <-s.broadcast:
			s.metrics.IncEventsBroadcast()

			msg := events.Message{
				Version: events.ProtocolVersion,
				Type:    events.MessageEvent,
				Event:   &event,
			}

			s.mu.RLock()
			for c := range s.clients {
				if !c.subscribed(event.ProjectID) {
					continue
				}
				// Non-blocking send; a viewer that misses an event sees the gap and replays
				if s.sendToClient(c, msg) {
					continue
				}
				s.metrics.IncEventsDropped()
				log.Printf("Client send queue full, event %d dropped", event.SequenceID)
			}
			s.mu.RUnlock()

			s.relayEvent(ctx, event)
		}
	}
}

func (s *Server) relayEvent(ctx context.Context, event events.Event) {
	if s.relay == nil {
		return
	}
	relayCtx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	if err := s.relay.Publish(relayCtx, event); err != nil {
		s.metrics.IncRelayFailures()
		log.Printf("Failed to relay event %d for project %d: %v", event.SequenceID, event.ProjectID, err)
	}
}

// handleClient reads messages from a connected client
func (s *Server) handleClient(c *client) {
	defer func() {
		s.removeClient(c)
		log.Printf("Client disconnected, total clients: %d", s.getClientCount())
	}()

	decoder := json.NewDecoder(c.conn)

	for {
		var msg events.Message

		if err := decoder.Decode(&msg); err != nil {
			return
		}

		// Check protocol version - log warning if mismatch
		if msg.Version != 0 && msg.Version != events.ProtocolVersion {
			log.Printf("Warning: received message with protocol version %d, expected %d", msg.Version, events.ProtocolVersion)
		}

		switch msg.Type {
		case events.MessageEvent:
			if msg.Event == nil {
				continue
			}
			s.metrics.IncEventsReceived()
			if msg.Event.Type.IsStoryEvent() && msg.Event.SequenceID == 0 {
				log.Printf("Dropping uncommitted %s event for story %d", msg.Event.Type, msg.Event.StoryID)
				continue
			}
			if err := s.Broadcast(*msg.Event); err != nil {
				log.Printf("Broadcast channel full")
			}

		case events.MessageSubscribe:
			if msg.Subscribe != nil {
				c.mu.Lock()
				c.subscription = *msg.Subscribe
				c.mu.Unlock()
				log.Printf("Client subscribed to project %d", msg.Subscribe.ProjectID)
			}

		case events.MessageReplay:
			if msg.Replay != nil {
				s.serveReplay(c, *msg.Replay)
			}

		case events.MessagePong:
			c.mu.Lock()
			c.lastPong = time.Now()
			c.mu.Unlock()
		}
	}
}

// serveReplay sends the requesting client the project's events after the requested
// sequence, oldest first. Other clients are not affected.
func (s *Server) serveReplay(c *client, req events.ReplayRequest) {
	if s.log == nil {
		log.Printf("Replay requested for project %d but no event log is configured", req.ProjectID)
		return
	}
	evs, err := s.log.EventsSince(s.ctx, req.ProjectID, req.AfterSeq)
	if err != nil {
		log.Printf("Failed to read event log for project %d: %v", req.ProjectID, err)
		return
	}

	s.metrics.IncReplaysServed()
	deadline := time.Now().Add(replayWait)
	for i := range evs {
		msg := events.Message{Version: events.ProtocolVersion, Type: events.MessageEvent, Event: &evs[i]}
		// the queue is small, so wait for the writer to drain it
		for !s.sendToClient(c, msg) {
			if time.Now().After(deadline) || s.ctx.Err() != nil {
				log.Printf("Replay for project %d stopped at seq %d", req.ProjectID, evs[i].SequenceID)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// clientWriter sends messages to a client
func (s *Server) clientWriter(c *client) {
	encoder := json.NewEncoder(c.conn)

	for msg := range c.send {
		if err := encoder.Encode(msg); err != nil {
			return
		}
	}
}

// monitorHealth sends ping messages and removes stale clients
func (s *Server) monitorHealth(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	staleAfter := 3 * s.pingInterval

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			// Collect under the server lock, act outside it
			s.mu.RLock()
			clients := make([]*client, 0, len(s.clients))
			for c := range s.clients {
				clients = append(clients, c)
			}
			s.mu.RUnlock()

			now := time.Now()
			ping := events.Message{
				Version: events.ProtocolVersion,
				Type:    events.MessagePing,
				Event:   &events.Event{Type: events.EventPing},
			}
			for _, c := range clients {
				c.mu.Lock()
				silent := now.Sub(c.lastPong)
				c.mu.Unlock()

				if silent > staleAfter {
					log.Printf("Removing stale client (last pong: %v ago)", silent.Round(time.Second))
					s.removeClient(c)
					continue
				}
				if !s.sendToClient(c, ping) {
					log.Printf("Failed to send ping to client (queue full)")
				}
			}
		}
	}
}

// Broadcast queues an event for delivery (non-blocking)
func (s *Server) Broadcast(event events.Event) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("daemon is shut down")
	}
	select {
	case s.broadcast <- event:
		return nil
	default:
		return fmt.Errorf("broadcast channel full")
	}
}

// Publish makes the server an in-process events.Sink.
func (s *Server) Publish(_ context.Context, event events.Event) error {
	return s.Broadcast(event)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		log.Println("Shutting down daemon...")

		s.cancel()

		if s.listener != nil {
			if closeErr := s.listener.Close(); closeErr != nil {
				log.Printf("Error closing listener: %v", closeErr)
			}
		}

		s.mu.Lock()
		for c := range s.clients {
			if closeErr := c.conn.Close(); closeErr != nil {
				log.Printf("Error closing client connection: %v", closeErr)
			}
			c.close()
		}
		s.clients = make(map[*client]bool)
		s.mu.Unlock()
		s.updateClientCount()

		if removeErr := os.Remove(s.socketPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Printf("Warning: failed to remove socket file: %v", removeErr)
		}
	})

	return nil
}

// Helper methods

func (s *Server) getClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) updateClientCount() {
	count := s.getClientCount()
	s.metrics.SetConnectedClients(int32(count))
}

// removeClient safely removes a client from the server
func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	_, known := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	if !known {
		return
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Printf("Error closing client connection: %v", err)
	}
	c.close()

	s.updateClientCount()
}

// sendToClient attempts to send a message to a client (non-blocking)
// Returns true if successful, false if the queue is full
func (s *Server) sendToClient(c *client, msg events.Message) bool {
	if !c.offer(msg) {
		return false
	}
	s.metrics.IncEventsSent()
	return true
}
