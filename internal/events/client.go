package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/jv-vogler/cm42-central/internal/types"
)

// NotifyFunc surfaces connection status changes to a UI ("info", "warning", "error").
type NotifyFunc func(level, message string)

// Client is a connection to the central daemon. It publishes committed events,
// receives broadcasts, and reconnects with a replay of anything missed.
type Client struct {
	socketPath string
	conn       net.Conn
	encoder    *json.Encoder
	decoder    *json.Decoder
	mu         sync.Mutex

	// Batching configuration
	eventQueue chan Event
	debounce   time.Duration
	closed     bool

	// Reconnection configuration
	maxRetries int
	baseDelay  time.Duration

	currentProjectID types.ProjectID
	lastSequence     map[types.ProjectID]types.Seq // highest sequence delivered per project

	notify NotifyFunc

	batcherOnce sync.Once
	batcherDone chan struct{}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithDebounce sets how long the batcher collects events before flushing them.
func WithDebounce(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.debounce = d
		}
	}
}

// WithReconnect sets the reconnection attempts and the first backoff delay.
func WithReconnect(maxRetries int, baseDelay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// NewClient creates a new event client but does not connect.
// The socket path should be the full path to the Unix domain socket.
func NewClient(socketPath string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		socketPath:   socketPath,
		eventQueue:   make(chan Event, 100),
		debounce:     100 * time.Millisecond,
		maxRetries:   5,
		baseDelay:    1 * time.Second,
		lastSequence: make(map[types.ProjectID]types.Seq),
		batcherDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetNotifyFunc installs a callback for connection status messages.
func (c *Client) SetNotifyFunc(fn NotifyFunc) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.notify = fn
	c.mu.Unlock()
}

func (c *Client) notifyf(level, format string, args ...any) {
	c.mu.Lock()
	fn := c.notify
	c.mu.Unlock()
	if fn != nil {
		fn(level, fmt.Sprintf(format, args...))
	}
}

// Connect establishes a connection to the daemon socket and re-sends the current
// subscription.
func (c *Client) Connect(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("no daemon client")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client closed")
	}

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("failed to dial daemon socket: %w", ClassifyDaemonError(err))
	}

	c.conn = conn
	c.encoder = json.NewEncoder(conn)
	c.decoder = json.NewDecoder(conn)

	msg := Message{
		Version:   ProtocolVersion,
		Type:      MessageSubscribe,
		Subscribe: &SubscribeMessage{ProjectID: c.currentProjectID},
	}
	if err := c.encoder.Encode(msg); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			log.Printf("Error closing connection: %v", closeErr)
		}
		c.conn = nil
		return fmt.Errorf("failed to send subscription: %w", err)
	}

	c.batcherOnce.Do(func() { go c.startBatcher() })

	return nil
}

// SendEvent queues an event to be sent to the daemon.
// Returns error if the queue is full (non-blocking send).
func (c *Client) SendEvent(event Event) error {
	if c == nil {
		return fmt.Errorf("no daemon client")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("client closed")
	}

	select {
	case c.eventQueue <- event:
		return nil
	default:
		return fmt.Errorf("event queue full")
	}
}

// Publish implements Sink.
func (c *Client) Publish(_ context.Context, event Event) error {
	return c.SendEvent(event)
}

// startBatcher collects queued events and flushes them once per debounce tick, in
// the order they were queued. Unlike a change notification, every event carries
// state, so none are collapsed.
func (c *Client) startBatcher() {
	defer close(c.batcherDone)

	ticker := time.NewTicker(c.debounce)
	defer ticker.Stop()

	var pending []Event

	flushPending := func() {
		for _, ev := range pending {
			if err := c.sendMessage(Message{Version: ProtocolVersion, Type: MessageEvent, Event: &ev}); err != nil {
				if !isConnectionError(err) {
					log.Printf("Failed to send event %s seq=%d: %v", ev.Type, ev.SequenceID, err)
				}
			}
		}
		pending = pending[:0]
	}

	for {
		select {
		case event, ok := <-c.eventQueue:
			if !ok {
				// Close: flush what is left and exit
				flushPending()
				return
			}
			pending = append(pending, event)

		drainLoop:
			for {
				select {
				case evt, ok := <-c.eventQueue:
					if !ok {
						flushPending()
						return
					}
					pending = append(pending, evt)
				default:
					break drainLoop
				}
			}

		case <-ticker.C:
			flushPending()
		}
	}
}

// sendMessage writes one message to the daemon socket.
func (c *Client) sendMessage(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected to daemon")
	}

	// Short write deadline to detect dead connections
	if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return fmt.Errorf("connection error: %w", err)
	}
	return c.encoder.Encode(msg)
}

// Listen starts listening for events from the daemon.
// The channel is closed when ctx is done or reconnection fails.
func (c *Client) Listen(ctx context.Context) (<-chan Event, error) {
	eventChan := make(chan Event, 64)
	if c == nil {
		close(eventChan)
		return eventChan, fmt.Errorf("no daemon client")
	}
	go c.listenLoop(ctx, eventChan)
	return eventChan, nil
}

func (c *Client) listenLoop(ctx context.Context, eventChan chan Event) {
	defer close(eventChan)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.readEvents(ctx, eventChan)
		if err == nil || ctx.Err() != nil || c.isClosed() {
			return
		}
		log.Printf("Connection lost: %v, reconnecting...", err)
		c.notifyf("warning", "Connection to daemon lost, reconnecting")

		if !c.reconnect(ctx) {
			log.Printf("Failed to reconnect after %d attempts, giving up", c.maxRetries)
			c.notifyf("error", "Could not reconnect to daemon")
			return
		}
		c.notifyf("info", "Reconnected to daemon")
		c.replayMissed()
	}
}

// readEvents reads messages from the socket and forwards story events. Ordering and
// duplicate suppression are the receiver's job.
func (c *Client) readEvents(ctx context.Context, eventChan chan Event) error {
	for {
		var msg Message

		c.mu.Lock()
		if c.conn == nil {
			c.mu.Unlock()
			return fmt.Errorf("connection closed")
		}
		// Read deadline detects hung connections; the daemon pings every 30s
		if err := c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			c.mu.Unlock()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
		decoder := c.decoder
		c.mu.Unlock()

		if err := decoder.Decode(&msg); err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}

		switch msg.Type {
		case MessageEvent:
			if msg.Event == nil || !msg.Event.Type.IsStoryEvent() {
				continue
			}
			c.mu.Lock()
			if msg.Event.SequenceID > c.lastSequence[msg.Event.ProjectID] {
				c.lastSequence[msg.Event.ProjectID] = msg.Event.SequenceID
			}
			c.mu.Unlock()

			select {
			case eventChan <- *msg.Event:
			case <-ctx.Done():
				return ctx.Err()
			}

		case MessagePing:
			if err := c.sendMessage(Message{Version: ProtocolVersion, Type: MessagePong}); err != nil {
				if !isConnectionError(err) {
					log.Printf("Failed to send pong: %v", err)
				}
			}
		}
	}
}

// replayMissed asks the daemon for everything after the last sequence seen per
// project, so a reconnect does not leave gaps.
func (c *Client) replayMissed() {
	c.mu.Lock()
	current := c.currentProjectID
	seen := make(map[types.ProjectID]types.Seq, len(c.lastSequence))
	for p, s := range c.lastSequence {
		if current == 0 || p == current {
			seen[p] = s
		}
	}
	c.mu.Unlock()

	for p, s := range seen {
		if err := c.RequestReplay(p, s); err != nil {
			log.Printf("Failed to request replay for project %d: %v", p, err)
		}
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func isConnectionError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET)
}

// reconnect attempts to reconnect to the daemon with exponential backoff.
func (c *Client) reconnect(ctx context.Context) bool {
	delay := c.baseDelay

	for i := 0; i < c.maxRetries; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
			c.mu.Lock()
			if c.conn != nil {
				if err := c.conn.Close(); err != nil && !isConnectionError(err) {
					log.Printf("Error closing connection during reconnect: %v", err)
				}
				c.conn = nil
			}
			c.mu.Unlock()

			if err := c.Connect(ctx); err == nil {
				log.Printf("Reconnected to daemon (attempt %d/%d)", i+1, c.maxRetries)
				return true
			}

			log.Printf("Reconnection attempt %d/%d failed, retrying in %v", i+1, c.maxRetries, delay)
			delay *= 2
		}
	}

	return false
}

// Subscribe changes the subscription to a specific project.
// ProjectID 0 means subscribe to all projects.
func (c *Client) Subscribe(projectID types.ProjectID) error {
	if c == nil {
		return fmt.Errorf("no daemon client")
	}
	c.mu.Lock()
	c.currentProjectID = projectID
	c.mu.Unlock()

	return c.sendMessage(Message{
		Version:   ProtocolVersion,
		Type:      MessageSubscribe,
		Subscribe: &SubscribeMessage{ProjectID: projectID},
	})
}

// RequestReplay asks the daemon to resend projectID's events after afterSeq.
func (c *Client) RequestReplay(projectID types.ProjectID, afterSeq types.Seq) error {
	if c == nil {
		return fmt.Errorf("no daemon client")
	}
	return c.sendMessage(Message{
		Version: ProtocolVersion,
		Type:    MessageReplay,
		Replay:  &ReplayRequest{ProjectID: projectID, AfterSeq: afterSeq},
	})
}

// Close flushes queued events, closes the connection, and stops all goroutines.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.eventQueue)
	c.mu.Unlock()

	// Never connected: nothing to wait for
	c.batcherOnce.Do(func() { close(c.batcherDone) })
	<-c.batcherDone

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}
