package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/types"
)

// Test helpers to avoid import cycle with testutil

func getTestSocketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "central.sock")
}

func setupTestDaemon(t *testing.T, opts ...Option) (*Server, string) {
	t.Helper()
	socketPath := getTestSocketPath(t)

	server, err := NewServer(socketPath, opts...)
	if err != nil {
		t.Fatalf("Failed to create test daemon: %v", err)
	}

	t.Cleanup(func() {
		_ = server.Shutdown()
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() { _ = server.Start(ctx) }()

	// Wait for socket
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			time.Sleep(10 * time.Millisecond)
			return server, socketPath
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatal("Timeout waiting for daemon socket")
	return nil, ""
}

func connectRawClient(t *testing.T, socketPath string) (net.Conn, *json.Encoder, *json.Decoder) {
	t.Helper()

	conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", socketPath)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn, json.NewEncoder(conn), json.NewDecoder(conn)
}

func sendMessage(t *testing.T, encoder *json.Encoder, msg events.Message) {
	t.Helper()
	msg.Version = events.ProtocolVersion
	if err := encoder.Encode(msg); err != nil {
		t.Fatalf("Failed to send %s: %v", msg.Type, err)
	}
}

// readEvent reads messages until an event arrives, skipping pings.
func readEvent(t *testing.T, conn net.Conn, decoder *json.Decoder, timeout time.Duration) events.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		var msg events.Message
		if err := decoder.Decode(&msg); err != nil {
			t.Fatalf("Failed to read event: %v", err)
		}
		if msg.Type == events.MessageEvent && msg.Event != nil {
			return *msg.Event
		}
	}
}

func waitForEvent(t *testing.T, ch <-chan events.Event, timeout time.Duration) events.Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		if !ok {
			t.Fatal("Channel closed")
		}
		return event
	case <-time.After(timeout):
		t.Fatalf("Timeout waiting for event")
		return events.Event{}
	}
}

func waitForNoEvent(t *testing.T, ch <-chan events.Event, timeout time.Duration) {
	t.Helper()
	select {
	case event := <-ch:
		t.Fatalf("Unexpected event: %+v", event)
	case <-time.After(timeout):
	}
}

func setupTestClient(t *testing.T, socketPath string, projectID types.ProjectID) (*events.Client, <-chan events.Event) {
	t.Helper()
	client, err := events.NewClient(socketPath, events.WithDebounce(10*time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if err := client.Subscribe(projectID); err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	t.Cleanup(stop)
	ch, err := client.Listen(listenCtx)
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	// let the subscription land before anything is broadcast
	time.Sleep(100 * time.Millisecond)
	return client, ch
}

func committed(projectID types.ProjectID, seq types.Seq) events.Event {
	return events.Event{
		Type:       events.EventStoryEdited,
		ProjectID:  projectID,
		StoryID:    types.StoryID(seq),
		SequenceID: seq,
		Timestamp:  time.Now().UTC(),
	}
}

// memoryLog is an in-memory LogReader.
type memoryLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (m *memoryLog) EventsSince(_ context.Context, projectID types.ProjectID, after types.Seq) ([]events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []events.Event
	for _, ev := range m.events {
		if ev.ProjectID == projectID && ev.SequenceID > after {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ============================================================================
// Server Initialization Tests
// ============================================================================

func TestNewServer_Success(t *testing.T) {
	socketPath := getTestSocketPath(t)

	server, err := NewServer(socketPath, WithBuffers(200, 20))
	if err != nil {
		t.Fatalf("Expected NewServer to succeed, got error: %v", err)
	}
	defer func() { _ = server.Shutdown() }()

	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		t.Error("Expected socket file to be created")
	}
	if cap(server.broadcast) != 200 || server.clientBuffer != 20 {
		t.Errorf("Expected buffers 200/20, got %d/%d", cap(server.broadcast), server.clientBuffer)
	}
}

func TestNewServer_DirectoryCreation(t *testing.T) {
	nestedPath := filepath.Join(t.TempDir(), "nested", "subdirs", "central.sock")

	server, err := NewServer(nestedPath)
	if err != nil {
		t.Fatalf("Expected NewServer to create nested directories, got error: %v", err)
	}
	defer func() { _ = server.Shutdown() }()

	if _, err := os.Stat(nestedPath); os.IsNotExist(err) {
		t.Error("Expected socket file to be created in nested directory")
	}
}

func TestNewServer_StaleSocketCleanup(t *testing.T) {
	socketPath := getTestSocketPath(t)

	f, err := os.Create(socketPath)
	if err != nil {
		t.Fatalf("Failed to create stale socket file: %v", err)
	}
	_ = f.Close()

	server, err := NewServer(socketPath)
	if err != nil {
		t.Fatalf("Expected NewServer to succeed after removing stale socket, got error: %v", err)
	}
	defer func() { _ = server.Shutdown() }()
}

// ============================================================================
// Event Broadcasting Tests
// ============================================================================

func TestBroadcast_SubscriptionFiltering(t *testing.T) {
	server, socketPath := setupTestDaemon(t)

	_, chanA := setupTestClient(t, socketPath, 1)
	_, chanB := setupTestClient(t, socketPath, 2)

	if err := server.Broadcast(committed(1, 1)); err != nil {
		t.Fatalf("Failed to broadcast: %v", err)
	}

	received := waitForEvent(t, chanA, 2*time.Second)
	if received.ProjectID != 1 || received.SequenceID != 1 {
		t.Errorf("ClientA: unexpected event %+v", received)
	}
	waitForNoEvent(t, chanB, 300*time.Millisecond)
}

func TestBroadcast_AllProjectsSubscriber(t *testing.T) {
	server, socketPath := setupTestDaemon(t)
	_, ch := setupTestClient(t, socketPath, 0)

	for _, ev := range []events.Event{committed(1, 1), committed(2, 1)} {
		if err := server.Broadcast(ev); err != nil {
			t.Fatalf("Failed to broadcast: %v", err)
		}
	}

	first := waitForEvent(t, ch, 2*time.Second)
	second := waitForEvent(t, ch, 2*time.Second)
	if first.ProjectID != 1 || second.ProjectID != 2 {
		t.Errorf("Expected projects 1 then 2, got %d then %d", first.ProjectID, second.ProjectID)
	}
}

func TestBroadcast_KeepsCommitSequence(t *testing.T) {
	server, socketPath := setupTestDaemon(t, WithBuffers(0, 50))
	_, ch := setupTestClient(t, socketPath, 1)

	const numEvents = 10
	for i := 1; i <= numEvents; i++ {
		if err := server.Broadcast(committed(1, types.Seq(i))); err != nil {
			t.Fatalf("Failed to broadcast event %d: %v", i, err)
		}
	}

	for i := 1; i <= numEvents; i++ {
		ev := waitForEvent(t, ch, 2*time.Second)
		if ev.SequenceID != types.Seq(i) {
			t.Fatalf("Expected seq %d, got %d", i, ev.SequenceID)
		}
	}
}

func TestClientToClient(t *testing.T) {
	server, socketPath := setupTestDaemon(t)

	writer, _ := setupTestClient(t, socketPath, 5)
	_, viewer := setupTestClient(t, socketPath, 5)

	// uncommitted events never reach viewers
	if err := writer.SendEvent(events.Event{Type: events.EventStoryEdited, ProjectID: 5, StoryID: 1}); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}
	if err := writer.SendEvent(committed(5, 1)); err != nil {
		t.Fatalf("SendEvent failed: %v", err)
	}

	ev := waitForEvent(t, viewer, 2*time.Second)
	if ev.SequenceID != 1 {
		t.Errorf("Expected committed event seq 1, got %d", ev.SequenceID)
	}
	waitForNoEvent(t, viewer, 200*time.Millisecond)

	if got := server.Metrics().GetSnapshot().EventsReceived; got != 2 {
		t.Errorf("Expected 2 events received, got %d", got)
	}
}

// ============================================================================
// Replay Tests
// ============================================================================

func TestReplay_OnlyToRequester(t *testing.T) {
	logged := &memoryLog{}
	for i := 1; i <= 30; i++ {
		logged.events = append(logged.events, committed(1, types.Seq(i)))
	}
	logged.events = append(logged.events, committed(2, 1))

	server, socketPath := setupTestDaemon(t, WithLogReader(logged))
	_, bystander := setupTestClient(t, socketPath, 1)

	conn, enc, dec := connectRawClient(t, socketPath)
	sendMessage(t, enc, events.Message{Type: events.MessageSubscribe, Subscribe: &events.SubscribeMessage{ProjectID: 1}})
	sendMessage(t, enc, events.Message{Type: events.MessageReplay, Replay: &events.ReplayRequest{ProjectID: 1, AfterSeq: 12}})

	// more events than the client queue holds still arrive in order
	for want := types.Seq(13); want <= 30; want++ {
		ev := readEvent(t, conn, dec, 2*time.Second)
		if ev.SequenceID != want || ev.ProjectID != 1 {
			t.Fatalf("Expected project 1 seq %d, got project %d seq %d", want, ev.ProjectID, ev.SequenceID)
		}
	}

	waitForNoEvent(t, bystander, 200*time.Millisecond)
	if got := server.Metrics().GetSnapshot().ReplaysServed; got != 1 {
		t.Errorf("Expected 1 replay served, got %d", got)
	}
}

func TestReplay_ClientRequest(t *testing.T) {
	logged := &memoryLog{events: []events.Event{committed(3, 1), committed(3, 2), committed(3, 3)}}
	_, socketPath := setupTestDaemon(t, WithLogReader(logged))
	client, ch := setupTestClient(t, socketPath, 3)

	if err := client.RequestReplay(3, 1); err != nil {
		t.Fatalf("RequestReplay failed: %v", err)
	}
	for _, want := range []types.Seq{2, 3} {
		if ev := waitForEvent(t, ch, 2*time.Second); ev.SequenceID != want {
			t.Errorf("Expected seq %d, got %d", want, ev.SequenceID)
		}
	}
}

// ============================================================================
// Relay Tests
// ============================================================================

func TestRelay_ForwardsToRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	relay, err := events.NewRedisRelay("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("Failed to create relay: %v", err)
	}
	t.Cleanup(func() { _ = relay.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	relayed, err := relay.Subscribe(ctx, 9)
	if err != nil {
		t.Fatalf("Failed to subscribe to relay: %v", err)
	}

	server, _ := setupTestDaemon(t, WithRelay(relay))
	if err := server.Publish(ctx, committed(9, 4)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case ev := <-relayed:
		if ev.SequenceID != 4 {
			t.Errorf("Expected relayed seq 4, got %d", ev.SequenceID)
		}
	case <-ctx.Done():
		t.Fatal("Timeout waiting for relayed event")
	}
}

func TestRelay_FailureIsCounted(t *testing.T) {
	mr := miniredis.RunT(t)
	relay, err := events.NewRedisRelay("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("Failed to create relay: %v", err)
	}
	t.Cleanup(func() { _ = relay.Close() })
	mr.Close()

	server, socketPath := setupTestDaemon(t, WithRelay(relay))
	_, ch := setupTestClient(t, socketPath, 1)

	if err := server.Broadcast(committed(1, 1)); err != nil {
		t.Fatalf("Failed to broadcast: %v", err)
	}
	// viewers are served even when redis is down
	waitForEvent(t, ch, 2*time.Second)

	deadline := time.Now().Add(3 * time.Second)
	for server.Metrics().GetSnapshot().RelayFailures == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Expected relay failure to be counted")
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// ============================================================================
// Health Tests
// ============================================================================

func TestHealth_SilentClientsAreDropped(t *testing.T) {
	server, socketPath := setupTestDaemon(t, WithPingInterval(50*time.Millisecond))

	// the event client answers pings, the raw one never does
	setupTestClient(t, socketPath, 1)
	connectRawClient(t, socketPath)

	deadline := time.Now().Add(3 * time.Second)
	for server.getClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected the silent client to be dropped, have %d clients", server.getClientCount())
		}
		time.Sleep(20 * time.Millisecond)
	}
}

// ============================================================================
// Shutdown Tests
// ============================================================================

func TestShutdown_GracefulClose(t *testing.T) {
	server, socketPath := setupTestDaemon(t)
	setupTestClient(t, socketPath, 1)

	if err := server.Shutdown(); err != nil {
		t.Errorf("Expected Shutdown to succeed, got error: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Error("Expected socket file to be removed after shutdown")
	}
	if err := server.Broadcast(committed(1, 1)); err == nil {
		t.Error("Expected Broadcast to fail after shutdown")
	}
	if got := server.Metrics().GetSnapshot().ConnectedClients; got != 0 {
		t.Errorf("Expected 0 connected clients, got %d", got)
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	server, err := NewServer(getTestSocketPath(t))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	if err := server.Shutdown(); err != nil {
		t.Errorf("First shutdown failed: %v", err)
	}
	if err := server.Shutdown(); err != nil {
		t.Errorf("Second shutdown should be idempotent, got error: %v", err)
	}
}
