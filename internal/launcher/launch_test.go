package launcher

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jv-vogler/cm42-central/internal/app"
	"github.com/jv-vogler/cm42-central/internal/config"
	"github.com/jv-vogler/cm42-central/internal/events"
	"github.com/jv-vogler/cm42-central/internal/testutil"
	"github.com/jv-vogler/cm42-central/internal/types"
)

func committed(seq int) events.Event {
	return events.Event{Type: events.EventStoryCreated, ProjectID: 7, StoryID: 1, SequenceID: types.Seq(seq)}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.SocketPath = filepath.Join(t.TempDir(), "missing.sock")
	cfg.Daemon.Debounce = 5 * time.Millisecond
	return cfg
}

func TestOpenStream_Daemon(t *testing.T) {
	server, socketPath := testutil.SetupTestDaemon(t)
	cfg := testConfig(t)
	cfg.SocketPath = socketPath

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := OpenStream(ctx, cfg, 7)
	t.Cleanup(func() { _ = stream.Close() })
	require.Equal(t, SourceDaemon, stream.Source)
	require.NotNil(t, stream.Events)

	// the subscription is sent asynchronously; keep broadcasting until it lands
	var got events.Event
	delivered := testutil.WaitForCondition(t, func() bool {
		require.NoError(t, server.Broadcast(committed(1)))
		select {
		case got = <-stream.Events:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, "event delivered through the daemon")
	require.True(t, delivered)
	assert.Equal(t, events.EventStoryCreated, got.Type)
}

func TestOpenStream_RedisFallback(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := OpenStream(ctx, cfg, 7)
	t.Cleanup(func() { _ = stream.Close() })
	require.Equal(t, SourceRedis, stream.Source)

	publisher, err := events.NewRedisRelay(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })
	require.NoError(t, publisher.Publish(ctx, committed(3)))

	select {
	case ev := <-stream.Events:
		assert.Equal(t, committed(3).SequenceID, ev.SequenceID)
	case <-ctx.Done():
		t.Fatal("Timeout waiting for relayed event")
	}
}

func TestOpenStream_Offline(t *testing.T) {
	stream := OpenStream(context.Background(), testConfig(t), 7)

	assert.Equal(t, SourceNone, stream.Source)
	assert.Nil(t, stream.Events)
	assert.NoError(t, stream.Close())
}

func TestOpenStream_UnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	mr.Close()

	stream := OpenStream(context.Background(), cfg, 7)
	assert.Equal(t, SourceNone, stream.Source)
}

func TestOptions(t *testing.T) {
	a := app.New(testutil.SetupTestDB(t))
	cfg := testConfig(t)
	stream := &Stream{Source: SourceNone}

	base := Options(a, cfg, stream, View{})
	assert.Len(t, base, 5, "stream, labels, observer, links and writer")

	searching := Options(a, cfg, stream, View{Searching: true})
	assert.Len(t, searching, 6, "an empty query still opens the search column")

	assert.Len(t, Options(a, cfg, stream, View{Search: "login"}), 6)
}
