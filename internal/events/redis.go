package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jv-vogler/cm42-central/internal/types"
)

const channelPrefix = "central:board:"

// Channel is the Redis pub/sub channel carrying a project's board events.
func Channel(projectID types.ProjectID) string {
	return fmt.Sprintf("%s%d", channelPrefix, projectID)
}

// RedisRelay republishes committed board events on Redis for consumers outside the
// daemon's socket (notification services, other hosts).
type RedisRelay struct {
	client *redis.Client
}

// NewRedisRelay connects to redisURL and verifies the connection.
func NewRedisRelay(redisURL string) (*RedisRelay, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisRelay{client: client}, nil
}

// NewRedisRelayWithClient creates a relay from an existing Redis client
func NewRedisRelayWithClient(client *redis.Client) *RedisRelay {
	return &RedisRelay{client: client}
}

// Publish implements Sink.
func (r *RedisRelay) Publish(ctx context.Context, event Event) error {
	if !event.Type.IsStoryEvent() {
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.client.Publish(ctx, Channel(event.ProjectID), data).Err(); err != nil {
		return fmt.Errorf("publish event seq=%d: %w", event.SequenceID, err)
	}
	return nil
}

// Subscribe streams projectID's events until ctx is done. Messages that fail to
// decode are logged and skipped.
func (r *RedisRelay) Subscribe(ctx context.Context, projectID types.ProjectID) (<-chan Event, error) {
	sub := r.client.Subscribe(ctx, Channel(projectID))
	// wait for the subscription to be confirmed so no publish is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe to %s: %w", Channel(projectID), err)
	}

	out := make(chan Event, 64)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("dropping malformed relay message", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks if Redis is reachable
func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
