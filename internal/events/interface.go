package events

import (
	"context"

	"github.com/jv-vogler/cm42-central/internal/types"
)

// Sink receives committed events. The story service publishes to a Sink after every
// commit; the daemon client and the Redis relay are both sinks.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// EventPublisher is the daemon connection used by viewers and the CLI.
type EventPublisher interface {
	Sink

	// Connect establishes a connection to the daemon socket
	Connect(ctx context.Context) error

	// SendEvent queues an event to be sent to the daemon
	SendEvent(event Event) error

	// Listen starts listening for events from the daemon
	Listen(ctx context.Context) (<-chan Event, error)

	// Subscribe changes the subscription to a specific project
	Subscribe(projectID types.ProjectID) error

	// RequestReplay asks for a project's events after afterSeq
	RequestReplay(projectID types.ProjectID, afterSeq types.Seq) error

	// Close closes the connection to the daemon and stops all goroutines
	Close() error
}

// Compile-time verification that *Client implements EventPublisher
var _ EventPublisher = (*Client)(nil)

// Fanout publishes to every sink, returning the first error after trying them all.
type Fanout []Sink

func (f Fanout) Publish(ctx context.Context, event Event) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
