package daemon

import (
	"sync/atomic"
	"time"
)

// Metrics tracks daemon statistics using atomic operations for thread-safety
type Metrics struct {
	EventsSent       atomic.Int64 // messages queued to clients, pings and replays included
	EventsReceived   atomic.Int64
	EventsBroadcast  atomic.Int64
	EventsDropped    atomic.Int64 // live events a slow client missed
	ReplaysServed    atomic.Int64
	RelayFailures    atomic.Int64
	ConnectedClients atomic.Int32
	StartTime        time.Time
}

// NewMetrics creates a new Metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime: time.Now(),
	}
}

func (m *Metrics) IncEventsSent()      { m.EventsSent.Add(1) }
func (m *Metrics) IncEventsReceived()  { m.EventsReceived.Add(1) }
func (m *Metrics) IncEventsBroadcast() { m.EventsBroadcast.Add(1) }
func (m *Metrics) IncEventsDropped()   { m.EventsDropped.Add(1) }
func (m *Metrics) IncReplaysServed()   { m.ReplaysServed.Add(1) }
func (m *Metrics) IncRelayFailures()   { m.RelayFailures.Add(1) }

// SetConnectedClients sets the current connected clients count
func (m *Metrics) SetConnectedClients(count int32) {
	m.ConnectedClients.Store(count)
}

// MetricsSnapshot represents a point-in-time snapshot of metrics
type MetricsSnapshot struct {
	EventsSent       int64     `json:"events_sent"`
	EventsReceived   int64     `json:"events_received"`
	EventsBroadcast  int64     `json:"events_broadcast"`
	EventsDropped    int64     `json:"events_dropped"`
	ReplaysServed    int64     `json:"replays_served"`
	RelayFailures    int64     `json:"relay_failures"`
	ConnectedClients int32     `json:"connected_clients"`
	StartTime        time.Time `json:"start_time"`
	Uptime           string    `json:"uptime"`
}

// GetSnapshot returns a snapshot of current metrics
func (m *Metrics) GetSnapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsSent:       m.EventsSent.Load(),
		EventsReceived:   m.EventsReceived.Load(),
		EventsBroadcast:  m.EventsBroadcast.Load(),
		EventsDropped:    m.EventsDropped.Load(),
		ReplaysServed:    m.ReplaysServed.Load(),
		RelayFailures:    m.RelayFailures.Load(),
		ConnectedClients: m.ConnectedClients.Load(),
		StartTime:        m.StartTime,
		Uptime:           time.Since(m.StartTime).Round(time.Second).String(),
	}
}
