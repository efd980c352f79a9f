// Package stream fans engine events out to multiple consumers: threat
// reports, completed trades, pilot level-ups, and agent status transitions.
package stream

import (
	"context"
	"sync"
	"time"

	"galaxy-trader/internal/models"
)

// EventKind names a category of engine event.
type EventKind string

const (
	EventTrade       EventKind = "trade"
	EventThreat      EventKind = "threat"
	EventAgentStatus EventKind = "agent-status"
	EventLevelUp     EventKind = "level-up"
	EventReservation EventKind = "reservation"
)

// Event is one engine occurrence. Only the fields relevant to the kind are
// set; the struct is flat so it serializes cleanly for the status feed.
type Event struct {
	Kind     EventKind          `json:"kind"`
	At       time.Time          `json:"at"`
	AgentID  string             `json:"agent_id,omitempty"`
	PilotID  string             `json:"pilot_id,omitempty"`
	Sector   models.SectorID    `json:"sector,omitempty"`
	Ware     models.WareID      `json:"ware,omitempty"`
	Status   models.AgentStatus `json:"status,omitempty"`
	Level    int                `json:"level,omitempty"`
	Severity int                `json:"severity,omitempty"`
	Profit   float64            `json:"profit,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// TradeEvent builds a trade completion event from a report.
func TradeEvent(r models.TradeReport) Event {
	return Event{
		Kind:    EventTrade,
		At:      r.CompletedAt,
		AgentID: r.AgentID,
		PilotID: r.PilotID,
		Sector:  r.Destination,
		Ware:    r.Ware,
		Profit:  r.Profit,
	}
}

// ThreatEvent builds a danger report event.
func ThreatEvent(sector models.SectorID, severity int, at time.Time) Event {
	return Event{Kind: EventThreat, At: at, Sector: sector, Severity: severity}
}

// StatusEvent builds an agent status transition event.
func StatusEvent(agentID string, status models.AgentStatus, at time.Time) Event {
	return Event{Kind: EventAgentStatus, At: at, AgentID: agentID, Status: status}
}

// LevelUpEvent builds a pilot level-up event.
func LevelUpEvent(pilotID string, level int, at time.Time) Event {
	return Event{Kind: EventLevelUp, At: at, PilotID: pilotID, Level: level}
}

// HubConfig holds fan-out tuning knobs.
type HubConfig struct {
	// BufferSize is the size of the internal event channel buffer.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           1000,
		SubscriberBufferSize: 100,
	}
}

// EventAll is the wildcard topic: subscribers receive every event kind.
const EventAll EventKind = "*"

// Hub distributes events from many producers to many subscribers. Sends to
// subscribers never block: a subscriber that stops draining its channel loses
// events rather than stalling the engine.
type Hub struct {
	config      HubConfig
	mu          sync.RWMutex
	subscribers map[EventKind][]*Subscriber
	eventChan   chan Event
	done        chan struct{}
	started     bool

	metricsMu       sync.RWMutex
	eventsReceived  uint64
	eventsBroadcast uint64
	eventsDropped   uint64
}

// Subscriber is one registered consumer channel.
type Subscriber struct {
	ID           string
	Channel      chan Event
	DroppedCount int
	CreatedAt    time.Time
}

// NewHub creates a hub with default configuration.
func NewHub() *Hub {
	return NewHubWithConfig(DefaultHubConfig())
}

// NewHubWithConfig creates a hub with custom configuration.
func NewHubWithConfig(config HubConfig) *Hub {
	return &Hub{
		config:      config,
		subscribers: make(map[EventKind][]*Subscriber),
		eventChan:   make(chan Event, config.BufferSize),
		done:        make(chan struct{}),
	}
}

// Start begins the distribution loop.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	go h.broadcastLoop(ctx)
}

func (h *Hub) broadcastLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case ev := <-h.eventChan:
			h.metricsMu.Lock()
			h.eventsReceived++
			h.metricsMu.Unlock()

			h.broadcast(ev)
		}
	}
}

// Stop stops the hub and closes all subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	close(h.done)
	h.started = false

	for kind, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.Channel)
		}
		delete(h.subscribers, kind)
	}
}

// Subscribe registers a consumer for one event kind.
func (h *Hub) Subscribe(kind EventKind) <-chan Event {
	return h.SubscribeWithID(kind, "")
}

// SubscribeAll registers a consumer for every event kind.
func (h *Hub) SubscribeAll() <-chan Event {
	return h.SubscribeWithID(EventAll, "")
}

// SubscribeWithID registers a consumer with an identifier, which shows up in
// slow-consumer logs.
func (h *Hub) SubscribeWithID(kind EventKind, id string) <-chan Event {
	ch := make(chan Event, h.config.SubscriberBufferSize)
	sub := &Subscriber{
		ID:        id,
		Channel:   ch,
		CreatedAt: time.Now(),
	}

	h.mu.Lock()
	h.subscribers[kind] = append(h.subscribers[kind], sub)
	h.mu.Unlock()

	return ch
}

// Unsubscribe removes a consumer and closes its channel.
func (h *Hub) Unsubscribe(kind EventKind, ch <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[kind]
	for i, sub := range subs {
		if sub.Channel == ch {
			close(sub.Channel)
			h.subscribers[kind] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(h.subscribers[kind]) == 0 {
		delete(h.subscribers, kind)
	}
}

// UnsubscribeAllFrom removes every consumer of a kind.
func (h *Hub) UnsubscribeAllFrom(kind EventKind) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subscribers[kind] {
		close(sub.Channel)
	}
	delete(h.subscribers, kind)
}

// Publish queues an event for distribution. Non-blocking: when the internal
// buffer is full the event is dropped and counted.
func (h *Hub) Publish(ev Event) {
	select {
	case h.eventChan <- ev:
	default:
		h.metricsMu.Lock()
		h.eventsDropped++
		h.metricsMu.Unlock()
	}
}

// broadcast fans one event out to kind subscribers plus the wildcard topic.
func (h *Hub) broadcast(ev Event) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers[ev.Kind])+len(h.subscribers[EventAll]))
	subs = append(subs, h.subscribers[ev.Kind]...)
	subs = append(subs, h.subscribers[EventAll]...)
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.Channel <- ev:
			h.metricsMu.Lock()
			h.eventsBroadcast++
			h.metricsMu.Unlock()
		default:
			// Skip slow consumers rather than block the engine.
			sub.DroppedCount++
			h.metricsMu.Lock()
			h.eventsDropped++
			h.metricsMu.Unlock()
		}
	}
}

// SubscriberCount returns the number of subscribers for a kind.
func (h *Hub) SubscriberCount(kind EventKind) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[kind])
}

// TotalSubscriberCount returns subscribers across all kinds.
func (h *Hub) TotalSubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, subs := range h.subscribers {
		count += len(subs)
	}
	return count
}

// Metrics returns a snapshot of hub counters.
func (h *Hub) Metrics() HubMetrics {
	h.metricsMu.RLock()
	defer h.metricsMu.RUnlock()

	return HubMetrics{
		EventsReceived:  h.eventsReceived,
		EventsBroadcast: h.eventsBroadcast,
		EventsDropped:   h.eventsDropped,
		Subscribers:     h.TotalSubscriberCount(),
	}
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	EventsReceived  uint64
	EventsBroadcast uint64
	EventsDropped   uint64
	Subscribers     int
}

// IsStarted reports whether the distribution loop is running.
func (h *Hub) IsStarted() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.started
}
