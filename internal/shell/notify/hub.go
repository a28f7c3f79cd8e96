// Package notify fans deployment events out to live subscribers by topic.
package notify

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Event types published by the deploy engine.
const (
	EventDeployStarted = "deploy_started"
	EventDeployResult  = "deploy_result"
	EventLog           = "log"
)

// Event is one message on a topic.
type Event struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events to whoever listens on a topic.
type Publisher interface {
	Publish(topic string, event Event)
}

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub manages subscriptions by topic. Publish runs on the caller's
// goroutine, so Subscriber.Send must not block; subscribers that fail a send
// are dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[Subscriber]struct{}
	logger  *slog.Logger
}

// NewHub creates an initialized Hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]map[Subscriber]struct{}),
		logger:  logger.With("component", "notify"),
	}
}

// Subscribe adds a client to a topic.
func (h *Hub) Subscribe(topic string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[topic]; !ok {
		h.clients[topic] = make(map[Subscriber]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

// Unsubscribe removes a client from a topic.
func (h *Hub) Unsubscribe(topic string, client Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(topic, client)
}

func (h *Hub) remove(topic string, client Subscriber) {
	clients, ok := h.clients[topic]
	if !ok {
		return
	}
	delete(clients, client)
	if len(clients) == 0 {
		delete(h.clients, topic)
	}
}

// Subscribers returns the number of clients on a topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// Publish encodes the event and sends it to every subscriber of the topic.
func (h *Hub) Publish(topic string, event Event) {
	event.Topic = topic
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "topic", topic, "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.clients[topic]))
	for c := range h.clients[topic] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	var failed []Subscriber
	for _, c := range targets {
		if err := c.Send(payload); err != nil {
			failed = append(failed, c)
		}
	}
	if len(failed) == 0 {
		return
	}

	h.mu.Lock()
	for _, c := range failed {
		h.remove(topic, c)
	}
	h.mu.Unlock()
	for _, c := range failed {
		c.Close()
	}
	h.logger.Debug("dropped subscribers", "topic", topic, "count", len(failed))
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]map[Subscriber]struct{})
	h.mu.Unlock()

	for _, set := range clients {
		for c := range set {
			c.Close()
		}
	}
}
