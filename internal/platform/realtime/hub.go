// Package realtime fans store change events out to in-process observers and
// to WebSocket clients. A topic is the key path of the changed document.
package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const EventChanged = "changed"

// Event is what WebSocket clients receive. It names the changed document; the
// client re-reads it over HTTP.
type Event struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is an inbound subscribe/unsubscribe request.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Unsubscribe detaches an observer. Calling it more than once is a no-op.
type Unsubscribe func()

// Client is one WebSocket connection, confined to the topics of one session.
type Client struct {
	ID        string
	SessionID string
	Topics    []string
	Send      chan []byte
}

type listener struct {
	id int64
	fn func(Event)
}

// Hub tracks WebSocket clients and in-process listeners per topic.
//
// Listeners of one topic run synchronously, in registration order, on the
// publisher's goroutine. A single publisher therefore sees its events
// delivered in the order it published them.
type Hub struct {
	mu        sync.RWMutex
	clients   map[string]map[*Client]struct{}
	all       map[*Client]struct{}
	listeners map[string][]listener
	nextID    int64
	now       func() time.Time
	logger    zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:   make(map[string]map[*Client]struct{}),
		all:       make(map[*Client]struct{}),
		listeners: make(map[string][]listener),
		now:       time.Now,
		logger:    logger.With().Str("component", "realtime-hub").Logger(),
	}
}

// Listen registers fn for events on topic.
func (h *Hub) Listen(topic string, fn func(Event)) Unsubscribe {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.listeners[topic] = append(h.listeners[topic], listener{id: id, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { h.removeListener(topic, id) })
	}
}

func (h *Hub) removeListener(topic string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current := h.listeners[topic]
	kept := make([]listener, 0, len(current))
	for _, l := range current {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	if len(kept) == 0 {
		delete(h.listeners, topic)
		return
	}
	h.listeners[topic] = kept
}

// Publish announces a change to topic.
func (h *Hub) Publish(topic string) {
	event := Event{Type: EventChanged, Topic: topic, Timestamp: h.now()}

	h.mu.RLock()
	fns := make([]func(Event), 0, len(h.listeners[topic]))
	for _, l := range h.listeners[topic] {
		fns = append(fns, l.fn)
	}
	h.mu.RUnlock()

	// Listeners re-read the store and may (un)subscribe, so the lock is not
	// held while they run.
	for _, fn := range fns {
		fn(event)
	}

	h.Broadcast(event)
}

// Register adds a client and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	topics := client.Topics
	client.Topics = nil
	h.subscribeLocked(client, topics)
}

// Unregister removes a client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.dropClientLocked(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

// Subscribe adds topics to a registered client. Topics outside the client's
// session are ignored.
func (h *Hub) Subscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeLocked(client, topics)
}

func (h *Hub) subscribeLocked(client *Client, topics []string) {
	for _, topic := range topics {
		if !InSession(topic, client.SessionID) {
			h.logger.Warn().Str("client_id", client.ID).Str("topic", topic).Msg("rejected cross-session subscription")
			continue
		}
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		if _, dup := h.clients[topic][client]; dup {
			continue
		}
		h.clients[topic][client] = struct{}{}
		client.Topics = append(client.Topics, topic)
	}
}

// Unsubscribe removes topics from a registered client.
func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	remove := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		remove[t] = struct{}{}
		h.dropClientLocked(t, client)
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := remove[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

func (h *Hub) dropClientLocked(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		h.Subscribe(client, msg.Topics)
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	}
}

// Broadcast sends event to the WebSocket clients subscribed to its topic.
// A client whose buffer is full misses the event.
func (h *Hub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("topic", event.Topic).Msg("client buffer full, event dropped")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ListenerCount is the number of in-process observers of topic.
func (h *Hub) ListenerCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[topic])
}
