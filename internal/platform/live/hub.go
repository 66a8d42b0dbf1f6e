// Package live pushes workflow notifications to signed-in clients over
// WebSockets. Clients are subscribed to the topics their role may see and
// can narrow or restore that set at runtime.
package live

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medilab/lims/internal/platform/auth"
)

// Topics.
const (
	TopicPendingApprovals = "results.pending"
	TopicReviewed         = "results.reviewed"
	TopicLab              = "lab"
	patientTopicPrefix    = "patient."
)

// PatientTopic carries completed-order notices for one patient record.
func PatientTopic(patientID string) string {
	return patientTopicPrefix + patientID
}

// AllowedTopics lists the topics id may subscribe to.
func AllowedTopics(id auth.Identity) []string {
	switch id.Role {
	case auth.RoleAdmin:
		return []string{TopicPendingApprovals, TopicReviewed, TopicLab}
	case auth.RoleDoctor:
		return []string{TopicPendingApprovals}
	case auth.RoleTechnician, auth.RoleStaff:
		return []string{TopicReviewed, TopicLab}
	case auth.RolePatient:
		if id.PatientRef == "" {
			return nil
		}
		return []string{PatientTopic(id.PatientRef)}
	default:
		return nil
	}
}

// Event is one notification. It names what changed, never result values.
type Event struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic"`
	Entity    string    `json:"entity"`
	EntityID  string    `json:"entity_id"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is sent by a client to change its subscriptions.
type ClientMessage struct {
	Action string   `json:"action"`
	Topics []string `json:"topics"`
}

// Notice answers a client message that was not fully applied.
type Notice struct {
	Type    string   `json:"type"`
	Action  string   `json:"action"`
	Topics  []string `json:"topics,omitempty"`
	Message string   `json:"message"`
}

// Client is one connection. Send is buffered and closed on Unregister.
type Client struct {
	ID      string
	Topics  []string
	Send    chan []byte
	allowed map[string]bool
}

func NewClient(id string, identity auth.Identity, buffer int) *Client {
	topics := AllowedTopics(identity)
	allowed := make(map[string]bool, len(topics))
	for _, t := range topics {
		allowed[t] = true
	}
	return &Client{
		ID:      id,
		Topics:  append([]string(nil), topics...),
		Send:    make(chan []byte, buffer),
		allowed: allowed,
	}
}

// Hub tracks clients by topic. Safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	all     map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		h.add(topic, client)
	}
}

// Unregister drops client from every topic and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		h.remove(topic, client)
	}
	delete(h.all, client)
	close(client.Send)
}

func (h *Hub) add(topic string, client *Client) {
	if h.clients[topic] == nil {
		h.clients[topic] = make(map[*Client]struct{})
	}
	h.clients[topic][client] = struct{}{}
}

func (h *Hub) remove(topic string, client *Client) {
	if subscribers, ok := h.clients[topic]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.clients, topic)
		}
	}
}

// Subscribe adds the topics the client is allowed to see and returns the
// ones it refused.
func (h *Hub) Subscribe(client *Client, topics []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	var refused []string
	for _, topic := range topics {
		if !client.allowed[topic] {
			if !contains(refused, topic) {
				refused = append(refused, topic)
			}
			continue
		}
		if contains(client.Topics, topic) {
			continue
		}
		h.add(topic, client)
		client.Topics = append(client.Topics, topic)
	}
	return refused
}

func (h *Hub) Unsubscribe(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	drop := make(map[string]bool, len(topics))
	for _, t := range topics {
		drop[t] = true
		h.remove(t, client)
	}
	remaining := client.Topics[:0]
	for _, t := range client.Topics {
		if !drop[t] {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// ProcessMessage applies msg and answers the client with an error notice
// for refused topics and unknown actions.
func (h *Hub) ProcessMessage(client *Client, msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if refused := h.Subscribe(client, msg.Topics); len(refused) > 0 {
			h.notify(client, Notice{Type: "error", Action: msg.Action, Topics: refused, Message: "topic not permitted"})
		}
	case "unsubscribe":
		h.Unsubscribe(client, msg.Topics)
	default:
		h.notify(client, Notice{Type: "error", Action: msg.Action, Message: "unknown action"})
	}
}

func (h *Hub) notify(client *Client, n Notice) {
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	select {
	case client.Send <- data:
	default:
		log.Debug().Str("client", client.ID).Str("action", n.Action).Msg("live client buffer full, notice dropped")
	}
}

// Publish sends event to the subscribers of its topic. Slow clients with a
// full buffer miss the event.
func (h *Hub) Publish(_ context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- data:
		default:
			log.Debug().Str("client", client.ID).Str("topic", event.Topic).Msg("live client buffer full, event dropped")
		}
	}
	return nil
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

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
