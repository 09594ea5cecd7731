// Package memory implements an in-process publisher for development and
// tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Publisher records published payloads per topic.
type Publisher struct {
	mu     sync.Mutex
	next   int
	events map[string][]json.RawMessage
}

// New creates an empty in-memory publisher.
func New() *Publisher {
	return &Publisher{events: map[string][]json.RawMessage{}}
}

// Publish records the payload under the topic and returns a sequential ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	p.events[topic] = append(p.events[topic], data)
	return fmt.Sprintf("mem-%d", p.next), nil
}

// Published returns the payloads recorded for a topic.
func (p *Publisher) Published(topic string) []json.RawMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]json.RawMessage, len(p.events[topic]))
	copy(out, p.events[topic])
	return out
}
