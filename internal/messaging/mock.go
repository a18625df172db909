package messaging

import (
	"context"
	"sync"
)

// SentMessage is one message captured by MockSender.
type SentMessage struct {
	To   string
	Body string
}

// MockSender records messages instead of delivering them. Set Err to simulate provider
// failures; FailFor fails only for the listed recipients.
type MockSender struct {
	mu      sync.Mutex
	sent    []SentMessage
	Err     error
	FailFor map[string]error
}

// NewMockSender creates an empty MockSender.
func NewMockSender() *MockSender {
	return &MockSender{FailFor: make(map[string]error)}
}

// SendMessage records the message, then returns the configured error if any.
func (m *MockSender) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{To: to, Body: body})
	if err, ok := m.FailFor[to]; ok {
		return err
	}
	return m.Err
}

// Sent returns a copy of every recorded message.
func (m *MockSender) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.sent...)
}

// SentTo returns the bodies sent to one recipient, in order.
func (m *MockSender) SentTo(to string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var bodies []string
	for _, msg := range m.sent {
		if msg.To == to {
			bodies = append(bodies, msg.Body)
		}
	}
	return bodies
}

// Reset clears recorded messages.
func (m *MockSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
