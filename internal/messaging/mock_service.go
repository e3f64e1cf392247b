package messaging

import (
	"context"
	"strings"
	"sync"

	"github.com/habitping/habitping/internal/models"
)

// SentMessage records one outbound message captured by the MockService.
type SentMessage struct {
	To        string
	Body      string
	Keyboard  models.Keyboard
	Edited    bool
	MessageID int
	PhotoPath string
	Caption   string
}

// MockService implements Service in memory for tests. It records every
// outbound message and lets tests inject inbound events.
type MockService struct {
	mu       sync.Mutex
	sent     []SentMessage
	events   chan models.Event
	stopOnce sync.Once

	// SendErr, when set, is returned by every send operation.
	SendErr error
}

// NewMockService creates an empty mock transport.
func NewMockService() *MockService {
	return &MockService{events: make(chan models.Event, DefaultEventBufferSize)}
}

// ValidateAndCanonicalizeRecipient trims whitespace and rejects empty
// recipients, mirroring the real transports loosely.
func (m *MockService) ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	return recipient, nil
}

func (m *MockService) record(msg SentMessage) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *MockService) SendMessage(ctx context.Context, to, body string) error {
	return m.record(SentMessage{To: to, Body: body})
}

func (m *MockService) SendKeyboard(ctx context.Context, to, body string, kb models.Keyboard) error {
	return m.record(SentMessage{To: to, Body: body, Keyboard: kb})
}

func (m *MockService) EditMessage(ctx context.Context, to string, messageID int, body string, kb models.Keyboard) error {
	return m.record(SentMessage{To: to, Body: body, Keyboard: kb, Edited: true, MessageID: messageID})
}

func (m *MockService) SendPhoto(ctx context.Context, to, path, caption string) error {
	return m.record(SentMessage{To: to, PhotoPath: path, Caption: caption})
}

func (m *MockService) Start(ctx context.Context) error {
	return nil
}

func (m *MockService) Stop() error {
	m.stopOnce.Do(func() {
		close(m.events)
	})
	return nil
}

func (m *MockService) Events() <-chan models.Event {
	return m.events
}

// Inject delivers an inbound event as if the transport had received it.
func (m *MockService) Inject(ev models.Event) {
	m.events <- ev
}

// Sent returns a copy of the captured outbound messages.
func (m *MockService) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// LastSent returns the most recent captured message, or a zero value when
// nothing has been sent.
func (m *MockService) LastSent() SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return SentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

// Reset discards the captured messages.
func (m *MockService) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
