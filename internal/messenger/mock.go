package messenger

import (
	"context"
	"sync"

	"github.com/jamesbot/james/internal/models"
)

// SentMessage is one message recorded by the mock sender.
type SentMessage struct {
	RecipientID string
	Text        string
	Replies     []QuickReply
	Candidate   *models.Candidate
}

// MockSender records outbound messages for tests instead of calling
// the Send API.
type MockSender struct {
	mu       sync.Mutex
	messages []SentMessage

	// Err, when set, is returned from every send call.
	Err error
}

// NewMockSender creates a recording sender.
func NewMockSender() *MockSender {
	return &MockSender{}
}

// SendText records a plain text message.
func (m *MockSender) SendText(ctx context.Context, recipientID, text string) error {
	if m.Err != nil {
		return m.Err
	}
	m.record(SentMessage{RecipientID: recipientID, Text: text})
	return nil
}

// SendQuickReplies records a text message with suggestions.
func (m *MockSender) SendQuickReplies(ctx context.Context, recipientID, text string, replies []QuickReply) error {
	if m.Err != nil {
		return m.Err
	}
	m.record(SentMessage{RecipientID: recipientID, Text: text, Replies: replies})
	return nil
}

// SendTyping is a no-op on the mock.
func (m *MockSender) SendTyping(ctx context.Context, recipientID string, on bool) error {
	return nil
}

// SendCard records a candidate card.
func (m *MockSender) SendCard(ctx context.Context, recipientID string, candidate models.Candidate) error {
	if m.Err != nil {
		return m.Err
	}
	m.record(SentMessage{RecipientID: recipientID, Candidate: &candidate})
	return nil
}

// Messages returns a copy of everything recorded so far.
func (m *MockSender) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// Reset clears the recorded messages.
func (m *MockSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}

func (m *MockSender) record(msg SentMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}
