package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jamesbot/james/internal/messenger"
	"github.com/jamesbot/james/internal/store"
)

func seededStore(t *testing.T, fbids ...string) store.Store {
	t.Helper()
	s := store.NewInMemoryStore()
	for _, fbid := range fbids {
		if _, err := s.UpsertUser(fbid, ""); err != nil {
			t.Fatalf("seed user %s: %v", fbid, err)
		}
	}
	return s
}

func TestBroadcasterSend(t *testing.T) {
	profiles := seededStore(t, "user-1", "user-2", "user-3")
	sender := messenger.NewMockSender()
	b := New(profiles, sender)

	sent, err := b.Send(context.Background(), "Heyy!! I'm back! Smarter and hungrier too!")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if sent != 3 {
		t.Errorf("sent = %d, want 3", sent)
	}

	messages := sender.Messages()
	if len(messages) != 6 {
		t.Fatalf("messages = %d, want text plus quick reply per user", len(messages))
	}
	var hungryReplies int
	for _, m := range messages {
		if len(m.Replies) == 1 && m.Replies[0].Payload == replyPayload {
			hungryReplies++
		}
	}
	if hungryReplies != 3 {
		t.Errorf("hungry quick replies = %d, want one per user", hungryReplies)
	}
}

// failOnceSender fails every call for one recipient.
type failOnceSender struct {
	*messenger.MockSender
	blocked string
}

func (f *failOnceSender) SendText(ctx context.Context, recipientID, text string) error {
	if recipientID == f.blocked {
		return errors.New("user unavailable")
	}
	return f.MockSender.SendText(ctx, recipientID, text)
}

func TestBroadcasterSkipsFailingRecipients(t *testing.T) {
	profiles := seededStore(t, "user-1", "user-2", "user-3")
	sender := &failOnceSender{MockSender: messenger.NewMockSender(), blocked: "user-2"}
	b := New(profiles, sender)

	sent, err := b.Send(context.Background(), "lunch?")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if sent != 2 {
		t.Errorf("sent = %d, want failing recipient skipped", sent)
	}
	for _, m := range sender.Messages() {
		if m.RecipientID == "user-2" {
			t.Errorf("blocked recipient received %+v", m)
		}
	}
}

func TestInSendWindow(t *testing.T) {
	sg, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"monday 11am", time.Date(2024, 3, 4, 11, 30, 0, 0, sg), true},
		{"monday 10am", time.Date(2024, 3, 4, 10, 59, 0, 0, sg), false},
		{"monday noon", time.Date(2024, 3, 4, 12, 0, 0, 0, sg), false},
		{"tuesday 11am", time.Date(2024, 3, 5, 11, 0, 0, 0, sg), false},
		{"monday 11am utc is monday 7pm sg", time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC), false},
		{"monday 3am utc is monday 11am sg", time.Date(2024, 3, 4, 3, 0, 0, 0, time.UTC), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := InSendWindow(tt.at, sg); got != tt.want {
				t.Errorf("InSendWindow(%v) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}
