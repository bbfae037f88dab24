// Package broadcast mass-messages every known user, used to nudge
// people back into a conversation around lunchtime.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/jamesbot/james/internal/messenger"
	"github.com/jamesbot/james/internal/metrics"
	"github.com/jamesbot/james/internal/store"
)

// The follow-up quick reply after the broadcast message.
const (
	promptText    = "Any plans for lunch?"
	replyTitle    = "I'm famished!"
	replyPayload  = "I_M_HUNGRY"
	sendWeekday   = time.Monday
	sendHourLocal = 11
)

// Broadcaster sends one message to every user in the profile store.
type Broadcaster struct {
	profiles store.Store
	sender   messenger.Sender
}

// New creates a broadcaster.
func New(profiles store.Store, sender messenger.Sender) *Broadcaster {
	return &Broadcaster{profiles: profiles, sender: sender}
}

// Send delivers the message plus a hungry quick reply to each user.
// Per-user failures are logged and skipped; one blocked recipient must
// not stop the campaign. Returns the number of users reached.
func (b *Broadcaster) Send(ctx context.Context, message string) (int, error) {
	users, err := b.profiles.ListUsers()
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, user := range users {
		if err := b.sender.SendText(ctx, user.FBID, message); err != nil {
			metrics.RecordCollaboratorError("messenger")
			slog.Error("Broadcast send failed", "fbid", user.FBID, "error", err)
			continue
		}
		if err := b.sender.SendQuickReplies(ctx, user.FBID, promptText, hungryReplies()); err != nil {
			metrics.RecordCollaboratorError("messenger")
			slog.Error("Broadcast quick reply failed", "fbid", user.FBID, "error", err)
			continue
		}
		sent++
	}
	slog.Debug("Broadcast completed", "users", len(users), "sent", sent)
	return sent, nil
}

func hungryReplies() []messenger.QuickReply {
	return []messenger.QuickReply{
		{Title: replyTitle, Payload: replyPayload},
	}
}

// InSendWindow reports whether now falls in the broadcast window,
// Monday 11:00-11:59 in the given location.
func InSendWindow(now time.Time, loc *time.Location) bool {
	local := now.In(loc)
	return local.Weekday() == sendWeekday && local.Hour() == sendHourLocal
}
