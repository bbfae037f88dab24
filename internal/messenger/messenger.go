// Package messenger sends replies through the Facebook Messenger
// Send API: plain text, quick replies, typing indicators and generic
// template cards.
package messenger

import (
	"context"

	"github.com/jamesbot/james/internal/models"
)

// QuickReply is one tappable suggestion attached to a text message.
// Tapping it delivers Payload back through the webhook. ContentType
// defaults to "text"; the "location" type renders the share-location
// picker instead of a labeled button.
type QuickReply struct {
	ContentType string
	Title       string
	Payload     string
}

// LocationRequest is the quick reply that asks the user to share a
// location.
func LocationRequest() QuickReply {
	return QuickReply{ContentType: "location"}
}

// Sender delivers outbound messages to a Messenger user. The engine
// depends on this interface so tests can record traffic instead of
// calling Facebook.
type Sender interface {
	// SendText delivers a plain text message.
	SendText(ctx context.Context, recipientID, text string) error

	// SendQuickReplies delivers a text message with tappable suggestions.
	SendQuickReplies(ctx context.Context, recipientID, text string, replies []QuickReply) error

	// SendTyping toggles the typing indicator.
	SendTyping(ctx context.Context, recipientID string, on bool) error

	// SendCard delivers a restaurant card for the candidate.
	SendCard(ctx context.Context, recipientID string, candidate models.Candidate) error
}
