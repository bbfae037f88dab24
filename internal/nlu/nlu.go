// Package nlu provides intent parsing for free-form user messages.
//
// The engine treats intent classification as a black box: a parser
// returns an intent label plus named entity values, and entity
// extraction degrades to "absent" on any unexpected shape.
package nlu

import (
	"context"

	"github.com/jamesbot/james/internal/models"
)

// Result is the outcome of classifying one utterance.
type Result struct {
	Intent   models.Intent
	Entities map[string][]string
}

// IntentParser classifies an utterance into an intent and entities.
type IntentParser interface {
	Parse(ctx context.Context, utterance string) (Result, error)
}

// FirstEntityValue returns the first value of the named entity, or ""
// when the entity is absent or empty. Malformed shapes are treated as
// absent rather than surfaced as errors.
func FirstEntityValue(entities map[string][]string, name string) string {
	if entities == nil {
		return ""
	}
	values, ok := entities[name]
	if !ok || len(values) == 0 {
		return ""
	}
	return values[0]
}
