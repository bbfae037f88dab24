package search

import (
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/jamesbot/james/internal/models"
)

// excludedCategories are category fragments that disqualify a candidate
// from being recommended. The search provider lumps grocery-style
// listings in with restaurants; nobody wants dinner at a supermarket.
var excludedCategories = []string{
	"supermarket",
	"grocery",
	"convenience",
	"wholesale",
}

// Cursor walks an ordered candidate sequence with skip semantics. The
// position always refers to a candidate passing the exclusion filter, or
// the cursor is marked exhausted. A fresh cursor is loaded on every new
// search and discarded when the conversation ends.
type Cursor struct {
	candidates []models.Candidate
	position   int
	exhausted  bool
}

// NewCursor returns an empty, exhausted cursor.
func NewCursor() *Cursor {
	return &Cursor{exhausted: true}
}

// Qualifies reports whether a candidate may be recommended: it must be a
// complete record and must not match the category exclusion set.
func Qualifies(c models.Candidate) bool {
	if c.ID == "" || c.Name == "" {
		return false
	}
	for _, cat := range c.Categories {
		lower := strings.ToLower(cat)
		for _, excluded := range excludedCategories {
			if strings.Contains(lower, excluded) {
				return false
			}
		}
	}
	return true
}

// Load replaces the candidate sequence and resets the position to the
// first qualifying candidate. The cursor is marked exhausted when no
// candidate qualifies.
func (cu *Cursor) Load(candidates []models.Candidate) {
	cu.candidates = candidates
	cu.seekFrom(0)
	slog.Debug("Cursor loaded", "candidates", len(candidates), "position", cu.position, "exhausted", cu.exhausted)
}

// seekFrom moves position to the first qualifying candidate at or after
// start, marking the cursor exhausted when none remains.
func (cu *Cursor) seekFrom(start int) {
	for i := start; i < len(cu.candidates); i++ {
		if Qualifies(cu.candidates[i]) {
			cu.position = i
			cu.exhausted = false
			return
		}
	}
	cu.position = len(cu.candidates)
	cu.exhausted = true
}

// Current returns the candidate at the cursor position, or
// models.ErrCursorExhausted when the cursor has run out.
func (cu *Cursor) Current() (models.Candidate, error) {
	if cu.exhausted {
		return models.Candidate{}, models.ErrCursorExhausted
	}
	return cu.candidates[cu.position], nil
}

// Advance moves the position forward to the next qualifying candidate.
// When no further candidate qualifies it marks the cursor exhausted and
// returns models.ErrCursorExhausted; the caller then offers a restart or
// a wider search rather than erroring.
func (cu *Cursor) Advance() (models.Candidate, error) {
	if cu.exhausted {
		return models.Candidate{}, models.ErrCursorExhausted
	}
	cu.seekFrom(cu.position + 1)
	return cu.Current()
}

// Restart resets the position to the first qualifying candidate, clearing
// the exhausted mark. Used when the user asks to go back to the first
// recommendation after exhaustion.
func (cu *Cursor) Restart() (models.Candidate, error) {
	cu.seekFrom(0)
	return cu.Current()
}

// Shuffle applies a uniform random permutation to the full candidate
// sequence using Fisher-Yates, then reseeks the first qualifying
// candidate. Each swap moves a whole Candidate record, so fields can
// never fall out of alignment. Call before presenting the first result;
// the provider's ordering is not contractually diverse.
func (cu *Cursor) Shuffle() {
	for i := len(cu.candidates) - 1; i >= 1; i-- {
		j := rand.IntN(i + 1)
		cu.candidates[i], cu.candidates[j] = cu.candidates[j], cu.candidates[i]
	}
	cu.seekFrom(0)
}

// Len returns the number of loaded candidates, qualifying or not.
func (cu *Cursor) Len() int {
	return len(cu.candidates)
}

// Position returns the current cursor index.
func (cu *Cursor) Position() int {
	return cu.position
}

// Exhausted reports whether the cursor has run out of qualifying candidates.
func (cu *Cursor) Exhausted() bool {
	return cu.exhausted
}

// Candidates returns the loaded sequence. Used by tests and diagnostics.
func (cu *Cursor) Candidates() []models.Candidate {
	return cu.candidates
}
