// Package models defines the core data structures for James.
//
// It includes types for normalized search candidates, inbound Messenger
// events, and parsed intents, which are shared across modules.
package models

import (
	"errors"
	"strings"
)

// OpenStatus is the tri-state open-now status of a candidate.
type OpenStatus string

const (
	// OpenStatusOpen indicates the business is currently open.
	OpenStatusOpen OpenStatus = "open"
	// OpenStatusClosed indicates the business is currently closed.
	OpenStatusClosed OpenStatus = "closed"
	// OpenStatusUnknown indicates the open-now lookup was unavailable or failed.
	OpenStatusUnknown OpenStatus = "unknown"
)

// Display returns the user-facing rendering of an open status.
func (s OpenStatus) Display() string {
	switch s {
	case OpenStatusOpen:
		return "Open now."
	case OpenStatusClosed:
		return "Closed."
	default:
		return "Unknown status"
	}
}

// Price tier bounds for candidates and search criteria.
const (
	MinPriceTier = 1
	MaxPriceTier = 4
	// PriceTierUnknown marks candidates whose listing carries no price.
	PriceTierUnknown = 0
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Candidate is one normalized business record returned by a search.
// Each row is a single structured record; fields are never tracked in
// separate parallel slices.
type Candidate struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	ImageURL    string      `json:"image_url"`
	Categories  []string    `json:"categories"`
	Phone       string      `json:"phone"`
	Rating      float64     `json:"rating"`
	PriceTier   int         `json:"price_tier"` // 1..4, PriceTierUnknown if not listed
	Coordinates Coordinates `json:"coordinates"`
	OpenNow     OpenStatus  `json:"open_now"`
}

// CategoryLine renders the ordered category titles as a single line.
func (c Candidate) CategoryLine() string {
	return strings.Join(c.Categories, ", ")
}

// Event represents one inbound Messenger event for a single user.
type Event struct {
	SenderID      string       `json:"sender_id"`
	Text          string       `json:"text,omitempty"`
	Payload       string       `json:"payload,omitempty"` // quick-reply or postback payload
	Location      *Coordinates `json:"location,omitempty"`
	HasAttachment bool         `json:"has_attachment,omitempty"`
	Time          int64        `json:"time"`
}

// Intent identifies a parsed conversational intent.
type Intent string

const (
	// IntentGreeting is a hello or small-talk opener.
	IntentGreeting Intent = "greetings"
	// IntentGetFood is a request for a restaurant recommendation,
	// optionally carrying location and cuisine entities.
	IntentGetFood Intent = "getFood"
	// IntentUnknown is returned when classification yields nothing usable.
	IntentUnknown Intent = ""
)

// Entity names extracted by the intent parser.
const (
	EntityLocation = "location"
	EntityCuisine  = "cuisine"
)

// Error variables for better error handling and testability.
var (
	// ErrCursorExhausted signals that the result cursor has no further
	// qualifying candidate. Callers offer a restart or a wider search.
	ErrCursorExhausted = errors.New("result cursor exhausted")
	// ErrNoCandidates signals that a search returned zero usable results.
	ErrNoCandidates   = errors.New("no candidates returned")
	ErrEmptyRecipient = errors.New("recipient cannot be empty")
	ErrEmptyMessage   = errors.New("message body cannot be empty")
)
