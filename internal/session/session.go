// Package session provides the per-user conversational state container
// and its store. All mutable search state (criteria, cursor, context
// flags) is namespaced per session, never held as process-wide globals.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jamesbot/james/internal/search"
)

// Context flag keys set and cleared by the engine's action handlers.
const (
	KeyState           = "state"
	KeyLocation        = "location"
	KeyMissingLocation = "missingLocation"
	KeyCuisine         = "cuisine"
	KeyRecommendGiven  = "recommendGiven"
)

// Session is one user's conversational state: free-form context flags
// plus the criteria and cursor for the current search. A session is
// exclusively owned by the engine turn currently executing for its user.
type Session struct {
	ID        string
	UserID    string
	Context   map[string]string
	Criteria  *search.Criteria
	Cursor    *search.Cursor
	CreatedAt time.Time

	turns turnQueue
}

func newSession(userID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Context:   make(map[string]string),
		Criteria:  search.NewCriteria(),
		Cursor:    search.NewCursor(),
		CreatedAt: time.Now(),
	}
}

// Set stores a context value and clears the named alternatives, keeping
// mutually exclusive flag groups consistent: at most one flag of a group
// is ever set.
func (s *Session) Set(key, value string, clears ...string) {
	for _, alt := range clears {
		delete(s.Context, alt)
	}
	s.Context[key] = value
}

// Get returns the context value for key, or "" when absent.
func (s *Session) Get(key string) string {
	return s.Context[key]
}

// Clear removes a context key.
func (s *Session) Clear(key string) {
	delete(s.Context, key)
}

// ResetContext empties the context map, resets criteria to defaults and
// discards the cursor. Called when the user signals satisfaction.
func (s *Session) ResetContext() {
	s.Context = make(map[string]string)
	s.Criteria.Reset()
	s.Cursor = search.NewCursor()
}

// Store maps an external user identifier to its session, creating one
// lazily on first contact. Lookup is by equality on the user id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Resolve returns the existing session for userID or creates one with
// empty context and default criteria. Concurrent resolutions for the
// same user id always yield the same session.
func (st *Store) Resolve(userID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if s, ok := st.sessions[userID]; ok {
		return s
	}
	s := newSession(userID)
	st.sessions[userID] = s
	slog.Debug("Session created", "userID", userID, "sessionID", s.ID)
	return s
}

// Clear removes the session for userID, releasing its context and cursor.
func (st *Store) Clear(userID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
	slog.Debug("Session cleared", "userID", userID)
}

// Len returns the number of active sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
