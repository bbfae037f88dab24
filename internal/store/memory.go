package store

import (
	"sync"
	"time"
)

// InMemoryStore is a simple in-memory profile store for tests and
// development runs without a database.
type InMemoryStore struct {
	mu    sync.Mutex
	users map[string]UserProfile
	saved []SavedResult
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[string]UserProfile)}
}

func (s *InMemoryStore) UpsertUser(fbid, firstName string) (bool, error) {
	if err := validateUpsert(fbid); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	existing, ok := s.users[fbid]
	if ok {
		if firstName != "" {
			existing.FirstName = firstName
		}
		existing.UpdatedAt = now
		s.users[fbid] = existing
		return false, nil
	}
	s.users[fbid] = UserProfile{FBID: fbid, FirstName: firstName, CreatedAt: now, UpdatedAt: now}
	return true, nil
}

func (s *InMemoryStore) ListUsers() ([]UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]UserProfile, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	return users, nil
}

func (s *InMemoryStore) RecordSavedResult(fbid, name, category string) error {
	if err := validateUpsert(fbid); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = append(s.saved, SavedResult{
		ID:       int64(len(s.saved) + 1),
		FBID:     fbid,
		Name:     name,
		Category: category,
		SavedAt:  time.Now(),
	})
	return nil
}

func (s *InMemoryStore) ListSavedResults(fbid string) ([]SavedResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []SavedResult
	for _, r := range s.saved {
		if r.FBID == fbid {
			out = append(out, r)
		}
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
