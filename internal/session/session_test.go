package session

import (
	"sync"
	"testing"

	"github.com/jamesbot/james/internal/search"
)

func TestResolveCreatesOnce(t *testing.T) {
	st := NewStore()
	a := st.Resolve("user-1")
	if a == nil {
		t.Fatal("expected session")
	}
	if a.UserID != "user-1" {
		t.Errorf("expected userID user-1, got %s", a.UserID)
	}
	if len(a.Context) != 0 {
		t.Errorf("new session context should be empty, got %v", a.Context)
	}
	if a.Criteria.PriceCeiling != search.DefaultPriceCeiling {
		t.Error("new session criteria should be at defaults")
	}

	b := st.Resolve("user-1")
	if a != b {
		t.Error("Resolve must return the same session for the same user id")
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 session, got %d", st.Len())
	}
}

func TestResolveConcurrent(t *testing.T) {
	st := NewStore()
	const n = 32
	out := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i] = st.Resolve("racer")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if out[i] != out[0] {
			t.Fatal("concurrent Resolve created more than one session")
		}
	}
	if st.Len() != 1 {
		t.Errorf("expected 1 session, got %d", st.Len())
	}
}

func TestClear(t *testing.T) {
	st := NewStore()
	a := st.Resolve("user-1")
	st.Clear("user-1")
	if st.Len() != 0 {
		t.Errorf("expected 0 sessions after clear, got %d", st.Len())
	}
	b := st.Resolve("user-1")
	if a == b {
		t.Error("Resolve after Clear should create a fresh session")
	}
}

func TestSetClearsAlternatives(t *testing.T) {
	s := newSession("u")
	s.Set(KeyMissingLocation, "true")
	s.Set(KeyLocation, "Singapore", KeyMissingLocation)

	if s.Get(KeyMissingLocation) != "" {
		t.Error("setting location must clear missingLocation")
	}
	if s.Get(KeyLocation) != "Singapore" {
		t.Errorf("expected location Singapore, got %q", s.Get(KeyLocation))
	}
}

func TestResetContext(t *testing.T) {
	s := newSession("u")
	s.Set(KeyCuisine, "thai")
	s.Criteria.LowerPriceCeiling()
	s.Criteria.RequireOpen()

	s.ResetContext()
	if len(s.Context) != 0 {
		t.Errorf("context not emptied: %v", s.Context)
	}
	if s.Criteria.PriceCeiling != search.DefaultPriceCeiling || s.Criteria.OpenOnly {
		t.Error("criteria not reset")
	}
	if !s.Cursor.Exhausted() || s.Cursor.Len() != 0 {
		t.Error("cursor not discarded")
	}
}

func TestDoPreservesOrder(t *testing.T) {
	s := newSession("u")
	const n = 100
	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	for i := 0; i < n; i++ {
		i := i
		s.Do(func() {
			mu.Lock()
			order = append(order, i)
			if len(order) == n {
				close(done)
			}
			mu.Unlock()
		})
	}
	<-done

	for i, v := range order {
		if v != i {
			t.Fatalf("turns ran out of order at %d: %v", i, order[:i+1])
		}
	}
}

func TestDoSingleInFlight(t *testing.T) {
	s := newSession("u")
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		s.Do(func() {
			defer wg.Done()
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			mu.Lock()
			inFlight--
			mu.Unlock()
		})
	}
	wg.Wait()

	if maxInFlight > 1 {
		t.Errorf("expected at most one in-flight turn per session, saw %d", maxInFlight)
	}
}
