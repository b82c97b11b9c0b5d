package memory

import (
	"context"
	"sync"
	"time"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

// JournalStore is an in-memory append-only access journal.
type JournalStore struct {
	Faults

	mu     sync.Mutex
	events []types.AccessEvent
	now    Clock
}

func NewJournalStore() *JournalStore {
	return &JournalStore{now: defaultClock}
}

// WithClock replaces the timestamp source. Returns s for chaining.
func (s *JournalStore) WithClock(c Clock) *JournalStore {
	s.now = c
	return s
}

func (s *JournalStore) AppendEvent(_ context.Context, tagID, action, result string) (types.AccessEvent, error) {
	if err := s.check(); err != nil {
		return types.AccessEvent{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := types.AccessEvent{
		ID:        int64(len(s.events) + 1),
		TagID:     tagID,
		Action:    action,
		Result:    result,
		Timestamp: s.now(),
	}
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *JournalStore) RecentEvents(_ context.Context, limit int) ([]types.AccessEvent, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]types.AccessEvent, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

func (s *JournalStore) CountEventsSince(_ context.Context, since time.Time) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, ev := range s.events {
		if !ev.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}

// Events returns a copy of all entries in append order. Test-only helper.
func (s *JournalStore) Events() []types.AccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AccessEvent, len(s.events))
	copy(out, s.events)
	return out
}
