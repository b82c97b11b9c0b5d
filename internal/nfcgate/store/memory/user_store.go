package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

// UserStore keeps registered users in a map keyed by tag. It is intended
// for tests and dev environments.
type UserStore struct {
	Faults

	mu     sync.RWMutex
	byTag  map[string]types.RegisteredUser
	nextID int64
	now    Clock
}

func NewUserStore() *UserStore {
	return &UserStore{
		byTag: make(map[string]types.RegisteredUser),
		now:   defaultClock,
	}
}

// WithClock replaces the timestamp source. Returns s for chaining.
func (s *UserStore) WithClock(c Clock) *UserStore {
	s.now = c
	return s
}

func (s *UserStore) FindUser(_ context.Context, tagID string) (types.RegisteredUser, error) {
	if err := s.check(); err != nil {
		return types.RegisteredUser{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byTag[tagID]
	if !ok {
		return types.RegisteredUser{}, store.ErrNotFound
	}
	return u, nil
}

func (s *UserStore) InsertUser(_ context.Context, tagID, displayName string) (types.RegisteredUser, error) {
	if err := s.check(); err != nil {
		return types.RegisteredUser{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byTag[tagID]; ok {
		return types.RegisteredUser{}, store.ErrDuplicateTag
	}
	s.nextID++
	u := types.RegisteredUser{
		ID:          s.nextID,
		TagID:       tagID,
		DisplayName: displayName,
		CreatedAt:   s.now(),
	}
	s.byTag[tagID] = u
	return u, nil
}

func (s *UserStore) ListUsers(_ context.Context) ([]types.RegisteredUser, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]types.RegisteredUser, 0, len(s.byTag))
	for _, u := range s.byTag {
		out = append(out, u)
	}
	s.mu.RUnlock()

	// Newest first; ID breaks ties between rows created in the same instant.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *UserStore) DeleteUser(_ context.Context, id int64) error {
	if err := s.check(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for tag, u := range s.byTag {
		if u.ID == id {
			delete(s.byTag, tag)
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *UserStore) ClearUsers(_ context.Context) (int64, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.byTag))
	s.byTag = make(map[string]types.RegisteredUser)
	return n, nil
}

func (s *UserStore) CountUsers(_ context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTag), nil
}
