package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

const (
	DefaultLogLimit = 50
	MaxLogLimit     = 1000
)

// StatusService answers the read-only reporting queries and the
// administrative user deletions. It never takes part in access decisions.
type StatusService struct {
	engine    *Engine
	users     store.UserStore
	journal   store.JournalStore
	cache     *RecentCache
	startedAt time.Time
	now       func() time.Time
}

// NewStatusService wires the reporting surface. cache may be nil, in which
// case every journal read goes to the store.
func NewStatusService(engine *Engine, users store.UserStore, journal store.JournalStore, cache *RecentCache) *StatusService {
	return &StatusService{
		engine:    engine,
		users:     users,
		journal:   journal,
		cache:     cache,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// WithClock replaces the time source and resets the start time. For tests.
func (s *StatusService) WithClock(now func() time.Time) *StatusService {
	s.now = now
	s.startedAt = now()
	return s
}

func (s *StatusService) Status(ctx context.Context) (types.SystemStatus, error) {
	total, err := s.users.CountUsers(ctx)
	if err != nil {
		return types.SystemStatus{}, err
	}

	now := s.now()
	today, err := s.journal.CountEventsSince(ctx, StartOfDay(now))
	if err != nil {
		return types.SystemStatus{}, err
	}

	return types.SystemStatus{
		RegistrationMode: s.engine.RegistrationMode(),
		TotalUsers:       total,
		ScansToday:       today,
		MasterKey:        s.engine.MasterKey(),
		ServerUptime:     FormatUptime(now.Sub(s.startedAt)),
	}, nil
}

func (s *StatusService) Users(ctx context.Context) ([]types.RegisteredUser, error) {
	return s.users.ListUsers(ctx)
}

func (s *StatusService) DeleteUser(ctx context.Context, id int64) error {
	return s.users.DeleteUser(ctx, id)
}

func (s *StatusService) ClearUsers(ctx context.Context) (int64, error) {
	return s.users.ClearUsers(ctx)
}

// RecentEvents reads the journal store. The cache only answers when the
// store fails, and then only if it has been loaded and can hold limit
// entries; the store error is returned otherwise.
func (s *StatusService) RecentEvents(ctx context.Context, limit int) ([]types.AccessEvent, error) {
	limit = ClampLogLimit(limit)
	events, err := s.journal.RecentEvents(ctx, limit)
	if err == nil {
		return events, nil
	}
	if s.cache != nil && s.cache.Loaded() && limit <= s.cache.Capacity() {
		return s.cache.Recent(limit), nil
	}
	return nil, err
}

// ClampLogLimit maps a requested limit onto [1, MaxLogLimit], defaulting
// non-positive values to DefaultLogLimit.
func ClampLogLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLogLimit
	case limit > MaxLogLimit:
		return MaxLogLimit
	}
	return limit
}

// StartOfDay is local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatUptime renders d as HH:MM:SS; hours are not wrapped at 24.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
