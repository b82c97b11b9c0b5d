package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/service"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store/memory"
)

func TestCacheRefresher_StartLoadsFromStore(t *testing.T) {
	js := memory.NewJournalStore()
	ctx := context.Background()
	for _, tag := range []string{"A", "B", "C"} {
		_, err := js.AppendEvent(ctx, tag, "Access check", "Access denied - unknown card")
		require.NoError(t, err)
	}

	cache := service.NewRecentCache(2)
	r := service.NewCacheRefresher(js, cache, service.RefresherConfig{IntervalMinutes: 0}, zap.NewNop())
	r.Start(ctx)
	r.Stop()

	require.True(t, cache.Loaded())
	recent := cache.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "C", recent[0].TagID)
	assert.Equal(t, "B", recent[1].TagID)
}

func TestCacheRefresher_SyncPicksUpExternalWrites(t *testing.T) {
	js := memory.NewJournalStore()
	ctx := context.Background()
	cache := service.NewRecentCache(10)
	r := service.NewCacheRefresher(js, cache, service.RefresherConfig{}, zap.NewNop())

	require.NoError(t, r.Sync(ctx))
	assert.Zero(t, cache.Len())

	_, err := js.AppendEvent(ctx, "X", "Access check", "r")
	require.NoError(t, err)
	require.NoError(t, r.Sync(ctx))
	assert.Equal(t, 1, cache.Len())
}

func TestCacheRefresher_SyncFailureLeavesCacheUnloaded(t *testing.T) {
	js := memory.NewJournalStore()
	js.SetUnavailable(true)
	cache := service.NewRecentCache(10)
	r := service.NewCacheRefresher(js, cache, service.RefresherConfig{}, zap.NewNop())

	assert.Error(t, r.Sync(context.Background()))
	assert.False(t, cache.Loaded())
}

func TestCacheRefresher_StopIsIdempotent(t *testing.T) {
	js := memory.NewJournalStore()
	r := service.NewCacheRefresher(js, service.NewRecentCache(5), service.RefresherConfig{IntervalMinutes: 60}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	cancel()
	r.Stop()
	r.Stop()
}
