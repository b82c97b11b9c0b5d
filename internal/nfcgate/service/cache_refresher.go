package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
)

// CacheRefresher rebuilds a RecentCache from the journal store on startup
// and then on a fixed interval, picking up entries written by another
// process sharing the database. It is safe to stop via its context or Stop.
type CacheRefresher struct {
	journal  store.JournalStore
	cache    *RecentCache
	interval time.Duration
	logger   *zap.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type RefresherConfig struct {
	// IntervalMinutes between resyncs. 0 means sync once at Start only.
	IntervalMinutes int
}

// NewCacheRefresher creates a refresher but does not start it.
func NewCacheRefresher(js store.JournalStore, cache *RecentCache, cfg RefresherConfig, logger *zap.Logger) *CacheRefresher {
	return &CacheRefresher{
		journal:  js,
		cache:    cache,
		interval: time.Duration(cfg.IntervalMinutes) * time.Minute,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Sync reloads the cache once.
func (r *CacheRefresher) Sync(ctx context.Context) error {
	events, err := r.journal.RecentEvents(ctx, r.cache.Capacity())
	if err != nil {
		return err
	}
	r.cache.Merge(events)
	return nil
}

// Start performs an initial sync synchronously, so reads right after Start
// can be served from the cache, then launches the periodic loop.
func (r *CacheRefresher) Start(ctx context.Context) {
	if err := r.Sync(ctx); err != nil {
		r.logger.Warn("recent cache initial sync failed", zap.Error(err))
	}

	if r.interval <= 0 {
		r.logger.Info("recent cache resync disabled (interval=0)")
		close(r.done)
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	go r.loop(ctx)

	r.logger.Info("recent cache refresher started",
		zap.Int("capacity", r.cache.Capacity()),
		zap.Duration("interval", r.interval))
}

// Stop signals the loop to exit and waits for it. Safe to call repeatedly.
func (r *CacheRefresher) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
		}
	})
	<-r.done
}

func (r *CacheRefresher) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Sync(ctx); err != nil {
				r.logger.Warn("recent cache resync failed", zap.Error(err))
			}
		}
	}
}
