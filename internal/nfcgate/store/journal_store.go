package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

// JournalStore is the append-only access journal. Entries are never
// updated or deleted.
type JournalStore interface {
	// AppendEvent stores one entry and returns it with ID and Timestamp
	// assigned by the store.
	AppendEvent(ctx context.Context, tagID, action, result string) (types.AccessEvent, error)

	// RecentEvents returns at most limit entries, newest first.
	RecentEvents(ctx context.Context, limit int) ([]types.AccessEvent, error)

	CountEventsSince(ctx context.Context, since time.Time) (int, error)
}
