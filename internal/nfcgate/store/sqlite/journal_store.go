package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/BrandonDHaskell/nfcgate/internal/db"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

type eventRow struct {
	ID           int64  `db:"id"`
	UID          string `db:"uid"`
	Action       string `db:"action"`
	Result       string `db:"result"`
	OccurredAtMs int64  `db:"occurred_at_ms"`
}

func (r eventRow) toEvent() types.AccessEvent {
	return types.AccessEvent{
		ID:        r.ID,
		TagID:     r.UID,
		Action:    r.Action,
		Result:    r.Result,
		Timestamp: fromMillis(r.OccurredAtMs),
	}
}

// JournalStore appends to access_logs through the writer worker, so entries
// are numbered in the order scans were processed.
type JournalStore struct {
	handle
}

func NewJournalStore(conn *sql.DB, writer *dbpkg.Worker) *JournalStore {
	return &JournalStore{handle: newHandle(conn, writer)}
}

func (s *JournalStore) AppendEvent(ctx context.Context, tagID, action, result string) (types.AccessEvent, error) {
	at := s.now()
	ev := types.AccessEvent{
		TagID:     tagID,
		Action:    action,
		Result:    result,
		Timestamp: fromMillis(at.UnixMilli()),
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO access_logs(uid, action, result, occurred_at_ms) VALUES (?, ?, ?, ?);
`, tagID, action, result, at.UnixMilli())
		if err != nil {
			return fmt.Errorf("AppendEvent insert: %w", err)
		}
		ev.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("AppendEvent last id: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.AccessEvent{}, unavailable(err)
	}
	return ev, nil
}

// RecentEvents orders by id rather than time: ids follow processing order
// even when two scans land in the same millisecond.
func (s *JournalStore) RecentEvents(ctx context.Context, limit int) ([]types.AccessEvent, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, `
SELECT id, uid, action, result, occurred_at_ms
FROM access_logs
ORDER BY id DESC
LIMIT ?;
`, limit); err != nil {
		return nil, fmt.Errorf("RecentEvents: %w", unavailable(err))
	}

	out := make([]types.AccessEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEvent())
	}
	return out, nil
}

func (s *JournalStore) CountEventsSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `
SELECT COUNT(*) FROM access_logs WHERE occurred_at_ms >= ?;
`, since.UTC().UnixMilli()); err != nil {
		return 0, fmt.Errorf("CountEventsSince: %w", unavailable(err))
	}
	return n, nil
}
