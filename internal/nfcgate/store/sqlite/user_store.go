package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	dbpkg "github.com/BrandonDHaskell/nfcgate/internal/db"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

type userRow struct {
	ID          int64  `db:"id"`
	UID         string `db:"uid"`
	Name        string `db:"name"`
	CreatedAtMs int64  `db:"created_at_ms"`
}

func (r userRow) toUser() types.RegisteredUser {
	return types.RegisteredUser{
		ID:          r.ID,
		TagID:       r.UID,
		DisplayName: r.Name,
		CreatedAt:   fromMillis(r.CreatedAtMs),
	}
}

type UserStore struct {
	handle
}

func NewUserStore(conn *sql.DB, writer *dbpkg.Worker) *UserStore {
	return &UserStore{handle: newHandle(conn, writer)}
}

func (s *UserStore) FindUser(ctx context.Context, tagID string) (types.RegisteredUser, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, `
SELECT id, uid, name, created_at_ms FROM users WHERE uid = ?;
`, tagID)
	if errors.Is(err, sql.ErrNoRows) {
		return types.RegisteredUser{}, store.ErrNotFound
	}
	if err != nil {
		return types.RegisteredUser{}, fmt.Errorf("FindUser: %w", unavailable(err))
	}
	return row.toUser(), nil
}

func (s *UserStore) InsertUser(ctx context.Context, tagID, displayName string) (types.RegisteredUser, error) {
	created := s.now()
	u := types.RegisteredUser{
		TagID:       tagID,
		DisplayName: displayName,
		CreatedAt:   fromMillis(created.UnixMilli()),
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO users(uid, name, created_at_ms) VALUES (?, ?, ?);
`, tagID, displayName, created.UnixMilli())
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateTag
			}
			return fmt.Errorf("InsertUser: %w", err)
		}
		u.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("InsertUser last id: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.RegisteredUser{}, unavailable(err)
	}
	return u, nil
}

func (s *UserStore) ListUsers(ctx context.Context) ([]types.RegisteredUser, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, `
SELECT id, uid, name, created_at_ms
FROM users
ORDER BY created_at_ms DESC, id DESC;
`); err != nil {
		return nil, fmt.Errorf("ListUsers: %w", unavailable(err))
	}

	out := make([]types.RegisteredUser, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toUser())
	}
	return out, nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id int64) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("DeleteUser: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("DeleteUser rows: %w", err)
		}
		if n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	return unavailable(err)
}

func (s *UserStore) ClearUsers(ctx context.Context) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users;`)
		if err != nil {
			return fmt.Errorf("ClearUsers: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, unavailable(err)
}

func (s *UserStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users;`); err != nil {
		return 0, fmt.Errorf("CountUsers: %w", unavailable(err))
	}
	return n, nil
}
