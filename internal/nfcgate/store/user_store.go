package store

import (
	"context"

	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/types"
)

// UserStore persists registered users. Uniqueness of TagID is enforced
// here, not by callers.
type UserStore interface {
	// FindUser returns ErrNotFound when the tag is not registered.
	FindUser(ctx context.Context, tagID string) (types.RegisteredUser, error)

	// InsertUser assigns ID and CreatedAt. Returns ErrDuplicateTag on a
	// uniqueness conflict.
	InsertUser(ctx context.Context, tagID, displayName string) (types.RegisteredUser, error)

	// ListUsers returns every user, newest first.
	ListUsers(ctx context.Context) ([]types.RegisteredUser, error)

	// DeleteUser returns ErrNotFound when no user has that id.
	DeleteUser(ctx context.Context, id int64) error

	// ClearUsers deletes every user and returns how many were removed.
	ClearUsers(ctx context.Context) (int64, error)

	CountUsers(ctx context.Context) (int, error)
}
