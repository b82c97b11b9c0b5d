package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SeedMasterKey records the configured master key in master_keys. Existing
// rows are left alone so an operator-edited description survives restarts.
func SeedMasterKey(ctx context.Context, db *sql.DB, uid string) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return nil
	}

	if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO master_keys(uid, description)
VALUES (?, 'Main Master Key');`, uid); err != nil {
		return fmt.Errorf("seed master key: %w", err)
	}
	return nil
}
