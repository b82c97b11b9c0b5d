package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:dbtest_%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)", t.Name())
	conn, err := sql.Open(DriverName, dsn)
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("0001_init.sql")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	v, err = parseVersion("0000_bootstrap.sql")
	require.NoError(t, err)
	assert.Equal(t, 0, v)

	_, err = parseVersion("init.sql")
	assert.Error(t, err)

	_, err = parseVersion("abc_init.sql")
	assert.Error(t, err)
}

func TestLoadMigrations_SortedAndFiltered(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_second.sql": {Data: []byte("SELECT 2;")},
		"m/0001_first.sql":  {Data: []byte("SELECT 1;")},
		"m/README.md":       {Data: []byte("ignored")},
	}

	ms, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, 1, ms[0].version)
	assert.Equal(t, "0002_second.sql", ms[1].name)
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, conn))
	require.NoError(t, Migrate(ctx, conn))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
	assert.Equal(t, 1, n)

	for _, table := range []string{"users", "access_logs", "master_keys"} {
		var name string
		err := conn.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s", table)
	}
}

func TestOpen_CreatesFileAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gate.db")

	conn, err := Open(context.Background(), Config{Path: path})
	require.NoError(t, err)
	defer conn.Close()

	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}

func TestSeedMasterKey_InsertOrIgnore(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, conn))

	require.NoError(t, SeedMasterKey(ctx, conn, "34B226517F9E36"))
	require.NoError(t, SeedMasterKey(ctx, conn, "34B226517F9E36"))
	require.NoError(t, SeedMasterKey(ctx, conn, "   "))

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM master_keys`).Scan(&n))
	assert.Equal(t, 1, n)
}

// ── Worker ───────────────────────────────────────────────────────────────────

func TestWorker_CommitsAndRollsBack(t *testing.T) {
	conn := openMemoryDB(t)
	ctx := context.Background()
	require.NoError(t, Migrate(ctx, conn))

	w := NewWorker(conn)
	defer w.Close()

	err := w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users(uid, name, created_at_ms) VALUES ('A', 'User_A', 1)`)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = w.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users(uid, name, created_at_ms) VALUES ('B', 'User_B', 2)`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n, "failed job must roll back")
}

func TestWorker_DoAfterClose(t *testing.T) {
	conn := openMemoryDB(t)

	w := NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrWorkerClosed)
}

func TestWorker_CancelledContext(t *testing.T) {
	conn := openMemoryDB(t)
	w := NewWorker(conn)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Do(ctx, func(context.Context, *sql.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
