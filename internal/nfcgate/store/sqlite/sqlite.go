package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	dbpkg "github.com/BrandonDHaskell/nfcgate/internal/db"
	"github.com/BrandonDHaskell/nfcgate/internal/nfcgate/store"
)

// handle pairs a sqlx view of the connection for reads with the single
// writer worker for every mutation.
type handle struct {
	db     *sqlx.DB
	writer *dbpkg.Worker
	now    func() time.Time
}

func newHandle(conn *sql.DB, writer *dbpkg.Worker) handle {
	return handle{
		db:     sqlx.NewDb(conn, dbpkg.DriverName),
		writer: writer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlitelib.SQLITE_CONSTRAINT_UNIQUE ||
			se.Code() == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// unavailable marks err with store.ErrUnavailable when the database as a
// whole cannot serve requests, as opposed to one statement failing.
func unavailable(err error) error {
	if err == nil || errors.Is(err, store.ErrUnavailable) || !isUnavailable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, dbpkg.ErrWorkerClosed) {
		return true
	}
	var se *msqlite.Error
	if errors.As(err, &se) {
		// Extended result codes carry the primary code in the low byte.
		switch se.Code() & 0xff {
		case sqlitelib.SQLITE_BUSY,
			sqlitelib.SQLITE_LOCKED,
			sqlitelib.SQLITE_IOERR,
			sqlitelib.SQLITE_CANTOPEN,
			sqlitelib.SQLITE_FULL,
			sqlitelib.SQLITE_READONLY,
			sqlitelib.SQLITE_CORRUPT,
			sqlitelib.SQLITE_NOTADB:
			return true
		}
		return false
	}
	// database/sql does not export its closed-pool error.
	return strings.Contains(err.Error(), "sql: database is closed")
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
