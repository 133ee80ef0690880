package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// DB wraps sql.DB for Postgres using pgx.
type DB struct {
	Client *sql.DB
}

// NewDB creates a Postgres connection with sane defaults.
func NewDB(connString string) (*DB, error) {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	return &DB{Client: db}, db.PingContext(context.Background())
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	if d == nil || d.Client == nil {
		return nil
	}
	return d.Client.Close()
}

// EnsureSchema creates the tables and unique indexes the core relies on.
// The unique indexes are the sole concurrency-correctness mechanism:
// duplicate inserts are allowed to race and the store picks the winner.
func (d *DB) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL,
			term       TEXT NOT NULL,
			instructor BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_term
			ON users (username, term)`,
		`CREATE TABLE IF NOT EXISTS enrollments (
			username TEXT NOT NULL,
			term     TEXT NOT NULL,
			crn      INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS enrollments_user_term_crn
			ON enrollments (username, term, crn)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL,
			crn        INTEGER NOT NULL,
			checked_at TIMESTAMPTZ NOT NULL,
			location   TEXT NOT NULL DEFAULT '',
			term       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS attendance_user_crn_time_term
			ON attendance_records (username, crn, checked_at, term)`,
		`CREATE TABLE IF NOT EXISTS correction_requests (
			id           TEXT PRIMARY KEY,
			username     TEXT NOT NULL,
			crn          INTEGER NOT NULL,
			mistake_date TIMESTAMPTZ NOT NULL,
			term         TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS requests_user_crn_date_term
			ON correction_requests (username, crn, mistake_date, term)`,
	}
	for _, stmt := range stmts {
		if _, err := d.Client.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// IsUniqueViolation reports whether err is a Postgres unique-index
// rejection (SQLSTATE 23505). Repositories map this onto the duplicate
// sentinels in the faults package.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
