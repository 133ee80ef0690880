package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/faults"
	"rollcall/internal/store"
)

// PostgresRepository persists attendance records in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes a new record. The unique index on
// (username, crn, checked_at, term) rejects duplicates; that rejection
// is the only duplicate detection performed anywhere.
func (r *PostgresRepository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, username, crn, checked_at, location, term)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, rec.ID, rec.Username, rec.CRN, rec.Time, rec.Location, rec.Term)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		if store.IsUniqueViolation(err) {
			return Record{}, faults.ErrDuplicateRecord
		}
		return Record{}, err
	}
	return rec, nil
}

// ListByUser returns a user's records for a term, optionally filtered to
// one course.
func (r *PostgresRepository) ListByUser(ctx context.Context, username, termLabel string, crn int, filterCRN bool) ([]Record, error) {
	query := `
		SELECT id, username, crn, checked_at, location, term, created_at
		FROM attendance_records
		WHERE username = $1 AND term = $2`
	args := []any{username, termLabel}
	if filterCRN {
		query += ` AND crn = $3`
		args = append(args, crn)
	}
	return r.list(ctx, query, args...)
}

// ListByCourse returns every record for a course/term.
func (r *PostgresRepository) ListByCourse(ctx context.Context, crn int, termLabel string) ([]Record, error) {
	return r.list(ctx, `
		SELECT id, username, crn, checked_at, location, term, created_at
		FROM attendance_records
		WHERE crn = $1 AND term = $2`, crn, termLabel)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Username, &rec.CRN, &rec.Time, &rec.Location, &rec.Term, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
