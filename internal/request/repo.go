package request

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/faults"
	"rollcall/internal/store"
)

// PostgresRepository persists correction requests in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes a new request. The unique index on
// (username, crn, mistake_date, term) rejects duplicates.
func (r *PostgresRepository) Insert(ctx context.Context, req Request) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO correction_requests (id, username, crn, mistake_date, term)
		VALUES ($1,$2,$3,$4,$5)
	`, req.ID, req.Username, req.CRN, req.MistakeDate, req.Term)
	if err != nil && store.IsUniqueViolation(err) {
		return faults.ErrDuplicateRequest
	}
	return err
}

// Find returns the request matching the full key, or NotFound.
func (r *PostgresRepository) Find(ctx context.Context, username string, crn int, mistakeDate time.Time, termLabel string) (Request, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, crn, mistake_date, term, created_at
		FROM correction_requests
		WHERE username = $1 AND crn = $2 AND mistake_date = $3 AND term = $4
	`, username, crn, mistakeDate, termLabel)
	var req Request
	if err := row.Scan(&req.ID, &req.Username, &req.CRN, &req.MistakeDate, &req.Term, &req.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Request{}, faults.ErrNotFound
		}
		return Request{}, err
	}
	return req, nil
}

// ListByUser returns one student's requests for a course/term.
func (r *PostgresRepository) ListByUser(ctx context.Context, username string, crn int, termLabel string) ([]Request, error) {
	return r.list(ctx, `
		SELECT id, username, crn, mistake_date, term, created_at
		FROM correction_requests
		WHERE username = $1 AND crn = $2 AND term = $3
		ORDER BY mistake_date`, username, crn, termLabel)
}

// ListByCourse returns every request for a course/term.
func (r *PostgresRepository) ListByCourse(ctx context.Context, crn int, termLabel string) ([]Request, error) {
	return r.list(ctx, `
		SELECT id, username, crn, mistake_date, term, created_at
		FROM correction_requests
		WHERE crn = $1 AND term = $2
		ORDER BY username, mistake_date`, crn, termLabel)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var requests []Request
	for rows.Next() {
		var req Request
		if err := rows.Scan(&req.ID, &req.Username, &req.CRN, &req.MistakeDate, &req.Term, &req.CreatedAt); err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Delete removes the request matching the full key; NotFound when no row
// matched.
func (r *PostgresRepository) Delete(ctx context.Context, username string, crn int, mistakeDate time.Time, termLabel string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM correction_requests
		WHERE username = $1 AND crn = $2 AND mistake_date = $3 AND term = $4
	`, username, crn, mistakeDate, termLabel)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return faults.ErrNotFound
	}
	return nil
}
