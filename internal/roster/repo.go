package roster

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"rollcall/internal/faults"
	"rollcall/internal/store"
)

// PostgresRepository persists users and their enrollments in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes the user and its enrollment rows in one transaction. The
// (username, term) unique index rejects re-registration within a term.
func (r *PostgresRepository) Insert(ctx context.Context, u User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, term, instructor)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Username, u.Term, u.Instructor)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return faults.ErrDuplicateUser
		}
		return err
	}
	for _, crn := range u.CRNs {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO enrollments (username, term, crn)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, u.Username, u.Term, crn)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// FindByUsername returns the user registered for the given term.
func (r *PostgresRepository) FindByUsername(ctx context.Context, username, termLabel string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, term, instructor, created_at
		FROM users WHERE username = $1 AND term = $2
	`, username, termLabel)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Term, &u.Instructor, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, faults.ErrNotFound
		}
		return User{}, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT crn FROM enrollments WHERE username = $1 AND term = $2 ORDER BY crn
	`, username, termLabel)
	if err != nil {
		return User{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var crn int
		if err := rows.Scan(&crn); err != nil {
			return User{}, err
		}
		u.CRNs = append(u.CRNs, crn)
	}
	return u, rows.Err()
}

// ListByCourse returns the students enrolled in a course for the term.
func (r *PostgresRepository) ListByCourse(ctx context.Context, crn int, termLabel string) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.term, u.instructor, u.created_at
		FROM users u
		JOIN enrollments e ON e.username = u.username AND e.term = u.term
		WHERE e.crn = $1 AND u.term = $2 AND NOT u.instructor
		ORDER BY u.username
	`, crn, termLabel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Term, &u.Instructor, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
