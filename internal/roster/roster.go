// Package roster owns user identity and enrollment. A user's CRN set is
// the sole source of enrollment truth; every course-scoped operation in
// the system authorizes against it through this package.
package roster

import (
	"context"
	"errors"
	"time"

	"rollcall/internal/faults"
	"rollcall/internal/term"
	"rollcall/internal/validate"
)

// User is the identity record created at registration. It is immutable
// after creation; there is no update path in this core.
type User struct {
	ID         string
	Username   string
	Term       string
	CRNs       []int
	Instructor bool
	CreatedAt  time.Time
}

// Enrolled reports whether the user carries the given CRN.
func (u User) Enrolled(crn int) bool {
	for _, c := range u.CRNs {
		if c == crn {
			return true
		}
	}
	return false
}

// CanAct is the authorization predicate gating every course-scoped
// operation: the user must be enrolled in crn, and when requireInstructor
// is set, must also hold the instructor flag.
func (u User) CanAct(crn int, requireInstructor bool) bool {
	if !u.Enrolled(crn) {
		return false
	}
	if requireInstructor && !u.Instructor {
		return false
	}
	return true
}

// Repository persists users.
type Repository interface {
	Insert(ctx context.Context, u User) error
	FindByUsername(ctx context.Context, username, termLabel string) (User, error)
	ListByCourse(ctx context.Context, crn int, termLabel string) ([]User, error)
}

// Service wraps the repository with term stamping and authorization.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a roster service. A nil clock defaults to time.Now.
func NewService(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}
}

// Register creates a user for the current term. Raw CRNs are validated
// individually and invalid entries are skipped rather than failing the
// whole registration; an empty surviving set is rejected.
func (s *Service) Register(ctx context.Context, username string, rawCRNs []string, instructor bool) (User, error) {
	name, ok := validate.Identifier(username)
	if !ok {
		return User{}, faults.ErrInvalidInput
	}
	var crns []int
	for _, raw := range rawCRNs {
		if crn, ok := validate.Integer(raw); ok {
			crns = append(crns, crn)
		}
	}
	if len(crns) == 0 {
		return User{}, faults.ErrInvalidInput
	}
	u := User{
		Username:   name,
		Term:       term.Current(s.now()),
		CRNs:       crns,
		Instructor: instructor,
	}
	if err := s.repo.Insert(ctx, u); err != nil {
		return User{}, err
	}
	return u, nil
}

// Find returns the user registered for the current term.
func (s *Service) Find(ctx context.Context, username string) (User, error) {
	name, ok := validate.Identifier(username)
	if !ok {
		return User{}, faults.ErrInvalidInput
	}
	return s.repo.FindByUsername(ctx, name, term.Current(s.now()))
}

// Authorize resolves the acting user and evaluates CanAct. Every failure
// collapses to ErrInvalidPermissions so callers cannot probe whether a
// username or course exists.
func (s *Service) Authorize(ctx context.Context, username string, crn int, requireInstructor bool) (User, error) {
	u, err := s.Find(ctx, username)
	if err != nil {
		return User{}, faults.ErrInvalidPermissions
	}
	if !u.CanAct(crn, requireInstructor) {
		return User{}, faults.ErrInvalidPermissions
	}
	return u, nil
}

// Students returns the course roster for the current term. Instructor only.
func (s *Service) Students(ctx context.Context, actingUsername string, crn int) ([]User, error) {
	if _, err := s.Authorize(ctx, actingUsername, crn, true); err != nil {
		return nil, err
	}
	return s.repo.ListByCourse(ctx, crn, term.Current(s.now()))
}

// IsNotFound reports whether err means the user does not exist, which
// registration and lookup handlers treat differently from real failures.
func IsNotFound(err error) bool {
	return errors.Is(err, faults.ErrNotFound)
}
