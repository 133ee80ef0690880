// Package request implements the correction-request workflow: a
// student's claim of a missed check-in, pending instructor adjudication.
// A request has exactly two outcomes, removal or acceptance; acceptance
// additionally writes the backdated attendance record first.
package request

import (
	"context"
	"time"

	"rollcall/internal/faults"
	"rollcall/internal/ledger"
	"rollcall/internal/roster"
	"rollcall/internal/term"
	"rollcall/internal/validate"
)

// Request is one pending correction claim. Rows are unique on
// (username, crn, mistakeDate, term); mistakeDate is stored as the start
// of the claimed calendar day.
type Request struct {
	ID          string    `json:"-"`
	Username    string    `json:"username"`
	CRN         int       `json:"crn"`
	MistakeDate time.Time `json:"mistakeDate"`
	Term        string    `json:"term"`
	CreatedAt   time.Time `json:"-"`
}

// Repository persists correction requests. Insert must surface
// faults.ErrDuplicateRequest on a uniqueness collision and Delete must
// surface faults.ErrNotFound when nothing matched.
type Repository interface {
	Insert(ctx context.Context, req Request) error
	Find(ctx context.Context, username string, crn int, mistakeDate time.Time, termLabel string) (Request, error)
	ListByUser(ctx context.Context, username string, crn int, termLabel string) ([]Request, error)
	ListByCourse(ctx context.Context, crn int, termLabel string) ([]Request, error)
	Delete(ctx context.Context, username string, crn int, mistakeDate time.Time, termLabel string) error
}

// Authorizer gates the workflow; the roster service implements it.
type Authorizer interface {
	Authorize(ctx context.Context, username string, crn int, requireInstructor bool) (roster.User, error)
}

// Backdater writes the attendance record when a request is accepted; the
// ledger service implements it.
type Backdater interface {
	BackdateCheckIn(ctx context.Context, instructor, username string, crn int, at time.Time) (ledger.Record, error)
}

// Service runs the workflow.
type Service struct {
	repo   Repository
	guard  Authorizer
	backdater Backdater
	now    func() time.Time
}

// NewService creates a workflow service. A nil clock defaults to time.Now.
func NewService(repo Repository, guard Authorizer, backdater Backdater, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, guard: guard, backdater: backdater, now: now}
}

// Create files a correction request for the calendar day containing
// mistakeDate. The student must be enrolled in the course; a second
// request for the same day collides on the unique index.
func (s *Service) Create(ctx context.Context, username string, crn int, mistakeDate time.Time) error {
	name, ok := validate.Identifier(username)
	if !ok {
		return faults.ErrInvalidInput
	}
	if _, err := s.guard.Authorize(ctx, name, crn, false); err != nil {
		return err
	}
	start, _, ok := term.DayRange(mistakeDate)
	if !ok {
		return faults.ErrInvalidDate
	}
	return s.repo.Insert(ctx, Request{
		Username:    name,
		CRN:         crn,
		MistakeDate: start,
		Term:        term.Current(s.now()),
	})
}

// View lists requests for a course in the current term: all of them for
// an instructor, only the actor's own otherwise.
func (s *Service) View(ctx context.Context, actingUsername string, crn int) ([]Request, error) {
	actor, err := s.guard.Authorize(ctx, actingUsername, crn, false)
	if err != nil {
		return nil, err
	}
	if actor.Instructor {
		return s.repo.ListByCourse(ctx, crn, term.Current(s.now()))
	}
	return s.repo.ListByUser(ctx, actor.Username, crn, term.Current(s.now()))
}

// Remove withdraws or rejects the request for the given day. The actor
// must be enrolled in the course; a missing request reports NotFound.
func (s *Service) Remove(ctx context.Context, actingUsername string, crn int, mistakeDate time.Time) error {
	name, ok := validate.Identifier(actingUsername)
	if !ok {
		return faults.ErrInvalidInput
	}
	if _, err := s.guard.Authorize(ctx, name, crn, false); err != nil {
		return err
	}
	start, _, ok := term.DayRange(mistakeDate)
	if !ok {
		return faults.ErrInvalidDate
	}
	return s.repo.Delete(ctx, name, crn, start, term.Current(s.now()))
}

// Accept adjudicates a request in the student's favor: the backdated
// check-in is written first, then the request row is removed. A failed
// check-in leaves the request intact. A failed removal after a
// successful check-in surfaces ErrAcceptedButNotCleared: the claim is
// now represented in both the ledger and the pending requests until
// someone cleans it up, and that window is reported, not hidden.
func (s *Service) Accept(ctx context.Context, actingInstructor, username string, crn int, mistakeDate time.Time) error {
	name, ok := validate.Identifier(username)
	if !ok {
		return faults.ErrInvalidInput
	}
	if _, err := s.guard.Authorize(ctx, actingInstructor, crn, true); err != nil {
		return err
	}
	start, _, ok := term.DayRange(mistakeDate)
	if !ok {
		return faults.ErrInvalidDate
	}
	termLabel := term.Current(s.now())
	if _, err := s.repo.Find(ctx, name, crn, start, termLabel); err != nil {
		return err
	}
	if _, err := s.backdater.BackdateCheckIn(ctx, actingInstructor, name, crn, start); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, name, crn, start, termLabel); err != nil {
		return faults.ErrAcceptedButNotCleared
	}
	return nil
}
