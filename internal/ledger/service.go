// Package ledger is the append-only store of attendance check-ins and
// the summarization queries over it.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rollcall/internal/faults"
	"rollcall/internal/roster"
	"rollcall/internal/term"
	"rollcall/internal/validate"
)

var checkIns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ledger_checkins_total",
	Help: "Check-in attempts by outcome.",
}, []string{"outcome"})

// Record is one attendance event. Rows are unique on
// (username, crn, time, term); nothing updates or deletes them.
type Record struct {
	ID        string    `json:"-"`
	Username  string    `json:"username"`
	CRN       int       `json:"crn"`
	Time      time.Time `json:"time"`
	Location  string    `json:"-"`
	Term      string    `json:"term"`
	CreatedAt time.Time `json:"-"`
}

// Repository persists attendance records. Insert must surface
// faults.ErrDuplicateRecord on a uniqueness collision.
type Repository interface {
	Insert(ctx context.Context, rec Record) (Record, error)
	ListByUser(ctx context.Context, username, termLabel string, crn int, filterCRN bool) ([]Record, error)
	ListByCourse(ctx context.Context, crn int, termLabel string) ([]Record, error)
}

// Authorizer gates course-scoped operations; the roster service
// implements it.
type Authorizer interface {
	Authorize(ctx context.Context, username string, crn int, requireInstructor bool) (roster.User, error)
}

// Summary tallies a course's attendance per student and per calendar day.
type Summary struct {
	PerStudent map[string]int `json:"studentData"`
	PerDate    map[string]int `json:"attendanceData"`
}

// Service coordinates check-ins against the guard and the store.
type Service struct {
	repo  Repository
	guard Authorizer
	now   func() time.Time
}

// NewService creates a ledger service. A nil clock defaults to time.Now.
func NewService(repo Repository, guard Authorizer, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, guard: guard, now: now}
}

// CheckIn records an attendance event for the acting student at the
// current instant. The location token is required; it is what ties the
// check-in to a classroom.
func (s *Service) CheckIn(ctx context.Context, username string, crn int, location string) (Record, error) {
	loc, ok := validate.FreeText(location)
	if !ok {
		return Record{}, faults.ErrInvalidInput
	}
	if _, err := s.guard.Authorize(ctx, username, crn, false); err != nil {
		return Record{}, err
	}
	return s.insert(ctx, username, crn, loc, s.now())
}

// BackdateCheckIn records an attendance event at an arbitrary instant on
// behalf of a student. Only an instructor for the course may do this; it
// backs both manual corrections and request acceptance.
func (s *Service) BackdateCheckIn(ctx context.Context, instructor, username string, crn int, at time.Time) (Record, error) {
	if at.IsZero() {
		return Record{}, faults.ErrInvalidDate
	}
	name, ok := validate.Identifier(username)
	if !ok {
		return Record{}, faults.ErrInvalidInput
	}
	if _, err := s.guard.Authorize(ctx, instructor, crn, true); err != nil {
		return Record{}, err
	}
	return s.insert(ctx, name, crn, "", at)
}

func (s *Service) insert(ctx context.Context, username string, crn int, location string, at time.Time) (Record, error) {
	rec, err := s.repo.Insert(ctx, Record{
		Username: username,
		CRN:      crn,
		Time:     at,
		Location: location,
		Term:     term.Current(s.now()),
	})
	switch {
	case err == nil:
		checkIns.WithLabelValues("ok").Inc()
	case errors.Is(err, faults.ErrDuplicateRecord):
		checkIns.WithLabelValues("duplicate").Inc()
	default:
		checkIns.WithLabelValues("error").Inc()
	}
	return rec, err
}

// History returns the user's records for the current term, optionally
// filtered to one course. Order is unspecified; this is a reporting read.
func (s *Service) History(ctx context.Context, username string, crn int, filterCRN bool) ([]Record, error) {
	name, ok := validate.Identifier(username)
	if !ok {
		return nil, faults.ErrInvalidInput
	}
	return s.repo.ListByUser(ctx, name, term.Current(s.now()), crn, filterCRN)
}

// Summarize scans a course's records for the current term and tallies
// attendance per student and per calendar day. Day buckets use local
// date truncation, so two same-day check-ins count twice in one bucket
// while their ledger rows stay distinct. Instructor only.
func (s *Service) Summarize(ctx context.Context, actingUsername string, crn int) (Summary, error) {
	if _, err := s.guard.Authorize(ctx, actingUsername, crn, true); err != nil {
		return Summary{}, err
	}
	records, err := s.repo.ListByCourse(ctx, crn, term.Current(s.now()))
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{
		PerStudent: make(map[string]int),
		PerDate:    make(map[string]int),
	}
	for _, rec := range records {
		sum.PerStudent[rec.Username]++
		sum.PerDate[term.DayKey(rec.Time.Local())]++
	}
	return sum, nil
}
