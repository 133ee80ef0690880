package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"rollcall/internal/faults"
	"rollcall/internal/roster"
	"rollcall/internal/term"
)

// memRepo emulates the attendance table with its
// (username, crn, time, term) unique index.
type memRepo struct {
	mu      sync.Mutex
	rows    []Record
	keys    map[string]bool
	failing bool
}

func newMemRepo() *memRepo {
	return &memRepo{keys: make(map[string]bool)}
}

func recordKey(rec Record) string {
	return fmt.Sprintf("%s|%d|%d|%s", rec.Username, rec.CRN, rec.Time.UnixNano(), rec.Term)
}

func (r *memRepo) Insert(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return Record{}, errors.New("store down")
	}
	key := recordKey(rec)
	if r.keys[key] {
		return Record{}, faults.ErrDuplicateRecord
	}
	r.keys[key] = true
	r.rows = append(r.rows, rec)
	return rec, nil
}

func (r *memRepo) ListByUser(_ context.Context, username, termLabel string, crn int, filterCRN bool) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.rows {
		if rec.Username != username || rec.Term != termLabel {
			continue
		}
		if filterCRN && rec.CRN != crn {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memRepo) ListByCourse(_ context.Context, crn int, termLabel string) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.rows {
		if rec.CRN == crn && rec.Term == termLabel {
			out = append(out, rec)
		}
	}
	return out, nil
}

// staticGuard authorizes from a fixed user set with the roster's uniform
// failure behavior.
type staticGuard struct {
	users map[string]roster.User
}

func (g staticGuard) Authorize(_ context.Context, username string, crn int, requireInstructor bool) (roster.User, error) {
	u, ok := g.users[username]
	if !ok || !u.CanAct(crn, requireInstructor) {
		return roster.User{}, faults.ErrInvalidPermissions
	}
	return u, nil
}

func testGuard() staticGuard {
	return staticGuard{users: map[string]roster.User{
		"gburdell3": {Username: "gburdell3", CRNs: []int{85317, 90001}},
		"sleeper":   {Username: "sleeper", CRNs: []int{85317}},
		"dr-pearl":  {Username: "dr-pearl", CRNs: []int{85317}, Instructor: true},
	}}
}

func fixedNow() time.Time {
	return time.Date(2017, time.October, 15, 10, 0, 0, 0, time.Local)
}

func TestCheckInDuplicateYieldsOneRow(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, testGuard(), fixedNow)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "gburdell3", 85317, "Klaus 1456"); err != nil {
		t.Fatalf("first check-in: %v", err)
	}
	// Same user, course, instant, term: the unique index leaves exactly
	// one winner.
	if _, err := svc.CheckIn(ctx, "gburdell3", 85317, "Klaus 1456"); !errors.Is(err, faults.ErrDuplicateRecord) {
		t.Fatalf("second check-in err = %v, want ErrDuplicateRecord", err)
	}
	if len(repo.rows) != 1 {
		t.Errorf("stored %d rows, want 1", len(repo.rows))
	}
}

func TestCheckInGates(t *testing.T) {
	svc := NewService(newMemRepo(), testGuard(), fixedNow)
	ctx := context.Background()

	if _, err := svc.CheckIn(ctx, "gburdell3", 11111, "Klaus 1456"); !errors.Is(err, faults.ErrInvalidPermissions) {
		t.Errorf("unenrolled err = %v, want ErrInvalidPermissions", err)
	}
	if _, err := svc.CheckIn(ctx, "nobody", 85317, "Klaus 1456"); !errors.Is(err, faults.ErrInvalidPermissions) {
		t.Errorf("unknown user err = %v, want ErrInvalidPermissions", err)
	}
	if _, err := svc.CheckIn(ctx, "gburdell3", 85317, ""); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("empty location err = %v, want ErrInvalidInput", err)
	}
}

func TestBackdateCheckIn(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, testGuard(), fixedNow)
	ctx := context.Background()
	at := time.Date(2017, time.October, 3, 0, 0, 0, 0, time.Local)

	if _, err := svc.BackdateCheckIn(ctx, "gburdell3", "sleeper", 85317, at); !errors.Is(err, faults.ErrInvalidPermissions) {
		t.Errorf("student backdate err = %v, want ErrInvalidPermissions", err)
	}
	if _, err := svc.BackdateCheckIn(ctx, "dr-pearl", "sleeper", 85317, time.Time{}); !errors.Is(err, faults.ErrInvalidDate) {
		t.Errorf("zero date err = %v, want ErrInvalidDate", err)
	}

	rec, err := svc.BackdateCheckIn(ctx, "dr-pearl", "sleeper", 85317, at)
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}
	if !rec.Time.Equal(at) || rec.Username != "sleeper" {
		t.Errorf("record = %+v", rec)
	}
	// Term comes from the clock, not from the backdated instant.
	if rec.Term != "Fall 2017" {
		t.Errorf("term = %q", rec.Term)
	}
}

func TestHistoryFiltersByCourse(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, testGuard(), fixedNow)
	ctx := context.Background()

	seed := []struct {
		crn int
		at  time.Time
	}{
		{crn: 85317, at: time.Date(2017, time.October, 2, 9, 0, 0, 0, time.Local)},
		{crn: 85317, at: time.Date(2017, time.October, 4, 9, 0, 0, 0, time.Local)},
		{crn: 90001, at: time.Date(2017, time.October, 4, 11, 0, 0, 0, time.Local)},
	}
	for _, s := range seed {
		if _, err := repo.Insert(ctx, Record{Username: "gburdell3", CRN: s.crn, Time: s.at, Term: "Fall 2017"}); err != nil {
			t.Fatal(err)
		}
	}
	// A record from another term stays invisible.
	if _, err := repo.Insert(ctx, Record{Username: "gburdell3", CRN: 85317, Time: fixedNow(), Term: "Spring 2017"}); err != nil {
		t.Fatal(err)
	}

	all, err := svc.History(ctx, "gburdell3", 0, false)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered history has %d records, want 3", len(all))
	}

	one, err := svc.History(ctx, "gburdell3", 85317, true)
	if err != nil {
		t.Fatalf("History filtered: %v", err)
	}
	if len(one) != 2 {
		t.Errorf("filtered history has %d records, want 2", len(one))
	}
}

func TestSummarizeBucketsByCalendarDay(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, testGuard(), fixedNow)
	ctx := context.Background()

	morning := time.Date(2017, time.October, 3, 8, 0, 0, 0, time.Local)
	evening := time.Date(2017, time.October, 3, 19, 0, 0, 0, time.Local)
	for _, at := range []time.Time{morning, evening} {
		if _, err := repo.Insert(ctx, Record{Username: "gburdell3", CRN: 85317, Time: at, Term: "Fall 2017"}); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := svc.Summarize(ctx, "dr-pearl", 85317)
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	// Row-level uniqueness is exact-timestamp; day buckets are coarser.
	// Both rows persist and both land in the same bucket.
	if len(repo.rows) != 2 {
		t.Errorf("rows = %d, want 2", len(repo.rows))
	}
	if got := sum.PerDate[term.DayKey(morning)]; got != 2 {
		t.Errorf("perDate[%s] = %d, want 2", term.DayKey(morning), got)
	}
	if got := sum.PerStudent["gburdell3"]; got != 2 {
		t.Errorf("perStudent = %d, want 2", got)
	}

	if _, err := svc.Summarize(ctx, "gburdell3", 85317); !errors.Is(err, faults.ErrInvalidPermissions) {
		t.Errorf("student summary err = %v, want ErrInvalidPermissions", err)
	}
}
