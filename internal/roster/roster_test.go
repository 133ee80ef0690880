package roster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rollcall/internal/faults"
)

// memRepo emulates the users table, including the (username, term)
// unique index rejection.
type memRepo struct {
	mu    sync.Mutex
	users map[string]User // key username|term
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]User)}
}

func (r *memRepo) Insert(_ context.Context, u User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := u.Username + "|" + u.Term
	if _, exists := r.users[key]; exists {
		return faults.ErrDuplicateUser
	}
	r.users[key] = u
	return nil
}

func (r *memRepo) FindByUsername(_ context.Context, username, termLabel string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username+"|"+termLabel]
	if !ok {
		return User{}, faults.ErrNotFound
	}
	return u, nil
}

func (r *memRepo) ListByCourse(_ context.Context, crn int, termLabel string) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []User
	for _, u := range r.users {
		if u.Term == termLabel && !u.Instructor && u.Enrolled(crn) {
			out = append(out, u)
		}
	}
	return out, nil
}

func fixedNow() time.Time {
	return time.Date(2017, time.October, 15, 10, 0, 0, 0, time.Local)
}

func TestCanAct(t *testing.T) {
	student := User{Username: "gburdell3", CRNs: []int{85317, 90001}}
	prof := User{Username: "dr-pearl", CRNs: []int{85317}, Instructor: true}

	tests := []struct {
		name       string
		u          User
		crn        int
		instructor bool
		want       bool
	}{
		{name: "enrolled student", u: student, crn: 85317, want: true},
		{name: "not enrolled", u: student, crn: 11111, want: false},
		{name: "student needs instructor", u: student, crn: 85317, instructor: true, want: false},
		{name: "instructor", u: prof, crn: 85317, instructor: true, want: true},
		{name: "instructor wrong course", u: prof, crn: 90001, instructor: true, want: false},
		{name: "instructor as member", u: prof, crn: 85317, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.u.CanAct(tt.crn, tt.instructor); got != tt.want {
				t.Errorf("CanAct(%d, %v) = %v, want %v", tt.crn, tt.instructor, got, tt.want)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	svc := NewService(newMemRepo(), fixedNow)
	ctx := context.Background()

	u, err := svc.Register(ctx, "gburdell3", []string{"85317", "junk", "90001", ""}, false)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Term != "Fall 2017" {
		t.Errorf("term = %q", u.Term)
	}
	// Invalid CRN entries are skipped, not fatal.
	if len(u.CRNs) != 2 || u.CRNs[0] != 85317 || u.CRNs[1] != 90001 {
		t.Errorf("crns = %v", u.CRNs)
	}

	if _, err := svc.Register(ctx, "gburdell3", []string{"85317"}, false); !errors.Is(err, faults.ErrDuplicateUser) {
		t.Errorf("second register err = %v, want ErrDuplicateUser", err)
	}
	if _, err := svc.Register(ctx, "bad user!", []string{"85317"}, false); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("bad username err = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.Register(ctx, "tstamp1", []string{"junk", ""}, false); !errors.Is(err, faults.ErrInvalidInput) {
		t.Errorf("no valid crns err = %v, want ErrInvalidInput", err)
	}
}

func TestAuthorizeIsUniform(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, fixedNow)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "gburdell3", []string{"85317"}, false); err != nil {
		t.Fatal(err)
	}

	// Unknown user, unenrolled user, and non-instructor all collapse to
	// the same sentinel; nothing leaks which precondition failed.
	cases := []struct {
		name       string
		username   string
		crn        int
		instructor bool
	}{
		{name: "unknown user", username: "nobody", crn: 85317},
		{name: "not enrolled", username: "gburdell3", crn: 11111},
		{name: "not an instructor", username: "gburdell3", crn: 85317, instructor: true},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Authorize(ctx, tt.username, tt.crn, tt.instructor)
			if !errors.Is(err, faults.ErrInvalidPermissions) {
				t.Errorf("err = %v, want ErrInvalidPermissions", err)
			}
			if err.Error() != faults.ErrInvalidPermissions.Error() {
				t.Errorf("message %q differs from the uniform sentinel", err.Error())
			}
		})
	}

	if _, err := svc.Authorize(ctx, "gburdell3", 85317, false); err != nil {
		t.Errorf("enrolled student rejected: %v", err)
	}
}

func TestStudents(t *testing.T) {
	svc := NewService(newMemRepo(), fixedNow)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "gburdell3", []string{"85317"}, false); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Register(ctx, "dr-pearl", []string{"85317"}, true); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Students(ctx, "gburdell3", 85317); !errors.Is(err, faults.ErrInvalidPermissions) {
		t.Errorf("student roster read err = %v, want ErrInvalidPermissions", err)
	}

	students, err := svc.Students(ctx, "dr-pearl", 85317)
	if err != nil {
		t.Fatalf("Students: %v", err)
	}
	if len(students) != 1 || students[0].Username != "gburdell3" {
		t.Errorf("roster = %+v (instructors must not appear)", students)
	}
}
