// Package faults defines the failure taxonomy shared by every core
// component. Callers branch on these sentinels with errors.Is; nothing
// in the core returns a bare fmt.Errorf for a business outcome.
package faults

import "errors"

var (
	// ErrInvalidInput is returned when a raw value fails validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidPermissions covers every authorization failure. It is
	// deliberately undifferentiated: a caller cannot tell "not enrolled"
	// from "not an instructor" or "no such user".
	ErrInvalidPermissions = errors.New("invalid permissions")

	// ErrNotFound is returned when a lookup target is absent.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateUser is returned when a (username, term) pair already exists.
	ErrDuplicateUser = errors.New("user already registered for term")

	// ErrDuplicateRecord is returned when an attendance record with the
	// same (username, crn, time, term) already exists.
	ErrDuplicateRecord = errors.New("duplicate attendance record")

	// ErrDuplicateRequest is returned when an open correction request with
	// the same (username, crn, mistakeDate, term) already exists.
	ErrDuplicateRequest = errors.New("duplicate correction request")

	// ErrInvalidDate is returned when a calendar-day range cannot be
	// computed from the supplied date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrUpstreamUnavailable is returned when the catalog source does not answer.
	ErrUpstreamUnavailable = errors.New("catalog source unavailable")

	// ErrUpstreamNotJSON is returned when the catalog source answers with
	// a body that is not JSON at all.
	ErrUpstreamNotJSON = errors.New("catalog response not json")

	// ErrUpstreamUnparsable is returned when the catalog source answers
	// with JSON that does not describe course sections.
	ErrUpstreamUnparsable = errors.New("catalog response unparsable")

	// ErrAcceptedButNotCleared reports the partial success in accepting a
	// correction request: the backdated record was written but the request
	// row could not be removed. Both rows remain until manual cleanup.
	ErrAcceptedButNotCleared = errors.New("request accepted but not cleared")
)

// Terminal reports whether err is a business failure from this taxonomy,
// as opposed to an infrastructure error worth logging at a higher level.
func Terminal(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidInput,
		ErrInvalidPermissions,
		ErrNotFound,
		ErrDuplicateUser,
		ErrDuplicateRecord,
		ErrDuplicateRequest,
		ErrInvalidDate,
		ErrUpstreamUnavailable,
		ErrUpstreamNotJSON,
		ErrUpstreamUnparsable,
		ErrAcceptedButNotCleared,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
