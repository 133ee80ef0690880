// Package validate normalizes raw request values. Every function is pure
// and reports failure through an ok flag instead of an error; callers are
// expected to check the flag and surface faults.ErrInvalidInput themselves.
package validate

import (
	"strconv"
	"strings"
	"time"
)

const (
	maxIdentifierLen = 64
	maxFreeTextLen   = 256
)

// Identifier normalizes a username-like value. It trims surrounding
// whitespace and rejects empty, overlong, or injection-risk strings:
// only letters, digits and a small set of separators survive.
func Identifier(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > maxIdentifierLen {
		return "", false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == '@':
		default:
			return "", false
		}
	}
	return s, true
}

// Integer coerces a numeric string to an int. Signs and surrounding
// whitespace are tolerated, anything else fails.
func Integer(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Date coerces an ISO-like date string to a timestamp. Layouts without an
// explicit zone are interpreted in local time, matching how check-in days
// are bucketed.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FreeText normalizes a free-form value such as a location token. It
// trims, bounds length, and strips control characters but otherwise
// leaves the text alone.
func FreeText(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || len(s) > maxFreeTextLen {
		return "", false
	}
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return "", false
		}
	}
	return s, true
}
