// Package catalog resolves human-entered course titles into course
// sections, consulting a redis cache before the external catalog source.
package catalog

import (
	"sort"
	"strings"
)

// Section is one course section as the catalog source describes it.
type Section struct {
	School       string `json:"school"`
	CourseNumber string `json:"courseNumber"`
	CourseName   string `json:"courseName"`
	Section      string `json:"section"`
	CRN          int    `json:"crn"`
	Valid        bool   `json:"valid"`
}

// Title is a parsed course title such as "CS 1332".
type Title struct {
	School       string
	CourseNumber string
}

// ParseTitle splits a raw course title into school and course number.
// The school is letters only, the course number starts with a digit and
// stays alphanumeric (suffixed sections like "4400A" pass). Anything
// else fails the parse.
func ParseTitle(raw string) (Title, bool) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) != 2 {
		return Title{}, false
	}
	school := strings.ToUpper(fields[0])
	for _, r := range school {
		if r < 'A' || r > 'Z' {
			return Title{}, false
		}
	}
	number := strings.ToUpper(fields[1])
	if number[0] < '0' || number[0] > '9' {
		return Title{}, false
	}
	for _, r := range number {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		default:
			return Title{}, false
		}
	}
	return Title{School: school, CourseNumber: number}, true
}

// SectionRef is the per-section slice of an aggregated course.
type SectionRef struct {
	Section string `json:"section"`
	CRN     int    `json:"crn"`
	Valid   bool   `json:"valid"`
}

// Course groups the sections of one course under its name.
type Course struct {
	CourseName string       `json:"courseName"`
	Sections   []SectionRef `json:"sections"`
}

// Aggregate merges batch lookup outcomes into one entry per course name.
// Failed lookups contribute nothing; sections from repeated lookups of
// the same course collapse into a single entry. Output order is stable
// by course name.
func Aggregate(results []BatchResult) []Course {
	grouped := make(map[string][]SectionRef)
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		for _, sec := range res.Sections {
			grouped[sec.CourseName] = append(grouped[sec.CourseName], SectionRef{
				Section: sec.Section,
				CRN:     sec.CRN,
				Valid:   sec.Valid,
			})
		}
	}
	names := make([]string, 0, len(grouped))
	for name := range grouped {
		names = append(names, name)
	}
	sort.Strings(names)
	courses := make([]Course, 0, len(names))
	for _, name := range names {
		courses = append(courses, Course{CourseName: name, Sections: grouped[name]})
	}
	return courses
}
