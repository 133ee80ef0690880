package catalog

import (
	"reflect"
	"testing"
)

func TestParseTitle(t *testing.T) {
	tests := []struct {
		raw  string
		want Title
		ok   bool
	}{
		{raw: "CS 1332", want: Title{School: "CS", CourseNumber: "1332"}, ok: true},
		{raw: "cs 1332", want: Title{School: "CS", CourseNumber: "1332"}, ok: true},
		{raw: "  MATH 2551 ", want: Title{School: "MATH", CourseNumber: "2551"}, ok: true},
		{raw: "CS 4400A", want: Title{School: "CS", CourseNumber: "4400A"}, ok: true},
		{raw: "INVALID#"},
		{raw: "CS"},
		{raw: "CS 13 32"},
		{raw: "C3 1332"},
		{raw: "CS X332"},
		{raw: ""},
	}
	for _, tt := range tests {
		got, ok := ParseTitle(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParseTitle(%q) = (%+v, %v), want (%+v, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAggregate(t *testing.T) {
	results := []BatchResult{
		{
			Title: Title{School: "CS", CourseNumber: "1332"},
			Sections: []Section{
				{CourseName: "Data Structures", Section: "A", CRN: 85317, Valid: true},
				{CourseName: "Data Structures", Section: "B", CRN: 85318, Valid: true},
			},
		},
		{
			Title: Title{School: "CS", CourseNumber: "4400"},
			Err:   errUpstream,
		},
		{
			// Repeat lookup of the same course merges into one entry.
			Title: Title{School: "CS", CourseNumber: "1332"},
			Sections: []Section{
				{CourseName: "Data Structures", Section: "C", CRN: 85319, Valid: false},
			},
		},
		{
			Title: Title{School: "MATH", CourseNumber: "2551"},
			Sections: []Section{
				{CourseName: "Multivariable Calculus", Section: "A", CRN: 90001, Valid: true},
			},
		},
	}

	got := Aggregate(results)
	want := []Course{
		{
			CourseName: "Data Structures",
			Sections: []SectionRef{
				{Section: "A", CRN: 85317, Valid: true},
				{Section: "B", CRN: 85318, Valid: true},
				{Section: "C", CRN: 85319, Valid: false},
			},
		},
		{
			CourseName: "Multivariable Calculus",
			Sections:   []SectionRef{{Section: "A", CRN: 90001, Valid: true}},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Aggregate = %+v, want %+v", got, want)
	}
}

func TestAggregateEmpty(t *testing.T) {
	if got := Aggregate(nil); len(got) != 0 {
		t.Errorf("Aggregate(nil) = %+v", got)
	}
}
