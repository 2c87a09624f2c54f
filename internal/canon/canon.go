// Package canon holds the fixed canonical vocabularies for demographic
// fields and the pre-check that decides whether a raw value can skip the
// LLM entirely.
package canon

import (
	"fmt"
	"strconv"
	"strings"
)

// Field identifies one of the demographic fields the cleansers operate on.
type Field string

const (
	FieldSex  Field = "sex"
	FieldRace Field = "race"
	FieldAge  Field = "age"
)

// Fallback labels for categorical fields when the classifier returns
// something outside the candidate set.
const (
	Unknown = "Unknown"
	Other   = "Other"
)

// AgeMin and AgeMax bound the accepted age range, inclusive.
const (
	AgeMin = 0
	AgeMax = 120
)

// SexLabels is the accepted output vocabulary for the sex field.
var SexLabels = []string{"Male", "Female", Other, Unknown}

// RaceLabels is the accepted output vocabulary for the race field,
// OMB-aligned plus Unknown.
var RaceLabels = []string{
	"White",
	"Black or African American",
	"American Indian or Alaska Native",
	"Asian",
	"Native Hawaiian or Other Pacific Islander",
	"Hispanic or Latino",
	"Two or More Races",
	Other,
	Unknown,
}

// Registry answers "is this value already canonical?" for every field.
// Label sets are fixed at construction and safe for concurrent reads.
type Registry struct {
	labels map[Field][]string          // ordered, canonical casing
	index  map[Field]map[string]string // lowercased -> canonical casing
}

// New builds a Registry from the fixed label sets. It returns an error if
// any set is empty, contains duplicates, or is missing its fallback label;
// callers treat that as fatal at startup.
func New() (*Registry, error) {
	r := &Registry{
		labels: map[Field][]string{},
		index:  map[Field]map[string]string{},
	}
	for field, labels := range map[Field][]string{
		FieldSex:  SexLabels,
		FieldRace: RaceLabels,
	} {
		if err := r.add(field, labels); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) add(field Field, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("canon: empty label set for field %q", field)
	}
	idx := make(map[string]string, len(labels))
	hasUnknown := false
	for _, l := range labels {
		if l == "" {
			return fmt.Errorf("canon: empty label in field %q", field)
		}
		key := strings.ToLower(l)
		if _, dup := idx[key]; dup {
			return fmt.Errorf("canon: duplicate label %q in field %q", l, field)
		}
		idx[key] = l
		if l == Unknown {
			hasUnknown = true
		}
	}
	if !hasUnknown {
		return fmt.Errorf("canon: field %q label set is missing %q", field, Unknown)
	}
	r.labels[field] = labels
	r.index[field] = idx
	return nil
}

// Labels returns the ordered canonical label set for a categorical field.
// The returned slice must not be mutated.
func (r *Registry) Labels(field Field) []string {
	return r.labels[field]
}

// Canonicalize reports whether value is already a member of the field's
// canonical set (case-insensitive) and returns it in canonical casing.
// Never invokes the classifier.
func (r *Registry) Canonicalize(field Field, value string) (string, bool) {
	idx, ok := r.index[field]
	if !ok {
		return "", false
	}
	canonical, ok := idx[strings.ToLower(strings.TrimSpace(value))]
	return canonical, ok
}

// ParseAge reports whether value parses as an integer inside [AgeMin, AgeMax].
func ParseAge(value string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	if n < AgeMin || n > AgeMax {
		return 0, false
	}
	return n, true
}

// ValidAge reports whether n is inside the accepted age range.
func ValidAge(n int) bool {
	return n >= AgeMin && n <= AgeMax
}
