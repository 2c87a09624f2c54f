package cleanse

import (
	"strconv"
	"time"

	"github.com/linnemanlabs/demoscrub/internal/canon"
)

// Source records how a field outcome was produced.
type Source string

const (
	// SourcePassthrough means the canonical pre-check matched and no
	// external call was made.
	SourcePassthrough Source = "passthrough"

	// SourceClassified means the value went through closed-set
	// classification.
	SourceClassified Source = "classified"

	// SourceExtracted means the value went through open-ended numeric
	// extraction.
	SourceExtracted Source = "extracted"
)

// Confidence tiers how much transformation and uncertainty a record's
// cleansing involved.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RunStatus tracks where a pipeline run is in its lifecycle.
type RunStatus string

const (
	RunPending  RunStatus = "pending"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// ReviewStatus is the lifecycle state of a review queue entry. The core
// only ever creates pending entries; the human workflow moves them on.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewApproved  ReviewStatus = "approved"
	ReviewCorrected ReviewStatus = "corrected"
)

// RawRecord is one input row from the raw data source. Empty fields mean
// the value was missing. Immutable.
type RawRecord struct {
	ID   string `json:"id"`
	Sex  string `json:"sex,omitempty"`
	Race string `json:"race,omitempty"`
	Age  string `json:"age,omitempty"`
}

// FieldOutcome is the result of cleansing one field. Value is nil exactly
// when Valid is false; for the age field it holds the integer in decimal.
type FieldOutcome struct {
	Value  *string `json:"value"`
	Source Source  `json:"source"`
	Valid  bool    `json:"valid"`
}

// Int parses the outcome value as an integer. ok is false for invalid
// outcomes and non-numeric values.
func (o FieldOutcome) Int() (int, bool) {
	if !o.Valid || o.Value == nil {
		return 0, false
	}
	n, err := strconv.Atoi(*o.Value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Is reports whether the outcome resolved to the given label.
func (o FieldOutcome) Is(label string) bool {
	return o.Value != nil && *o.Value == label
}

// CleansedRecord is the per-record output of the pipeline. Created once,
// never mutated; corrections happen on the separate ReviewEntry.
type CleansedRecord struct {
	ID          string       `json:"id"`
	Sex         FieldOutcome `json:"sex"`
	Race        FieldOutcome `json:"race"`
	Age         FieldOutcome `json:"age"`
	Confidence  Confidence   `json:"confidence"`
	NeedsReview bool         `json:"needs_review"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Outcome returns the outcome for the named field.
func (r *CleansedRecord) Outcome(field canon.Field) FieldOutcome {
	switch field {
	case canon.FieldSex:
		return r.Sex
	case canon.FieldRace:
		return r.Race
	default:
		return r.Age
	}
}

// ReviewEntry is a review queue item for a record flagged needs_review.
// Correction fields start empty and are filled by the external review
// workflow, never by this service.
type ReviewEntry struct {
	RecordID      string       `json:"record_id"`
	RawSex        string       `json:"raw_sex,omitempty"`
	RawRace       string       `json:"raw_race,omitempty"`
	RawAge        string       `json:"raw_age,omitempty"`
	CleansedSex   *string      `json:"cleansed_sex"`
	CleansedRace  *string      `json:"cleansed_race"`
	CleansedAge   *string      `json:"cleansed_age"`
	Confidence    Confidence   `json:"confidence"`
	Status        ReviewStatus `json:"status"`
	Reviewer      string       `json:"reviewer,omitempty"`
	CorrectedSex  *string      `json:"corrected_sex"`
	CorrectedRace *string      `json:"corrected_race"`
	CorrectedAge  *string      `json:"corrected_age"`
	Notes         string       `json:"notes,omitempty"`
	ReviewedAt    *time.Time   `json:"reviewed_at"`
	CreatedAt     time.Time    `json:"created_at"`
}

// Run is one pipeline execution over the raw record source.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Summary     *Summary   `json:"summary,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Duration    float64    `json:"duration_seconds,omitempty"`
}

// FieldStats counts pass-through vs AI-assisted outcomes for one field.
type FieldStats struct {
	Passthrough int `json:"passthrough"`
	AIAssisted  int `json:"ai_assisted"`
}

// Summary is the reporting surface for a completed run. It is always
// recomputed from the accumulated CleansedRecord set rather than tracked
// by separate counters that could drift.
type Summary struct {
	TotalRecords int        `json:"total_records"`
	Sex          FieldStats `json:"sex"`
	Race         FieldStats `json:"race"`
	Age          FieldStats `json:"age"`
	AutoAccepted int        `json:"auto_accepted"`
	NeedsReview  int        `json:"needs_review"`
	High         int        `json:"confidence_high"`
	Medium       int        `json:"confidence_medium"`
	Low          int        `json:"confidence_low"`
}

// Summarize computes run statistics from a set of cleansed records.
func Summarize(records []*CleansedRecord) *Summary {
	s := &Summary{TotalRecords: len(records)}
	tally := func(st *FieldStats, o FieldOutcome) {
		if o.Source == SourcePassthrough {
			st.Passthrough++
		} else {
			st.AIAssisted++
		}
	}
	for _, r := range records {
		tally(&s.Sex, r.Sex)
		tally(&s.Race, r.Race)
		tally(&s.Age, r.Age)
		if r.NeedsReview {
			s.NeedsReview++
		} else {
			s.AutoAccepted++
		}
		switch r.Confidence {
		case ConfidenceHigh:
			s.High++
		case ConfidenceMedium:
			s.Medium++
		case ConfidenceLow:
			s.Low++
		}
	}
	return s
}

func strptr(s string) *string { return &s }
