package cleanse

import (
	"time"

	"github.com/linnemanlabs/demoscrub/internal/canon"
)

// needsReview is the routing predicate: true iff sex or race resolved to a
// fallback label, or the age outcome is invalid, or the extracted age falls
// outside the accepted range. The range re-check is deliberate even though
// the age cleanser already validates; a parsed value is still re-tested
// here so a non-numeric or out-of-range outcome can never auto-accept.
func needsReview(sex, race, age FieldOutcome) bool {
	if fallbackLabel(sex) || fallbackLabel(race) {
		return true
	}
	n, ok := age.Int()
	if !ok {
		return true
	}
	return !canon.ValidAge(n)
}

// newReviewEntry materializes a review queue item for a flagged record.
// All correction fields start empty; only the external review workflow
// fills them in.
func newReviewEntry(raw *RawRecord, rec *CleansedRecord) *ReviewEntry {
	return &ReviewEntry{
		RecordID:     rec.ID,
		RawSex:       raw.Sex,
		RawRace:      raw.Race,
		RawAge:       raw.Age,
		CleansedSex:  rec.Sex.Value,
		CleansedRace: rec.Race.Value,
		CleansedAge:  rec.Age.Value,
		Confidence:   rec.Confidence,
		Status:       ReviewPending,
		CreatedAt:    time.Now(),
	}
}
