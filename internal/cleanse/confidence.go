package cleanse

import "github.com/linnemanlabs/demoscrub/internal/canon"

// classifyConfidence derives the review tier for a record from its three
// field outcomes. Precedence is HIGH > MEDIUM > LOW: a record that meets
// the HIGH criterion is never downgraded.
func classifyConfidence(sex, race, age FieldOutcome) Confidence {
	// HIGH: nothing needed transformation at all.
	if sex.Source == SourcePassthrough && race.Source == SourcePassthrough && age.Source == SourcePassthrough {
		return ConfidenceHigh
	}

	// MEDIUM: at least one field was AI-assisted, but nothing landed on a
	// fallback label and the age resolved to a valid number.
	if !fallbackLabel(sex) && !fallbackLabel(race) && age.Valid {
		return ConfidenceMedium
	}

	return ConfidenceLow
}

// fallbackLabel reports whether a categorical outcome degraded to
// Unknown/Other or failed outright.
func fallbackLabel(o FieldOutcome) bool {
	if !o.Valid || o.Value == nil {
		return true
	}
	return *o.Value == canon.Unknown || *o.Value == canon.Other
}
