// Package llm defines the adapter boundary to the external
// classification/extraction capability. The cleansing core only ever sees
// these two operations; how the capability is reached is a provider detail.
package llm

import "context"

// SentinelInvalid is the designated extractor output meaning "no valid
// number could be extracted". Distinct from an empty input.
const SentinelInvalid = "INVALID"

// Provider is the interface for any classification/extraction backend.
//
// Classify maps a free-text value onto exactly one of the candidate labels.
// Implementations must coerce out-of-set responses to fallback rather than
// propagating an invalid label.
//
// ExtractNumber runs an open-ended completion and returns either a string
// of digits or SentinelInvalid.
//
// Both calls may be slow and may fail; callers recover per field and never
// abort a run on a single error.
type Provider interface {
	Classify(ctx context.Context, value string, labels []string, fallback string) (string, error)
	ExtractNumber(ctx context.Context, value, instruction string) (string, error)
}
