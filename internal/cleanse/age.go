package cleanse

import (
	"context"
	"fmt"
	"strconv"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/demoscrub/internal/canon"
	"github.com/linnemanlabs/demoscrub/internal/llm"
)

// Offsets positions the representative point inside a decade range for
// ages like "early 20s" or "mid-30s". The source data is inconsistent
// about exact offsets, so they are configuration rather than constants.
type Offsets struct {
	Early int
	Mid   int
	Late  int
}

// DefaultOffsets returns the default decade-range offsets.
func DefaultOffsets() Offsets {
	return Offsets{Early: 2, Mid: 5, Late: 8}
}

// Validate checks the offsets stay inside a decade.
func (o Offsets) Validate() error {
	for name, v := range map[string]int{"early": o.Early, "mid": o.Mid, "late": o.Late} {
		if v < 0 || v > 9 {
			return fmt.Errorf("cleanse: %s age offset %d out of range 0..9", name, v)
		}
	}
	return nil
}

// AgeCleanser cleanses the numeric age field. The pre-check is a range
// test rather than label membership; non-canonical values go through
// open-ended extraction with the normalization instruction.
type AgeCleanser struct {
	provider    llm.Provider
	instruction string
	logger      log.Logger
}

// NewAgeCleanser creates the cleanser for the age field.
func NewAgeCleanser(provider llm.Provider, offsets Offsets, logger log.Logger) *AgeCleanser {
	if logger == nil {
		logger = log.Nop()
	}
	return &AgeCleanser{
		provider:    provider,
		instruction: buildAgeInstruction(offsets),
		logger:      logger,
	}
}

// Field returns the field this cleanser handles.
func (c *AgeCleanser) Field() canon.Field { return canon.FieldAge }

// Cleanse parses an already-numeric in-range age directly, otherwise asks
// the extractor and re-validates its answer. The external result is never
// trusted blindly: the range check runs again even on a clean parse.
func (c *AgeCleanser) Cleanse(ctx context.Context, raw string) FieldOutcome {
	if n, ok := canon.ParseAge(raw); ok {
		return FieldOutcome{Value: strptr(strconv.Itoa(n)), Source: SourcePassthrough, Valid: true}
	}

	out, err := c.provider.ExtractNumber(ctx, raw, c.instruction)
	if err != nil {
		c.logger.Error(ctx, err, "extract failed", "field", "age")
		return invalidAge()
	}

	if out == llm.SentinelInvalid {
		return invalidAge()
	}

	n, err := strconv.Atoi(out)
	if err != nil {
		c.logger.Warn(ctx, "extractor returned non-numeric output", "field", "age", "output", out)
		return invalidAge()
	}
	if !canon.ValidAge(n) {
		c.logger.Warn(ctx, "extractor returned out-of-range age", "field", "age", "value", n)
		return invalidAge()
	}

	return FieldOutcome{Value: strptr(strconv.Itoa(n)), Source: SourceExtracted, Valid: true}
}

func invalidAge() FieldOutcome {
	return FieldOutcome{Value: nil, Source: SourceExtracted, Valid: false}
}

// buildAgeInstruction renders the normalization rules the extractor must
// follow. These rules are the contract for correct age behavior.
func buildAgeInstruction(o Offsets) string {
	return fmt.Sprintf(`Normalize the raw value to a person's age in years.
Rules:
- Answer with either a bare integer between %d and %d inclusive, or the single token %s.
- Infants and newborns normalize to 0.
- An age expressed as a decade range normalizes to a representative point in that decade: "early" means the decade plus %d, "mid" means the decade plus %d, "late" means the decade plus %d. For example "mid-30s" normalizes to %d.
- Textual number words normalize to digits: "forty-five" normalizes to 45.
- Strip surrounding units and prefixes such as "years", "yrs", "Age:", "yo" before interpreting the value.
- If the value is outside %d-%d, or you cannot confidently interpret it, answer %s.`,
		canon.AgeMin, canon.AgeMax, llm.SentinelInvalid,
		o.Early, o.Mid, o.Late, 30+o.Mid,
		canon.AgeMin, canon.AgeMax, llm.SentinelInvalid)
}
