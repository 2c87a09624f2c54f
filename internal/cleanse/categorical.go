package cleanse

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/demoscrub/internal/canon"
	"github.com/linnemanlabs/demoscrub/internal/llm"
)

// CategoricalCleanser cleanses a closed-vocabulary field (sex, race).
// Canonical values pass through untouched; everything else goes to the
// classifier, whose answer is guaranteed to be a set member.
type CategoricalCleanser struct {
	field    canon.Field
	registry *canon.Registry
	provider llm.Provider
	fallback string
	logger   log.Logger
}

// NewSexCleanser creates the cleanser for the sex field.
func NewSexCleanser(registry *canon.Registry, provider llm.Provider, logger log.Logger) *CategoricalCleanser {
	return newCategorical(canon.FieldSex, registry, provider, logger)
}

// NewRaceCleanser creates the cleanser for the race field.
func NewRaceCleanser(registry *canon.Registry, provider llm.Provider, logger log.Logger) *CategoricalCleanser {
	return newCategorical(canon.FieldRace, registry, provider, logger)
}

func newCategorical(field canon.Field, registry *canon.Registry, provider llm.Provider, logger log.Logger) *CategoricalCleanser {
	if logger == nil {
		logger = log.Nop()
	}
	return &CategoricalCleanser{
		field:    field,
		registry: registry,
		provider: provider,
		fallback: canon.Unknown,
		logger:   logger,
	}
}

// Field returns the field this cleanser handles.
func (c *CategoricalCleanser) Field() canon.Field { return c.field }

// Cleanse runs pre-check, classification, and post-validation for one
// value. The outcome value is always a member of the canonical set.
func (c *CategoricalCleanser) Cleanse(ctx context.Context, raw string) FieldOutcome {
	if canonical, ok := c.registry.Canonicalize(c.field, raw); ok {
		return FieldOutcome{Value: strptr(canonical), Source: SourcePassthrough, Valid: true}
	}

	// Missing input is not an error: treat it as the literal "Unknown"
	// and let the classifier confirm.
	value := strings.TrimSpace(raw)
	if value == "" {
		value = canon.Unknown
	}

	label, err := c.provider.Classify(ctx, value, c.registry.Labels(c.field), c.fallback)
	if err != nil {
		// Degrade this field only; the record still proceeds to review
		// routing as if the fallback had been returned.
		c.logger.Error(ctx, err, "classify failed", "field", string(c.field))
		return FieldOutcome{Value: strptr(c.fallback), Source: SourceClassified, Valid: false}
	}

	if _, ok := c.registry.Canonicalize(c.field, label); !ok {
		// The provider contract already coerces, so this is a provider
		// bug. Coerce again rather than leak an arbitrary string.
		c.logger.Warn(ctx, "classifier returned out-of-set label", "field", string(c.field), "label", label)
		label = c.fallback
	}

	return FieldOutcome{Value: strptr(label), Source: SourceClassified, Valid: true}
}
