package cleanse

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/demoscrub/internal/canon"
)

var tracer = otel.Tracer("github.com/linnemanlabs/demoscrub/internal/cleanse")

// EngineHooks are optional callbacks for instrumentation. Nil functions
// are skipped.
type EngineHooks struct {
	// OnField fires after each field cleanse with its outcome shape.
	OnField func(field canon.Field, source Source, valid bool, duration float64)

	// OnRecord fires after a record is fully cleansed and routed.
	OnRecord func(confidence Confidence, needsReview bool)

	// OnRunComplete fires once per finished pipeline run.
	OnRunComplete func(summary *Summary, status RunStatus, duration float64)
}

// Engine applies the three field cleansers, the confidence classifier, and
// the review router to one record at a time. It holds no mutable state and
// is safe for concurrent use.
type Engine struct {
	cleansers *Cleansers
	logger    log.Logger
	hooks     EngineHooks
}

// NewEngine creates a cleansing engine with the given cleanser set.
func NewEngine(cleansers *Cleansers, logger log.Logger, hooks EngineHooks) *Engine {
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{
		cleansers: cleansers,
		logger:    logger,
		hooks:     hooks,
	}
}

// CleanseRecord produces exactly one CleansedRecord for the input, plus a
// ReviewEntry when the record is flagged. Field failures degrade that
// field only; the record is always emitted.
func (e *Engine) CleanseRecord(ctx context.Context, raw *RawRecord) (*CleansedRecord, *ReviewEntry) {
	ctx, span := tracer.Start(ctx, "cleanse.record", trace.WithAttributes(
		attribute.String("demoscrub.record.id", raw.ID),
	))
	defer span.End()

	rec := &CleansedRecord{
		ID:        raw.ID,
		Sex:       e.cleanseField(ctx, canon.FieldSex, raw.Sex),
		Race:      e.cleanseField(ctx, canon.FieldRace, raw.Race),
		Age:       e.cleanseField(ctx, canon.FieldAge, raw.Age),
		CreatedAt: time.Now(),
	}
	rec.Confidence = classifyConfidence(rec.Sex, rec.Race, rec.Age)
	rec.NeedsReview = needsReview(rec.Sex, rec.Race, rec.Age)

	span.SetAttributes(
		attribute.String("demoscrub.record.confidence", string(rec.Confidence)),
		attribute.Bool("demoscrub.record.needs_review", rec.NeedsReview),
	)

	if e.hooks.OnRecord != nil {
		e.hooks.OnRecord(rec.Confidence, rec.NeedsReview)
	}

	if !rec.NeedsReview {
		return rec, nil
	}

	e.logger.Info(ctx, "record flagged for review",
		"record_id", raw.ID,
		"confidence", string(rec.Confidence),
		"sex_valid", rec.Sex.Valid,
		"race_valid", rec.Race.Valid,
		"age_valid", rec.Age.Valid,
	)
	return rec, newReviewEntry(raw, rec)
}

func (e *Engine) cleanseField(ctx context.Context, field canon.Field, raw string) FieldOutcome {
	c, ok := e.cleansers.Get(field)
	if !ok {
		// NewCleansers guarantees coverage; reaching here is a bug.
		return FieldOutcome{Source: SourceClassified, Valid: false}
	}

	start := time.Now()
	outcome := c.Cleanse(ctx, raw)
	dur := time.Since(start).Seconds()

	if e.hooks.OnField != nil {
		e.hooks.OnField(field, outcome.Source, outcome.Valid, dur)
	}
	return outcome
}
