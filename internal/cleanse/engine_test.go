package cleanse

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/demoscrub/internal/canon"
	"github.com/linnemanlabs/demoscrub/internal/llm"
)

// demoProvider behaves like a well-trained model over the test inputs.
func demoProvider() *mockProvider {
	return &mockProvider{
		classifyFn: classifyTable(map[string]string{
			"M":         "Male",
			"F":         "Female",
			"Caucasian": "White",
			"Black":     "Black or African American",
			"Hispanic":  "Hispanic or Latino",
		}),
		extractFn: func(value, _ string) (string, error) {
			switch value {
			case "45 years":
				return "45", nil
			case "infant":
				return "0", nil
			case "150":
				return "150", nil
			default:
				return llm.SentinelInvalid, nil
			}
		},
	}
}

func newTestEngine(t *testing.T, provider *mockProvider, hooks EngineHooks) *Engine {
	t.Helper()
	registry := testRegistry(t)
	cleansers, err := NewCleansers(
		NewSexCleanser(registry, provider, log.Nop()),
		NewRaceCleanser(registry, provider, log.Nop()),
		NewAgeCleanser(provider, DefaultOffsets(), log.Nop()),
	)
	if err != nil {
		t.Fatalf("NewCleansers: %v", err)
	}
	return NewEngine(cleansers, log.Nop(), hooks)
}

func TestCleanseRecord_AllFieldsAIAssisted(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, demoProvider(), EngineHooks{})

	rec, review := engine.CleanseRecord(context.Background(),
		&RawRecord{ID: "r-1", Sex: "M", Race: "Caucasian", Age: "45 years"})

	if !rec.Sex.Is("Male") || rec.Sex.Source != SourceClassified {
		t.Errorf("sex = %+v, want classified Male", rec.Sex)
	}
	if !rec.Race.Is("White") || rec.Race.Source != SourceClassified {
		t.Errorf("race = %+v, want classified White", rec.Race)
	}
	if !rec.Age.Is("45") || rec.Age.Source != SourceExtracted {
		t.Errorf("age = %+v, want extracted 45", rec.Age)
	}
	if rec.Confidence == ConfidenceHigh {
		t.Error("AI-assisted record must not be high confidence")
	}
	if rec.NeedsReview {
		t.Error("clean AI-assisted record should not need review")
	}
	if review != nil {
		t.Error("no review entry expected")
	}
}

func TestCleanseRecord_AllPassthroughIsHigh(t *testing.T) {
	t.Parallel()

	provider := demoProvider()
	engine := newTestEngine(t, provider, EngineHooks{})

	rec, review := engine.CleanseRecord(context.Background(),
		&RawRecord{ID: "r-2", Sex: "Female", Race: "White", Age: "32"})

	for _, o := range []FieldOutcome{rec.Sex, rec.Race, rec.Age} {
		if o.Source != SourcePassthrough {
			t.Errorf("outcome = %+v, want passthrough", o)
		}
	}
	if rec.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %q, want high", rec.Confidence)
	}
	if rec.NeedsReview || review != nil {
		t.Error("passthrough record should not be flagged")
	}

	c, e := provider.calls()
	if c != 0 || e != 0 {
		t.Errorf("provider calls = (%d, %d), want (0, 0)", c, e)
	}
}

func TestCleanseRecord_MixedPassthroughAndAI(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, demoProvider(), EngineHooks{})

	rec, review := engine.CleanseRecord(context.Background(),
		&RawRecord{ID: "r-3", Sex: "male", Race: "Black", Age: "infant"})

	if !rec.Sex.Is("Male") || rec.Sex.Source != SourcePassthrough {
		t.Errorf("sex = %+v, want passthrough Male", rec.Sex)
	}
	if !rec.Race.Is("Black or African American") {
		t.Errorf("race = %v, want Black or African American", rec.Race.Value)
	}
	if !rec.Age.Is("0") {
		t.Errorf("age = %v, want 0 for infant", rec.Age.Value)
	}
	if rec.NeedsReview || review != nil {
		t.Error("record should not be flagged")
	}
	if rec.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %q, want medium", rec.Confidence)
	}
}

func TestCleanseRecord_InvalidAgeIsFlagged(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, demoProvider(), EngineHooks{})

	rec, review := engine.CleanseRecord(context.Background(),
		&RawRecord{ID: "r-4", Sex: "FEMALE", Race: "Hispanic", Age: "unknown"})

	if !rec.Sex.Is("Female") {
		t.Errorf("sex = %v, want Female", rec.Sex.Value)
	}
	if !rec.Race.Is("Hispanic or Latino") {
		t.Errorf("race = %v, want Hispanic or Latino", rec.Race.Value)
	}
	if rec.Age.Valid || rec.Age.Value != nil {
		t.Errorf("age = %+v, want invalid", rec.Age)
	}
	if !rec.NeedsReview {
		t.Error("expected needs_review")
	}
	if review == nil {
		t.Fatal("expected a review entry")
	}
	if review.RecordID != "r-4" {
		t.Errorf("review RecordID = %q, want r-4", review.RecordID)
	}
}

func TestCleanseRecord_MissingFieldsAndOutOfRangeAge(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, demoProvider(), EngineHooks{})

	rec, review := engine.CleanseRecord(context.Background(),
		&RawRecord{ID: "r-5", Age: "150"})

	if !rec.Sex.Is(canon.Unknown) {
		t.Errorf("sex = %v, want Unknown for missing input", rec.Sex.Value)
	}
	if !rec.Race.Is(canon.Unknown) {
		t.Errorf("race = %v, want Unknown for missing input", rec.Race.Value)
	}
	if rec.Age.Valid {
		t.Error("out-of-range age must be invalid")
	}
	if rec.Confidence != ConfidenceLow {
		t.Errorf("confidence = %q, want low", rec.Confidence)
	}
	if !rec.NeedsReview || review == nil {
		t.Error("expected review routing")
	}
}

func TestCleanseRecord_FiresHooks(t *testing.T) {
	t.Parallel()

	var fields []canon.Field
	var gotConfidence Confidence
	var gotReview bool
	hooks := EngineHooks{
		OnField: func(field canon.Field, _ Source, _ bool, _ float64) {
			fields = append(fields, field)
		},
		OnRecord: func(c Confidence, nr bool) {
			gotConfidence = c
			gotReview = nr
		},
	}
	engine := newTestEngine(t, demoProvider(), hooks)

	engine.CleanseRecord(context.Background(),
		&RawRecord{ID: "r-6", Sex: "Female", Race: "White", Age: "32"})

	if len(fields) != 3 {
		t.Fatalf("OnField fired %d times, want 3", len(fields))
	}
	if gotConfidence != ConfidenceHigh || gotReview {
		t.Errorf("OnRecord = (%q, %v), want (high, false)", gotConfidence, gotReview)
	}
}

func TestCleanseRecord_EmitsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	engine := newTestEngine(t, demoProvider(), EngineHooks{})
	engine.CleanseRecord(context.Background(),
		&RawRecord{ID: "r-7", Sex: "Female", Race: "White", Age: "32"})

	spans := exporter.GetSpans()
	found := false
	for _, s := range spans {
		if s.Name == "cleanse.record" {
			found = true
		}
	}
	if !found {
		t.Errorf("no cleanse.record span recorded, got %d spans", len(spans))
	}
}
