// Package pgstore provides a PostgreSQL implementation of cleanse.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

var tracer = otel.Tracer("github.com/linnemanlabs/demoscrub/internal/cleanse/pgstore")

//go:embed schema.sql
var schema string

// Store persists cleansed records, review entries, and runs in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store. The pool is owned by
// the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const recordColumns = `id, sex_value, sex_source, sex_valid, race_value, race_source, race_valid,
	age_value, age_source, age_valid, confidence, needs_review, created_at`

// PutRecord upserts a cleansed record.
func (s *Store) PutRecord(ctx context.Context, rec *cleanse.CleansedRecord) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutRecord", "UPSERT")
	defer span.End()

	query := `INSERT INTO cleansed_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			sex_value = EXCLUDED.sex_value, sex_source = EXCLUDED.sex_source, sex_valid = EXCLUDED.sex_valid,
			race_value = EXCLUDED.race_value, race_source = EXCLUDED.race_source, race_valid = EXCLUDED.race_valid,
			age_value = EXCLUDED.age_value, age_source = EXCLUDED.age_source, age_valid = EXCLUDED.age_valid,
			confidence = EXCLUDED.confidence, needs_review = EXCLUDED.needs_review`
	_, err := s.pool.Exec(ctx, query,
		rec.ID,
		rec.Sex.Value, string(rec.Sex.Source), rec.Sex.Valid,
		rec.Race.Value, string(rec.Race.Source), rec.Race.Valid,
		rec.Age.Value, string(rec.Age.Source), rec.Age.Valid,
		string(rec.Confidence), rec.NeedsReview, rec.CreatedAt,
	)
	return s.finishSpan(span, err)
}

// GetRecord retrieves a cleansed record by ID.
func (s *Store) GetRecord(ctx context.Context, id string) (*cleanse.CleansedRecord, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetRecord", "SELECT")
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM cleansed_records WHERE id = $1`
	row := s.pool.QueryRow(ctx, query, id)

	var rec cleanse.CleansedRecord
	var sexSource, raceSource, ageSource, confidence string
	err := row.Scan(
		&rec.ID,
		&rec.Sex.Value, &sexSource, &rec.Sex.Valid,
		&rec.Race.Value, &raceSource, &rec.Race.Valid,
		&rec.Age.Value, &ageSource, &rec.Age.Valid,
		&confidence, &rec.NeedsReview, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.finishSpan(span, err)
	}
	rec.Sex.Source = cleanse.Source(sexSource)
	rec.Race.Source = cleanse.Source(raceSource)
	rec.Age.Source = cleanse.Source(ageSource)
	rec.Confidence = cleanse.Confidence(confidence)
	return &rec, true, nil
}

const reviewColumns = `record_id, raw_sex, raw_race, raw_age, cleansed_sex, cleansed_race, cleansed_age,
	confidence, status, reviewer, corrected_sex, corrected_race, corrected_age, notes, reviewed_at, created_at`

// PutReview upserts a review queue entry.
func (s *Store) PutReview(ctx context.Context, e *cleanse.ReviewEntry) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutReview", "UPSERT")
	defer span.End()

	query := `INSERT INTO review_queue (` + reviewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (record_id) DO UPDATE SET
			status = EXCLUDED.status, reviewer = EXCLUDED.reviewer,
			corrected_sex = EXCLUDED.corrected_sex, corrected_race = EXCLUDED.corrected_race,
			corrected_age = EXCLUDED.corrected_age, notes = EXCLUDED.notes,
			reviewed_at = EXCLUDED.reviewed_at`
	_, err := s.pool.Exec(ctx, query,
		e.RecordID, e.RawSex, e.RawRace, e.RawAge,
		e.CleansedSex, e.CleansedRace, e.CleansedAge,
		string(e.Confidence), string(e.Status), e.Reviewer,
		e.CorrectedSex, e.CorrectedRace, e.CorrectedAge,
		e.Notes, e.ReviewedAt, e.CreatedAt,
	)
	return s.finishSpan(span, err)
}

// GetReview retrieves a review entry by record ID.
func (s *Store) GetReview(ctx context.Context, recordID string) (*cleanse.ReviewEntry, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetReview", "SELECT")
	defer span.End()

	query := `SELECT ` + reviewColumns + ` FROM review_queue WHERE record_id = $1`
	e, err := scanReview(s.pool.QueryRow(ctx, query, recordID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.finishSpan(span, err)
	}
	return e, true, nil
}

// ListReview lists review entries by status, oldest first.
func (s *Store) ListReview(ctx context.Context, status cleanse.ReviewStatus, limit int) ([]*cleanse.ReviewEntry, error) {
	ctx, span := s.startSpan(ctx, "pgstore.ListReview", "SELECT")
	defer span.End()

	query := `SELECT ` + reviewColumns + ` FROM review_queue WHERE status = $1 ORDER BY created_at`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.finishSpan(span, err)
	}
	defer rows.Close()

	var out []*cleanse.ReviewEntry
	for rows.Next() {
		e, err := scanReview(rows)
		if err != nil {
			return nil, s.finishSpan(span, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, s.finishSpan(span, err)
	}
	return out, nil
}

// PutRun upserts a pipeline run.
func (s *Store) PutRun(ctx context.Context, r *cleanse.Run) error {
	ctx, span := s.startSpan(ctx, "pgstore.PutRun", "UPSERT")
	defer span.End()

	var summary []byte
	if r.Summary != nil {
		var err error
		summary, err = json.Marshal(r.Summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
	}

	query := `INSERT INTO cleanse_runs (id, status, summary, error, created_at, completed_at, duration_s)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, summary = EXCLUDED.summary, error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at, duration_s = EXCLUDED.duration_s`
	_, err := s.pool.Exec(ctx, query,
		r.ID, string(r.Status), summary, r.Error, r.CreatedAt, r.CompletedAt, r.Duration)
	return s.finishSpan(span, err)
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*cleanse.Run, bool, error) {
	ctx, span := s.startSpan(ctx, "pgstore.GetRun", "SELECT")
	defer span.End()

	query := `SELECT id, status, summary, error, created_at, completed_at, duration_s
		FROM cleanse_runs WHERE id = $1`
	var r cleanse.Run
	var status string
	var summary []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&r.ID, &status, &summary, &r.Error, &r.CreatedAt, &r.CompletedAt, &r.Duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.finishSpan(span, err)
	}
	r.Status = cleanse.RunStatus(status)
	if len(summary) > 0 {
		r.Summary = &cleanse.Summary{}
		if err := json.Unmarshal(summary, r.Summary); err != nil {
			return nil, false, fmt.Errorf("unmarshal summary: %w", err)
		}
	}
	return &r, true, nil
}

func scanReview(row pgx.Row) (*cleanse.ReviewEntry, error) {
	var e cleanse.ReviewEntry
	var confidence, status string
	err := row.Scan(
		&e.RecordID, &e.RawSex, &e.RawRace, &e.RawAge,
		&e.CleansedSex, &e.CleansedRace, &e.CleansedAge,
		&confidence, &status, &e.Reviewer,
		&e.CorrectedSex, &e.CorrectedRace, &e.CorrectedAge,
		&e.Notes, &e.ReviewedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Confidence = cleanse.Confidence(confidence)
	e.Status = cleanse.ReviewStatus(status)
	return &e, nil
}

func (s *Store) startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func (s *Store) finishSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
