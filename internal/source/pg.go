package source

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

var tracer = otel.Tracer("github.com/linnemanlabs/demoscrub/internal/source")

// tableName restricts the configurable raw table to a plain identifier,
// since it is interpolated into the query text.
var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// DefaultBatchSize is how many raw rows one fetch pulls.
const DefaultBatchSize = 500

// Postgres reads raw demographic rows in id order, batched by keyset
// pagination. One Postgres instance serves one run.
type Postgres struct {
	pool   *pgxpool.Pool
	table  string
	batch  int
	buf    []*cleanse.RawRecord
	lastID string
	done   bool
}

// NewPostgres creates a source over the given raw table. The table must
// have text columns id, sex, race, age with id unique and non-null.
func NewPostgres(pool *pgxpool.Pool, table string, batch int) (*Postgres, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("source: invalid raw table name %q", table)
	}
	if batch < 1 {
		batch = DefaultBatchSize
	}
	return &Postgres{pool: pool, table: table, batch: batch}, nil
}

// Next implements cleanse.RecordSource.
func (s *Postgres) Next(ctx context.Context) (*cleanse.RawRecord, bool, error) {
	if len(s.buf) == 0 {
		if s.done {
			return nil, false, nil
		}
		if err := s.fetch(ctx); err != nil {
			return nil, false, err
		}
		if len(s.buf) == 0 {
			return nil, false, nil
		}
	}
	rec := s.buf[0]
	s.buf = s.buf[1:]
	return rec, true, nil
}

func (s *Postgres) fetch(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "source.fetch", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("demoscrub.source.table", s.table),
	))
	defer span.End()

	query := fmt.Sprintf(
		`SELECT id, sex, race, age FROM %s WHERE id > $1 ORDER BY id LIMIT $2`, s.table)
	rows, err := s.pool.Query(ctx, query, s.lastID, s.batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("source: fetch batch: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec cleanse.RawRecord
		var sex, race, age *string
		if err := rows.Scan(&rec.ID, &sex, &race, &age); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("source: scan row: %w", err)
		}
		if sex != nil {
			rec.Sex = *sex
		}
		if race != nil {
			rec.Race = *race
		}
		if age != nil {
			rec.Age = *age
		}
		s.buf = append(s.buf, &rec)
		s.lastID = rec.ID
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("source: read batch: %w", err)
	}

	if len(s.buf) < s.batch {
		s.done = true
	}
	span.SetAttributes(attribute.Int("demoscrub.source.batch_rows", len(s.buf)))
	return nil
}
