package cleanse

import (
	"context"
	"sync"

	"github.com/linnemanlabs/go-core/log"
)

// RecordSource yields raw records for a pipeline run. Next returns ok=false
// when the sequence is exhausted; err terminates scheduling early.
type RecordSource interface {
	Next(ctx context.Context) (*RawRecord, bool, error)
}

// RunOutput is everything a pipeline run accumulated.
type RunOutput struct {
	Records []*CleansedRecord
	Reviews []*ReviewEntry
	Summary *Summary
}

// Runner drives a worker pool over a record source. Records are
// independent, so workers share nothing but the read-only cleanser set;
// each keeps its own accumulator, merged once the pool drains.
type Runner struct {
	engine  *Engine
	workers int
	logger  log.Logger
}

// NewRunner creates a runner with the given concurrency cap. The cap
// exists to respect the external service's rate and cost limits; it is
// never unbounded.
func NewRunner(engine *Engine, workers int, logger log.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Runner{
		engine:  engine,
		workers: workers,
		logger:  logger,
	}
}

type accumulator struct {
	records []*CleansedRecord
	reviews []*ReviewEntry
}

// Run processes the source to completion. Cancellation stops scheduling
// new records but lets in-flight cleanses finish, so no half-cleansed
// record is ever emitted; the partial output is still returned alongside
// the context error.
func (r *Runner) Run(ctx context.Context, src RecordSource) (*RunOutput, error) {
	recCh := make(chan *RawRecord)

	var srcErr error
	go func() {
		defer close(recCh)
		for {
			raw, ok, err := src.Next(ctx)
			if err != nil {
				srcErr = err
				return
			}
			if !ok {
				return
			}
			select {
			case recCh <- raw:
			case <-ctx.Done():
				return
			}
		}
	}()

	accs := make([]accumulator, r.workers)
	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(acc *accumulator) {
			defer wg.Done()
			for raw := range recCh {
				rec, review := r.engine.CleanseRecord(ctx, raw)
				acc.records = append(acc.records, rec)
				if review != nil {
					acc.reviews = append(acc.reviews, review)
				}
			}
		}(&accs[i])
	}
	wg.Wait()

	out := &RunOutput{}
	for i := range accs {
		out.Records = append(out.Records, accs[i].records...)
		out.Reviews = append(out.Reviews, accs[i].reviews...)
	}
	out.Summary = Summarize(out.Records)

	if srcErr != nil {
		return out, srcErr
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// sliceSource adapts an in-memory batch to RecordSource for synchronous
// API cleansing.
type sliceSource struct {
	records []*RawRecord
	next    int
}

func (s *sliceSource) Next(ctx context.Context) (*RawRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if s.next >= len(s.records) {
		return nil, false, nil
	}
	rec := s.records[s.next]
	s.next++
	return rec, true, nil
}
