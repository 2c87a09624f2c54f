package cleanse

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/oklog/ulid/v2"
)

// ErrNoSource is returned by StartRun when no raw record source was
// configured at startup.
var ErrNoSource = xerrors.New("cleanse: no raw record source configured")

// Notifier receives completed runs. Implementations must tolerate being
// called from a background goroutine.
type Notifier interface {
	Send(ctx context.Context, run *Run) error
}

// SourceFactory opens a fresh record source for one pipeline run.
type SourceFactory func(ctx context.Context) (RecordSource, error)

// Service is the business boundary for cleansing operations: synchronous
// batch cleansing, async pipeline runs over the configured source, and
// read access to records, runs, and the review queue.
type Service struct {
	store    Store
	runner   *Runner
	source   SourceFactory
	logger   log.Logger
	hooks    EngineHooks
	notifier Notifier
}

// NewService creates a new cleansing service. source may be nil when no
// raw data source is configured; StartRun then reports an error.
func NewService(store Store, runner *Runner, source SourceFactory, logger log.Logger, hooks EngineHooks, notifier Notifier) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:    store,
		runner:   runner,
		source:   source,
		logger:   logger,
		hooks:    hooks,
		notifier: notifier,
	}
}

// CleanseBatch cleanses a submitted batch synchronously, persisting every
// record and any review entries before returning the cleansed set.
func (s *Service) CleanseBatch(ctx context.Context, raws []*RawRecord) ([]*CleansedRecord, error) {
	out, err := s.runner.Run(ctx, &sliceSource{records: raws})
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// StartRun kicks off an async pipeline run over the configured source and
// returns the pending Run immediately.
func (s *Service) StartRun(ctx context.Context) (*Run, error) {
	if s.source == nil {
		return nil, ErrNoSource
	}

	run := &Run{
		ID:        ulid.Make().String(),
		Status:    RunPending,
		CreatedAt: time.Now(),
	}
	if err := s.store.PutRun(ctx, run); err != nil {
		return nil, err
	}

	// Detach from the request context so an API disconnect does not
	// cancel the run.
	go s.runPipeline(context.WithoutCancel(ctx), run.ID)

	return run, nil
}

// GetRun retrieves a run by ID.
func (s *Service) GetRun(ctx context.Context, id string) (*Run, bool, error) {
	return s.store.GetRun(ctx, id)
}

// GetRecord retrieves a cleansed record by ID.
func (s *Service) GetRecord(ctx context.Context, id string) (*CleansedRecord, bool, error) {
	return s.store.GetRecord(ctx, id)
}

// ListReview lists review queue entries by status.
func (s *Service) ListReview(ctx context.Context, status ReviewStatus, limit int) ([]*ReviewEntry, error) {
	return s.store.ListReview(ctx, status, limit)
}

func (s *Service) runPipeline(ctx context.Context, id string) {
	L := s.logger.With("run_id", id)
	start := time.Now()

	run, ok, err := s.store.GetRun(ctx, id)
	if err != nil || !ok {
		L.Error(ctx, err, "failed to fetch run")
		return
	}

	run.Status = RunRunning
	if err := s.store.PutRun(ctx, run); err != nil {
		L.Error(ctx, err, "failed to update run status")
		return
	}

	src, err := s.source(ctx)
	if err != nil {
		s.finishRun(ctx, L, run, nil, start, err)
		return
	}

	out, runErr := s.runner.Run(ctx, src)
	if out != nil {
		if err := s.persist(ctx, out); err != nil {
			L.Error(ctx, err, "failed to persist run output")
			if runErr == nil {
				runErr = err
			}
		}
	}

	s.finishRun(ctx, L, run, out, start, runErr)
}

func (s *Service) finishRun(ctx context.Context, L log.Logger, run *Run, out *RunOutput, start time.Time, runErr error) {
	now := time.Now()
	run.CompletedAt = &now
	run.Duration = time.Since(start).Seconds()
	if out != nil {
		run.Summary = out.Summary
	}
	if runErr != nil {
		run.Status = RunFailed
		run.Error = runErr.Error()
	} else {
		run.Status = RunComplete
	}

	if err := s.store.PutRun(ctx, run); err != nil {
		L.Error(ctx, err, "failed to persist run result")
	}

	if s.hooks.OnRunComplete != nil {
		s.hooks.OnRunComplete(run.Summary, run.Status, run.Duration)
	}

	if run.Summary != nil {
		L.Info(ctx, "run finished",
			"status", string(run.Status),
			"duration", run.Duration,
			"total_records", run.Summary.TotalRecords,
			"auto_accepted", run.Summary.AutoAccepted,
			"needs_review", run.Summary.NeedsReview,
		)
	} else {
		L.Info(ctx, "run finished", "status", string(run.Status), "duration", run.Duration)
	}

	if s.notifier != nil {
		if err := s.notifier.Send(ctx, run); err != nil {
			L.Error(ctx, err, "run notification failed")
		}
	}
}

func (s *Service) persist(ctx context.Context, out *RunOutput) error {
	for _, rec := range out.Records {
		if err := s.store.PutRecord(ctx, rec); err != nil {
			return err
		}
	}
	for _, entry := range out.Reviews {
		if err := s.store.PutReview(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}
