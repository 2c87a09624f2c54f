package cleanse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
)

// fakeStore is an in-package Store double for service tests.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*CleansedRecord
	reviews map[string]*ReviewEntry
	runs    map[string]*Run
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		records: make(map[string]*CleansedRecord),
		reviews: make(map[string]*ReviewEntry),
		runs:    make(map[string]*Run),
	}
}

func (s *fakeStore) PutRecord(_ context.Context, rec *CleansedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *fakeStore) GetRecord(_ context.Context, id string) (*CleansedRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

func (s *fakeStore) PutReview(_ context.Context, e *ReviewEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.reviews[e.RecordID] = &cp
	return nil
}

func (s *fakeStore) GetReview(_ context.Context, recordID string) (*ReviewEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.reviews[recordID]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

func (s *fakeStore) ListReview(_ context.Context, status ReviewStatus, limit int) ([]*ReviewEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ReviewEntry
	for _, e := range s.reviews {
		if e.Status != status {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) PutRun(_ context.Context, r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}

func (s *fakeStore) GetRun(_ context.Context, id string) (*Run, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

type spyNotifier struct {
	mu   sync.Mutex
	runs []*Run
}

func (n *spyNotifier) Send(_ context.Context, run *Run) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, run)
	return nil
}

func (n *spyNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.runs)
}

func newTestService(t *testing.T, store Store, src SourceFactory, notifier Notifier) *Service {
	t.Helper()
	engine := newTestEngine(t, demoProvider(), EngineHooks{})
	runner := NewRunner(engine, 2, log.Nop())
	return NewService(store, runner, src, log.Nop(), EngineHooks{}, notifier)
}

func waitForRun(t *testing.T, svc *Service, id string) *Run {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		run, ok, err := svc.GetRun(context.Background(), id)
		if err != nil {
			t.Fatalf("GetRun: %v", err)
		}
		if ok && (run.Status == RunComplete || run.Status == RunFailed) {
			return run
		}
		select {
		case <-deadline:
			t.Fatal("run did not finish in time")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCleanseBatch_PersistsRecordsAndReviews(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	svc := newTestService(t, store, nil, nil)

	records, err := svc.CleanseBatch(context.Background(), rawRecords(6))
	if err != nil {
		t.Fatalf("CleanseBatch: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("records = %d, want 6", len(records))
	}

	for _, rec := range records {
		got, ok, err := store.GetRecord(context.Background(), rec.ID)
		if err != nil || !ok {
			t.Fatalf("record %s not persisted (ok=%v err=%v)", rec.ID, ok, err)
		}
		_, hasReview, err := store.GetReview(context.Background(), rec.ID)
		if err != nil {
			t.Fatalf("GetReview: %v", err)
		}
		if got.NeedsReview != hasReview {
			t.Errorf("record %s: needs_review=%v but review entry present=%v", rec.ID, got.NeedsReview, hasReview)
		}
	}
}

func TestStartRun_NoSourceConfigured(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newFakeStore(), nil, nil)

	if _, err := svc.StartRun(context.Background()); !errors.Is(err, ErrNoSource) {
		t.Errorf("err = %v, want ErrNoSource", err)
	}
}

func TestStartRun_CompletesAndNotifies(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	notifier := &spyNotifier{}
	src := func(context.Context) (RecordSource, error) {
		return &sliceSource{records: rawRecords(8)}, nil
	}
	svc := newTestService(t, store, src, notifier)

	run, err := svc.StartRun(context.Background())
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	if run.Status != RunPending {
		t.Errorf("initial status = %q, want pending", run.Status)
	}

	final := waitForRun(t, svc, run.ID)
	if final.Status != RunComplete {
		t.Fatalf("status = %q, want complete (error: %s)", final.Status, final.Error)
	}
	if final.Summary == nil || final.Summary.TotalRecords != 8 {
		t.Errorf("summary = %+v, want 8 records", final.Summary)
	}
	if final.CompletedAt == nil || final.Duration <= 0 {
		t.Error("expected completion timestamp and positive duration")
	}
	if notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", notifier.count())
	}
}

func TestStartRun_SourceFactoryErrorFailsRun(t *testing.T) {
	t.Parallel()

	src := func(context.Context) (RecordSource, error) {
		return nil, errors.New("connect refused")
	}
	svc := newTestService(t, newFakeStore(), src, nil)

	run, err := svc.StartRun(context.Background())
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	final := waitForRun(t, svc, run.ID)
	if final.Status != RunFailed {
		t.Errorf("status = %q, want failed", final.Status)
	}
	if final.Error == "" {
		t.Error("expected error message on failed run")
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	s := Summarize(nil)
	if s.TotalRecords != 0 || s.NeedsReview != 0 || s.AutoAccepted != 0 {
		t.Errorf("empty summary = %+v", s)
	}
}
