// Package memstore provides an in-memory implementation of cleanse.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

// Store holds cleansed output in memory. Suitable for dev/testing.
type Store struct {
	mu      sync.RWMutex
	records map[string]*cleanse.CleansedRecord // record ID -> record
	reviews map[string]*cleanse.ReviewEntry    // record ID -> review entry
	order   []string                           // review insertion order
	runs    map[string]*cleanse.Run            // run ID -> run
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		records: make(map[string]*cleanse.CleansedRecord),
		reviews: make(map[string]*cleanse.ReviewEntry),
		runs:    make(map[string]*cleanse.Run),
	}
}

// PutRecord stores a copy of the cleansed record.
func (s *Store) PutRecord(_ context.Context, rec *cleanse.CleansedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

// GetRecord retrieves a cleansed record by ID. Returns a copy.
func (s *Store) GetRecord(_ context.Context, id string) (*cleanse.CleansedRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}

// PutReview stores a copy of the review entry, keyed by record ID.
func (s *Store) PutReview(_ context.Context, e *cleanse.ReviewEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reviews[e.RecordID]; !exists {
		s.order = append(s.order, e.RecordID)
	}
	cp := *e
	s.reviews[e.RecordID] = &cp
	return nil
}

// GetReview retrieves a review entry by record ID. Returns a copy.
func (s *Store) GetReview(_ context.Context, recordID string) (*cleanse.ReviewEntry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.reviews[recordID]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

// ListReview returns review entries with the given status in insertion
// order, up to limit (0 = no limit).
func (s *Store) ListReview(_ context.Context, status cleanse.ReviewStatus, limit int) ([]*cleanse.ReviewEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*cleanse.ReviewEntry
	for _, id := range s.order {
		e := s.reviews[id]
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

// PutRun stores a copy of the run.
func (s *Store) PutRun(_ context.Context, r *cleanse.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.runs[r.ID] = &cp
	return nil
}

// GetRun retrieves a run by ID. Returns a copy.
func (s *Store) GetRun(_ context.Context, id string) (*cleanse.Run, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.runs[id]
	if !ok {
		return nil, false, nil
	}
	cp := *r
	return &cp, true, nil
}
