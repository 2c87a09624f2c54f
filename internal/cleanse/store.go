package cleanse

import "context"

// Store is the persistence interface for cleansed output. Every input
// record yields exactly one CleansedRecord; review entries are a strict
// subset keyed by the same record id.
type Store interface {
	PutRecord(ctx context.Context, rec *CleansedRecord) error
	GetRecord(ctx context.Context, id string) (*CleansedRecord, bool, error)
	PutReview(ctx context.Context, entry *ReviewEntry) error
	GetReview(ctx context.Context, recordID string) (*ReviewEntry, bool, error)
	ListReview(ctx context.Context, status ReviewStatus, limit int) ([]*ReviewEntry, error)
	PutRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id string) (*Run, bool, error)
}
