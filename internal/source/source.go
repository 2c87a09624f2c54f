// Package source provides raw record sources for the cleansing pipeline.
package source

import (
	"context"

	"github.com/linnemanlabs/demoscrub/internal/cleanse"
)

// Slice yields records from an in-memory batch. Next is called from a
// single producer goroutine, so no locking is needed.
type Slice struct {
	records []*cleanse.RawRecord
	next    int
}

// NewSlice creates a source over the given records.
func NewSlice(records []*cleanse.RawRecord) *Slice {
	return &Slice{records: records}
}

// Next implements cleanse.RecordSource.
func (s *Slice) Next(ctx context.Context) (*cleanse.RawRecord, bool, error) {
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
