package cleanse

import (
	"context"
	"fmt"

	"github.com/linnemanlabs/demoscrub/internal/canon"
)

// Cleanser turns one raw field value into a FieldOutcome. Implementations
// run the pre-check first and only reach for the external capability when
// the value is not already canonical.
type Cleanser interface {
	Field() canon.Field
	Cleanse(ctx context.Context, raw string) FieldOutcome
}

// Cleansers holds the per-field cleansers the engine dispatches to.
type Cleansers struct {
	byField map[canon.Field]Cleanser
}

// NewCleansers builds the cleanser set. All three demographic fields must
// be covered exactly once; anything else is a configuration error and the
// run must not start.
func NewCleansers(cs ...Cleanser) (*Cleansers, error) {
	set := &Cleansers{byField: make(map[canon.Field]Cleanser, len(cs))}
	for _, c := range cs {
		if _, dup := set.byField[c.Field()]; dup {
			return nil, fmt.Errorf("cleanse: duplicate cleanser for field %q", c.Field())
		}
		set.byField[c.Field()] = c
	}
	for _, f := range []canon.Field{canon.FieldSex, canon.FieldRace, canon.FieldAge} {
		if _, ok := set.byField[f]; !ok {
			return nil, fmt.Errorf("cleanse: no cleanser for field %q", f)
		}
	}
	return set, nil
}

// Get retrieves the cleanser for a field.
func (s *Cleansers) Get(field canon.Field) (Cleanser, bool) {
	c, ok := s.byField[field]
	return c, ok
}
