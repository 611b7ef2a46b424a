package audit

import (
	"context"
	"errors"
)

type Store interface {
	Append(ctx context.Context, event Event) error
}

// Reader is implemented by stores that can serve the trail back.
type Reader interface {
	ListByWallet(ctx context.Context, wallet string, limit int) ([]Event, error)
}

// Tee appends every event to each store in order. All stores are attempted;
// their errors are joined.
type Tee []Store

func (t Tee) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range t {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
