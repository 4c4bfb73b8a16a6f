package payrate

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal/core/common/validation"
)

type RateReader interface {
	FindActiveCovering(ctx context.Context, userID int64, day time.Time) ([]*PayRate, error)
}

// Resolver returns the single active rate effective on a date.
type Resolver struct {
	reader RateReader
}

func NewResolver(reader RateReader) *Resolver {
	return &Resolver{reader: reader}
}

// Resolve fails with ErrRateNotFound when no active rate covers day and with
// *OverlapIntegrityError when several do.
func (r *Resolver) Resolve(ctx context.Context, userID int64, day time.Time) (*PayRate, error) {
	day = validation.Day(day)

	rates, err := r.reader.FindActiveCovering(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("find pay rates for user %d: %w", userID, err)
	}

	switch len(rates) {
	case 0:
		return nil, ErrRateNotFound
	case 1:
		return rates[0], nil
	default:
		ids := make([]int64, len(rates))
		for i, rate := range rates {
			ids[i] = rate.ID
		}
		return nil, &OverlapIntegrityError{UserID: userID, On: day, RateIDs: ids}
	}
}
