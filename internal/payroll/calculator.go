package payroll

import (
	"context"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/frahmantamala/timetrack-payroll/internal/timesheet"
	"github.com/shopspring/decimal"
)

type RateResolver interface {
	Resolve(ctx context.Context, userID int64, on time.Time) (*payrate.PayRate, error)
}

type HoursAggregator interface {
	Aggregate(ctx context.Context, userID int64, start, end time.Time, filter timesheet.Filter) (timesheet.Hours, error)
}

// Computation is one user's computed pay for a period before persistence.
type Computation struct {
	UserID int64
	Rate   *payrate.PayRate
	Rates  payrate.Rates
	Hours  timesheet.Hours
	Gross  decimal.Decimal
}

// Entry builds the entry row for the computation, layering the adjustment total on top of gross.
func (c *Computation) Entry(periodID int64, adjustments decimal.Decimal, at time.Time) *Entry {
	rateID := c.Rate.ID
	adjustments = adjustments.Round(MoneyPlaces)
	return &Entry{
		PeriodID:          periodID,
		UserID:            c.UserID,
		PayRateID:         &rateID,
		RateType:          string(c.Rate.RateType),
		Currency:          c.Rate.Currency,
		RegularHours:      c.Hours.Regular,
		OvertimeHours:     c.Hours.Overtime,
		RegularRate:       c.Rates.Regular,
		OvertimeRate:      c.Rates.Overtime,
		GrossAmount:       c.Gross,
		AdjustmentsAmount: adjustments,
		NetAmount:         c.Gross.Add(adjustments),
		Status:            EntryPending,
		ComputedAt:        at,
	}
}

// Calculator combines the effective rate and the aggregated hours of a user.
// It never writes; the state machine persists its output.
type Calculator struct {
	rates      RateResolver
	strategies *payrate.Strategies
	hours      HoursAggregator
}

func NewCalculator(rates RateResolver, strategies *payrate.Strategies, hours HoursAggregator) *Calculator {
	return &Calculator{rates: rates, strategies: strategies, hours: hours}
}

// Compute resolves the rate on the period start date, which governs the whole
// period, and prices the hours worked under it. A missing rate surfaces as
// payrate.ErrRateNotFound and overlapping rates as *payrate.OverlapIntegrityError.
func (c *Calculator) Compute(ctx context.Context, period *Period, userID int64) (*Computation, error) {
	rate, err := c.rates.Resolve(ctx, userID, period.StartDate)
	if err != nil {
		return nil, err
	}

	strategy, err := c.strategies.For(rate.RateType)
	if err != nil {
		return nil, err
	}

	hours, err := c.hours.Aggregate(ctx, userID, period.StartDate, period.EndDate, strategy.Filter(rate))
	if err != nil {
		return nil, err
	}

	rates := strategy.Rates(rate)
	return &Computation{
		UserID: userID,
		Rate:   rate,
		Rates:  rates,
		Hours:  hours,
		Gross:  Gross(hours.Regular, rates.Regular, hours.Overtime, rates.Overtime),
	}, nil
}

// Gross is regular_hours*regular_rate + overtime_hours*overtime_rate rounded
// half away from zero to cents.
func Gross(regularHours, regularRate, overtimeHours, overtimeRate decimal.Decimal) decimal.Decimal {
	return regularHours.Mul(regularRate).Add(overtimeHours.Mul(overtimeRate)).Round(MoneyPlaces)
}
