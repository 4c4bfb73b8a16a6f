package payrate

import (
	"fmt"

	"github.com/frahmantamala/timetrack-payroll/internal/timesheet"
	"github.com/shopspring/decimal"
)

const RatePlaces = 4

// Rates are hourly equivalents, so gross is always
// regular_hours*Regular + overtime_hours*Overtime regardless of rate type.
type Rates struct {
	Regular  decimal.Decimal
	Overtime decimal.Decimal
}

// Strategy converts a rate of one type into hourly rates and decides which
// time entries count toward it.
type Strategy interface {
	Type() RateType
	Rates(rate *PayRate) Rates
	Filter(rate *PayRate) timesheet.Filter
}

type Strategies struct {
	byType map[RateType]Strategy
}

// NewStrategies builds the rate type table. dayHours and weekHours define the
// standard working day and week used to convert daily and monthly salaries.
func NewStrategies(dayHours, weekHours decimal.Decimal) *Strategies {
	list := []Strategy{
		hourly{},
		daily{dayHours: dayHours},
		monthly{weekHours: weekHours},
		projectBased{},
	}
	s := &Strategies{byType: make(map[RateType]Strategy, len(list))}
	for _, st := range list {
		s.byType[st.Type()] = st
	}
	return s
}

func (s *Strategies) For(t RateType) (Strategy, error) {
	st, ok := s.byType[t]
	if !ok {
		return nil, fmt.Errorf("unsupported rate type %q", t)
	}
	return st, nil
}

func withOvertime(regular decimal.Decimal, rate *PayRate) Rates {
	regular = regular.Round(RatePlaces)
	return Rates{
		Regular:  regular,
		Overtime: regular.Mul(rate.OvertimeMultiplier).Round(RatePlaces),
	}
}

type hourly struct{}

func (hourly) Type() RateType { return RateTypeHourly }

func (hourly) Rates(rate *PayRate) Rates { return withOvertime(rate.BaseRate, rate) }

func (hourly) Filter(*PayRate) timesheet.Filter { return timesheet.Filter{} }

type daily struct {
	dayHours decimal.Decimal
}

func (daily) Type() RateType { return RateTypeDaily }

func (d daily) Rates(rate *PayRate) Rates {
	return withOvertime(rate.BaseRate.DivRound(d.dayHours, RatePlaces+4), rate)
}

func (daily) Filter(*PayRate) timesheet.Filter { return timesheet.Filter{} }

type monthly struct {
	weekHours decimal.Decimal
}

func (monthly) Type() RateType { return RateTypeMonthly }

// Rates spreads twelve monthly salaries over 52 standard weeks.
func (m monthly) Rates(rate *PayRate) Rates {
	yearly := rate.BaseRate.Mul(decimal.NewFromInt(12))
	hours := m.weekHours.Mul(decimal.NewFromInt(52))
	return withOvertime(yearly.DivRound(hours, RatePlaces+4), rate)
}

func (monthly) Filter(*PayRate) timesheet.Filter { return timesheet.Filter{} }

type projectBased struct{}

func (projectBased) Type() RateType { return RateTypeProjectBased }

func (projectBased) Rates(rate *PayRate) Rates { return withOvertime(rate.BaseRate, rate) }

func (projectBased) Filter(rate *PayRate) timesheet.Filter {
	return timesheet.Filter{ProjectID: rate.ProjectID}
}
