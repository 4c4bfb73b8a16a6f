package timesheet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TimeEntry is a finalized record from the timer subsystem. Payroll never writes it.
type TimeEntry struct {
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	ProjectID *int64     `db:"project_id"`
	StartTime time.Time  `db:"start_time"`
	EndTime   *time.Time `db:"end_time"`
	Duration  int64      `db:"duration"`
	IsRunning bool       `db:"is_running"`
}

// Eligible reports whether the entry may count toward payroll.
func (e TimeEntry) Eligible() bool {
	return !e.IsRunning && e.EndTime != nil && e.Duration > 0
}

// Filter narrows which entries count for a rate. A nil ProjectID admits every project.
type Filter struct {
	ProjectID *int64
}

func (f Filter) Match(e TimeEntry) bool {
	if f.ProjectID == nil {
		return true
	}
	return e.ProjectID != nil && *e.ProjectID == *f.ProjectID
}

// Source is the read-only view of finalized time entries.
type Source interface {
	// ListFinalizedEntries returns eligible entries of userID whose start time lies in [from, to).
	ListFinalizedEntries(ctx context.Context, userID int64, from, to time.Time) ([]TimeEntry, error)
	// ListUsersWithEntries returns the ids of users having an eligible entry starting in [from, to).
	ListUsersWithEntries(ctx context.Context, from, to time.Time) ([]int64, error)
}

// Split is the outcome of an overtime policy, in whole seconds.
type Split struct {
	RegularSeconds  int64
	OvertimeSeconds int64
}

func (s Split) Total() int64 {
	return s.RegularSeconds + s.OvertimeSeconds
}

// Hours converts seconds to decimal hours rounded to 4 places.
type Hours struct {
	Split
	Regular  decimal.Decimal
	Overtime decimal.Decimal
	Entries  int
}

const hourPlaces = 4

var secondsPerHour = decimal.NewFromInt(3600)

func SecondsToHours(seconds int64) decimal.Decimal {
	return decimal.NewFromInt(seconds).DivRound(secondsPerHour, hourPlaces)
}

func NewHours(split Split, entries int) Hours {
	return Hours{
		Split:    split,
		Regular:  SecondsToHours(split.RegularSeconds),
		Overtime: SecondsToHours(split.OvertimeSeconds),
		Entries:  entries,
	}
}

// PeriodBounds maps the inclusive calendar dates [start, end] to the instant
// range [from, to) in loc.
func PeriodBounds(start, end time.Time, loc *time.Location) (time.Time, time.Time) {
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return from.UTC(), to.UTC()
}
