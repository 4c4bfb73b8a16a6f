package timesheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Aggregator sums finalized time entries of a user into regular and overtime hours.
type Aggregator struct {
	source Source
	policy OvertimePolicy
	loc    *time.Location
	logger *slog.Logger
}

func NewAggregator(source Source, policy OvertimePolicy, loc *time.Location, logger *slog.Logger) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{source: source, policy: policy, loc: loc, logger: logger}
}

func (a *Aggregator) Location() *time.Location {
	return a.loc
}

func (a *Aggregator) Policy() OvertimePolicy {
	return a.policy
}

// Aggregate covers entries starting within the calendar dates [start, end].
// No eligible entries yields zero hours, not an error.
func (a *Aggregator) Aggregate(ctx context.Context, userID int64, start, end time.Time, filter Filter) (Hours, error) {
	from, to := PeriodBounds(start, end, a.loc)

	entries, err := a.source.ListFinalizedEntries(ctx, userID, from, to)
	if err != nil {
		return Hours{}, fmt.Errorf("list time entries for user %d: %w", userID, err)
	}

	eligible := entries[:0:0]
	for _, e := range entries {
		if !e.Eligible() || !filter.Match(e) {
			continue
		}
		if e.StartTime.Before(from) || !e.StartTime.Before(to) {
			continue
		}
		eligible = append(eligible, e)
	}

	split := a.policy.Split(eligible, a.loc)
	a.logger.Debug("aggregated hours",
		"user_id", userID,
		"entries", len(eligible),
		"regular_seconds", split.RegularSeconds,
		"overtime_seconds", split.OvertimeSeconds,
		"policy", a.policy.Name())

	return NewHours(split, len(eligible)), nil
}

// UsersWithEntries lists users having eligible entries within the calendar dates [start, end].
func (a *Aggregator) UsersWithEntries(ctx context.Context, start, end time.Time) ([]int64, error) {
	from, to := PeriodBounds(start, end, a.loc)
	return a.source.ListUsersWithEntries(ctx, from, to)
}
