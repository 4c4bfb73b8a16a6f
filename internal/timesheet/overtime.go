package timesheet

import (
	"fmt"
	"sort"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/shopspring/decimal"
)

const (
	PolicyNone        = "none"
	PolicyDaily       = "daily"
	PolicyWeekly      = "weekly"
	PolicyDailyWeekly = "daily_weekly"
)

// OvertimePolicy splits worked time into regular and overtime seconds.
// Entries are bucketed by their start time in loc and never split across buckets.
type OvertimePolicy interface {
	Name() string
	Split(entries []TimeEntry, loc *time.Location) Split
}

func NewOvertimePolicy(cfg internal.PayrollConfig) (OvertimePolicy, error) {
	daily := hoursToSeconds(cfg.DailyThresholdHours())
	weekly := hoursToSeconds(cfg.WeeklyThresholdHours())

	switch cfg.Overtime.Policy {
	case PolicyNone:
		return NoOvertime{}, nil
	case PolicyDaily, "":
		return DailyThreshold{ThresholdSeconds: daily}, nil
	case PolicyWeekly:
		return WeeklyThreshold{ThresholdSeconds: weekly}, nil
	case PolicyDailyWeekly:
		return DailyThenWeekly{DailySeconds: daily, WeeklySeconds: weekly}, nil
	default:
		return nil, fmt.Errorf("unknown overtime policy %q", cfg.Overtime.Policy)
	}
}

// hoursToSeconds rounds to the nearest second; 7.6h is 27360s, not 27359.
func hoursToSeconds(h decimal.Decimal) int64 {
	return h.Mul(decimal.NewFromInt(3600)).Round(0).IntPart()
}

type NoOvertime struct{}

func (NoOvertime) Name() string { return PolicyNone }

func (NoOvertime) Split(entries []TimeEntry, _ *time.Location) Split {
	var total int64
	for _, e := range entries {
		total += e.Duration
	}
	return Split{RegularSeconds: total}
}

type DailyThreshold struct {
	ThresholdSeconds int64
}

func (DailyThreshold) Name() string { return PolicyDaily }

func (p DailyThreshold) Split(entries []TimeEntry, loc *time.Location) Split {
	var out Split
	for _, day := range bucket(entries, loc, dayKey) {
		out = out.add(capAt(day.seconds, p.ThresholdSeconds))
	}
	return out
}

type WeeklyThreshold struct {
	ThresholdSeconds int64
}

func (WeeklyThreshold) Name() string { return PolicyWeekly }

func (p WeeklyThreshold) Split(entries []TimeEntry, loc *time.Location) Split {
	var out Split
	for _, week := range bucket(entries, loc, weekKey) {
		out = out.add(capAt(week.seconds, p.ThresholdSeconds))
	}
	return out
}

// DailyThenWeekly applies the daily threshold first, then moves regular time
// beyond the weekly threshold into overtime.
type DailyThenWeekly struct {
	DailySeconds  int64
	WeeklySeconds int64
}

func (DailyThenWeekly) Name() string { return PolicyDailyWeekly }

func (p DailyThenWeekly) Split(entries []TimeEntry, loc *time.Location) Split {
	weekly := make(map[string]Split)
	var order []string
	for _, day := range bucket(entries, loc, dayKey) {
		wk := weekKey(day.first.In(loc))
		if _, ok := weekly[wk]; !ok {
			order = append(order, wk)
		}
		weekly[wk] = weekly[wk].add(capAt(day.seconds, p.DailySeconds))
	}

	var out Split
	for _, wk := range order {
		s := weekly[wk]
		if s.RegularSeconds > p.WeeklySeconds {
			moved := s.RegularSeconds - p.WeeklySeconds
			s.RegularSeconds -= moved
			s.OvertimeSeconds += moved
		}
		out = out.add(s)
	}
	return out
}

func (s Split) add(o Split) Split {
	return Split{
		RegularSeconds:  s.RegularSeconds + o.RegularSeconds,
		OvertimeSeconds: s.OvertimeSeconds + o.OvertimeSeconds,
	}
}

func capAt(seconds, threshold int64) Split {
	if seconds <= threshold {
		return Split{RegularSeconds: seconds}
	}
	return Split{RegularSeconds: threshold, OvertimeSeconds: seconds - threshold}
}

type group struct {
	key     string
	first   time.Time
	seconds int64
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// weekKey is the ISO week, which starts on Monday.
func weekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

// bucket groups entries by key of their local start time, in chronological order.
func bucket(entries []TimeEntry, loc *time.Location, key func(time.Time) string) []group {
	if loc == nil {
		loc = time.UTC
	}
	idx := make(map[string]int)
	var groups []group
	for _, e := range entries {
		local := e.StartTime.In(loc)
		k := key(local)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, group{key: k, first: e.StartTime})
		}
		if e.StartTime.Before(groups[i].first) {
			groups[i].first = e.StartTime
		}
		groups[i].seconds += e.Duration
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].first.Before(groups[b].first) })
	return groups
}
