package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal/timesheet"
	"github.com/jmoiron/sqlx"
)

// TimeEntrySource reads finalized entries straight from the timer subsystem's table.
type TimeEntrySource struct {
	db *sqlx.DB
}

func NewTimeEntrySource(db *sqlx.DB) timesheet.Source {
	return &TimeEntrySource{db: db}
}

const eligibleClause = `is_running = false AND end_time IS NOT NULL AND duration > 0`

func (s *TimeEntrySource) ListFinalizedEntries(ctx context.Context, userID int64, from, to time.Time) ([]timesheet.TimeEntry, error) {
	query := s.db.Rebind(`SELECT id, user_id, project_id, start_time, end_time, duration, is_running
		FROM time_entries
		WHERE user_id = ? AND start_time >= ? AND start_time < ? AND ` + eligibleClause + `
		ORDER BY start_time ASC, id ASC`)

	var entries []timesheet.TimeEntry
	if err := s.db.SelectContext(ctx, &entries, query, userID, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("select time entries: %w", err)
	}
	return entries, nil
}

func (s *TimeEntrySource) ListUsersWithEntries(ctx context.Context, from, to time.Time) ([]int64, error) {
	query := s.db.Rebind(`SELECT DISTINCT user_id FROM time_entries
		WHERE start_time >= ? AND start_time < ? AND ` + eligibleClause + `
		ORDER BY user_id`)

	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, query, from.UTC(), to.UTC()); err != nil {
		return nil, fmt.Errorf("select users with time entries: %w", err)
	}
	return ids, nil
}
