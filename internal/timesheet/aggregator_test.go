package timesheet_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal/timesheet"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// MockSource implements timesheet.Source for testing
type MockSource struct {
	entries   []timesheet.TimeEntry
	failError error
	lastFrom  time.Time
	lastTo    time.Time
}

func (m *MockSource) ListFinalizedEntries(_ context.Context, userID int64, from, to time.Time) ([]timesheet.TimeEntry, error) {
	if m.failError != nil {
		return nil, m.failError
	}
	m.lastFrom, m.lastTo = from, to
	var out []timesheet.TimeEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockSource) ListUsersWithEntries(_ context.Context, _, _ time.Time) ([]int64, error) {
	seen := map[int64]bool{}
	var ids []int64
	for _, e := range m.entries {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}
	return ids, nil
}

var _ = Describe("Aggregator", func() {
	var (
		source     *MockSource
		aggregator *timesheet.Aggregator
		logger     *slog.Logger
		periodEnd  time.Time
	)

	BeforeEach(func() {
		source = &MockSource{}
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		aggregator = timesheet.NewAggregator(source, timesheet.DailyThreshold{ThresholdSeconds: 8 * hour}, time.UTC, logger)
		periodEnd = monday.AddDate(0, 0, 6)
	})

	It("returns 40 regular and 5 overtime hours for five 9h days", func() {
		// Given
		source.entries = workWeek(9, 5)

		// When
		hours, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{})

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(hours.Regular.StringFixed(4)).To(Equal("40.0000"))
		Expect(hours.Overtime.StringFixed(4)).To(Equal("5.0000"))
		Expect(hours.Entries).To(Equal(5))
	})

	It("returns zero hours without entries", func() {
		hours, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{})

		Expect(err).NotTo(HaveOccurred())
		Expect(hours.Regular.IsZero()).To(BeTrue())
		Expect(hours.Overtime.IsZero()).To(BeTrue())
	})

	It("queries the whole last day of the period", func() {
		_, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{})

		Expect(err).NotTo(HaveOccurred())
		Expect(source.lastFrom).To(Equal(monday))
		Expect(source.lastTo).To(Equal(monday.AddDate(0, 0, 7)))
	})

	It("drops running, unfinished and non-positive entries", func() {
		running := entry(1, monday, 9, 2)
		running.IsRunning = true
		open := entry(1, monday, 12, 2)
		open.EndTime = nil
		negative := entry(1, monday, 15, 2)
		negative.Duration = -10
		source.entries = []timesheet.TimeEntry{running, open, negative, entry(1, monday, 18, 1.5)}

		hours, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{})

		Expect(err).NotTo(HaveOccurred())
		Expect(hours.Regular.StringFixed(4)).To(Equal("1.5000"))
		Expect(hours.Entries).To(Equal(1))
	})

	It("ignores entries starting outside the period", func() {
		source.entries = []timesheet.TimeEntry{
			entry(1, monday.AddDate(0, 0, -1), 20, 6),
			entry(1, monday, 9, 3),
			entry(1, monday.AddDate(0, 0, 7), 0, 3),
		}

		hours, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{})

		Expect(err).NotTo(HaveOccurred())
		Expect(hours.Regular.StringFixed(4)).To(Equal("3.0000"))
	})

	It("counts only the filtered project", func() {
		project := int64(7)
		other := int64(8)
		onProject := entry(1, monday, 9, 3)
		onProject.ProjectID = &project
		offProject := entry(1, monday, 13, 4)
		offProject.ProjectID = &other
		source.entries = []timesheet.TimeEntry{onProject, offProject, entry(1, monday, 18, 1)}

		hours, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{ProjectID: &project})

		Expect(err).NotTo(HaveOccurred())
		Expect(hours.Regular.StringFixed(4)).To(Equal("3.0000"))
	})

	It("rounds hours to four decimal places", func() {
		e := entry(1, monday, 9, 0)
		e.Duration = 1000
		end := e.StartTime.Add(1000 * time.Second)
		e.EndTime = &end
		source.entries = []timesheet.TimeEntry{e}

		hours, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{})

		Expect(err).NotTo(HaveOccurred())
		Expect(hours.Regular.String()).To(Equal("0.2778"))
	})

	It("wraps source errors", func() {
		source.failError = errors.New("connection reset")

		_, err := aggregator.Aggregate(context.Background(), 1, monday, periodEnd, timesheet.Filter{})

		Expect(err).To(MatchError(ContainSubstring("connection reset")))
	})
})
