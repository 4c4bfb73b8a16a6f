package payroll

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/shopspring/decimal"
)

// NameLookup resolves display names for report rows. Missing ids are rendered by id.
type NameLookup interface {
	DisplayNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type Totals struct {
	Entries       int             `json:"entries"`
	RegularHours  decimal.Decimal `json:"regular_hours"`
	OvertimeHours decimal.Decimal `json:"overtime_hours"`
	Gross         decimal.Decimal `json:"gross_amount"`
	Adjustments   decimal.Decimal `json:"adjustments_amount"`
	Net           decimal.Decimal `json:"net_amount"`
}

func (t *Totals) add(e *Entry) {
	t.Entries++
	t.RegularHours = t.RegularHours.Add(e.RegularHours)
	t.OvertimeHours = t.OvertimeHours.Add(e.OvertimeHours)
	t.Gross = t.Gross.Add(e.GrossAmount)
	t.Adjustments = t.Adjustments.Add(e.AdjustmentsAmount)
	t.Net = t.Net.Add(e.NetAmount)
}

type SummaryRow struct {
	UserName string `json:"user_name,omitempty"`
	*Entry
}

type SummaryReport struct {
	Period            *Period                            `json:"period"`
	Voided            bool                               `json:"voided"`
	Totals            Totals                             `json:"totals"`
	AdjustmentsByType map[AdjustmentType]decimal.Decimal `json:"adjustments_by_type"`
	Users             []SummaryRow                       `json:"users"`
	LatestRun         *Run                               `json:"latest_run,omitempty"`
	Skipped           []Skip                             `json:"skipped"`
	NeedsReprocessing bool                               `json:"needs_reprocessing"`
}

type UserReport struct {
	PeriodID     int64         `json:"period_id"`
	PeriodName   string        `json:"period_name"`
	PeriodType   PeriodType    `json:"period_type"`
	StartDate    time.Time     `json:"start_date"`
	EndDate      time.Time     `json:"end_date"`
	PeriodStatus PeriodStatus  `json:"period_status"`
	Entry        *Entry        `json:"entry"`
	Adjustments  []*Adjustment `json:"adjustments"`
}

// ReportAssembler folds entries and adjustments into read-only views.
type ReportAssembler struct {
	repo       Repository
	authorizer Authorizer
	names      NameLookup
	logger     *slog.Logger
}

func NewReportAssembler(repo Repository, authorizer Authorizer, logger *slog.Logger) *ReportAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportAssembler{repo: repo, authorizer: authorizer, logger: logger}
}

func (r *ReportAssembler) WithNames(names NameLookup) *ReportAssembler {
	r.names = names
	return r
}

func (r *ReportAssembler) canViewReports(actor *internal.User) bool {
	return actor != nil && (r.authorizer.IsAuthorized(actor, internal.PermissionViewPayrollReports) ||
		r.authorizer.IsAuthorized(actor, internal.PermissionManagePayroll))
}

// GetSummary totals a period. Void periods are still returned for audit and flagged.
func (r *ReportAssembler) GetSummary(ctx context.Context, actor *internal.User, periodID int64) (*SummaryReport, error) {
	if !r.canViewReports(actor) {
		return nil, ErrForbidden
	}

	period, err := r.repo.GetPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	entries, err := r.repo.ListEntries(ctx, periodID)
	if err != nil {
		return nil, err
	}
	adjustments, err := r.repo.ListPeriodAdjustments(ctx, periodID)
	if err != nil {
		return nil, err
	}
	run, err := r.repo.LatestRun(ctx, periodID)
	if err != nil {
		return nil, err
	}

	report := &SummaryReport{
		Period:            period,
		Voided:            period.Status == StatusVoid,
		AdjustmentsByType: make(map[AdjustmentType]decimal.Decimal),
		Users:             make([]SummaryRow, 0, len(entries)),
		LatestRun:         run,
		Skipped:           []Skip{},
	}
	if run != nil {
		report.Skipped = append(report.Skipped, run.Skipped...)
		report.NeedsReprocessing = run.PeriodRevision != period.DatesRevision
	} else {
		report.NeedsReprocessing = period.Status.Editable()
	}

	names := r.displayNames(ctx, entries)
	for _, e := range entries {
		report.Totals.add(e)
		report.Users = append(report.Users, SummaryRow{UserName: names[e.UserID], Entry: e})
	}
	for _, a := range adjustments {
		report.AdjustmentsByType[a.Type] = report.AdjustmentsByType[a.Type].Add(a.Amount)
	}
	return report, nil
}

// GetUserReport lists a user's entries per period, newest first, excluding
// void periods. Users may read their own report.
func (r *ReportAssembler) GetUserReport(ctx context.Context, actor *internal.User, userID int64, periodID *int64) ([]*UserReport, error) {
	if actor == nil || (actor.ID != userID && !r.canViewReports(actor)) {
		return nil, ErrForbidden
	}

	entries, err := r.repo.ListUserEntries(ctx, userID, periodID)
	if err != nil {
		return nil, err
	}

	reports := make([]*UserReport, 0, len(entries))
	for _, e := range entries {
		period, err := r.repo.GetPeriod(ctx, e.PeriodID)
		if err != nil {
			return nil, err
		}
		adjustments, err := r.repo.ListAdjustments(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		reports = append(reports, &UserReport{
			PeriodID:     period.ID,
			PeriodName:   period.Name,
			PeriodType:   period.PeriodType,
			StartDate:    period.StartDate,
			EndDate:      period.EndDate,
			PeriodStatus: period.Status,
			Entry:        e,
			Adjustments:  adjustments,
		})
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartDate.After(reports[j].StartDate)
	})
	return reports, nil
}

func (r *ReportAssembler) displayNames(ctx context.Context, entries []*Entry) map[int64]string {
	if r.names == nil || len(entries) == 0 {
		return map[int64]string{}
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}
	names, err := r.names.DisplayNames(ctx, ids)
	if err != nil {
		r.logger.Warn("failed to resolve user names for report", "error", err)
		return map[int64]string{}
	}
	return names
}
