package payroll_test

import (
	"bytes"
	"context"
	"errors"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type staticNames map[int64]string

func (n staticNames) DisplayNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if name, ok := n[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

var _ = Describe("ReportAssembler", func() {
	var (
		e      *env
		ctx    context.Context
		period *payroll.Period
		viewer *internal.User
	)

	BeforeEach(func() {
		e = newEnv()
		ctx = context.Background()
		viewer = &internal.User{ID: 950, Permissions: []string{internal.PermissionViewPayrollReports}}
		period = e.createPeriod("2024-01-01", "2024-01-07")

		e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
		e.addRate(2, payrate.RateTypeHourly, "2023-12-01", "30", "2")
		e.source.workDays(1, day("2024-01-01"), 5, 9)
		e.source.workDays(2, day("2024-01-01"), 2, 10)
		e.source.workDays(3, day("2024-01-01"), 1, 8)
		e.process(period.ID)
		e.reports.WithNames(staticNames{1: "Ada Lovelace", 2: "Alan Turing"})
	})

	Describe("GetSummary", func() {
		It("totals entries and adjustments of a period", func() {
			// Given
			entries, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.ledger.Add(ctx, e.manager, entries[0].ID, payroll.AdjustmentDTO{AdjustmentType: "tax", Amount: dec("100")})
			Expect(err).NotTo(HaveOccurred())
			_, err = e.ledger.Add(ctx, e.manager, entries[1].ID, payroll.AdjustmentDTO{AdjustmentType: "bonus", Amount: dec("25")})
			Expect(err).NotTo(HaveOccurred())

			// When
			report, err := e.reports.GetSummary(ctx, viewer, period.ID)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(report.Totals.Entries).To(Equal(2))
			// user 1: 40h*20 + 5h*30 = 950; user 2: 16h*30 + 4h*60 = 720
			Expect(report.Totals.Gross.StringFixed(2)).To(Equal("1670.00"))
			Expect(report.Totals.Adjustments.StringFixed(2)).To(Equal("-75.00"))
			Expect(report.Totals.Net.StringFixed(2)).To(Equal("1595.00"))
			Expect(report.Totals.RegularHours.Equal(dec("56"))).To(BeTrue())
			Expect(report.Totals.OvertimeHours.Equal(dec("9"))).To(BeTrue())
			Expect(report.AdjustmentsByType[payroll.AdjustmentTax].StringFixed(2)).To(Equal("-100.00"))
			Expect(report.AdjustmentsByType[payroll.AdjustmentBonus].StringFixed(2)).To(Equal("25.00"))
			Expect(report.Users[0].UserName).To(Equal("Ada Lovelace"))
			Expect(report.Skipped).To(ConsistOf(HaveField("UserID", int64(3))))
			Expect(report.NeedsReprocessing).To(BeFalse())
			Expect(report.Voided).To(BeFalse())
		})

		It("flags void periods", func() {
			_, err := e.service.VoidPeriod(ctx, e.manager, period.ID, "wrong week")
			Expect(err).NotTo(HaveOccurred())

			report, err := e.reports.GetSummary(ctx, viewer, period.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Voided).To(BeTrue())
			Expect(report.Users).To(HaveLen(2))
		})

		It("flags periods whose dates changed since the last run", func() {
			end := "2024-01-05"
			_, err := e.service.UpdatePeriod(ctx, e.manager, period.ID, payroll.UpdatePeriodDTO{EndDate: &end})
			Expect(err).NotTo(HaveOccurred())

			report, err := e.reports.GetSummary(ctx, viewer, period.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.NeedsReprocessing).To(BeTrue())
		})

		It("is forbidden without report permissions", func() {
			_, err := e.reports.GetSummary(ctx, &internal.User{ID: 1}, period.ID)
			Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
		})
	})

	Describe("GetUserReport", func() {
		It("lists a user's periods newest first and hides void ones", func() {
			// Given
			second := e.createPeriod("2024-01-08", "2024-01-14")
			e.source.workDays(1, day("2024-01-08"), 1, 8)
			e.process(second.ID)
			third := e.createPeriod("2024-01-15", "2024-01-21")
			e.process(third.ID)
			_, err := e.service.VoidPeriod(ctx, e.manager, third.ID, "duplicate")
			Expect(err).NotTo(HaveOccurred())

			// When
			reports, err := e.reports.GetUserReport(ctx, &internal.User{ID: 1}, 1, nil)

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(2))
			Expect(reports[0].PeriodID).To(Equal(second.ID))
			Expect(reports[0].Entry.GrossAmount.StringFixed(2)).To(Equal("160.00"))
			Expect(reports[1].PeriodID).To(Equal(period.ID))
		})

		It("narrows to one period", func() {
			reports, err := e.reports.GetUserReport(ctx, viewer, 2, &period.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(reports).To(HaveLen(1))
			Expect(reports[0].Entry.UserID).To(Equal(int64(2)))
		})

		It("is forbidden for another user's report", func() {
			_, err := e.reports.GetUserReport(ctx, &internal.User{ID: 2}, 1, nil)
			Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
		})
	})

	Describe("RenderPayslip", func() {
		It("renders a PDF for the entry owner", func() {
			entries, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			_, err = e.ledger.Add(ctx, e.manager, entries[0].ID, payroll.AdjustmentDTO{
				AdjustmentType: "deduction", Description: "parking", Amount: dec("12.50"),
			})
			Expect(err).NotTo(HaveOccurred())

			pdf, err := e.reports.RenderPayslip(ctx, &internal.User{ID: entries[0].UserID}, entries[0].ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(bytes.HasPrefix(pdf, []byte("%PDF"))).To(BeTrue())
		})

		It("is forbidden for other users", func() {
			entries, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())

			_, err = e.reports.RenderPayslip(ctx, &internal.User{ID: 77}, entries[0].ID)

			Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
		})
	})
})
