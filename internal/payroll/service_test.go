package payroll_test

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/core/events"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Service", func() {
	var (
		e      *env
		ctx    context.Context
		period *payroll.Period
	)

	BeforeEach(func() {
		e = newEnv()
		ctx = context.Background()
		period = e.createPeriod("2024-01-01", "2024-01-07")
	})

	Describe("CreatePeriod", func() {
		It("starts in draft with a zero total", func() {
			Expect(period.ID).NotTo(BeZero())
			Expect(period.Status).To(Equal(payroll.StatusDraft))
			Expect(period.TotalAmount.IsZero()).To(BeTrue())
		})

		It("rejects an end date before the start date", func() {
			// When
			_, err := e.service.CreatePeriod(ctx, e.manager, payroll.CreatePeriodDTO{
				Name: "Broken", PeriodType: "weekly", StartDate: "2024-01-07", EndDate: "2024-01-01",
			})

			// Then
			Expect(err).To(HaveOccurred())
			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		})

		It("rejects an unknown period type", func() {
			_, err := e.service.CreatePeriod(ctx, e.manager, payroll.CreatePeriodDTO{
				Name: "Odd", PeriodType: "fortnightly-ish", StartDate: "2024-01-01", EndDate: "2024-01-07",
			})
			Expect(err).To(HaveOccurred())
		})

		It("requires manage_payroll", func() {
			_, err := e.service.CreatePeriod(ctx, e.approver, payroll.CreatePeriodDTO{
				Name: "Nope", PeriodType: "weekly", StartDate: "2024-01-01", EndDate: "2024-01-07",
			})
			Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
		})
	})

	Describe("ProcessPeriod", func() {
		It("computes regular and overtime pay from the period start rate", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.workDays(1, day("2024-01-01"), 5, 9)

			// When
			result := e.process(period.ID)

			// Then
			Expect(result.Entries).To(HaveLen(1))
			entry := result.Entries[0]
			Expect(entry.RegularHours.Equal(dec("40"))).To(BeTrue())
			Expect(entry.OvertimeHours.Equal(dec("5"))).To(BeTrue())
			Expect(entry.RegularRate.Equal(dec("20"))).To(BeTrue())
			Expect(entry.OvertimeRate.Equal(dec("30"))).To(BeTrue())
			Expect(entry.GrossAmount.StringFixed(2)).To(Equal("950.00"))
			Expect(entry.NetAmount.StringFixed(2)).To(Equal("950.00"))
			Expect(entry.Status).To(Equal(payroll.EntryPending))
			Expect(result.Period.Status).To(Equal(payroll.StatusDraft))
			Expect(result.Period.TotalAmount.StringFixed(2)).To(Equal("950.00"))
			Expect(result.Period.LastProcessedAt).NotTo(BeNil())
			Expect(result.Run.Scope).To(Equal("all"))
			Expect(result.Skipped).To(BeEmpty())
		})

		It("ignores a rate change taking effect mid-period", func() {
			// Given
			old := e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			end := day("2024-01-04")
			old.EffectiveTo = &end
			Expect(e.rates.Update(ctx, old)).To(Succeed())
			e.addRate(1, payrate.RateTypeHourly, "2024-01-04", "100", "1.5")
			e.source.workDays(1, day("2024-01-01"), 5, 8)

			// When
			result := e.process(period.ID)

			// Then
			entry := entryFor(result, 1)
			Expect(*entry.PayRateID).To(Equal(old.ID))
			Expect(entry.GrossAmount.StringFixed(2)).To(Equal("800.00"))
		})

		It("creates a zero entry for a rated user without time entries", func() {
			e.addRate(2, payrate.RateTypeHourly, "2023-12-01", "25", "1.5")

			result := e.process(period.ID)

			entry := entryFor(result, 2)
			Expect(entry).NotTo(BeNil())
			Expect(entry.GrossAmount.IsZero()).To(BeTrue())
			Expect(entry.RegularHours.IsZero()).To(BeTrue())
		})

		It("ignores running entries and time outside the period", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "10", "1.5")
			e.source.add(1, day("2024-01-02").Add(9*time.Hour), 4)
			e.source.add(1, day("2024-01-08").Add(9*time.Hour), 4)
			e.source.add(1, day("2023-12-31").Add(23*time.Hour), 2)
			e.source.mu.Lock()
			e.source.entries = append(e.source.entries, timesheetRunning(1, day("2024-01-03").Add(9*time.Hour)))
			e.source.mu.Unlock()

			// When
			result := e.process(period.ID)

			// Then
			Expect(entryFor(result, 1).RegularHours.Equal(dec("4"))).To(BeTrue())
		})

		It("skips users without a rate instead of failing", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.workDays(1, day("2024-01-01"), 1, 8)
			e.source.workDays(2, day("2024-01-01"), 1, 8)

			// When
			result := e.process(period.ID)

			// Then
			Expect(result.Entries).To(HaveLen(1))
			Expect(result.Skipped).To(ConsistOf(HaveField("UserID", int64(2))))
			Expect(result.Skipped[0].Reason).To(Equal(payroll.SkipNoRate))
			Expect(result.Run.SkippedCount).To(Equal(1))
		})

		It("reports overlapping active rates as a rate conflict", func() {
			// Given
			e.addRate(3, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(3, payrate.RateTypeHourly, "2023-12-15", "22", "1.5")

			// When
			result := e.process(period.ID)

			// Then
			Expect(result.Entries).To(BeEmpty())
			Expect(result.Skipped).To(HaveLen(1))
			Expect(result.Skipped[0].Reason).To(Equal(payroll.SkipRateConflict))
		})

		It("is idempotent and keeps adjustments across re-runs", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.workDays(1, day("2024-01-01"), 5, 9)
			first := entryFor(e.process(period.ID), 1)
			_, err := e.ledger.Add(ctx, e.manager, first.ID, payroll.AdjustmentDTO{
				AdjustmentType: "deduction", Description: "equipment", Amount: dec("50"),
			})
			Expect(err).NotTo(HaveOccurred())
			stored, err := e.repo.GetEntry(ctx, first.ID)
			Expect(err).NotTo(HaveOccurred())

			// When
			second := e.process(period.ID)

			// Then
			again := entryFor(second, 1)
			Expect(again.ID).To(Equal(first.ID))
			Expect(again.Version).To(Equal(stored.Version))
			Expect(again.AdjustmentsAmount.StringFixed(2)).To(Equal("-50.00"))
			Expect(again.NetAmount.StringFixed(2)).To(Equal("900.00"))
			Expect(second.Period.TotalAmount.StringFixed(2)).To(Equal("900.00"))
		})

		It("recomputes changed hours on top of existing adjustments", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.workDays(1, day("2024-01-01"), 1, 8)
			first := entryFor(e.process(period.ID), 1)
			_, err := e.ledger.Add(ctx, e.manager, first.ID, payroll.AdjustmentDTO{
				AdjustmentType: "bonus", Description: "on call", Amount: dec("15"),
			})
			Expect(err).NotTo(HaveOccurred())
			e.source.workDays(1, day("2024-01-02"), 1, 8)

			// When
			again := entryFor(e.process(period.ID), 1)

			// Then
			Expect(again.GrossAmount.StringFixed(2)).To(Equal("320.00"))
			Expect(again.NetAmount.StringFixed(2)).To(Equal("335.00"))
			Expect(again.Version).To(BeNumerically(">", first.Version))
		})

		It("limits processing to the given users", func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(2, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")

			result, err := e.service.ProcessPeriod(ctx, e.manager, period.ID, payroll.ProcessOptions{UserIDs: []int64{2}})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Entries).To(HaveLen(1))
			Expect(result.Entries[0].UserID).To(Equal(int64(2)))
			Expect(result.Run.Scope).To(Equal("users"))
		})

		It("limits processing to users holding a rate type", func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(2, payrate.RateTypeDaily, "2023-12-01", "160", "1.5")

			result, err := e.service.ProcessPeriod(ctx, e.manager, period.ID, payroll.ProcessOptions{
				RateTypes: []payrate.RateType{payrate.RateTypeDaily},
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Entries).To(HaveLen(1))
			Expect(result.Entries[0].UserID).To(Equal(int64(2)))
			Expect(result.Entries[0].RegularRate.Equal(dec("20"))).To(BeTrue())
		})

		It("leaves inactive users out of the default scope", func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(2, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.service = rebuildWithInactive(e, 2)

			result := e.process(period.ID)

			Expect(result.Entries).To(HaveLen(1))
			Expect(result.Entries[0].UserID).To(Equal(int64(1)))
		})

		It("drops the entry of a user who left the default scope", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(2, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.workDays(1, day("2024-01-01"), 1, 8)
			e.source.workDays(2, day("2024-01-01"), 1, 8)
			first := e.process(period.ID)
			leaving := entryFor(first, 2)
			_, err := e.ledger.Add(ctx, e.manager, leaving.ID, payroll.AdjustmentDTO{
				AdjustmentType: "bonus", Description: "farewell", Amount: dec("40"),
			})
			Expect(err).NotTo(HaveOccurred())
			e.service = rebuildWithInactive(e, 2)

			// When
			result := e.process(period.ID)

			// Then
			Expect(result.Removed).To(Equal([]int64{2}))
			stored, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(ConsistOf(HaveField("UserID", int64(1))))
			adjustments, err := e.repo.ListPeriodAdjustments(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(adjustments).To(BeEmpty())
			Expect(result.Period.TotalAmount.StringFixed(2)).To(Equal("160.00"))
		})

		It("keeps entries outside an explicit user scope", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(2, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.workDays(1, day("2024-01-01"), 1, 8)
			e.process(period.ID)

			// When
			result, err := e.service.ProcessPeriod(ctx, e.manager, period.ID, payroll.ProcessOptions{UserIDs: []int64{2}})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Removed).To(BeEmpty())
			stored, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(2))
			Expect(result.Period.TotalAmount.StringFixed(2)).To(Equal("160.00"))
		})

		It("drops the previous entry of a user now skipped for a missing rate", func() {
			// Given
			rate := e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(2, payrate.RateTypeHourly, "2023-12-01", "25", "1.5")
			e.source.workDays(1, day("2024-01-01"), 1, 8)
			e.source.workDays(2, day("2024-01-01"), 1, 8)
			e.process(period.ID)
			rate.IsActive = false
			Expect(e.rates.Update(ctx, rate)).To(Succeed())

			// When
			result := e.process(period.ID)

			// Then
			Expect(result.Skipped).To(ConsistOf(HaveField("UserID", int64(1))))
			Expect(result.Removed).To(Equal([]int64{1}))
			stored, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(ConsistOf(HaveField("UserID", int64(2))))
			Expect(result.Period.TotalAmount.StringFixed(2)).To(Equal("200.00"))

			approved, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{AcceptPartial: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.TotalAmount.StringFixed(2)).To(Equal("200.00"))
			stored, err = e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(ConsistOf(And(
				HaveField("UserID", int64(2)),
				HaveField("Status", payroll.EntryApproved),
			)))
		})

		It("aborts on a time source failure and returns the period to draft", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.failError = errors.New("timer store unavailable")

			// When
			_, err := e.service.ProcessPeriod(ctx, e.manager, period.ID, payroll.ProcessOptions{})

			// Then
			Expect(err).To(MatchError(ContainSubstring("timer store unavailable")))
			current, err := e.repo.GetPeriod(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Status).To(Equal(payroll.StatusDraft))
			Expect(current.ProcessingToken).To(BeNil())
			run, err := e.repo.LatestRun(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(run).To(BeNil())
		})

		It("refuses while another run holds a fresh lease", func() {
			// Given
			ok, err := e.repo.AcquireProcessing(ctx, period.ID, "other-run", e.now, e.now.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			// When
			_, err = e.service.ProcessPeriod(ctx, e.manager, period.ID, payroll.ProcessOptions{})

			// Then
			Expect(errors.Is(err, payroll.ErrPeriodBusy)).To(BeTrue())
		})

		It("takes over a stale lease", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			ok, err := e.repo.AcquireProcessing(ctx, period.ID, "crashed-run", e.now, e.now.Add(-time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			e.now = e.now.Add(16 * time.Minute)

			// When
			result := e.process(period.ID)

			// Then
			Expect(result.Period.Status).To(Equal(payroll.StatusDraft))
			Expect(result.Entries).To(HaveLen(1))
		})

		It("rejects processing an approved period", func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.process(period.ID)
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.ProcessPeriod(ctx, e.manager, period.ID, payroll.ProcessOptions{})

			Expect(errors.Is(err, payroll.ErrPeriodLocked)).To(BeTrue())
		})

		It("publishes a processed event", func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")

			e.process(period.ID)

			Expect(e.publisher.types()).To(Equal([]string{events.EventTypePeriodProcessed}))
		})
	})

	Describe("ApprovePeriod", func() {
		BeforeEach(func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.source.workDays(1, day("2024-01-01"), 5, 9)
		})

		It("requires a completed run", func() {
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(errors.Is(err, payroll.ErrPeriodNotProcessed)).To(BeTrue())
		})

		It("freezes the period and its entries", func() {
			// Given
			e.process(period.ID)

			// When
			approved, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(payroll.StatusApproved))
			Expect(*approved.ApprovedBy).To(Equal(e.approver.ID))
			entries, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries[0].Status).To(Equal(payroll.EntryApproved))
			Expect(e.publisher.types()).To(ContainElement(events.EventTypePeriodApproved))
		})

		It("requires re-processing after the dates change", func() {
			// Given
			e.process(period.ID)
			end := "2024-01-06"
			_, err := e.service.UpdatePeriod(ctx, e.manager, period.ID, payroll.UpdatePeriodDTO{EndDate: &end})
			Expect(err).NotTo(HaveOccurred())

			// When
			_, err = e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})

			// Then
			Expect(errors.Is(err, payroll.ErrPeriodNotProcessed)).To(BeTrue())
			e.process(period.ID)
			_, err = e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("does not require re-processing after a rename", func() {
			e.process(period.ID)
			name := "Week one"
			_, err := e.service.UpdatePeriod(ctx, e.manager, period.ID, payroll.UpdatePeriodDTO{Name: &name})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())
		})

		It("blocks on users skipped for a missing rate unless partial approval is accepted", func() {
			// Given
			e.source.workDays(2, day("2024-01-01"), 1, 8)
			e.process(period.ID)

			// When
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})

			// Then
			var skipped *payroll.SkippedUsersError
			Expect(errors.As(err, &skipped)).To(BeTrue())
			Expect(skipped.NoRate).To(Equal([]int64{2}))
			Expect(errors.Is(err, payroll.ErrInvalidTransition)).To(BeTrue())

			approved, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{AcceptPartial: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(approved.Status).To(Equal(payroll.StatusApproved))
		})

		It("blocks on rate conflicts even with partial approval", func() {
			e.addRate(4, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.addRate(4, payrate.RateTypeHourly, "2023-12-20", "21", "1.5")
			e.process(period.ID)

			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{AcceptPartial: true})

			var skipped *payroll.SkippedUsersError
			Expect(errors.As(err, &skipped)).To(BeTrue())
			Expect(skipped.RateConflict).To(Equal([]int64{4}))
		})

		It("rejects a second approval", func() {
			e.process(period.ID)
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})

			var transition *payroll.TransitionError
			Expect(errors.As(err, &transition)).To(BeTrue())
			Expect(transition.From).To(Equal(payroll.StatusApproved))
		})

		It("requires approve_payroll", func() {
			e.process(period.ID)
			_, err := e.service.ApprovePeriod(ctx, e.manager, period.ID, payroll.ApproveOptions{})
			Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
		})
	})

	Describe("MarkPeriodPaid and VoidPeriod", func() {
		BeforeEach(func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.process(period.ID)
		})

		It("only pays approved periods", func() {
			_, err := e.service.MarkPeriodPaid(ctx, e.approver, period.ID)
			Expect(errors.Is(err, payroll.ErrInvalidTransition)).To(BeTrue())
		})

		It("pays an approved period and its entries", func() {
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())

			paid, err := e.service.MarkPeriodPaid(ctx, e.approver, period.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(paid.Status).To(Equal(payroll.StatusPaid))
			Expect(paid.PaidAt).NotTo(BeNil())
			entries, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries[0].Status).To(Equal(payroll.EntryPaid))
		})

		It("refuses to void a paid period", func() {
			// Given
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.MarkPeriodPaid(ctx, e.approver, period.ID)
			Expect(err).NotTo(HaveOccurred())

			// When
			_, err = e.service.VoidPeriod(ctx, e.manager, period.ID, "duplicate")

			// Then
			Expect(errors.Is(err, payroll.ErrInvalidTransition)).To(BeTrue())
			current, err := e.repo.GetPeriod(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(current.Status).To(Equal(payroll.StatusPaid))
		})

		It("voids an approved period and keeps its entries", func() {
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())

			voided, err := e.service.VoidPeriod(ctx, e.manager, period.ID, "issued twice")

			Expect(err).NotTo(HaveOccurred())
			Expect(voided.Status).To(Equal(payroll.StatusVoid))
			Expect(voided.VoidReason).To(Equal("issued twice"))
			entries, err := e.repo.ListEntries(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(e.publisher.types()).To(ContainElement(events.EventTypePeriodVoided))
		})

		It("rejects voiding twice", func() {
			_, err := e.service.VoidPeriod(ctx, e.manager, period.ID, "mistake")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.service.VoidPeriod(ctx, e.manager, period.ID, "again")

			Expect(errors.Is(err, payroll.ErrInvalidTransition)).To(BeTrue())
		})
	})

	Describe("UpdatePeriod and DeletePeriod", func() {
		It("rejects edits once approved", func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			e.process(period.ID)
			_, err := e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
			Expect(err).NotTo(HaveOccurred())

			name := "renamed"
			_, err = e.service.UpdatePeriod(ctx, e.manager, period.ID, payroll.UpdatePeriodDTO{Name: &name})

			Expect(errors.Is(err, payroll.ErrPeriodLocked)).To(BeTrue())
		})

		It("deletes a draft with its entries and runs", func() {
			// Given
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			entry := entryFor(e.process(period.ID), 1)
			_, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
				AdjustmentType: "bonus", Description: "x", Amount: dec("5"),
			})
			Expect(err).NotTo(HaveOccurred())

			// When
			Expect(e.service.DeletePeriod(ctx, e.manager, period.ID)).To(Succeed())

			// Then
			_, err = e.repo.GetPeriod(ctx, period.ID)
			Expect(errors.Is(err, payroll.ErrPeriodNotFound)).To(BeTrue())
			_, err = e.repo.GetEntry(ctx, entry.ID)
			Expect(errors.Is(err, payroll.ErrEntryNotFound)).To(BeTrue())
			run, err := e.repo.LatestRun(ctx, period.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(run).To(BeNil())
		})

		It("refuses to delete a voided period", func() {
			_, err := e.service.VoidPeriod(ctx, e.manager, period.ID, "mistake")
			Expect(err).NotTo(HaveOccurred())

			err = e.service.DeletePeriod(ctx, e.manager, period.ID)

			Expect(errors.Is(err, payroll.ErrInvalidTransition)).To(BeTrue())
		})
	})

	Describe("reads", func() {
		It("lists periods filtered by status", func() {
			other := e.createPeriod("2024-01-08", "2024-01-14")
			_, err := e.service.VoidPeriod(ctx, e.manager, other.ID, "not needed")
			Expect(err).NotTo(HaveOccurred())

			periods, err := e.service.ListPeriods(ctx, e.approver, payroll.PeriodFilter{Status: payroll.StatusDraft})

			Expect(err).NotTo(HaveOccurred())
			Expect(periods).To(HaveLen(1))
			Expect(periods[0].ID).To(Equal(period.ID))
		})

		It("lets a user read their own entry only", func() {
			e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
			entry := entryFor(e.process(period.ID), 1)

			own, err := e.service.GetEntry(ctx, &internal.User{ID: 1}, entry.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(own.ID).To(Equal(entry.ID))

			_, err = e.service.GetEntry(ctx, &internal.User{ID: 2}, entry.ID)
			Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
		})

		It("returns not found for a missing period", func() {
			_, err := e.service.GetPeriod(ctx, e.manager, 999)
			Expect(errors.Is(err, payroll.ErrPeriodNotFound)).To(BeTrue())
		})
	})
})
