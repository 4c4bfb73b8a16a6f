package payroll_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/frahmantamala/timetrack-payroll/internal/payroll"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

var _ = Describe("Ledger", func() {
	var (
		e      *env
		ctx    context.Context
		period *payroll.Period
		entry  *payroll.Entry
	)

	BeforeEach(func() {
		e = newEnv()
		ctx = context.Background()
		period = e.createPeriod("2024-01-01", "2024-01-07")
		e.addRate(1, payrate.RateTypeHourly, "2023-12-01", "20", "1.5")
		e.source.workDays(1, day("2024-01-01"), 5, 9)
		entry = entryFor(e.process(period.ID), 1)
	})

	reload := func() *payroll.Entry {
		current, err := e.repo.GetEntry(ctx, entry.ID)
		Expect(err).NotTo(HaveOccurred())
		return current
	}

	periodTotal := func() string {
		current, err := e.repo.GetPeriod(ctx, period.ID)
		Expect(err).NotTo(HaveOccurred())
		return current.TotalAmount.StringFixed(2)
	}

	It("applies a deduction to net and leaves gross alone", func() {
		// When
		adjustment, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
			AdjustmentType: "deduction", Description: "uniform", Amount: dec("50"),
		})

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(adjustment.Amount.StringFixed(2)).To(Equal("-50.00"))
		current := reload()
		Expect(current.GrossAmount.StringFixed(2)).To(Equal("950.00"))
		Expect(current.AdjustmentsAmount.StringFixed(2)).To(Equal("-50.00"))
		Expect(current.NetAmount.StringFixed(2)).To(Equal("900.00"))
		Expect(periodTotal()).To(Equal("900.00"))
	})

	It("restores net when the adjustment is removed", func() {
		adjustment, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
			AdjustmentType: "deduction", Description: "uniform", Amount: dec("50"),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(e.ledger.Remove(ctx, e.manager, adjustment.ID)).To(Succeed())

		current := reload()
		Expect(current.AdjustmentsAmount.IsZero()).To(BeTrue())
		Expect(current.NetAmount.StringFixed(2)).To(Equal("950.00"))
		Expect(periodTotal()).To(Equal("950.00"))
	})

	It("re-signs the amount when the type changes", func() {
		// Given
		adjustment, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
			AdjustmentType: "deduction", Description: "advance", Amount: dec("40"),
		})
		Expect(err).NotTo(HaveOccurred())

		// When
		bonus := "bonus"
		updated, err := e.ledger.Update(ctx, e.manager, adjustment.ID, payroll.UpdateAdjustmentDTO{AdjustmentType: &bonus})

		// Then
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Amount.StringFixed(2)).To(Equal("40.00"))
		Expect(updated.ID).To(Equal(adjustment.ID))
		Expect(reload().NetAmount.StringFixed(2)).To(Equal("990.00"))
	})

	It("sums several adjustments", func() {
		for _, dto := range []payroll.AdjustmentDTO{
			{AdjustmentType: "bonus", Amount: dec("100")},
			{AdjustmentType: "tax", Amount: dec("-95.50")},
			{AdjustmentType: "reimbursement", Amount: dec("12.25")},
			{AdjustmentType: "other", Amount: dec("-1.75")},
		} {
			_, err := e.ledger.Add(ctx, e.manager, entry.ID, dto)
			Expect(err).NotTo(HaveOccurred())
		}

		current := reload()
		Expect(current.AdjustmentsAmount.StringFixed(2)).To(Equal("15.00"))
		Expect(current.NetAmount.StringFixed(2)).To(Equal("965.00"))

		adjustments, err := e.ledger.ListFor(ctx, e.manager, entry.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(adjustments).To(HaveLen(4))
	})

	It("allows net to go negative", func() {
		_, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
			AdjustmentType: "deduction", Description: "overpayment recovery", Amount: dec("1000"),
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(reload().NetAmount.StringFixed(2)).To(Equal("-50.00"))
	})

	It("rejects zero amounts and sub-cent precision", func() {
		_, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{AdjustmentType: "bonus", Amount: decimal.Zero})
		Expect(err).To(HaveOccurred())

		_, err = e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{AdjustmentType: "bonus", Amount: dec("1.005")})
		Expect(err).To(HaveOccurred())

		_, err = e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{AdjustmentType: "commission", Amount: dec("1")})
		Expect(err).To(HaveOccurred())

		Expect(reload().AdjustmentsAmount.IsZero()).To(BeTrue())
	})

	It("rejects changes once the period is approved", func() {
		// Given
		adjustment, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
			AdjustmentType: "bonus", Amount: dec("10"),
		})
		Expect(err).NotTo(HaveOccurred())
		e.process(period.ID)
		_, err = e.service.ApprovePeriod(ctx, e.approver, period.ID, payroll.ApproveOptions{})
		Expect(err).NotTo(HaveOccurred())

		// When
		_, addErr := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{AdjustmentType: "bonus", Amount: dec("5")})
		removeErr := e.ledger.Remove(ctx, e.manager, adjustment.ID)

		// Then
		Expect(errors.Is(addErr, payroll.ErrPeriodLocked)).To(BeTrue())
		Expect(errors.Is(removeErr, payroll.ErrPeriodLocked)).To(BeTrue())
		var locked *payroll.LockedError
		Expect(errors.As(addErr, &locked)).To(BeTrue())
		Expect(locked.Status).To(Equal(payroll.StatusApproved))
		Expect(reload().NetAmount.StringFixed(2)).To(Equal("960.00"))
	})

	It("loses no update under concurrent additions", func() {
		// Given
		const writers = 8
		var wg sync.WaitGroup

		// When
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
					AdjustmentType: "bonus", Amount: dec("10"),
				})
				Expect(err).NotTo(HaveOccurred())
			}()
		}
		wg.Wait()

		// Then
		current := reload()
		Expect(current.AdjustmentsAmount.StringFixed(2)).To(Equal("80.00"))
		Expect(current.NetAmount.StringFixed(2)).To(Equal("1030.00"))
		Expect(periodTotal()).To(Equal("1030.00"))
	})

	It("lets owners list their own adjustments only", func() {
		_, err := e.ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{AdjustmentType: "bonus", Amount: dec("10")})
		Expect(err).NotTo(HaveOccurred())

		own, err := e.ledger.ListFor(ctx, &internal.User{ID: 1}, entry.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(own).To(HaveLen(1))

		_, err = e.ledger.ListFor(ctx, &internal.User{ID: 2}, entry.ID)
		Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
	})

	It("requires manage_payroll to write", func() {
		_, err := e.ledger.Add(ctx, e.approver, entry.ID, payroll.AdjustmentDTO{AdjustmentType: "bonus", Amount: dec("10")})
		Expect(errors.Is(err, payroll.ErrForbidden)).To(BeTrue())
	})

	It("reports missing entries and adjustments", func() {
		_, err := e.ledger.Add(ctx, e.manager, 9999, payroll.AdjustmentDTO{AdjustmentType: "bonus", Amount: dec("10")})
		Expect(errors.Is(err, payroll.ErrEntryNotFound)).To(BeTrue())

		err = e.ledger.Remove(ctx, e.manager, 9999)
		Expect(errors.Is(err, payroll.ErrAdjustmentNotFound)).To(BeTrue())
	})

	Context("when the entry version moves underneath a write", func() {
		It("retries with fresh reads and applies the adjustment once", func() {
			// Given
			contention := &versionContention{conflicts: 1}
			ledger := payroll.NewLedger(contention.wrap(e.repo), stubAuthorizer{}, 3, quietLogger())

			// When
			_, err := ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
				AdjustmentType: "bonus", Description: "retried", Amount: dec("25"),
			})

			// Then
			Expect(err).NotTo(HaveOccurred())
			Expect(contention.attempts).To(Equal(2))
			adjustments, err := e.repo.ListAdjustments(ctx, entry.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(adjustments).To(HaveLen(1))
			Expect(reload().NetAmount.StringFixed(2)).To(Equal("975.00"))
			Expect(periodTotal()).To(Equal("975.00"))
		})

		It("returns ErrConcurrentUpdate once retries are exhausted", func() {
			// Given
			contention := &versionContention{conflicts: -1}
			ledger := payroll.NewLedger(contention.wrap(e.repo), stubAuthorizer{}, 2, quietLogger())

			// When
			_, err := ledger.Add(ctx, e.manager, entry.ID, payroll.AdjustmentDTO{
				AdjustmentType: "bonus", Description: "lost", Amount: dec("25"),
			})

			// Then
			Expect(errors.Is(err, payroll.ErrConcurrentUpdate)).To(BeTrue())
			Expect(contention.attempts).To(Equal(3))
			adjustments, err := e.repo.ListAdjustments(ctx, entry.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(adjustments).To(BeEmpty())
			Expect(reload().NetAmount.StringFixed(2)).To(Equal("950.00"))
			Expect(periodTotal()).To(Equal("950.00"))
		})
	})
})

// versionContention makes the guarded entry write lose the version check for
// the first conflicts attempts; a negative count loses every attempt.
type versionContention struct {
	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (c *versionContention) wrap(repo payroll.Repository) payroll.Repository {
	return &contendedRepository{Repository: repo, contention: c}
}

type contendedRepository struct {
	payroll.Repository
	contention *versionContention
}

func (r *contendedRepository) WithTx(ctx context.Context, fn func(repo payroll.Repository) error) error {
	return r.Repository.WithTx(ctx, func(tx payroll.Repository) error {
		return fn(r.contention.wrap(tx))
	})
}

func (r *contendedRepository) UpdateEntryAmounts(ctx context.Context, id int64, version int, adjustments, net decimal.Decimal, at time.Time) (bool, error) {
	c := r.contention
	c.mu.Lock()
	c.attempts++
	lose := c.conflicts != 0
	if c.conflicts > 0 {
		c.conflicts--
	}
	c.mu.Unlock()
	if lose {
		return false, nil
	}
	return r.Repository.UpdateEntryAmounts(ctx, id, version, adjustments, net, at)
}

var _ = Describe("NormalizeAmount", func() {
	DescribeTable("signs by adjustment type",
		func(t payroll.AdjustmentType, in, want string) {
			Expect(payroll.NormalizeAmount(t, dec(in)).String()).To(Equal(want))
		},
		Entry("bonus credits", payroll.AdjustmentBonus, "-10", "10"),
		Entry("reimbursement credits", payroll.AdjustmentReimbursement, "7.5", "7.5"),
		Entry("deduction debits", payroll.AdjustmentDeduction, "50", "-50"),
		Entry("tax debits", payroll.AdjustmentTax, "-3", "-3"),
		Entry("other keeps its sign", payroll.AdjustmentOther, "-4", "-4"),
	)
})

var _ = Describe("Gross", func() {
	It("rounds half away from zero to cents", func() {
		Expect(payroll.Gross(dec("1.0001"), dec("10.005"), decimal.Zero, decimal.Zero).StringFixed(2)).To(Equal("10.01"))
		Expect(payroll.Gross(dec("40"), dec("20"), dec("5"), dec("30")).StringFixed(2)).To(Equal("950.00"))
	})
})
