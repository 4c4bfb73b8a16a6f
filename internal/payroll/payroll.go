package payroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	payrollDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/payroll"
	"github.com/shopspring/decimal"
)

type PeriodStatus string

const (
	StatusDraft      PeriodStatus = "draft"
	StatusProcessing PeriodStatus = "processing"
	StatusApproved   PeriodStatus = "approved"
	StatusPaid       PeriodStatus = "paid"
	StatusVoid       PeriodStatus = "void"
)

// Editable reports whether entries, adjustments and metadata may still change.
func (s PeriodStatus) Editable() bool {
	return s == StatusDraft || s == StatusProcessing
}

type PeriodType string

const (
	PeriodWeekly      PeriodType = "weekly"
	PeriodBiWeekly    PeriodType = "bi_weekly"
	PeriodSemiMonthly PeriodType = "semi_monthly"
	PeriodMonthly     PeriodType = "monthly"
)

var PeriodTypes = []string{string(PeriodWeekly), string(PeriodBiWeekly), string(PeriodSemiMonthly), string(PeriodMonthly)}

type EntryStatus string

const (
	EntryPending  EntryStatus = "pending"
	EntryApproved EntryStatus = "approved"
	EntryPaid     EntryStatus = "paid"
)

type AdjustmentType string

const (
	AdjustmentBonus         AdjustmentType = "bonus"
	AdjustmentDeduction     AdjustmentType = "deduction"
	AdjustmentReimbursement AdjustmentType = "reimbursement"
	AdjustmentTax           AdjustmentType = "tax"
	AdjustmentOther         AdjustmentType = "other"
)

var AdjustmentTypes = []string{
	string(AdjustmentBonus),
	string(AdjustmentDeduction),
	string(AdjustmentReimbursement),
	string(AdjustmentTax),
	string(AdjustmentOther),
}

// SkipReason tags why a user in scope got no entry from a run.
type SkipReason string

const (
	SkipNoRate       SkipReason = "no_rate"
	SkipRateConflict SkipReason = "rate_conflict"
)

const MoneyPlaces = 2

var (
	ErrPeriodNotFound     = internal.ErrPeriodNotFound
	ErrEntryNotFound      = internal.ErrEntryNotFound
	ErrAdjustmentNotFound = internal.ErrAdjustmentNotFound
	ErrPeriodLocked       = internal.ErrPeriodLocked
	ErrInvalidTransition  = internal.ErrInvalidTransition
	ErrPeriodNotProcessed = internal.ErrPeriodNotProcessed
	ErrPeriodBusy         = internal.ErrPeriodBusy
	ErrDuplicateEntry     = internal.ErrDuplicateEntry
	ErrConcurrentUpdate   = internal.ErrConcurrentUpdate
	ErrForbidden          = internal.ErrUnauthorizedAccess
)

type Period struct {
	ID              int64           `json:"id"`
	Name            string          `json:"name"`
	PeriodType      PeriodType      `json:"period_type"`
	StartDate       time.Time       `json:"start_date"`
	EndDate         time.Time       `json:"end_date"`
	Status          PeriodStatus    `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	DatesRevision   int             `json:"-"`
	ProcessingToken *string         `json:"-"`
	// ProcessingStartedAt is the lease start of an in-flight process call.
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	LastProcessedAt     *time.Time `json:"last_processed_at,omitempty"`
	ApprovedBy          *int64     `json:"approved_by,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`
	PaidBy              *int64     `json:"paid_by,omitempty"`
	PaidAt              *time.Time `json:"paid_at,omitempty"`
	VoidedBy            *int64     `json:"voided_by,omitempty"`
	VoidedAt            *time.Time `json:"voided_at,omitempty"`
	VoidReason          string     `json:"void_reason,omitempty"`
	CreatedBy           int64      `json:"created_by"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

type Entry struct {
	ID                int64           `json:"id"`
	PeriodID          int64           `json:"period_id"`
	UserID            int64           `json:"user_id"`
	PayRateID         *int64          `json:"pay_rate_id,omitempty"`
	RateType          string          `json:"rate_type"`
	Currency          string          `json:"currency"`
	RegularHours      decimal.Decimal `json:"regular_hours"`
	OvertimeHours     decimal.Decimal `json:"overtime_hours"`
	RegularRate       decimal.Decimal `json:"regular_rate"`
	OvertimeRate      decimal.Decimal `json:"overtime_rate"`
	GrossAmount       decimal.Decimal `json:"gross_amount"`
	AdjustmentsAmount decimal.Decimal `json:"adjustments_amount"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	Status            EntryStatus     `json:"status"`
	Version           int             `json:"version"`
	ComputedAt        time.Time       `json:"computed_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// sameComputation reports whether the computed part of two entries matches,
// so a re-run can leave the stored row untouched.
func (e *Entry) sameComputation(o *Entry) bool {
	return int64PtrEqual(e.PayRateID, o.PayRateID) &&
		e.RateType == o.RateType &&
		e.Currency == o.Currency &&
		e.RegularHours.Equal(o.RegularHours) &&
		e.OvertimeHours.Equal(o.OvertimeHours) &&
		e.RegularRate.Equal(o.RegularRate) &&
		e.OvertimeRate.Equal(o.OvertimeRate) &&
		e.GrossAmount.Equal(o.GrossAmount) &&
		e.AdjustmentsAmount.Equal(o.AdjustmentsAmount) &&
		e.NetAmount.Equal(o.NetAmount)
}

type Adjustment struct {
	ID          int64           `json:"id"`
	EntryID     int64           `json:"entry_id"`
	Type        AdjustmentType  `json:"adjustment_type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NormalizeAmount applies the sign convention of the adjustment type:
// bonuses and reimbursements are credits, deductions and taxes are debits,
// other keeps the sign it was given.
func NormalizeAmount(t AdjustmentType, amount decimal.Decimal) decimal.Decimal {
	switch t {
	case AdjustmentBonus, AdjustmentReimbursement:
		return amount.Abs()
	case AdjustmentDeduction, AdjustmentTax:
		return amount.Abs().Neg()
	default:
		return amount
	}
}

type Skip struct {
	UserID int64      `json:"user_id"`
	Reason SkipReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// Run is the append-only record of one completed process call.
type Run struct {
	ID             int64           `json:"id"`
	PeriodID       int64           `json:"period_id"`
	Token          string          `json:"-"`
	PeriodRevision int             `json:"-"`
	ProcessedBy    int64           `json:"processed_by"`
	EntriesCount   int             `json:"entries_count"`
	SkippedCount   int             `json:"skipped_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Scope          string          `json:"scope"`
	StartedAt      time.Time       `json:"started_at"`
	CompletedAt    time.Time       `json:"completed_at"`
	Skipped        []Skip          `json:"skipped"`
}

func (r *Run) skippedBy(reason SkipReason) []int64 {
	var ids []int64
	for _, s := range r.Skipped {
		if s.Reason == reason {
			ids = append(ids, s.UserID)
		}
	}
	return ids
}

// TransitionError rejects a lifecycle action from the period's current state.
type TransitionError struct {
	Action string
	From   PeriodStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s a payroll period in status %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// LockedError rejects a mutation of an approved, paid or void period.
type LockedError struct {
	PeriodID int64
	Status   PeriodStatus
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("payroll period %d is %s and can no longer be changed", e.PeriodID, e.Status)
}

func (e *LockedError) Unwrap() error {
	return ErrPeriodLocked
}

// SkippedUsersError blocks approval while users of the latest run have no entry.
type SkippedUsersError struct {
	NoRate       []int64
	RateConflict []int64
}

func (e *SkippedUsersError) Error() string {
	var parts []string
	if len(e.RateConflict) > 0 {
		parts = append(parts, fmt.Sprintf("conflicting rates for users %s", joinIDs(e.RateConflict)))
	}
	if len(e.NoRate) > 0 {
		parts = append(parts, fmt.Sprintf("no rate for users %s", joinIDs(e.NoRate)))
	}
	return "cannot approve payroll period: " + strings.Join(parts, "; ")
}

func (e *SkippedUsersError) Unwrap() error {
	return ErrInvalidTransition
}

func joinIDs(ids []int64) string {
	s := make([]string, len(ids))
	for i, id := range ids {
		s[i] = fmt.Sprint(id)
	}
	return strings.Join(s, ",")
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func PeriodToDataModel(p *Period) *payrollDatamodel.PayrollPeriod {
	return &payrollDatamodel.PayrollPeriod{
		ID:                  p.ID,
		Name:                p.Name,
		PeriodType:          string(p.PeriodType),
		StartDate:           p.StartDate,
		EndDate:             p.EndDate,
		Status:              string(p.Status),
		TotalAmount:         p.TotalAmount,
		DatesRevision:       p.DatesRevision,
		ProcessingToken:     p.ProcessingToken,
		ProcessingStartedAt: p.ProcessingStartedAt,
		LastProcessedAt:     p.LastProcessedAt,
		ApprovedBy:          p.ApprovedBy,
		ApprovedAt:          p.ApprovedAt,
		PaidBy:              p.PaidBy,
		PaidAt:              p.PaidAt,
		VoidedBy:            p.VoidedBy,
		VoidedAt:            p.VoidedAt,
		VoidReason:          p.VoidReason,
		CreatedBy:           p.CreatedBy,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
	}
}

func PeriodFromDataModel(m *payrollDatamodel.PayrollPeriod) *Period {
	return &Period{
		ID:                  m.ID,
		Name:                m.Name,
		PeriodType:          PeriodType(m.PeriodType),
		StartDate:           m.StartDate.UTC(),
		EndDate:             m.EndDate.UTC(),
		Status:              PeriodStatus(m.Status),
		TotalAmount:         m.TotalAmount.Round(MoneyPlaces),
		DatesRevision:       m.DatesRevision,
		ProcessingToken:     m.ProcessingToken,
		ProcessingStartedAt: m.ProcessingStartedAt,
		LastProcessedAt:     m.LastProcessedAt,
		ApprovedBy:          m.ApprovedBy,
		ApprovedAt:          m.ApprovedAt,
		PaidBy:              m.PaidBy,
		PaidAt:              m.PaidAt,
		VoidedBy:            m.VoidedBy,
		VoidedAt:            m.VoidedAt,
		VoidReason:          m.VoidReason,
		CreatedBy:           m.CreatedBy,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

func EntryToDataModel(e *Entry) *payrollDatamodel.PayrollEntry {
	return &payrollDatamodel.PayrollEntry{
		ID:                e.ID,
		PeriodID:          e.PeriodID,
		UserID:            e.UserID,
		PayRateID:         e.PayRateID,
		RateType:          e.RateType,
		Currency:          e.Currency,
		RegularHours:      e.RegularHours,
		OvertimeHours:     e.OvertimeHours,
		RegularRate:       e.RegularRate,
		OvertimeRate:      e.OvertimeRate,
		GrossAmount:       e.GrossAmount,
		AdjustmentsAmount: e.AdjustmentsAmount,
		NetAmount:         e.NetAmount,
		Status:            string(e.Status),
		Version:           e.Version,
		ComputedAt:        e.ComputedAt,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

// EntryFromDataModel normalises scale, since some drivers scan numerics as floats.
func EntryFromDataModel(m *payrollDatamodel.PayrollEntry) *Entry {
	return &Entry{
		ID:                m.ID,
		PeriodID:          m.PeriodID,
		UserID:            m.UserID,
		PayRateID:         m.PayRateID,
		RateType:          m.RateType,
		Currency:          m.Currency,
		RegularHours:      m.RegularHours.Round(4),
		OvertimeHours:     m.OvertimeHours.Round(4),
		RegularRate:       m.RegularRate.Round(4),
		OvertimeRate:      m.OvertimeRate.Round(4),
		GrossAmount:       m.GrossAmount.Round(MoneyPlaces),
		AdjustmentsAmount: m.AdjustmentsAmount.Round(MoneyPlaces),
		NetAmount:         m.NetAmount.Round(MoneyPlaces),
		Status:            EntryStatus(m.Status),
		Version:           m.Version,
		ComputedAt:        m.ComputedAt,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func AdjustmentToDataModel(a *Adjustment) *payrollDatamodel.PayrollAdjustment {
	return &payrollDatamodel.PayrollAdjustment{
		ID:             a.ID,
		EntryID:        a.EntryID,
		AdjustmentType: string(a.Type),
		Description:    a.Description,
		Amount:         a.Amount,
		CreatedBy:      a.CreatedBy,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func AdjustmentFromDataModel(m *payrollDatamodel.PayrollAdjustment) *Adjustment {
	return &Adjustment{
		ID:          m.ID,
		EntryID:     m.EntryID,
		Type:        AdjustmentType(m.AdjustmentType),
		Description: m.Description,
		Amount:      m.Amount.Round(MoneyPlaces),
		CreatedBy:   m.CreatedBy,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}
