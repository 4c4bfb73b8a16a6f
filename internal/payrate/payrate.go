package payrate

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	payrateDatamodel "github.com/frahmantamala/timetrack-payroll/internal/core/datamodel/payrate"
	"github.com/shopspring/decimal"
)

type RateType string

const (
	RateTypeHourly       RateType = "hourly"
	RateTypeDaily        RateType = "daily"
	RateTypeMonthly      RateType = "monthly"
	RateTypeProjectBased RateType = "project_based"
)

var RateTypes = []string{
	string(RateTypeHourly),
	string(RateTypeDaily),
	string(RateTypeMonthly),
	string(RateTypeProjectBased),
}

type ChangeType string

const (
	ChangeCreated     ChangeType = "created"
	ChangeUpdated     ChangeType = "updated"
	ChangeDeactivated ChangeType = "deactivated"
)

type PayRate struct {
	ID                 int64           `json:"id"`
	UserID             int64           `json:"user_id"`
	RateType           RateType        `json:"rate_type"`
	ProjectID          *int64          `json:"project_id,omitempty"`
	BaseRate           decimal.Decimal `json:"base_rate"`
	OvertimeMultiplier decimal.Decimal `json:"overtime_multiplier"`
	Currency           string          `json:"currency"`
	EffectiveFrom      time.Time       `json:"effective_from"`
	EffectiveTo        *time.Time      `json:"effective_to,omitempty"`
	IsActive           bool            `json:"is_active"`
	CreatedBy          int64           `json:"created_by"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Covers reports whether the half-open interval [EffectiveFrom, EffectiveTo) contains day.
func (r *PayRate) Covers(day time.Time) bool {
	if day.Before(r.EffectiveFrom) {
		return false
	}
	return r.EffectiveTo == nil || day.Before(*r.EffectiveTo)
}

// Overlaps reports whether the rate interval intersects [from, to). A nil to is open-ended.
func (r *PayRate) Overlaps(from time.Time, to *time.Time) bool {
	return Overlap(r.EffectiveFrom, r.EffectiveTo, from, to)
}

func Overlap(aFrom time.Time, aTo *time.Time, bFrom time.Time, bTo *time.Time) bool {
	if bTo != nil && !aFrom.Before(*bTo) {
		return false
	}
	if aTo != nil && !bFrom.Before(*aTo) {
		return false
	}
	return true
}

type HistoryEntry struct {
	ID                 int64               `json:"id"`
	PayRateID          int64               `json:"pay_rate_id"`
	UserID             int64               `json:"user_id"`
	ChangeType         ChangeType          `json:"change_type"`
	PreviousBaseRate   decimal.NullDecimal `json:"previous_base_rate"`
	NewBaseRate        decimal.Decimal     `json:"new_base_rate"`
	PreviousMultiplier decimal.NullDecimal `json:"previous_overtime_multiplier"`
	NewMultiplier      decimal.Decimal     `json:"new_overtime_multiplier"`
	PreviousTo         *time.Time          `json:"previous_effective_to,omitempty"`
	NewTo              *time.Time          `json:"new_effective_to,omitempty"`
	ChangedBy          int64               `json:"changed_by"`
	Reason             string              `json:"reason,omitempty"`
	ChangedAt          time.Time           `json:"changed_at"`
}

var (
	ErrPayRateNotFound = internal.ErrPayRateNotFound
	ErrRateNotFound    = internal.ErrRateNotFound
	ErrRateOverlap     = internal.ErrRateOverlap
	ErrRateInactive    = internal.ErrRateInactive
	ErrForbidden       = internal.ErrUnauthorizedAccess
	ErrProjectNotFound = internal.ErrProjectNotFound
)

// OverlapIntegrityError means more than one active rate covers a date. The
// computation for that user must stop; picking one would hide corrupt data.
type OverlapIntegrityError struct {
	UserID  int64
	On      time.Time
	RateIDs []int64
}

func (e *OverlapIntegrityError) Error() string {
	ids := make([]string, len(e.RateIDs))
	for i, id := range e.RateIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("user %d has %d active pay rates covering %s (ids %s)",
		e.UserID, len(e.RateIDs), e.On.Format("2006-01-02"), strings.Join(ids, ","))
}

func (e *OverlapIntegrityError) Unwrap() error {
	return internal.ErrRateIntegrity
}

// OverlapError names the active rate a write would collide with.
type OverlapError struct {
	UserID        int64
	ConflictingID int64
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("pay rate overlaps active rate %d of user %d", e.ConflictingID, e.UserID)
}

func (e *OverlapError) Unwrap() error {
	return internal.ErrRateOverlap
}

func ToDataModel(r *PayRate) *payrateDatamodel.PayRate {
	return &payrateDatamodel.PayRate{
		ID:                 r.ID,
		UserID:             r.UserID,
		RateType:           string(r.RateType),
		ProjectID:          r.ProjectID,
		BaseRate:           r.BaseRate,
		OvertimeMultiplier: r.OvertimeMultiplier,
		Currency:           r.Currency,
		EffectiveFrom:      r.EffectiveFrom,
		EffectiveTo:        r.EffectiveTo,
		IsActive:           r.IsActive,
		CreatedBy:          r.CreatedBy,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func FromDataModel(r *payrateDatamodel.PayRate) *PayRate {
	return &PayRate{
		ID:                 r.ID,
		UserID:             r.UserID,
		RateType:           RateType(r.RateType),
		ProjectID:          r.ProjectID,
		BaseRate:           r.BaseRate,
		OvertimeMultiplier: r.OvertimeMultiplier,
		Currency:           r.Currency,
		EffectiveFrom:      r.EffectiveFrom.UTC(),
		EffectiveTo:        utcPtr(r.EffectiveTo),
		IsActive:           r.IsActive,
		CreatedBy:          r.CreatedBy,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func HistoryToDataModel(h *HistoryEntry) *payrateDatamodel.PayRateHistory {
	return &payrateDatamodel.PayRateHistory{
		ID:                 h.ID,
		PayRateID:          h.PayRateID,
		UserID:             h.UserID,
		ChangeType:         string(h.ChangeType),
		PreviousBaseRate:   h.PreviousBaseRate,
		NewBaseRate:        h.NewBaseRate,
		PreviousMultiplier: h.PreviousMultiplier,
		NewMultiplier:      h.NewMultiplier,
		PreviousTo:         h.PreviousTo,
		NewTo:              h.NewTo,
		ChangedBy:          h.ChangedBy,
		Reason:             h.Reason,
		ChangedAt:          h.ChangedAt,
	}
}

func HistoryFromDataModel(h *payrateDatamodel.PayRateHistory) *HistoryEntry {
	return &HistoryEntry{
		ID:                 h.ID,
		PayRateID:          h.PayRateID,
		UserID:             h.UserID,
		ChangeType:         ChangeType(h.ChangeType),
		PreviousBaseRate:   h.PreviousBaseRate,
		NewBaseRate:        h.NewBaseRate,
		PreviousMultiplier: h.PreviousMultiplier,
		NewMultiplier:      h.NewMultiplier,
		PreviousTo:         utcPtr(h.PreviousTo),
		NewTo:              utcPtr(h.NewTo),
		ChangedBy:          h.ChangedBy,
		Reason:             h.Reason,
		ChangedAt:          h.ChangedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
