package payroll

import (
	"strings"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/core/common/validation"
	"github.com/frahmantamala/timetrack-payroll/internal/payrate"
	"github.com/shopspring/decimal"
)

type CreatePeriodDTO struct {
	Name       string `json:"name"`
	PeriodType string `json:"period_type"`
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
}

func (dto CreatePeriodDTO) ToDomain(actorID int64) (*Period, error) {
	start, appErr := validation.ParseDate("start_date", dto.StartDate)
	if appErr != nil {
		return nil, appErr
	}
	end, appErr := validation.ParseDate("end_date", dto.EndDate)
	if appErr != nil {
		return nil, appErr
	}

	name := strings.TrimSpace(dto.Name)
	v := validation.NewValidator()
	v.Field("name", name).Required().MaxLength(100)
	v.Field("period_type", dto.PeriodType).Required().OneOf(PeriodTypes...)
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}
	if appErr := validation.ValidatePeriodDates(start, end); appErr != nil {
		return nil, appErr
	}

	now := time.Now().UTC()
	return &Period{
		Name:        name,
		PeriodType:  PeriodType(dto.PeriodType),
		StartDate:   start,
		EndDate:     end,
		Status:      StatusDraft,
		TotalAmount: decimal.Zero,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdatePeriodDTO changes period metadata. Nil fields are kept.
type UpdatePeriodDTO struct {
	Name       *string `json:"name,omitempty"`
	PeriodType *string `json:"period_type,omitempty"`
	StartDate  *string `json:"start_date,omitempty"`
	EndDate    *string `json:"end_date,omitempty"`
}

func (dto UpdatePeriodDTO) Apply(period *Period) (*Period, error) {
	if dto.Name == nil && dto.PeriodType == nil && dto.StartDate == nil && dto.EndDate == nil {
		return nil, internal.NewValidationError("nothing to update", internal.ErrCodeValidationFailed)
	}

	next := *period
	if dto.Name != nil {
		next.Name = strings.TrimSpace(*dto.Name)
	}
	if dto.PeriodType != nil {
		next.PeriodType = PeriodType(*dto.PeriodType)
	}
	if dto.StartDate != nil {
		start, appErr := validation.ParseDate("start_date", *dto.StartDate)
		if appErr != nil {
			return nil, appErr
		}
		next.StartDate = start
	}
	if dto.EndDate != nil {
		end, appErr := validation.ParseDate("end_date", *dto.EndDate)
		if appErr != nil {
			return nil, appErr
		}
		next.EndDate = end
	}

	v := validation.NewValidator()
	v.Field("name", next.Name).Required().MaxLength(100)
	v.Field("period_type", string(next.PeriodType)).OneOf(PeriodTypes...)
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}
	if appErr := validation.ValidatePeriodDates(next.StartDate, next.EndDate); appErr != nil {
		return nil, appErr
	}
	return &next, nil
}

type ProcessPeriodDTO struct {
	UserIDs   []int64  `json:"user_ids,omitempty"`
	RateTypes []string `json:"rate_types,omitempty"`
}

func (dto ProcessPeriodDTO) ToOptions() (ProcessOptions, error) {
	opts := ProcessOptions{UserIDs: dto.UserIDs}
	if len(dto.UserIDs) > 0 && len(dto.RateTypes) > 0 {
		return opts, internal.NewValidationError("user_ids and rate_types cannot be combined", internal.ErrCodeValidationFailed)
	}
	for _, id := range dto.UserIDs {
		if id <= 0 {
			return opts, internal.NewValidationFieldError("user_ids", "user_ids must be positive", internal.ErrCodeValidationFailed)
		}
	}
	for _, t := range dto.RateTypes {
		v := validation.NewValidator()
		v.Field("rate_types", t).OneOf(payrate.RateTypes...)
		if appErr := v.Validate(); appErr != nil {
			return opts, appErr
		}
		opts.RateTypes = append(opts.RateTypes, payrate.RateType(t))
	}
	return opts, nil
}

type ApprovePeriodDTO struct {
	AcceptPartial bool `json:"accept_partial"`
}

type VoidPeriodDTO struct {
	Reason string `json:"reason"`
}

type AdjustmentDTO struct {
	AdjustmentType string          `json:"adjustment_type"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
}

func (dto AdjustmentDTO) Validate() error {
	v := validation.NewValidator()
	v.Field("adjustment_type", dto.AdjustmentType).Required().OneOf(AdjustmentTypes...)
	v.Field("description", dto.Description).MaxLength(500)
	v.Field("amount", dto.Amount).
		NonZeroDecimal(internal.ErrCodeInvalidAmount).
		MaxScale(MoneyPlaces, internal.ErrCodeInvalidAmount)
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// ToDomain builds the adjustment with the amount signed by its type.
func (dto AdjustmentDTO) ToDomain(entryID, actorID int64) (*Adjustment, error) {
	if err := dto.Validate(); err != nil {
		return nil, err
	}
	t := AdjustmentType(dto.AdjustmentType)
	now := time.Now().UTC()
	return &Adjustment{
		EntryID:     entryID,
		Type:        t,
		Description: strings.TrimSpace(dto.Description),
		Amount:      NormalizeAmount(t, dto.Amount),
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// UpdateAdjustmentDTO changes an adjustment. Nil fields are kept; a type
// change re-applies the sign convention to the amount.
type UpdateAdjustmentDTO struct {
	AdjustmentType *string          `json:"adjustment_type,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
}

func (dto UpdateAdjustmentDTO) Apply(a *Adjustment) (*Adjustment, error) {
	if dto.AdjustmentType == nil && dto.Description == nil && dto.Amount == nil {
		return nil, internal.NewValidationError("nothing to update", internal.ErrCodeValidationFailed)
	}
	merged := AdjustmentDTO{
		AdjustmentType: string(a.Type),
		Description:    a.Description,
		Amount:         a.Amount,
	}
	if dto.AdjustmentType != nil {
		merged.AdjustmentType = *dto.AdjustmentType
	}
	if dto.Description != nil {
		merged.Description = *dto.Description
	}
	if dto.Amount != nil {
		merged.Amount = *dto.Amount
	}

	next, err := merged.ToDomain(a.EntryID, a.CreatedBy)
	if err != nil {
		return nil, err
	}
	next.ID = a.ID
	next.CreatedAt = a.CreatedAt
	return next, nil
}
