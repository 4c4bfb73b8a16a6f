package payrate

import (
	"strings"
	"time"

	"github.com/frahmantamala/timetrack-payroll/internal"
	"github.com/frahmantamala/timetrack-payroll/internal/core/common/validation"
	"github.com/shopspring/decimal"
)

const DefaultCurrency = "USD"

// CreateRateDTO is the request payload for assigning a new pay rate.
type CreateRateDTO struct {
	RateType           string           `json:"rate_type"`
	ProjectID          *int64           `json:"project_id,omitempty"`
	BaseRate           decimal.Decimal  `json:"base_rate"`
	OvertimeMultiplier *decimal.Decimal `json:"overtime_multiplier,omitempty"`
	Currency           string           `json:"currency,omitempty"`
	EffectiveFrom      string           `json:"effective_from"`
	EffectiveTo        *string          `json:"effective_to,omitempty"`
	Reason             string           `json:"reason,omitempty"`
}

// UpdateRateDTO changes the numeric fields or closes the interval of a rate. Nil fields are kept.
type UpdateRateDTO struct {
	BaseRate           *decimal.Decimal `json:"base_rate,omitempty"`
	OvertimeMultiplier *decimal.Decimal `json:"overtime_multiplier,omitempty"`
	EffectiveTo        *string          `json:"effective_to,omitempty"`
	Reason             string           `json:"reason,omitempty"`
}

type DeactivateRateDTO struct {
	Reason string `json:"reason"`
}

// ToDomain validates the payload and builds an active rate for userID.
func (dto CreateRateDTO) ToDomain(userID, actorID int64) (*PayRate, error) {
	multiplier := decimal.NewFromInt(1)
	if dto.OvertimeMultiplier != nil {
		multiplier = *dto.OvertimeMultiplier
	}
	currency := strings.ToUpper(strings.TrimSpace(dto.Currency))
	if currency == "" {
		currency = DefaultCurrency
	}

	from, appErr := validation.ParseDate("effective_from", dto.EffectiveFrom)
	if appErr != nil {
		return nil, appErr
	}
	to, appErr := validation.ParseOptionalDate("effective_to", dto.EffectiveTo)
	if appErr != nil {
		return nil, appErr
	}

	v := validation.NewValidator()
	v.Field("rate_type", dto.RateType).Required().OneOf(RateTypes...)
	v.Field("currency", currency).MinLength(3).MaxLength(3)
	v.Field("effective_to", to).After(from, "effective_from", internal.ErrCodeInvalidDate)
	v.Field("reason", dto.Reason).MaxLength(500)
	v.Field("project_id", dto.ProjectID).Custom(func(value interface{}) *internal.AppError {
		if RateType(dto.RateType) == RateTypeProjectBased && dto.ProjectID == nil {
			return internal.NewValidationFieldError("project_id", "project_id is required for project_based rates", internal.ErrCodeValidationFailed)
		}
		if RateType(dto.RateType) != RateTypeProjectBased && dto.ProjectID != nil {
			return internal.NewValidationFieldError("project_id", "project_id is only allowed for project_based rates", internal.ErrCodeValidationFailed)
		}
		return nil
	})
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}
	if appErr := validation.ValidateRateAmounts(dto.BaseRate, multiplier); appErr != nil {
		return nil, appErr
	}

	now := time.Now().UTC()
	return &PayRate{
		UserID:             userID,
		RateType:           RateType(dto.RateType),
		ProjectID:          dto.ProjectID,
		BaseRate:           dto.BaseRate,
		OvertimeMultiplier: multiplier,
		Currency:           currency,
		EffectiveFrom:      from,
		EffectiveTo:        to,
		IsActive:           true,
		CreatedBy:          actorID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// Apply returns a copy of rate with the update applied.
func (dto UpdateRateDTO) Apply(rate *PayRate) (*PayRate, error) {
	next := *rate
	if dto.BaseRate != nil {
		next.BaseRate = *dto.BaseRate
	}
	if dto.OvertimeMultiplier != nil {
		next.OvertimeMultiplier = *dto.OvertimeMultiplier
	}
	if dto.EffectiveTo != nil {
		to, appErr := validation.ParseOptionalDate("effective_to", dto.EffectiveTo)
		if appErr != nil {
			return nil, appErr
		}
		next.EffectiveTo = to
	}

	if dto.BaseRate == nil && dto.OvertimeMultiplier == nil && dto.EffectiveTo == nil {
		return nil, internal.NewValidationError("nothing to update", internal.ErrCodeValidationFailed)
	}

	v := validation.NewValidator()
	v.Field("effective_to", next.EffectiveTo).After(next.EffectiveFrom, "effective_from", internal.ErrCodeInvalidDate)
	v.Field("reason", dto.Reason).MaxLength(500)
	if appErr := v.Validate(); appErr != nil {
		return nil, appErr
	}
	if appErr := validation.ValidateRateAmounts(next.BaseRate, next.OvertimeMultiplier); appErr != nil {
		return nil, appErr
	}
	return &next, nil
}
