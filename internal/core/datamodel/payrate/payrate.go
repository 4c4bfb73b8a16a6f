package payrate

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayRate struct {
	ID                 int64           `gorm:"primaryKey"`
	UserID             int64           `gorm:"column:user_id;not null;index"`
	RateType           string          `gorm:"column:rate_type;not null"`
	ProjectID          *int64          `gorm:"column:project_id"`
	BaseRate           decimal.Decimal `gorm:"column:base_rate;type:numeric(14,4);not null"`
	OvertimeMultiplier decimal.Decimal `gorm:"column:overtime_multiplier;type:numeric(6,4);not null"`
	Currency           string          `gorm:"column:currency;not null"`
	EffectiveFrom      time.Time       `gorm:"column:effective_from;type:date;not null"`
	EffectiveTo        *time.Time      `gorm:"column:effective_to;type:date"`
	IsActive           bool            `gorm:"column:is_active;not null"`
	CreatedBy          int64           `gorm:"column:created_by"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PayRate) TableName() string { return "pay_rates" }

// PayRateHistory rows are append-only.
type PayRateHistory struct {
	ID                 int64               `gorm:"primaryKey"`
	PayRateID          int64               `gorm:"column:pay_rate_id;not null;index"`
	UserID             int64               `gorm:"column:user_id;not null"`
	ChangeType         string              `gorm:"column:change_type;not null"`
	PreviousBaseRate   decimal.NullDecimal `gorm:"column:previous_base_rate;type:numeric(14,4)"`
	NewBaseRate        decimal.Decimal     `gorm:"column:new_base_rate;type:numeric(14,4);not null"`
	PreviousMultiplier decimal.NullDecimal `gorm:"column:previous_overtime_multiplier;type:numeric(6,4)"`
	NewMultiplier      decimal.Decimal     `gorm:"column:new_overtime_multiplier;type:numeric(6,4);not null"`
	PreviousTo         *time.Time          `gorm:"column:previous_effective_to;type:date"`
	NewTo              *time.Time          `gorm:"column:new_effective_to;type:date"`
	ChangedBy          int64               `gorm:"column:changed_by;not null"`
	Reason             string              `gorm:"column:reason"`
	ChangedAt          time.Time           `gorm:"column:changed_at;not null"`
}

func (PayRateHistory) TableName() string { return "pay_rate_history" }
