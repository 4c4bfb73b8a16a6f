package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayrollPeriod struct {
	ID                  int64           `gorm:"primaryKey"`
	Name                string          `gorm:"column:name;not null"`
	PeriodType          string          `gorm:"column:period_type;not null"`
	StartDate           time.Time       `gorm:"column:start_date;type:date;not null"`
	EndDate             time.Time       `gorm:"column:end_date;type:date;not null"`
	Status              string          `gorm:"column:status;not null;index"`
	TotalAmount         decimal.Decimal `gorm:"column:total_amount;type:numeric(16,2);not null"`
	DatesRevision       int             `gorm:"column:dates_revision;not null"`
	ProcessingToken     *string         `gorm:"column:processing_token"`
	ProcessingStartedAt *time.Time      `gorm:"column:processing_started_at"`
	LastProcessedAt     *time.Time      `gorm:"column:last_processed_at"`
	ApprovedBy          *int64          `gorm:"column:approved_by"`
	ApprovedAt          *time.Time      `gorm:"column:approved_at"`
	PaidBy              *int64          `gorm:"column:paid_by"`
	PaidAt              *time.Time      `gorm:"column:paid_at"`
	VoidedBy            *int64          `gorm:"column:voided_by"`
	VoidedAt            *time.Time      `gorm:"column:voided_at"`
	VoidReason          string          `gorm:"column:void_reason"`
	CreatedBy           int64           `gorm:"column:created_by"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PayrollPeriod) TableName() string { return "payroll_periods" }

type PayrollEntry struct {
	ID                int64           `gorm:"primaryKey"`
	PeriodID          int64           `gorm:"column:period_id;not null;uniqueIndex:idx_payroll_entries_period_user"`
	UserID            int64           `gorm:"column:user_id;not null;uniqueIndex:idx_payroll_entries_period_user"`
	PayRateID         *int64          `gorm:"column:pay_rate_id"`
	RateType          string          `gorm:"column:rate_type;not null"`
	Currency          string          `gorm:"column:currency;not null"`
	RegularHours      decimal.Decimal `gorm:"column:regular_hours;type:numeric(10,4);not null"`
	OvertimeHours     decimal.Decimal `gorm:"column:overtime_hours;type:numeric(10,4);not null"`
	RegularRate       decimal.Decimal `gorm:"column:regular_rate;type:numeric(14,4);not null"`
	OvertimeRate      decimal.Decimal `gorm:"column:overtime_rate;type:numeric(14,4);not null"`
	GrossAmount       decimal.Decimal `gorm:"column:gross_amount;type:numeric(14,2);not null"`
	AdjustmentsAmount decimal.Decimal `gorm:"column:adjustments_amount;type:numeric(14,2);not null"`
	NetAmount         decimal.Decimal `gorm:"column:net_amount;type:numeric(14,2);not null"`
	Status            string          `gorm:"column:status;not null"`
	Version           int             `gorm:"column:version;not null"`
	ComputedAt        time.Time       `gorm:"column:computed_at;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PayrollEntry) TableName() string { return "payroll_entries" }

type PayrollAdjustment struct {
	ID             int64           `gorm:"primaryKey"`
	EntryID        int64           `gorm:"column:entry_id;not null;index"`
	AdjustmentType string          `gorm:"column:adjustment_type;not null"`
	Description    string          `gorm:"column:description"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	CreatedBy      int64           `gorm:"column:created_by;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PayrollAdjustment) TableName() string { return "payroll_adjustments" }

// PayrollRun is the append-only record of one completed process call.
type PayrollRun struct {
	ID             int64           `gorm:"primaryKey"`
	PeriodID       int64           `gorm:"column:period_id;not null;index"`
	Token          string          `gorm:"column:token;not null"`
	PeriodRevision int             `gorm:"column:period_revision;not null"`
	ProcessedBy    int64           `gorm:"column:processed_by;not null"`
	EntriesCount   int             `gorm:"column:entries_count;not null"`
	SkippedCount   int             `gorm:"column:skipped_count;not null"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(16,2);not null"`
	Scope          string          `gorm:"column:scope"`
	StartedAt      time.Time       `gorm:"column:started_at;not null"`
	CompletedAt    time.Time       `gorm:"column:completed_at;not null"`
}

func (PayrollRun) TableName() string { return "payroll_runs" }

type PayrollRunSkip struct {
	ID       int64  `gorm:"primaryKey"`
	RunID    int64  `gorm:"column:run_id;not null;index"`
	PeriodID int64  `gorm:"column:period_id;not null"`
	UserID   int64  `gorm:"column:user_id;not null"`
	Reason   string `gorm:"column:reason;not null"`
	Detail   string `gorm:"column:detail"`
}

func (PayrollRunSkip) TableName() string { return "payroll_run_skips" }
