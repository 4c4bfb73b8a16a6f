package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePeriodProcessed = "payroll.period.processed"
	EventTypePeriodApproved  = "payroll.period.approved"
	EventTypePeriodPaid      = "payroll.period.paid"
	EventTypePeriodVoided    = "payroll.period.voided"
)

// PeriodEventTypes lists every payroll lifecycle event, in lifecycle order.
var PeriodEventTypes = []string{
	EventTypePeriodProcessed,
	EventTypePeriodApproved,
	EventTypePeriodPaid,
	EventTypePeriodVoided,
}

type PeriodEvent struct {
	BaseEvent
	PeriodID    int64  `json:"period_id"`
	PeriodName  string `json:"period_name"`
	Status      string `json:"status"`
	ActorID     int64  `json:"actor_id"`
	TotalAmount string `json:"total_amount"`
}

func NewPeriodEvent(eventType string, periodID int64, periodName, status string, actorID int64, totalAmount string) *PeriodEvent {
	return &PeriodEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"period_id":    periodID,
				"period_name":  periodName,
				"status":       status,
				"actor_id":     actorID,
				"total_amount": totalAmount,
			},
		},
		PeriodID:    periodID,
		PeriodName:  periodName,
		Status:      status,
		ActorID:     actorID,
		TotalAmount: totalAmount,
	}
}

// PeriodProcessedEvent additionally carries the run outcome counts.
type PeriodProcessedEvent struct {
	*PeriodEvent
	RunID        int64 `json:"run_id"`
	EntriesCount int   `json:"entries_count"`
	SkippedCount int   `json:"skipped_count"`
}

func NewPeriodProcessedEvent(periodID int64, periodName string, actorID int64, totalAmount string, runID int64, entries, skipped int) *PeriodProcessedEvent {
	base := NewPeriodEvent(EventTypePeriodProcessed, periodID, periodName, "draft", actorID, totalAmount)
	base.Data["run_id"] = runID
	base.Data["entries_count"] = entries
	base.Data["skipped_count"] = skipped
	return &PeriodProcessedEvent{
		PeriodEvent:  base,
		RunID:        runID,
		EntriesCount: entries,
		SkippedCount: skipped,
	}
}
