package timesheet

import "time"

// TimeEntry is owned by the timer subsystem; payroll only reads it.
type TimeEntry struct {
	ID          int64      `gorm:"primaryKey"`
	UserID      int64      `gorm:"column:user_id;not null;index"`
	ProjectID   *int64     `gorm:"column:project_id"`
	Description string     `gorm:"column:description"`
	StartTime   time.Time  `gorm:"column:start_time;not null"`
	EndTime     *time.Time `gorm:"column:end_time"`
	Duration    int64      `gorm:"column:duration;not null"`
	IsRunning   bool       `gorm:"column:is_running"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (TimeEntry) TableName() string { return "time_entries" }
