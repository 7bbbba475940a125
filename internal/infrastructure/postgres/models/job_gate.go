package models

import "time"

// JobGateModel is the durable next-allowed-at gate row that rate-limits
// janitor jobs across instances.
type JobGateModel struct {
	JobName       string    `gorm:"primaryKey"`
	NextAllowedAt time.Time `gorm:"not null"`
	LastRunAt     *time.Time
	UpdatedAt     time.Time
}

func (JobGateModel) TableName() string { return "job_gates" }
