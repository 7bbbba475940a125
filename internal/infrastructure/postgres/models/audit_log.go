package models

import "time"

type AuditLogModel struct {
	ID         string `gorm:"primaryKey;type:uuid"`
	OrderID    string `gorm:"type:uuid;not null;index"`
	Action     string `gorm:"not null"`
	Actor      string `gorm:"not null"`
	RequestID  string
	FromStatus string
	ToStatus   string
	Note       string
	CreatedAt  time.Time
}

func (AuditLogModel) TableName() string { return "order_audit_logs" }
