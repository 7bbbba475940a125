package models

import (
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
)

type PaymentAttemptModel struct {
	ID                      string                 `gorm:"primaryKey;type:uuid"`
	OrderID                 string                 `gorm:"type:uuid;not null;index"`
	Provider                domain.PaymentProvider `gorm:"not null"`
	Status                  domain.AttemptStatus   `gorm:"not null;index:idx_attempts_status_updated"`
	AttemptNumber           int                    `gorm:"not null"`
	IdempotencyKey          string                 `gorm:"uniqueIndex:uq_attempts_idempotency_key"`
	ProviderPaymentIntentID string                 `gorm:"index:idx_attempts_provider_ref"`
	ClientSecretOrPageURL   string
	ExpectedAmountMinor     int64 `gorm:"not null"`
	Currency                string
	LastErrorCode           string
	LastErrorMessage        string
	CreatedAt               time.Time
	UpdatedAt               time.Time `gorm:"index:idx_attempts_status_updated"`
}

func (PaymentAttemptModel) TableName() string { return "payment_attempts" }
