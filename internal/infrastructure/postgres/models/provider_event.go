package models

import (
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
)

type ProviderEventModel struct {
	ID                 string                    `gorm:"primaryKey;type:uuid"`
	EventKey           string                    `gorm:"uniqueIndex:uq_provider_events_event_key;not null"`
	Provider           domain.PaymentProvider    `gorm:"not null"`
	InvoiceID          string                    `gorm:"index:idx_provider_events_invoice"`
	Status             domain.NotificationStatus `gorm:"not null"`
	AmountMinor        int64
	Currency           string
	ProviderModifiedAt *time.Time
	RawPayload         string `gorm:"type:jsonb"`

	ClaimedAt      *time.Time
	ClaimExpiresAt *time.Time
	ClaimedBy      string

	AppliedAt        *time.Time `gorm:"index:idx_provider_events_applied"`
	AppliedResult    domain.AppliedResult
	AppliedErrorCode string

	CreatedAt time.Time
}

func (ProviderEventModel) TableName() string { return "provider_events" }
