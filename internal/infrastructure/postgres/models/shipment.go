package models

import (
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
)

type ShipmentModel struct {
	ID           string                `gorm:"primaryKey;type:uuid"`
	OrderID      string                `gorm:"type:uuid;not null;uniqueIndex:uq_shipments_order_id"`
	Status       domain.ShipmentStatus `gorm:"not null;index:idx_shipments_due"`
	AttemptCount int                   `gorm:"not null;default:0"`

	LeaseOwner     string
	LeaseExpiresAt *time.Time
	NextAttemptAt  *time.Time `gorm:"index:idx_shipments_due"`

	ProviderRef      string
	TrackingNumber   string
	LastErrorCode    string
	LastErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ShipmentModel) TableName() string { return "shipping_shipments" }
