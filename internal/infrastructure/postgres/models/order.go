package models

import (
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
)

type OrderModel struct {
	ID               string                 `gorm:"primaryKey;type:uuid"`
	Status           domain.OrderStatus     `gorm:"index:idx_orders_status"`
	PaymentStatus    domain.PaymentStatus   `gorm:"index:idx_orders_payment_status"`
	PaymentProvider  domain.PaymentProvider
	InventoryStatus  domain.InventoryStatus
	Currency         string
	TotalAmountMinor int64
	IdempotencyKey   string `gorm:"uniqueIndex:uq_orders_idempotency_key"`
	PayloadDigest    string
	StockRestored    bool
	RestockedAt      *time.Time
	FailureCode      string
	FailureMessage   string

	ShippingRequired bool
	ShippingProvider string
	ShippingMethod   string
	ShippingStatus   domain.ShippingStatus
	TrackingNumber   string

	ShippingRecipientName string
	ShippingPhone         string
	ShippingCity          string
	ShippingAddressLine   string
	ShippingPostalCode    string
	ShippingCountryCode   string

	Lines []OrderLineModel `gorm:"foreignKey:OrderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;"`

	CreatedAt time.Time `gorm:"index:idx_orders_created_at"`
	UpdatedAt time.Time
}

func (OrderModel) TableName() string { return "orders" }

type OrderLineModel struct {
	ID             uint   `gorm:"primaryKey"`
	OrderID        string `gorm:"type:uuid;not null;index"`
	ProductID      string `gorm:"type:uuid;not null"`
	VariantID      string
	Quantity       int64 `gorm:"not null"`
	UnitPriceMinor int64 `gorm:"not null"`
	LineTotalMinor int64 `gorm:"not null"`
	CreatedAt      time.Time
}

func (OrderLineModel) TableName() string { return "order_lines" }
