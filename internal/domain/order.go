package domain

import "time"

type OrderStatus string

const (
	OrderStatusCreated     OrderStatus = "CREATED"
	OrderStatusCompleted   OrderStatus = "COMPLETED"
	OrderStatusFailed      OrderStatus = "FAILED"
	OrderStatusRefunded    OrderStatus = "REFUNDED"
	OrderStatusNeedsReview OrderStatus = "NEEDS_REVIEW"
)

type PaymentStatus string

const (
	PaymentPending         PaymentStatus = "pending"
	PaymentRequiresPayment PaymentStatus = "requires_payment"
	PaymentPaid            PaymentStatus = "paid"
	PaymentFailed          PaymentStatus = "failed"
	PaymentRefunded        PaymentStatus = "refunded"
	PaymentNeedsReview     PaymentStatus = "needs_review"
)

type PaymentProvider string

const (
	ProviderNone     PaymentProvider = "none"
	ProviderStripe   PaymentProvider = "stripe"
	ProviderMonobank PaymentProvider = "monobank"
)

type InventoryStatus string

const (
	InventoryNone           InventoryStatus = "none"
	InventoryReserving      InventoryStatus = "reserving"
	InventoryReserved       InventoryStatus = "reserved"
	InventoryReleasePending InventoryStatus = "release_pending"
	InventoryReleased       InventoryStatus = "released"
	InventoryFailed         InventoryStatus = "failed"
)

type ShippingStatus string

const (
	ShippingNone           ShippingStatus = "none"
	ShippingQueued         ShippingStatus = "queued"
	ShippingProcessing     ShippingStatus = "processing"
	ShippingLabelCreated   ShippingStatus = "label_created"
	ShippingFailed         ShippingStatus = "failed"
	ShippingNeedsAttention ShippingStatus = "needs_attention"
)

type OrderLine struct {
	ProductID      string
	VariantID      string
	Quantity       int64
	UnitPriceMinor int64
	LineTotalMinor int64
}

type Order struct {
	ID               string
	Status           OrderStatus
	PaymentStatus    PaymentStatus
	PaymentProvider  PaymentProvider
	InventoryStatus  InventoryStatus
	Currency         string
	TotalAmountMinor int64
	IdempotencyKey   string
	// PayloadDigest detects a reused idempotency key with a different cart.
	PayloadDigest  string
	StockRestored  bool
	RestockedAt    *time.Time
	FailureCode    string
	FailureMessage string

	ShippingRequired bool
	ShippingProvider string
	ShippingMethod   string
	ShippingStatus   ShippingStatus
	TrackingNumber   string
	Shipping         *ShippingSnapshot

	Lines []OrderLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// paymentTransitions lists, per target status, the statuses an order must
// currently hold for the transition to be legal. A stale event can never move
// an order backwards; needs_review is reachable from anywhere.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentRequiresPayment: {PaymentPending},
	PaymentPaid:            {PaymentPending, PaymentRequiresPayment},
	PaymentFailed:          {PaymentPending, PaymentRequiresPayment},
	PaymentRefunded:        {PaymentPaid},
	PaymentNeedsReview: {
		PaymentPending, PaymentRequiresPayment, PaymentPaid,
		PaymentFailed, PaymentRefunded, PaymentNeedsReview,
	},
}

// AllowedPaymentSources is used as the WHERE guard of the durable
// compare-and-set status update.
func AllowedPaymentSources(target PaymentStatus) []PaymentStatus {
	return paymentTransitions[target]
}

func CanTransitPayment(from, to PaymentStatus) bool {
	for _, s := range paymentTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// LifecycleFor mirrors the coarse order status from the payment state.
func LifecycleFor(ps PaymentStatus) OrderStatus {
	switch ps {
	case PaymentPaid:
		return OrderStatusCompleted
	case PaymentFailed:
		return OrderStatusFailed
	case PaymentRefunded:
		return OrderStatusRefunded
	case PaymentNeedsReview:
		return OrderStatusNeedsReview
	default:
		return OrderStatusCreated
	}
}
