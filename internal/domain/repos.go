package domain

import (
	"context"
	"time"
)

// PaymentStatusUpdate is the guarded durable transition: the write only lands
// if the order's persisted payment status is one of From at update time.
type PaymentStatusUpdate struct {
	To             PaymentStatus
	From           []PaymentStatus
	FailureCode    string
	FailureMessage string
}

type OrderRepository interface {
	// CreateOrderWithAttempt persists the order, its lines and the first
	// payment attempt in one transaction.
	CreateOrderWithAttempt(ctx context.Context, order *Order, attempt *PaymentAttempt) error
	GetOrderByID(ctx context.Context, orderID string) (*Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)

	// UpdatePaymentStatusGuarded performs the compare-and-set transition and
	// reports whether the write landed.
	UpdatePaymentStatusGuarded(ctx context.Context, orderID string, upd PaymentStatusUpdate) (bool, error)
	SetInventoryStatus(ctx context.Context, orderID string, status InventoryStatus) error
	// MarkStockRestored flips the stockRestored flag; the first caller wins
	// and gets true, every later caller gets false.
	MarkStockRestored(ctx context.Context, orderID string, at time.Time) (bool, error)
	SetShippingState(ctx context.Context, orderID string, status ShippingStatus, trackingNumber string) error

	// CreateAttempt persists a follow-up payment attempt for an existing
	// order; the first attempt rides CreateOrderWithAttempt.
	CreateAttempt(ctx context.Context, attempt *PaymentAttempt) error
	GetAttemptByID(ctx context.Context, attemptID string) (*PaymentAttempt, error)
	// GetLatestAttemptByOrderID returns the highest-numbered attempt, which
	// the idempotent replay path echoes back.
	GetLatestAttemptByOrderID(ctx context.Context, orderID string) (*PaymentAttempt, error)
	GetAttemptByProviderRef(ctx context.Context, provider PaymentProvider, providerRef string) (*PaymentAttempt, error)
	UpdateAttemptStatus(ctx context.Context, attemptID string, status AttemptStatus, errCode, errMsg string) error
	SetAttemptProviderRef(ctx context.Context, attemptID, providerRef, clientSecretOrPageURL string, status AttemptStatus) error
	// ListStaleOpenAttempts returns creating/active attempts untouched since
	// the cutoff, for janitor re-polling.
	ListStaleOpenAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*PaymentAttempt, error)

	// ListStuckOrders returns orders sitting in needs_review (payment) or
	// needs_attention (shipping) since before the cutoff.
	ListStuckOrders(ctx context.Context, cutoff time.Time, limit int) ([]*Order, error)
}

type InventoryRepository interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
	// GetPrice returns the authoritative minor-unit price for the currency.
	GetPrice(ctx context.Context, productID, currency string) (int64, error)
	// Reserve decrements stock and records the reserve move. Replays by move
	// key succeed without touching stock again.
	Reserve(ctx context.Context, orderID, productID string, qty int64) error
	// Release increments stock back, same replay contract.
	Release(ctx context.Context, orderID, productID string, qty int64) error
}

type ProviderEventRepository interface {
	// Insert stores the event unless its eventKey already exists; returns the
	// stored row and whether this call created it.
	Insert(ctx context.Context, event *ProviderEvent) (*ProviderEvent, bool, error)
	GetByID(ctx context.Context, eventID string) (*ProviderEvent, error)
	// Claim atomically takes the application lease; false means somebody else
	// holds an unexpired claim or the event is already applied.
	Claim(ctx context.Context, eventID, owner string, now time.Time, ttl time.Duration) (bool, error)
	// FinishApply records the outcome and releases the claim.
	FinishApply(ctx context.Context, eventID string, at time.Time, result AppliedResult, errCode string) error
	// LastAppliedModifiedAt returns the newest providerModifiedAt among
	// already-applied events for the invoice, nil if none.
	LastAppliedModifiedAt(ctx context.Context, invoiceID string) (*time.Time, error)
	ListUnapplied(ctx context.Context, now time.Time, limit int) ([]*ProviderEvent, error)
}

type ShipmentRepository interface {
	// Enqueue inserts a queued shipment; a second enqueue for the same order
	// is a no-op.
	Enqueue(ctx context.Context, shipment *ShippingShipment) error
	GetByOrderID(ctx context.Context, orderID string) (*ShippingShipment, error)
	// ClaimDueBatch leases up to limit due rows for owner: queued, failed
	// past nextAttemptAt, or processing with an expired lease.
	ClaimDueBatch(ctx context.Context, owner string, now time.Time, lease time.Duration, limit int) ([]*ShippingShipment, error)
	MarkSucceeded(ctx context.Context, shipmentID, providerRef, trackingNumber string) error
	MarkRetry(ctx context.Context, shipmentID string, attemptCount int, nextAttemptAt time.Time, errCode, errMsg string) error
	MarkNeedsAttention(ctx context.Context, shipmentID string, attemptCount int, errCode, errMsg string) error
}

type AuditRepository interface {
	Append(ctx context.Context, entry *AuditEntry) error
	ListByOrderID(ctx context.Context, orderID string) ([]*AuditEntry, error)
}

// JobGateRepository is the durable rate gate for janitor jobs.
type JobGateRepository interface {
	// TryPass passes the gate for jobName and schedules the next allowed run
	// at now+interval. When the gate is closed it returns false and the time
	// the job becomes runnable.
	TryPass(ctx context.Context, jobName string, now time.Time, interval time.Duration) (bool, time.Time, error)
}
