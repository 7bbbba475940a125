package domain

import (
	"fmt"
	"time"
)

type AttemptStatus string

const (
	AttemptCreating  AttemptStatus = "creating"
	AttemptActive    AttemptStatus = "active"
	AttemptSucceeded AttemptStatus = "succeeded"
	AttemptFailed    AttemptStatus = "failed"
	AttemptCanceled  AttemptStatus = "canceled"
)

// PaymentAttempt is one try at collecting payment for an order through one
// provider. At most one attempt per order+provider may be creating or active.
type PaymentAttempt struct {
	ID                      string
	OrderID                 string
	Provider                PaymentProvider
	Status                  AttemptStatus
	AttemptNumber           int
	IdempotencyKey          string
	ProviderPaymentIntentID string
	// ClientSecretOrPageURL is persisted so an idempotent checkout replay
	// can hand the shopper the same payment handle.
	ClientSecretOrPageURL string
	ExpectedAmountMinor   int64
	Currency              string
	LastErrorCode         string
	LastErrorMessage      string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AttemptIdempotencyKey is the provider-facing idempotency token. Derived
// deterministically so a crashed-and-retried intent creation reuses the same
// token instead of double-charging.
func AttemptIdempotencyKey(orderID string, attemptNumber int) string {
	return fmt.Sprintf("%s:%d", orderID, attemptNumber)
}

func (a *PaymentAttempt) Open() bool {
	return a.Status == AttemptCreating || a.Status == AttemptActive
}
