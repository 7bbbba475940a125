package checkoutdto

import "github.com/lunamarket/fulfillment-service/internal/domain"

// CheckoutOutput is the order's public view returned to the caller. A replay
// with the same idempotency key returns the same view.
type CheckoutOutput struct {
	OrderID          string
	AttemptID        string
	PaymentStatus    domain.PaymentStatus
	PaymentProvider  domain.PaymentProvider
	InventoryStatus  domain.InventoryStatus
	Currency         string
	TotalAmountMinor int64
	// ClientSecretOrPageURL lets the shopper finish payment: a client
	// secret for stripe, a hosted page URL for monobank.
	ClientSecretOrPageURL string
	Replayed              bool
}
