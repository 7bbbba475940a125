package checkoutdto

import "github.com/lunamarket/fulfillment-service/internal/domain"

type CartLine struct {
	ProductID string
	VariantID string
	Quantity  int64
}

type CheckoutInput struct {
	IdempotencyKey   string
	RequestID        string
	Currency         string
	Provider         domain.PaymentProvider
	Lines            []CartLine
	ShippingRequired bool
	ShippingMethod   string
	Shipping         *domain.ShippingSnapshot
}
