package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	checkoutdto "github.com/lunamarket/fulfillment-service/internal/usecase/dto/checkout"
)

type checkoutLineRequest struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Quantity  int64  `json:"quantity"`
}

type shippingRequest struct {
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	AddressLine   string `json:"address_line"`
	PostalCode    string `json:"postal_code,omitempty"`
	CountryCode   string `json:"country_code"`
}

type checkoutRequest struct {
	IdempotencyKey   string                 `json:"idempotency_key"`
	Currency         string                 `json:"currency"`
	Provider         domain.PaymentProvider `json:"provider"`
	Lines            []checkoutLineRequest  `json:"lines"`
	ShippingRequired bool                   `json:"shipping_required"`
	ShippingMethod   string                 `json:"shipping_method,omitempty"`
	Shipping         *shippingRequest       `json:"shipping,omitempty"`
}

type checkoutResponse struct {
	OrderID               string `json:"order_id"`
	AttemptID             string `json:"attempt_id,omitempty"`
	PaymentStatus         string `json:"payment_status"`
	PaymentProvider       string `json:"payment_provider"`
	InventoryStatus       string `json:"inventory_status"`
	Currency              string `json:"currency"`
	TotalAmountMinor      int64  `json:"total_amount_minor"`
	ClientSecretOrPageURL string `json:"client_secret_or_page_url,omitempty"`
	Replayed              bool   `json:"replayed"`
}

type orderLineResponse struct {
	ProductID      string `json:"product_id"`
	VariantID      string `json:"variant_id,omitempty"`
	Quantity       int64  `json:"quantity"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
	LineTotalMinor int64  `json:"line_total_minor"`
}

type auditEntryResponse struct {
	Action     string    `json:"action"`
	Actor      string    `json:"actor"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type orderResponse struct {
	OrderID          string               `json:"order_id"`
	Status           string               `json:"status"`
	PaymentStatus    string               `json:"payment_status"`
	PaymentProvider  string               `json:"payment_provider"`
	InventoryStatus  string               `json:"inventory_status"`
	Currency         string               `json:"currency"`
	TotalAmountMinor int64                `json:"total_amount_minor"`
	FailureCode      string               `json:"failure_code,omitempty"`
	ShippingRequired bool                 `json:"shipping_required"`
	ShippingStatus   string               `json:"shipping_status,omitempty"`
	TrackingNumber   string               `json:"tracking_number,omitempty"`
	Lines            []orderLineResponse  `json:"lines"`
	AuditLog         []auditEntryResponse `json:"audit_log,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (r *checkoutRequest) toInput(requestID string) *checkoutdto.CheckoutInput {
	lines := make([]checkoutdto.CartLine, len(r.Lines))
	for i, l := range r.Lines {
		lines[i] = checkoutdto.CartLine{ProductID: l.ProductID, VariantID: l.VariantID, Quantity: l.Quantity}
	}
	var shipping *domain.ShippingSnapshot
	if r.Shipping != nil {
		shipping = &domain.ShippingSnapshot{
			RecipientName: r.Shipping.RecipientName,
			Phone:         r.Shipping.Phone,
			City:          r.Shipping.City,
			AddressLine:   r.Shipping.AddressLine,
			PostalCode:    r.Shipping.PostalCode,
			CountryCode:   r.Shipping.CountryCode,
		}
	}
	return &checkoutdto.CheckoutInput{
		IdempotencyKey:   r.IdempotencyKey,
		RequestID:        requestID,
		Currency:         r.Currency,
		Provider:         r.Provider,
		Lines:            lines,
		ShippingRequired: r.ShippingRequired,
		ShippingMethod:   r.ShippingMethod,
		Shipping:         shipping,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps business error kinds onto HTTP statuses. Plumbing errors
// collapse into a 500 with no internals leaked.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindInvalidPayload:
		status = http.StatusBadRequest
	case domain.KindInsufficientStock, domain.KindIdempotencyConflict, domain.KindStateConflict:
		status = http.StatusConflict
	case domain.KindPriceConfigError:
		status = http.StatusUnprocessableEntity
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindRateLimited:
		status = http.StatusTooManyRequests
	case domain.KindProviderError:
		status = http.StatusBadGateway
	default:
		if errors.Is(err, domain.ErrOrderNotFound) || errors.Is(err, domain.ErrAttemptNotFound) ||
			errors.Is(err, domain.ErrProductNotFound) {
			status = http.StatusNotFound
			kind = domain.KindNotFound
		}
	}
	resp := errorResponse{Error: string(kind)}
	if resp.Error == "" {
		resp.Error = "Internal"
	}
	var de *domain.Error
	if errors.As(err, &de) {
		resp.Message = de.Message
	} else if status == http.StatusNotFound {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}
