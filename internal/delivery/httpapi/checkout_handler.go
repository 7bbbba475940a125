package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/usecase"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	CheckoutUC usecase.CheckoutUsecase
	Log        *zap.SugaredLogger
}

func NewCheckoutHandler(checkoutUC usecase.CheckoutUsecase, log *zap.SugaredLogger) *CheckoutHandler {
	return &CheckoutHandler{CheckoutUC: checkoutUC, Log: log}
}

func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.Wrap(domain.KindInvalidPayload, "malformed request body", err))
		return
	}
	out, err := h.CheckoutUC.Checkout(r.Context(), req.toInput(middleware.GetReqID(r.Context())))
	if err != nil {
		h.Log.Warnw("checkout rejected", "kind", domain.KindOf(err), "error", err)
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if out.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, checkoutResponse{
		OrderID:               out.OrderID,
		AttemptID:             out.AttemptID,
		PaymentStatus:         string(out.PaymentStatus),
		PaymentProvider:       string(out.PaymentProvider),
		InventoryStatus:       string(out.InventoryStatus),
		Currency:              out.Currency,
		TotalAmountMinor:      out.TotalAmountMinor,
		ClientSecretOrPageURL: out.ClientSecretOrPageURL,
		Replayed:              out.Replayed,
	})
}

func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	order, audit, err := h.CheckoutUC.GetOrderView(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}

	lines := make([]orderLineResponse, len(order.Lines))
	for i, l := range order.Lines {
		lines[i] = orderLineResponse{
			ProductID:      l.ProductID,
			VariantID:      l.VariantID,
			Quantity:       l.Quantity,
			UnitPriceMinor: l.UnitPriceMinor,
			LineTotalMinor: l.LineTotalMinor,
		}
	}
	entries := make([]auditEntryResponse, len(audit))
	for i, e := range audit {
		entries[i] = auditEntryResponse{
			Action:     e.Action,
			Actor:      e.Actor,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Note:       e.Note,
			CreatedAt:  e.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, orderResponse{
		OrderID:          order.ID,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		PaymentProvider:  string(order.PaymentProvider),
		InventoryStatus:  string(order.InventoryStatus),
		Currency:         order.Currency,
		TotalAmountMinor: order.TotalAmountMinor,
		FailureCode:      order.FailureCode,
		ShippingRequired: order.ShippingRequired,
		ShippingStatus:   string(order.ShippingStatus),
		TrackingNumber:   order.TrackingNumber,
		Lines:            lines,
		AuditLog:         entries,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	})
}
