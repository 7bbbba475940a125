package httpapi

import (
	"io"
	"net/http"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/usecase"
	"go.uber.org/zap"
)

const maxWebhookBody = 1 << 20

// WebhookHandler terminates provider callbacks: verify the signature, persist
// the event, ack. Application happens inline or via the janitor backfill
// depending on the configured intake mode, but the provider's 200 only ever
// depends on verification and storage.
type WebhookHandler struct {
	EventUC    usecase.EventUsecase
	PSPClients map[domain.PaymentProvider]domain.PSPClient
	Cfg        config.Webhooks
	Log        *zap.SugaredLogger
}

func NewWebhookHandler(eventUC usecase.EventUsecase, pspClients map[domain.PaymentProvider]domain.PSPClient, cfg config.Webhooks, log *zap.SugaredLogger) *WebhookHandler {
	return &WebhookHandler{EventUC: eventUC, PSPClients: pspClients, Cfg: cfg, Log: log}
}

func (h *WebhookHandler) Stripe(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.ProviderStripe, r.Header.Get("Stripe-Signature"), h.Cfg.StripeMode)
}

func (h *WebhookHandler) Monobank(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, domain.ProviderMonobank, r.Header.Get("X-Sign"), h.Cfg.MonobankMode)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, provider domain.PaymentProvider, signature, mode string) {
	psp, ok := h.PSPClients[provider]
	if !ok {
		writeError(w, domain.Ef(domain.KindInvalidPayload, "provider %q not configured", provider))
		return
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, domain.Wrap(domain.KindInvalidPayload, "unreadable webhook body", err))
		return
	}

	notif, err := psp.VerifyWebhook(raw, signature)
	if err != nil {
		h.Log.Warnw("webhook rejected", "provider", provider, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "InvalidSignature"})
		return
	}

	event, err := h.EventUC.Ingest(r.Context(), notif, mode != "store_only")
	if err != nil {
		// Storage failed, so the provider must redeliver.
		h.Log.Errorw("webhook intake failed", "provider", provider, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"event_id": event.ID})
}
