package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
)

type StripeClient struct {
	baseURL       string
	secretKey     string
	webhookSecret string
	httpClient    *http.Client
}

func NewStripeClient(cfg config.Stripe) *StripeClient {
	return &StripeClient{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *StripeClient) Provider() domain.PaymentProvider { return domain.ProviderStripe }

type stripeIntent struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	ClientSecret string `json:"client_secret"`
}

type stripeError struct {
	Error struct {
		Code string `json:"code"`
		Type string `json:"type"`
	} `json:"error"`
}

func (c *StripeClient) CreateIntent(ctx context.Context, in domain.CreateIntentInput) (*domain.IntentResult, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(in.AmountMinor, 10))
	form.Set("currency", strings.ToLower(in.Currency))
	form.Set("description", in.Description)
	form.Set("metadata[order_id]", in.OrderID)
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	// Stripe dedupes retried creates on this key, so a crash between the
	// call and our commit cannot produce a second intent.
	req.Header.Set("Idempotency-Key", in.IdempotencyKey)

	return c.doIntent(req)
}

func (c *StripeClient) GetIntentStatus(ctx context.Context, providerRef string) (*domain.IntentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payment_intents/"+providerRef, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	return c.doIntent(req)
}

func (c *StripeClient) doIntent(req *http.Request) (*domain.IntentResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.PSPError{Kind: domain.PSPUnknown}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr stripeError
		_ = json.Unmarshal(body, &apiErr)
		return nil, pspErrorFromStatus(resp.StatusCode, apiErr.Error.Code)
	}

	var intent stripeIntent
	if err := json.Unmarshal(body, &intent); err != nil {
		return nil, fmt.Errorf("decoding stripe intent: %w", err)
	}
	return &domain.IntentResult{
		ProviderRef:           intent.ID,
		Status:                stripeStatusToNotify(intent.Status),
		ClientSecretOrPageURL: intent.ClientSecret,
		AmountMinor:           intent.Amount,
	}, nil
}

type stripeWebhookEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object stripeIntent `json:"object"`
	} `json:"data"`
}

// VerifyWebhook checks the Stripe-Signature header (t=<ts>,v1=<hmac>) where
// the signed payload is "<ts>.<body>" under the endpoint secret.
func (c *StripeClient) VerifyWebhook(raw []byte, signatureHeader string) (*domain.ProviderNotification, error) {
	var ts, v1 string
	for _, part := range strings.Split(signatureHeader, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			ts = kv[1]
		case "v1":
			v1 = kv[1]
		}
	}
	if ts == "" || v1 == "" {
		return nil, &domain.PSPError{Kind: domain.PSPAuthFailed, ProviderCode: "missing_signature"}
	}

	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return nil, &domain.PSPError{Kind: domain.PSPAuthFailed, ProviderCode: "bad_signature"}
	}

	var event stripeWebhookEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return nil, fmt.Errorf("decoding stripe webhook: %w", err)
	}

	modified := time.Unix(event.Created, 0).UTC()
	amount := event.Data.Object.Amount
	if amount == 0 {
		amount = -1
	}
	return &domain.ProviderNotification{
		Provider:           domain.ProviderStripe,
		InvoiceID:          event.Data.Object.ID,
		Status:             stripeEventToNotify(event.Type, event.Data.Object.Status),
		AmountMinor:        amount,
		Currency:           "",
		ProviderModifiedAt: &modified,
		Raw:                raw,
	}, nil
}

func stripeStatusToNotify(status string) domain.NotificationStatus {
	switch status {
	case "succeeded":
		return domain.NotifySuccess
	case "processing", "requires_action", "requires_confirmation", "requires_payment_method":
		return domain.NotifyProcessing
	case "canceled":
		return domain.NotifyCanceled
	default:
		return domain.NotifyProcessing
	}
}

func stripeEventToNotify(eventType, objectStatus string) domain.NotificationStatus {
	switch eventType {
	case "payment_intent.succeeded":
		return domain.NotifySuccess
	case "payment_intent.payment_failed":
		return domain.NotifyFailed
	case "payment_intent.canceled":
		return domain.NotifyCanceled
	case "charge.refunded":
		return domain.NotifyRefunded
	default:
		return stripeStatusToNotify(objectStatus)
	}
}

func pspErrorFromStatus(httpStatus int, providerCode string) *domain.PSPError {
	kind := domain.PSPUnknown
	switch {
	case httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden:
		kind = domain.PSPAuthFailed
	case httpStatus >= 400 && httpStatus < 500:
		kind = domain.PSPBadRequest
	}
	return &domain.PSPError{Kind: kind, HTTPStatus: httpStatus, ProviderCode: providerCode}
}
