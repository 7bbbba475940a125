package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
)

type MonobankClient struct {
	baseURL     string
	token       string
	webhookKey  string
	redirectURL string
	httpClient  *http.Client
}

func NewMonobankClient(cfg config.Monobank) *MonobankClient {
	return &MonobankClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       cfg.Token,
		webhookKey:  cfg.WebhookKey,
		redirectURL: cfg.RedirectURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *MonobankClient) Provider() domain.PaymentProvider { return domain.ProviderMonobank }

// ISO 4217 numeric codes used by the invoice API.
var monoCcyByCode = map[string]int{"UAH": 980, "USD": 840, "EUR": 978}
var monoCodeByCcy = map[int]string{980: "UAH", 840: "USD", 978: "EUR"}

type monoCreateRequest struct {
	Amount           int64  `json:"amount"`
	Ccy              int    `json:"ccy"`
	RedirectURL      string `json:"redirectUrl,omitempty"`
	MerchantPaymInfo struct {
		Reference   string `json:"reference"`
		Destination string `json:"destination,omitempty"`
	} `json:"merchantPaymInfo"`
}

type monoCreateResponse struct {
	InvoiceID string `json:"invoiceId"`
	PageURL   string `json:"pageUrl"`
}

type monoErrorResponse struct {
	ErrCode string `json:"errCode"`
	ErrText string `json:"errText"`
}

func (c *MonobankClient) CreateIntent(ctx context.Context, in domain.CreateIntentInput) (*domain.IntentResult, error) {
	ccy, ok := monoCcyByCode[strings.ToUpper(in.Currency)]
	if !ok {
		return nil, &domain.PSPError{Kind: domain.PSPBadRequest, ProviderCode: "unsupported_ccy"}
	}

	reqBody := monoCreateRequest{
		Amount:      in.AmountMinor,
		Ccy:         ccy,
		RedirectURL: c.redirectURL,
	}
	// The reference is our attempt idempotency key; a replayed create for
	// the same attempt produces the same reference on the provider side.
	reqBody.MerchantPaymInfo.Reference = in.IdempotencyKey
	reqBody.MerchantPaymInfo.Destination = in.Description

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/merchant/invoice/create", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Token", c.token)

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
		var apiErr monoErrorResponse
		_ = json.Unmarshal(body, &apiErr)
		return nil, pspErrorFromStatus(resp.StatusCode, apiErr.ErrCode)
	}

	var created monoCreateResponse
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("decoding monobank invoice: %w", err)
	}
	return &domain.IntentResult{
		ProviderRef:           created.InvoiceID,
		Status:                domain.NotifyProcessing,
		ClientSecretOrPageURL: created.PageURL,
		AmountMinor:           in.AmountMinor,
	}, nil
}

type monoInvoiceStatus struct {
	InvoiceID    string `json:"invoiceId"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Ccy          int    `json:"ccy"`
	ModifiedDate string `json:"modifiedDate"`
	Reference    string `json:"reference"`
}

func (c *MonobankClient) GetIntentStatus(ctx context.Context, providerRef string) (*domain.IntentResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/merchant/invoice/status?invoiceId="+providerRef, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Token", c.token)

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
		var apiErr monoErrorResponse
		_ = json.Unmarshal(body, &apiErr)
		return nil, pspErrorFromStatus(resp.StatusCode, apiErr.ErrCode)
	}

	var st monoInvoiceStatus
	if err := json.Unmarshal(body, &st); err != nil {
		return nil, fmt.Errorf("decoding monobank status: %w", err)
	}
	modified := st.ModifiedDate
	return &domain.IntentResult{
		ProviderRef:        st.InvoiceID,
		Status:             monoStatusToNotify(st.Status),
		AmountMinor:        st.Amount,
		ProviderModifiedAt: &modified,
	}, nil
}

// VerifyWebhook checks the X-Sign header: base64 HMAC-SHA256 of the raw body
// under the shared webhook key.
func (c *MonobankClient) VerifyWebhook(raw []byte, signatureHeader string) (*domain.ProviderNotification, error) {
	if signatureHeader == "" {
		return nil, &domain.PSPError{Kind: domain.PSPAuthFailed, ProviderCode: "missing_signature"}
	}
	mac := hmac.New(sha256.New, []byte(c.webhookKey))
	mac.Write(raw)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signatureHeader)) {
		return nil, &domain.PSPError{Kind: domain.PSPAuthFailed, ProviderCode: "bad_signature"}
	}

	var st monoInvoiceStatus
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decoding monobank webhook: %w", err)
	}

	notification := &domain.ProviderNotification{
		Provider:    domain.ProviderMonobank,
		InvoiceID:   st.InvoiceID,
		Status:      monoStatusToNotify(st.Status),
		AmountMinor: st.Amount,
		Currency:    monoCodeByCcy[st.Ccy],
		Raw:         raw,
	}
	if st.Amount == 0 {
		notification.AmountMinor = -1
	}
	if st.ModifiedDate != "" {
		if t, err := time.Parse(time.RFC3339, st.ModifiedDate); err == nil {
			utc := t.UTC()
			notification.ProviderModifiedAt = &utc
		}
	}
	return notification, nil
}

func monoStatusToNotify(status string) domain.NotificationStatus {
	switch status {
	case "success":
		return domain.NotifySuccess
	case "failure":
		return domain.NotifyFailed
	case "expired":
		return domain.NotifyExpired
	case "reversed":
		return domain.NotifyRefunded
	default:
		// created, processing, hold
		return domain.NotifyProcessing
	}
}
