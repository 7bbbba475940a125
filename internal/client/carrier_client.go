package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
)

// HTTPCarrierClient talks to the shipping carrier's label API. Errors are
// classified transient/permanent for the shipment worker's retry policy.
type HTTPCarrierClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPCarrierClient(cfg config.Shipping) *HTTPCarrierClient {
	return &HTTPCarrierClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
}

type carrierLabelRequest struct {
	Reference     string `json:"reference"`
	RecipientName string `json:"recipient_name"`
	Phone         string `json:"phone"`
	City          string `json:"city"`
	AddressLine   string `json:"address_line"`
	PostalCode    string `json:"postal_code,omitempty"`
	CountryCode   string `json:"country_code"`
	Method        string `json:"method,omitempty"`
}

type carrierLabelResponse struct {
	ID             string `json:"id"`
	TrackingNumber string `json:"tracking_number"`
}

type carrierErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *HTTPCarrierClient) CreateLabel(ctx context.Context, in domain.CreateLabelInput) (*domain.LabelResult, error) {
	payload, err := json.Marshal(carrierLabelRequest{
		Reference:     in.OrderID,
		RecipientName: in.Shipping.RecipientName,
		Phone:         in.Shipping.Phone,
		City:          in.Shipping.City,
		AddressLine:   in.Shipping.AddressLine,
		PostalCode:    in.Shipping.PostalCode,
		CountryCode:   in.Shipping.CountryCode,
		Method:        in.Method,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/labels", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.CarrierError{Code: "NETWORK", Message: err.Error(), Transient: true}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.CarrierError{Code: "NETWORK", Message: err.Error(), Transient: true}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var label carrierLabelResponse
		if err := json.Unmarshal(body, &label); err != nil {
			return nil, &domain.CarrierError{Code: "BAD_RESPONSE", Message: err.Error(), Transient: true}
		}
		return &domain.LabelResult{ProviderRef: label.ID, TrackingNumber: label.TrackingNumber}, nil
	}

	var apiErr carrierErrorResponse
	_ = json.Unmarshal(body, &apiErr)
	if apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return nil, &domain.CarrierError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		// 5xx and 429 are the carrier's problem, everything else 4xx means
		// our request is wrong and retrying is pointless.
		Transient: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
	}
}
