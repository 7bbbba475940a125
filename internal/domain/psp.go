package domain

import (
	"context"
	"fmt"
)

type PSPErrorKind string

const (
	PSPBadRequest PSPErrorKind = "PSP_BAD_REQUEST"
	PSPAuthFailed PSPErrorKind = "PSP_AUTH_FAILED"
	PSPUnknown    PSPErrorKind = "PSP_UNKNOWN"
)

// PSPError carries the safe subset of a provider failure: the HTTP status and
// the provider's own error code, never raw response bodies.
type PSPError struct {
	Kind         PSPErrorKind
	HTTPStatus   int
	ProviderCode string
}

func (e *PSPError) Error() string {
	return fmt.Sprintf("%s (http %d, code %q)", e.Kind, e.HTTPStatus, e.ProviderCode)
}

// IntentResult is what a provider returns for a created or polled
// intent/invoice.
type IntentResult struct {
	ProviderRef string
	Status      NotificationStatus
	// ClientSecretOrPageURL is handed to the shopper to complete payment:
	// a client secret for stripe, a hosted page URL for monobank.
	ClientSecretOrPageURL string
	AmountMinor           int64
	ProviderModifiedAt    *string
}

type CreateIntentInput struct {
	IdempotencyKey string
	AmountMinor    int64
	Currency       string
	OrderID        string
	Description    string
}

// PSPClient is the outbound payment-provider collaborator. Its internal
// retry/backoff policy is the provider package's business, not ours.
type PSPClient interface {
	Provider() PaymentProvider
	CreateIntent(ctx context.Context, in CreateIntentInput) (*IntentResult, error)
	GetIntentStatus(ctx context.Context, providerRef string) (*IntentResult, error)
	// VerifyWebhook authenticates raw webhook bytes against the signature
	// header and returns the normalized projection.
	VerifyWebhook(raw []byte, signatureHeader string) (*ProviderNotification, error)
}
