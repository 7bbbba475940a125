package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type AppliedResult string

const (
	AppliedOK        AppliedResult = "applied"
	AppliedNoop      AppliedResult = "applied_noop"
	AppliedWithIssue AppliedResult = "applied_with_issue"
)

// Applied error codes recorded on the event row. Anomalies are never silently
// dropped, they are classified here and routed to operators.
const (
	ApplyErrUnknownReference  = "UNKNOWN_REFERENCE"
	ApplyErrOutOfOrder        = "OUT_OF_ORDER"
	ApplyErrAmountMismatch    = "AMOUNT_MISMATCH"
	ApplyErrStateBlocked      = "PAYMENT_STATE_BLOCKED"
	ApplyErrUnsupportedStatus = "UNSUPPORTED_STATUS"
)

// NotificationStatus is the normalized provider status vocabulary. Each
// provider client maps its raw payload into this closed set at intake.
type NotificationStatus string

const (
	NotifySuccess    NotificationStatus = "success"
	NotifyProcessing NotificationStatus = "processing"
	NotifyFailed     NotificationStatus = "failed"
	NotifyExpired    NotificationStatus = "expired"
	NotifyCanceled   NotificationStatus = "canceled"
	NotifyRefunded   NotificationStatus = "refunded"
)

// ProviderEvent is the durable record of one inbound notification. Stored
// before any state mutation is attempted, kept forever for audit.
type ProviderEvent struct {
	ID        string
	EventKey  string
	Provider  PaymentProvider
	InvoiceID string
	Status    NotificationStatus
	// AmountMinor is the provider-reported amount, -1 when the payload
	// carried none.
	AmountMinor        int64
	Currency           string
	ProviderModifiedAt *time.Time
	RawPayload         string

	ClaimedAt      *time.Time
	ClaimExpiresAt *time.Time
	ClaimedBy      string

	AppliedAt        *time.Time
	AppliedResult    AppliedResult
	AppliedErrorCode string

	CreatedAt time.Time
}

func (e *ProviderEvent) Applied() bool { return e.AppliedAt != nil }

// ProviderNotification is the narrow validated projection a provider client
// extracts from a raw webhook body. Untyped provider JSON stops here.
type ProviderNotification struct {
	Provider           PaymentProvider
	InvoiceID          string
	Status             NotificationStatus
	AmountMinor        int64 // -1 when absent
	Currency           string
	ProviderModifiedAt *time.Time
	Raw                []byte
}

// EventKey hashes the raw payload; byte-identical deliveries share a key and
// are stored exactly once.
func EventKey(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
