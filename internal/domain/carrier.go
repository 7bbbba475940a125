package domain

import (
	"context"
	"errors"
	"fmt"
)

// CarrierError classifies a shipping API failure. Transient failures are
// retried with backoff by the shipment worker; permanent ones escalate to
// needs_attention immediately.
type CarrierError struct {
	Code      string
	Message   string
	Transient bool
}

func (e *CarrierError) Error() string {
	return fmt.Sprintf("carrier error %s: %s (transient=%v)", e.Code, e.Message, e.Transient)
}

// TransientCarrierError reports whether err should be retried. Unclassified
// errors (e.g. raw net errors) count as transient.
func TransientCarrierError(err error) bool {
	var ce *CarrierError
	if errors.As(err, &ce) {
		return ce.Transient
	}
	return true
}

type CreateLabelInput struct {
	OrderID  string
	Shipping ShippingSnapshot
	Method   string
}

type LabelResult struct {
	ProviderRef    string
	TrackingNumber string
}

type CarrierClient interface {
	CreateLabel(ctx context.Context, in CreateLabelInput) (*LabelResult, error)
}
