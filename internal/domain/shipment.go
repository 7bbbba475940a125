package domain

import (
	"strings"
	"time"
)

type ShipmentStatus string

const (
	ShipmentQueued         ShipmentStatus = "queued"
	ShipmentProcessing     ShipmentStatus = "processing"
	ShipmentFailed         ShipmentStatus = "failed"
	ShipmentNeedsAttention ShipmentStatus = "needs_attention"
	ShipmentSucceeded      ShipmentStatus = "succeeded"
)

// ShippingShipment is the work-queue row the shipment worker leases.
type ShippingShipment struct {
	ID           string
	OrderID      string
	Status       ShipmentStatus
	AttemptCount int

	LeaseOwner     string
	LeaseExpiresAt *time.Time
	NextAttemptAt  *time.Time

	ProviderRef      string
	TrackingNumber   string
	LastErrorCode    string
	LastErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShippingSnapshot is the address/contact data captured at checkout and used
// verbatim for the carrier request.
type ShippingSnapshot struct {
	RecipientName string
	Phone         string
	City          string
	AddressLine   string
	PostalCode    string
	CountryCode   string
}

// Validate reports the missing fields; a snapshot failing validation is a
// permanent shipment error, not a retryable one.
func (s *ShippingSnapshot) Validate() []string {
	if s == nil {
		return []string{"shipping"}
	}
	var missing []string
	check := func(name, v string) {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	check("recipient_name", s.RecipientName)
	check("phone", s.Phone)
	check("city", s.City)
	check("address_line", s.AddressLine)
	check("country_code", s.CountryCode)
	return missing
}
