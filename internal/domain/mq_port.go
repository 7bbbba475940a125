package domain

// FulfillmentEvent is published to the message bus on order lifecycle
// milestones for downstream consumers (notifications, analytics).
type FulfillmentEvent struct {
	OrderID        string `json:"order_id"`
	Stage          string `json:"stage"`
	PaymentStatus  string `json:"payment_status"`
	ShippingStatus string `json:"shipping_status,omitempty"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

const (
	StagePaid              = "order.paid"
	StageFailed            = "order.failed"
	StageRefunded          = "order.refunded"
	StageNeedsReview       = "order.needs_review"
	StageShipmentCreated   = "shipment.label_created"
	StageShipmentEscalated = "shipment.needs_attention"
)

type PublisherPort interface {
	Publish(event FulfillmentEvent) error
}
