package domain

import "time"

// AuditEntry is one row of the append-only per-order action log used for
// support and dispute resolution.
type AuditEntry struct {
	ID         string
	OrderID    string
	Action     string
	Actor      string
	RequestID  string
	FromStatus string
	ToStatus   string
	Note       string
	CreatedAt  time.Time
}

const (
	ActorCheckout = "checkout"
	ActorEngine   = "event-engine"
	ActorRestock  = "restock"
	ActorShipment = "shipment-worker"
	ActorJanitor  = "janitor"
)
