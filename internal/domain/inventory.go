package domain

import (
	"fmt"
	"time"
)

type Product struct {
	ID        string
	SKU       string
	Name      string
	Stock     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductPrice is the authoritative price record. Checkout never trusts
// client-supplied prices.
type ProductPrice struct {
	ProductID  string
	Currency   string
	PriceMinor int64
}

type MoveDirection string

const (
	MoveReserve MoveDirection = "reserve"
	MoveRelease MoveDirection = "release"
)

// InventoryMove is one append-only ledger entry. The unique move key makes
// replays no-ops, which is the whole concurrency story for stock.
type InventoryMove struct {
	ID        string
	MoveKey   string
	OrderID   string
	ProductID string
	Quantity  int64
	Direction MoveDirection
	CreatedAt time.Time
}

func ReserveMoveKey(orderID, productID string) string {
	return fmt.Sprintf("reserve:%s:%s", orderID, productID)
}

func ReleaseMoveKey(orderID, productID string) string {
	return fmt.Sprintf("release:%s:%s", orderID, productID)
}
