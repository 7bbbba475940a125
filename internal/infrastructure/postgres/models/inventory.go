package models

import (
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
)

type ProductModel struct {
	ID        string `gorm:"primaryKey;type:uuid"`
	SKU       string `gorm:"uniqueIndex:uq_products_sku"`
	Name      string
	Stock     int64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductModel) TableName() string { return "products" }

type ProductPriceModel struct {
	ID         uint   `gorm:"primaryKey"`
	ProductID  string `gorm:"type:uuid;not null;uniqueIndex:uq_product_prices_product_currency"`
	Currency   string `gorm:"not null;uniqueIndex:uq_product_prices_product_currency"`
	PriceMinor int64  `gorm:"not null"`
}

func (ProductPriceModel) TableName() string { return "product_prices" }

type InventoryMoveModel struct {
	ID        string               `gorm:"primaryKey;type:uuid"`
	MoveKey   string               `gorm:"uniqueIndex:uq_inventory_moves_move_key;not null"`
	OrderID   string               `gorm:"type:uuid;not null;index"`
	ProductID string               `gorm:"type:uuid;not null;index"`
	Quantity  int64                `gorm:"not null"`
	Direction domain.MoveDirection `gorm:"not null"`
	CreatedAt time.Time
}

func (InventoryMoveModel) TableName() string { return "inventory_moves" }
