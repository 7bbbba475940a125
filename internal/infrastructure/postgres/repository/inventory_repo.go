package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultInventoryRepository struct {
	DB *gorm.DB
}

func NewDefaultInventoryRepository(db *gorm.DB) *DefaultInventoryRepository {
	return &DefaultInventoryRepository{DB: db}
}

func (r *DefaultInventoryRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var m models.ProductModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, err
	}
	return &domain.Product{
		ID:        m.ID,
		SKU:       m.SKU,
		Name:      m.Name,
		Stock:     m.Stock,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func (r *DefaultInventoryRepository) GetPrice(ctx context.Context, productID, currency string) (int64, error) {
	var m models.ProductPriceModel
	err := r.DB.WithContext(ctx).First(&m, "product_id = ? AND currency = ?", productID, currency).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.Ef(domain.KindPriceConfigError, "no %s price configured for product %s", currency, productID)
		}
		return 0, err
	}
	return m.PriceMinor, nil
}

// Reserve decrements stock and appends the reserve move in one transaction.
// The unique move key makes a replay return success without touching stock.
func (r *DefaultInventoryRepository) Reserve(ctx context.Context, orderID, productID string, qty int64) error {
	return r.move(ctx, domain.ReserveMoveKey(orderID, productID), orderID, productID, qty, domain.MoveReserve)
}

// Release is the compensating mirror of Reserve, same replay contract.
func (r *DefaultInventoryRepository) Release(ctx context.Context, orderID, productID string, qty int64) error {
	return r.move(ctx, domain.ReleaseMoveKey(orderID, productID), orderID, productID, qty, domain.MoveRelease)
}

func (r *DefaultInventoryRepository) move(ctx context.Context, moveKey, orderID, productID string, qty int64, direction domain.MoveDirection) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.InventoryMoveModel
		err := tx.First(&existing, "move_key = ?", moveKey).Error
		if err == nil {
			// already applied, replay is a no-op
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var res *gorm.DB
		if direction == domain.MoveReserve {
			res = tx.Model(&models.ProductModel{}).
				Where("id = ? AND stock >= ?", productID, qty).
				UpdateColumn("stock", gorm.Expr("stock - ?", qty))
		} else {
			res = tx.Model(&models.ProductModel{}).
				Where("id = ?", productID).
				UpdateColumn("stock", gorm.Expr("stock + ?", qty))
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var probe models.ProductModel
			if probeErr := tx.First(&probe, "id = ?", productID).Error; errors.Is(probeErr, gorm.ErrRecordNotFound) {
				return domain.ErrProductNotFound
			}
			return domain.Ef(domain.KindInsufficientStock, "product %s has insufficient stock for %d", productID, qty)
		}

		return tx.Create(&models.InventoryMoveModel{
			ID:        uuid.NewString(),
			MoveKey:   moveKey,
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  qty,
			Direction: direction,
			CreatedAt: time.Now(),
		}).Error
	})
	// A concurrent replay lost the move-key race: the delta is already
	// applied by the winner, so this call succeeded too.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}
