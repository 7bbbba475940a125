package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/mappers"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultOrderRepository struct {
	DB *gorm.DB
}

func NewDefaultOrderRepository(db *gorm.DB) *DefaultOrderRepository {
	return &DefaultOrderRepository{DB: db}
}

func (r *DefaultOrderRepository) CreateOrderWithAttempt(ctx context.Context, order *domain.Order, attempt *domain.PaymentAttempt) error {
	orderModel := mappers.ToGORMOrder(order)
	attemptModel := mappers.ToGORMAttempt(attempt)

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(orderModel).Error; err != nil {
			return err
		}
		if err := tx.Create(attemptModel).Error; err != nil {
			return err
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.Wrap(domain.KindIdempotencyConflict, "idempotency key already used", err)
	}
	return err
}

func (r *DefaultOrderRepository) GetOrderByID(ctx context.Context, orderID string) (*domain.Order, error) {
	var m models.OrderModel
	if err := r.DB.WithContext(ctx).Preload("Lines").First(&m, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return mappers.ToDomainOrder(&m), nil
}

func (r *DefaultOrderRepository) GetOrderByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	var m models.OrderModel
	if err := r.DB.WithContext(ctx).Preload("Lines").First(&m, "idempotency_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return mappers.ToDomainOrder(&m), nil
}

// UpdatePaymentStatusGuarded writes the new payment status only while the
// persisted status is still one of upd.From. The guard and the write share
// one UPDATE, so a stale reader cannot clobber a newer state.
func (r *DefaultOrderRepository) UpdatePaymentStatusGuarded(ctx context.Context, orderID string, upd domain.PaymentStatusUpdate) (bool, error) {
	if len(upd.From) == 0 {
		return false, fmt.Errorf("guarded update for %q needs at least one source status", upd.To)
	}
	updates := map[string]interface{}{
		"payment_status": upd.To,
		"status":         domain.LifecycleFor(upd.To),
		"updated_at":     time.Now(),
	}
	if upd.FailureCode != "" {
		updates["failure_code"] = upd.FailureCode
		updates["failure_message"] = upd.FailureMessage
	}
	res := r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ? AND payment_status IN (?)", orderID, upd.From).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultOrderRepository) SetInventoryStatus(ctx context.Context, orderID string, status domain.InventoryStatus) error {
	return r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ?", orderID).
		Update("inventory_status", status).Error
}

// MarkStockRestored is the restock serialization point: the flag flip only
// lands for the first caller.
func (r *DefaultOrderRepository) MarkStockRestored(ctx context.Context, orderID string, at time.Time) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ? AND stock_restored = false", orderID).
		Updates(map[string]interface{}{
			"stock_restored":   true,
			"restocked_at":     at,
			"inventory_status": domain.InventoryReleased,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultOrderRepository) SetShippingState(ctx context.Context, orderID string, status domain.ShippingStatus, trackingNumber string) error {
	updates := map[string]interface{}{"shipping_status": status}
	if trackingNumber != "" {
		updates["tracking_number"] = trackingNumber
	}
	return r.DB.WithContext(ctx).Model(&models.OrderModel{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *DefaultOrderRepository) CreateAttempt(ctx context.Context, attempt *domain.PaymentAttempt) error {
	return r.DB.WithContext(ctx).Create(mappers.ToGORMAttempt(attempt)).Error
}

func (r *DefaultOrderRepository) GetAttemptByID(ctx context.Context, attemptID string) (*domain.PaymentAttempt, error) {
	var m models.PaymentAttemptModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", attemptID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return mappers.ToDomainAttempt(&m), nil
}

func (r *DefaultOrderRepository) GetLatestAttemptByOrderID(ctx context.Context, orderID string) (*domain.PaymentAttempt, error) {
	var m models.PaymentAttemptModel
	err := r.DB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("attempt_number DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return mappers.ToDomainAttempt(&m), nil
}

func (r *DefaultOrderRepository) GetAttemptByProviderRef(ctx context.Context, provider domain.PaymentProvider, providerRef string) (*domain.PaymentAttempt, error) {
	var m models.PaymentAttemptModel
	err := r.DB.WithContext(ctx).
		First(&m, "provider = ? AND provider_payment_intent_id = ?", provider, providerRef).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAttemptNotFound
		}
		return nil, err
	}
	return mappers.ToDomainAttempt(&m), nil
}

func (r *DefaultOrderRepository) UpdateAttemptStatus(ctx context.Context, attemptID string, status domain.AttemptStatus, errCode, errMsg string) error {
	updates := map[string]interface{}{"status": status}
	if errCode != "" {
		updates["last_error_code"] = errCode
		updates["last_error_message"] = errMsg
	}
	return r.DB.WithContext(ctx).Model(&models.PaymentAttemptModel{}).
		Where("id = ?", attemptID).
		Updates(updates).Error
}

func (r *DefaultOrderRepository) SetAttemptProviderRef(ctx context.Context, attemptID, providerRef, clientSecretOrPageURL string, status domain.AttemptStatus) error {
	return r.DB.WithContext(ctx).Model(&models.PaymentAttemptModel{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			"provider_payment_intent_id": providerRef,
			"client_secret_or_page_url":  clientSecretOrPageURL,
			"status":                     status,
		}).Error
}

func (r *DefaultOrderRepository) ListStaleOpenAttempts(ctx context.Context, cutoff time.Time, limit int) ([]*domain.PaymentAttempt, error) {
	var ms []models.PaymentAttemptModel
	err := r.DB.WithContext(ctx).
		Where("status IN (?) AND updated_at < ?", []domain.AttemptStatus{domain.AttemptCreating, domain.AttemptActive}, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	attempts := make([]*domain.PaymentAttempt, len(ms))
	for i := range ms {
		attempts[i] = mappers.ToDomainAttempt(&ms[i])
	}
	return attempts, nil
}

func (r *DefaultOrderRepository) ListStuckOrders(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Order, error) {
	var ms []models.OrderModel
	err := r.DB.WithContext(ctx).
		Where("(payment_status = ? OR shipping_status = ?) AND updated_at < ?",
			domain.PaymentNeedsReview, domain.ShippingNeedsAttention, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	orders := make([]*domain.Order, len(ms))
	for i := range ms {
		orders[i] = mappers.ToDomainOrder(&ms[i])
	}
	return orders, nil
}
