package repository

import (
	"context"
	"errors"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/mappers"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

var shipmentLease = rowLease{
	ownerCol:   "lease_owner",
	expiresCol: "lease_expires_at",
}

// dueClause matches shipments the worker should pick up: fresh queued rows,
// failed rows whose retry time has come, and processing rows whose claimant
// died. Takes (now, now, now).
const dueClause = "(status = 'queued'" +
	" OR (status = 'failed' AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?)" +
	" OR (status = 'processing' AND lease_expires_at IS NOT NULL AND lease_expires_at < ?))"

type DefaultShipmentRepository struct {
	DB *gorm.DB
}

func NewDefaultShipmentRepository(db *gorm.DB) *DefaultShipmentRepository {
	return &DefaultShipmentRepository{DB: db}
}

// Enqueue inserts the queued shipment; the unique order id makes a second
// enqueue for the same order a no-op.
func (r *DefaultShipmentRepository) Enqueue(ctx context.Context, shipment *domain.ShippingShipment) error {
	err := r.DB.WithContext(ctx).Create(mappers.ToGORMShipment(shipment)).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (r *DefaultShipmentRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.ShippingShipment, error) {
	var m models.ShipmentModel
	if err := r.DB.WithContext(ctx).First(&m, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, err
	}
	return mappers.ToDomainShipment(&m), nil
}

// ClaimDueBatch selects due candidates, then claims each with a per-row
// compare-and-set so two workers never process the same shipment.
func (r *DefaultShipmentRepository) ClaimDueBatch(ctx context.Context, owner string, now time.Time, lease time.Duration, limit int) ([]*domain.ShippingShipment, error) {
	var candidates []models.ShipmentModel
	err := r.DB.WithContext(ctx).
		Where(dueClause, now, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]*domain.ShippingShipment, 0, len(candidates))
	for i := range candidates {
		updates := shipmentLease.claimUpdates(owner, now, lease)
		updates["status"] = domain.ShipmentProcessing
		res := r.DB.WithContext(ctx).Model(&models.ShipmentModel{}).
			Where("id = ?", candidates[i].ID).
			Where(dueClause, now, now).
			Updates(updates)
		if res.Error != nil {
			return claimed, res.Error
		}
		if res.RowsAffected != 1 {
			// lost the race to another worker
			continue
		}
		var row models.ShipmentModel
		if err := r.DB.WithContext(ctx).First(&row, "id = ?", candidates[i].ID).Error; err != nil {
			return claimed, err
		}
		claimed = append(claimed, mappers.ToDomainShipment(&row))
	}
	return claimed, nil
}

func (r *DefaultShipmentRepository) MarkSucceeded(ctx context.Context, shipmentID, providerRef, trackingNumber string) error {
	updates := shipmentLease.releaseUpdates()
	updates["status"] = domain.ShipmentSucceeded
	updates["provider_ref"] = providerRef
	updates["tracking_number"] = trackingNumber
	updates["next_attempt_at"] = nil
	return r.DB.WithContext(ctx).Model(&models.ShipmentModel{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}

func (r *DefaultShipmentRepository) MarkRetry(ctx context.Context, shipmentID string, attemptCount int, nextAttemptAt time.Time, errCode, errMsg string) error {
	updates := shipmentLease.releaseUpdates()
	updates["status"] = domain.ShipmentFailed
	updates["attempt_count"] = attemptCount
	updates["next_attempt_at"] = nextAttemptAt
	updates["last_error_code"] = errCode
	updates["last_error_message"] = errMsg
	return r.DB.WithContext(ctx).Model(&models.ShipmentModel{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}

func (r *DefaultShipmentRepository) MarkNeedsAttention(ctx context.Context, shipmentID string, attemptCount int, errCode, errMsg string) error {
	updates := shipmentLease.releaseUpdates()
	updates["status"] = domain.ShipmentNeedsAttention
	updates["attempt_count"] = attemptCount
	updates["next_attempt_at"] = nil
	updates["last_error_code"] = errCode
	updates["last_error_message"] = errMsg
	return r.DB.WithContext(ctx).Model(&models.ShipmentModel{}).
		Where("id = ?", shipmentID).
		Updates(updates).Error
}
