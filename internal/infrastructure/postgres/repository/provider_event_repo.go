package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/mappers"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

var eventLease = rowLease{
	ownerCol:   "claimed_by",
	expiresCol: "claim_expires_at",
	stampCol:   "claimed_at",
}

type DefaultProviderEventRepository struct {
	DB *gorm.DB
}

func NewDefaultProviderEventRepository(db *gorm.DB) *DefaultProviderEventRepository {
	return &DefaultProviderEventRepository{DB: db}
}

// Insert stores the event once per eventKey. A duplicate delivery returns the
// original row with created=false.
func (r *DefaultProviderEventRepository) Insert(ctx context.Context, event *domain.ProviderEvent) (*domain.ProviderEvent, bool, error) {
	m := mappers.ToGORMEvent(event)
	err := r.DB.WithContext(ctx).Create(m).Error
	if err == nil {
		return mappers.ToDomainEvent(m), true, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	var existing models.ProviderEventModel
	if err := r.DB.WithContext(ctx).First(&existing, "event_key = ?", event.EventKey).Error; err != nil {
		return nil, false, err
	}
	return mappers.ToDomainEvent(&existing), false, nil
}

func (r *DefaultProviderEventRepository) GetByID(ctx context.Context, eventID string) (*domain.ProviderEvent, error) {
	var m models.ProviderEventModel
	if err := r.DB.WithContext(ctx).First(&m, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEventNotFound
		}
		return nil, err
	}
	return mappers.ToDomainEvent(&m), nil
}

// Claim takes the application lease. Only one claimant proceeds; an expired
// claim (crashed applier) is claimable again.
func (r *DefaultProviderEventRepository) Claim(ctx context.Context, eventID, owner string, now time.Time, ttl time.Duration) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&models.ProviderEventModel{}).
		Where("id = ? AND applied_at IS NULL", eventID).
		Where(eventLease.availableClause(), now).
		Updates(eventLease.claimUpdates(owner, now, ttl))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *DefaultProviderEventRepository) FinishApply(ctx context.Context, eventID string, at time.Time, result domain.AppliedResult, errCode string) error {
	updates := eventLease.releaseUpdates()
	updates["applied_at"] = at
	updates["applied_result"] = result
	updates["applied_error_code"] = errCode
	return r.DB.WithContext(ctx).Model(&models.ProviderEventModel{}).
		Where("id = ?", eventID).
		Updates(updates).Error
}

func (r *DefaultProviderEventRepository) LastAppliedModifiedAt(ctx context.Context, invoiceID string) (*time.Time, error) {
	var last sql.NullTime
	err := r.DB.WithContext(ctx).Model(&models.ProviderEventModel{}).
		Where("invoice_id = ? AND applied_at IS NOT NULL AND applied_result = ?", invoiceID, domain.AppliedOK).
		Select("MAX(provider_modified_at)").
		Scan(&last).Error
	if err != nil {
		return nil, err
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

func (r *DefaultProviderEventRepository) ListUnapplied(ctx context.Context, now time.Time, limit int) ([]*domain.ProviderEvent, error) {
	var ms []models.ProviderEventModel
	err := r.DB.WithContext(ctx).
		Where("applied_at IS NULL").
		Where(eventLease.availableClause(), now).
		Order("created_at ASC").
		Limit(limit).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	events := make([]*domain.ProviderEvent, len(ms))
	for i := range ms {
		events[i] = mappers.ToDomainEvent(&ms[i])
	}
	return events, nil
}
