package repository

import (
	"context"

	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
	"gorm.io/gorm"
)

type DefaultAuditRepository struct {
	DB *gorm.DB
}

func NewDefaultAuditRepository(db *gorm.DB) *DefaultAuditRepository {
	return &DefaultAuditRepository{DB: db}
}

func (r *DefaultAuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	return r.DB.WithContext(ctx).Create(&models.AuditLogModel{
		ID:         entry.ID,
		OrderID:    entry.OrderID,
		Action:     entry.Action,
		Actor:      entry.Actor,
		RequestID:  entry.RequestID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		Note:       entry.Note,
		CreatedAt:  entry.CreatedAt,
	}).Error
}

func (r *DefaultAuditRepository) ListByOrderID(ctx context.Context, orderID string) ([]*domain.AuditEntry, error) {
	var ms []models.AuditLogModel
	err := r.DB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}
	entries := make([]*domain.AuditEntry, len(ms))
	for i, m := range ms {
		entries[i] = &domain.AuditEntry{
			ID:         m.ID,
			OrderID:    m.OrderID,
			Action:     m.Action,
			Actor:      m.Actor,
			RequestID:  m.RequestID,
			FromStatus: m.FromStatus,
			ToStatus:   m.ToStatus,
			Note:       m.Note,
			CreatedAt:  m.CreatedAt,
		}
	}
	return entries, nil
}
