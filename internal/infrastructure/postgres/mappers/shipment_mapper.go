package mappers

import (
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
)

func ToGORMShipment(s *domain.ShippingShipment) *models.ShipmentModel {
	return &models.ShipmentModel{
		ID:               s.ID,
		OrderID:          s.OrderID,
		Status:           s.Status,
		AttemptCount:     s.AttemptCount,
		LeaseOwner:       s.LeaseOwner,
		LeaseExpiresAt:   s.LeaseExpiresAt,
		NextAttemptAt:    s.NextAttemptAt,
		ProviderRef:      s.ProviderRef,
		TrackingNumber:   s.TrackingNumber,
		LastErrorCode:    s.LastErrorCode,
		LastErrorMessage: s.LastErrorMessage,
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}
}

func ToDomainShipment(m *models.ShipmentModel) *domain.ShippingShipment {
	return &domain.ShippingShipment{
		ID:               m.ID,
		OrderID:          m.OrderID,
		Status:           m.Status,
		AttemptCount:     m.AttemptCount,
		LeaseOwner:       m.LeaseOwner,
		LeaseExpiresAt:   m.LeaseExpiresAt,
		NextAttemptAt:    m.NextAttemptAt,
		ProviderRef:      m.ProviderRef,
		TrackingNumber:   m.TrackingNumber,
		LastErrorCode:    m.LastErrorCode,
		LastErrorMessage: m.LastErrorMessage,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
