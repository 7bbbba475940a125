package mappers

import (
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
)

func ToGORMEvent(e *domain.ProviderEvent) *models.ProviderEventModel {
	return &models.ProviderEventModel{
		ID:                 e.ID,
		EventKey:           e.EventKey,
		Provider:           e.Provider,
		InvoiceID:          e.InvoiceID,
		Status:             e.Status,
		AmountMinor:        e.AmountMinor,
		Currency:           e.Currency,
		ProviderModifiedAt: e.ProviderModifiedAt,
		RawPayload:         e.RawPayload,
		ClaimedAt:          e.ClaimedAt,
		ClaimExpiresAt:     e.ClaimExpiresAt,
		ClaimedBy:          e.ClaimedBy,
		AppliedAt:          e.AppliedAt,
		AppliedResult:      e.AppliedResult,
		AppliedErrorCode:   e.AppliedErrorCode,
		CreatedAt:          e.CreatedAt,
	}
}

func ToDomainEvent(m *models.ProviderEventModel) *domain.ProviderEvent {
	return &domain.ProviderEvent{
		ID:                 m.ID,
		EventKey:           m.EventKey,
		Provider:           m.Provider,
		InvoiceID:          m.InvoiceID,
		Status:             m.Status,
		AmountMinor:        m.AmountMinor,
		Currency:           m.Currency,
		ProviderModifiedAt: m.ProviderModifiedAt,
		RawPayload:         m.RawPayload,
		ClaimedAt:          m.ClaimedAt,
		ClaimExpiresAt:     m.ClaimExpiresAt,
		ClaimedBy:          m.ClaimedBy,
		AppliedAt:          m.AppliedAt,
		AppliedResult:      m.AppliedResult,
		AppliedErrorCode:   m.AppliedErrorCode,
		CreatedAt:          m.CreatedAt,
	}
}
