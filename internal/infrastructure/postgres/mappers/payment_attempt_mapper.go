package mappers

import (
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
)

func ToGORMAttempt(a *domain.PaymentAttempt) *models.PaymentAttemptModel {
	return &models.PaymentAttemptModel{
		ID:                      a.ID,
		OrderID:                 a.OrderID,
		Provider:                a.Provider,
		Status:                  a.Status,
		AttemptNumber:           a.AttemptNumber,
		IdempotencyKey:          a.IdempotencyKey,
		ProviderPaymentIntentID: a.ProviderPaymentIntentID,
		ClientSecretOrPageURL:   a.ClientSecretOrPageURL,
		ExpectedAmountMinor:     a.ExpectedAmountMinor,
		Currency:                a.Currency,
		LastErrorCode:           a.LastErrorCode,
		LastErrorMessage:        a.LastErrorMessage,
		CreatedAt:               a.CreatedAt,
		UpdatedAt:               a.UpdatedAt,
	}
}

func ToDomainAttempt(m *models.PaymentAttemptModel) *domain.PaymentAttempt {
	return &domain.PaymentAttempt{
		ID:                      m.ID,
		OrderID:                 m.OrderID,
		Provider:                m.Provider,
		Status:                  m.Status,
		AttemptNumber:           m.AttemptNumber,
		IdempotencyKey:          m.IdempotencyKey,
		ProviderPaymentIntentID: m.ProviderPaymentIntentID,
		ClientSecretOrPageURL:   m.ClientSecretOrPageURL,
		ExpectedAmountMinor:     m.ExpectedAmountMinor,
		Currency:                m.Currency,
		LastErrorCode:           m.LastErrorCode,
		LastErrorMessage:        m.LastErrorMessage,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}
