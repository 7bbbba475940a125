package mappers

import (
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
)

func ToGORMOrder(order *domain.Order) *models.OrderModel {
	m := &models.OrderModel{
		ID:               order.ID,
		Status:           order.Status,
		PaymentStatus:    order.PaymentStatus,
		PaymentProvider:  order.PaymentProvider,
		InventoryStatus:  order.InventoryStatus,
		Currency:         order.Currency,
		TotalAmountMinor: order.TotalAmountMinor,
		IdempotencyKey:   order.IdempotencyKey,
		PayloadDigest:    order.PayloadDigest,
		StockRestored:    order.StockRestored,
		RestockedAt:      order.RestockedAt,
		FailureCode:      order.FailureCode,
		FailureMessage:   order.FailureMessage,
		ShippingRequired: order.ShippingRequired,
		ShippingProvider: order.ShippingProvider,
		ShippingMethod:   order.ShippingMethod,
		ShippingStatus:   order.ShippingStatus,
		TrackingNumber:   order.TrackingNumber,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	if order.Shipping != nil {
		m.ShippingRecipientName = order.Shipping.RecipientName
		m.ShippingPhone = order.Shipping.Phone
		m.ShippingCity = order.Shipping.City
		m.ShippingAddressLine = order.Shipping.AddressLine
		m.ShippingPostalCode = order.Shipping.PostalCode
		m.ShippingCountryCode = order.Shipping.CountryCode
	}
	for _, line := range order.Lines {
		m.Lines = append(m.Lines, models.OrderLineModel{
			OrderID:        order.ID,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
			LineTotalMinor: line.LineTotalMinor,
		})
	}
	return m
}

func ToDomainOrder(m *models.OrderModel) *domain.Order {
	order := &domain.Order{
		ID:               m.ID,
		Status:           m.Status,
		PaymentStatus:    m.PaymentStatus,
		PaymentProvider:  m.PaymentProvider,
		InventoryStatus:  m.InventoryStatus,
		Currency:         m.Currency,
		TotalAmountMinor: m.TotalAmountMinor,
		IdempotencyKey:   m.IdempotencyKey,
		PayloadDigest:    m.PayloadDigest,
		StockRestored:    m.StockRestored,
		RestockedAt:      m.RestockedAt,
		FailureCode:      m.FailureCode,
		FailureMessage:   m.FailureMessage,
		ShippingRequired: m.ShippingRequired,
		ShippingProvider: m.ShippingProvider,
		ShippingMethod:   m.ShippingMethod,
		ShippingStatus:   m.ShippingStatus,
		TrackingNumber:   m.TrackingNumber,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
	if m.ShippingRequired {
		order.Shipping = &domain.ShippingSnapshot{
			RecipientName: m.ShippingRecipientName,
			Phone:         m.ShippingPhone,
			City:          m.ShippingCity,
			AddressLine:   m.ShippingAddressLine,
			PostalCode:    m.ShippingPostalCode,
			CountryCode:   m.ShippingCountryCode,
		}
	}
	for _, line := range m.Lines {
		order.Lines = append(order.Lines, domain.OrderLine{
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
			UnitPriceMinor: line.UnitPriceMinor,
			LineTotalMinor: line.LineTotalMinor,
		})
	}
	return order
}
