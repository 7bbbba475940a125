package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shipmentFixture struct {
	orderRepo    *memOrderRepo
	shipmentRepo *memShipmentRepo
	auditRepo    *memAuditRepo
	carrier      *fakeCarrier
	publisher    *memPublisher
	uc           *DefaultShipmentUsecase
}

func newShipmentFixture(carrier *fakeCarrier) *shipmentFixture {
	f := &shipmentFixture{
		orderRepo:    newMemOrderRepo(),
		shipmentRepo: newMemShipmentRepo(),
		auditRepo:    newMemAuditRepo(),
		carrier:      carrier,
		publisher:    &memPublisher{},
	}
	f.uc = NewDefaultShipmentUsecase(
		f.shipmentRepo, f.orderRepo, f.auditRepo, carrier, f.publisher, nil, testLogger(),
		config.Shipment{
			PollInterval: time.Second,
			BatchSize:    10,
			LeaseTTL:     5 * time.Minute,
			MaxAttempts:  3,
			RetryBase:    30 * time.Second,
			RetryCap:     2 * time.Minute,
		},
	)
	return f
}

func (f *shipmentFixture) seedPaidOrderWithShipment(t *testing.T, snapshot *domain.ShippingSnapshot) {
	t.Helper()
	order := &domain.Order{
		ID:               "ord-1",
		Status:           domain.OrderStatusCompleted,
		PaymentStatus:    domain.PaymentPaid,
		InventoryStatus:  domain.InventoryReserved,
		Currency:         "USD",
		TotalAmountMinor: 2500,
		IdempotencyKey:   "key-eeeeeeeeeeeeeeee",
		ShippingRequired: true,
		ShippingMethod:   "standard",
		ShippingStatus:   domain.ShippingQueued,
		Shipping:         snapshot,
	}
	attempt := &domain.PaymentAttempt{
		ID: "att-1", OrderID: "ord-1", AttemptNumber: 1,
		IdempotencyKey: domain.AttemptIdempotencyKey("ord-1", 1),
	}
	require.NoError(t, f.orderRepo.CreateOrderWithAttempt(context.Background(), order, attempt))
	require.NoError(t, f.shipmentRepo.Enqueue(context.Background(), &domain.ShippingShipment{
		ID: "shp-1", OrderID: "ord-1", Status: domain.ShipmentQueued,
	}))
}

func fullSnapshot() *domain.ShippingSnapshot {
	return &domain.ShippingSnapshot{
		RecipientName: "Jane Doe",
		Phone:         "+380501112233",
		City:          "Kyiv",
		AddressLine:   "Khreshchatyk 1",
		CountryCode:   "UA",
	}
}

func TestShipmentHappyPath(t *testing.T) {
	f := newShipmentFixture(&fakeCarrier{result: &domain.LabelResult{ProviderRef: "lbl_9", TrackingNumber: "TRK999"}})
	f.seedPaidOrderWithShipment(t, fullSnapshot())

	claimed, err := f.uc.ProcessDueShipments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)

	shipment, _ := f.shipmentRepo.GetByOrderID(context.Background(), "ord-1")
	assert.Equal(t, domain.ShipmentSucceeded, shipment.Status)
	assert.Equal(t, "TRK999", shipment.TrackingNumber)

	order, _ := f.orderRepo.GetOrderByID(context.Background(), "ord-1")
	assert.Equal(t, domain.ShippingLabelCreated, order.ShippingStatus)
	assert.Equal(t, "TRK999", order.TrackingNumber)
	assert.Equal(t, []string{domain.StageShipmentCreated}, f.publisher.stages())
	assert.Contains(t, f.auditRepo.actions("ord-1"), "shipment.label_created")
}

func TestShipmentTransientErrorBacksOff(t *testing.T) {
	f := newShipmentFixture(&fakeCarrier{outcomes: []error{
		&domain.CarrierError{Code: "TIMEOUT", Message: "upstream timeout", Transient: true},
	}})
	f.seedPaidOrderWithShipment(t, fullSnapshot())

	before := time.Now()
	_, err := f.uc.ProcessDueShipments(context.Background())
	require.NoError(t, err)

	shipment, _ := f.shipmentRepo.GetByOrderID(context.Background(), "ord-1")
	assert.Equal(t, domain.ShipmentFailed, shipment.Status)
	assert.Equal(t, 1, shipment.AttemptCount)
	assert.Equal(t, "TIMEOUT", shipment.LastErrorCode)
	require.NotNil(t, shipment.NextAttemptAt)
	// first retry waits roughly one base interval
	assert.WithinDuration(t, before.Add(30*time.Second), *shipment.NextAttemptAt, 2*time.Second)

	// not due yet: nothing claimed on the next poll
	claimed, err := f.uc.ProcessDueShipments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, claimed)
}

func TestShipmentPermanentErrorEscalatesImmediately(t *testing.T) {
	f := newShipmentFixture(&fakeCarrier{outcomes: []error{
		&domain.CarrierError{Code: "INVALID_ADDRESS", Message: "no such street", Transient: false},
	}})
	f.seedPaidOrderWithShipment(t, fullSnapshot())

	_, err := f.uc.ProcessDueShipments(context.Background())
	require.NoError(t, err)

	shipment, _ := f.shipmentRepo.GetByOrderID(context.Background(), "ord-1")
	assert.Equal(t, domain.ShipmentNeedsAttention, shipment.Status)
	assert.Equal(t, "INVALID_ADDRESS", shipment.LastErrorCode)

	order, _ := f.orderRepo.GetOrderByID(context.Background(), "ord-1")
	assert.Equal(t, domain.ShippingNeedsAttention, order.ShippingStatus)
	// payment state is untouched by fulfillment trouble
	assert.Equal(t, domain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, []string{domain.StageShipmentEscalated}, f.publisher.stages())
}

func TestShipmentInvalidSnapshotEscalatesWithoutCarrierCall(t *testing.T) {
	carrier := &fakeCarrier{}
	f := newShipmentFixture(carrier)
	f.seedPaidOrderWithShipment(t, &domain.ShippingSnapshot{RecipientName: "Jane Doe"})

	_, err := f.uc.ProcessDueShipments(context.Background())
	require.NoError(t, err)

	shipment, _ := f.shipmentRepo.GetByOrderID(context.Background(), "ord-1")
	assert.Equal(t, domain.ShipmentNeedsAttention, shipment.Status)
	assert.Equal(t, "INVALID_SNAPSHOT", shipment.LastErrorCode)
	assert.Equal(t, 0, carrier.calls)
}

func TestShipmentEscalatesAtMaxAttempts(t *testing.T) {
	transient := &domain.CarrierError{Code: "TIMEOUT", Message: "upstream timeout", Transient: true}
	f := newShipmentFixture(&fakeCarrier{outcomes: []error{transient, transient, transient}})
	f.seedPaidOrderWithShipment(t, fullSnapshot())

	for i := 0; i < 3; i++ {
		// make the retry due immediately
		if shipment, err := f.shipmentRepo.GetByOrderID(context.Background(), "ord-1"); err == nil && shipment.NextAttemptAt != nil {
			past := time.Now().Add(-time.Second)
			require.NoError(t, f.shipmentRepo.MarkRetry(context.Background(), shipment.ID,
				shipment.AttemptCount, past, shipment.LastErrorCode, shipment.LastErrorMessage))
		}
		_, err := f.uc.ProcessDueShipments(context.Background())
		require.NoError(t, err)
	}

	shipment, _ := f.shipmentRepo.GetByOrderID(context.Background(), "ord-1")
	assert.Equal(t, domain.ShipmentNeedsAttention, shipment.Status)
	assert.Equal(t, 3, shipment.AttemptCount)
}

func TestBackoffDelay(t *testing.T) {
	base := 30 * time.Second
	cap := 2 * time.Minute

	assert.Equal(t, 30*time.Second, backoffDelay(base, cap, 1))
	assert.Equal(t, time.Minute, backoffDelay(base, cap, 2))
	assert.Equal(t, 2*time.Minute, backoffDelay(base, cap, 3))
	// capped from here on
	assert.Equal(t, 2*time.Minute, backoffDelay(base, cap, 4))
	assert.Equal(t, 2*time.Minute, backoffDelay(base, cap, 10))
	// degenerate attempt numbers fall back to base
	assert.Equal(t, 30*time.Second, backoffDelay(base, cap, 0))
}
