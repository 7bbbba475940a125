package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

type ShipmentUsecase interface {
	// ProcessDueShipments claims one batch of due shipments and drives each to
	// succeeded, a scheduled retry, or needs_attention. Returns how many rows
	// were claimed.
	ProcessDueShipments(ctx context.Context) (int, error)
}

type DefaultShipmentUsecase struct {
	ShipmentRepo domain.ShipmentRepository
	OrderRepo    domain.OrderRepository
	AuditRepo    domain.AuditRepository
	Carrier      domain.CarrierClient
	Publisher    domain.PublisherPort
	Metrics      *metrics.FulfillmentMetrics
	Log          *zap.SugaredLogger
	Cfg          config.Shipment

	// WorkerID names this process in lease ownership columns.
	WorkerID string
}

func NewDefaultShipmentUsecase(
	shipmentRepo domain.ShipmentRepository,
	orderRepo domain.OrderRepository,
	auditRepo domain.AuditRepository,
	carrier domain.CarrierClient,
	publisher domain.PublisherPort,
	m *metrics.FulfillmentMetrics,
	log *zap.SugaredLogger,
	cfg config.Shipment) *DefaultShipmentUsecase {

	return &DefaultShipmentUsecase{
		ShipmentRepo: shipmentRepo,
		OrderRepo:    orderRepo,
		AuditRepo:    auditRepo,
		Carrier:      carrier,
		Publisher:    publisher,
		Metrics:      m,
		Log:          log,
		Cfg:          cfg,
		WorkerID:     "shipment-worker-" + newWorkerID(),
	}
}

func newWorkerID() string {
	idGenerator, err := nanoid.Standard(15)
	if err != nil {
		return "default"
	}
	return idGenerator()
}

func (uc *DefaultShipmentUsecase) ProcessDueShipments(ctx context.Context) (int, error) {
	batch, err := uc.ShipmentRepo.ClaimDueBatch(ctx, uc.WorkerID, time.Now(), uc.Cfg.LeaseTTL, uc.Cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, shipment := range batch {
		if err := uc.processOne(ctx, shipment); err != nil {
			uc.Log.Errorw("shipment processing failed",
				"shipment_id", shipment.ID, "order_id", shipment.OrderID, "error", err)
		}
	}
	return len(batch), nil
}

// processOne runs one carrier attempt under the held lease. The snapshot is
// re-validated on every attempt: an incomplete address is a permanent error
// no amount of retrying fixes.
func (uc *DefaultShipmentUsecase) processOne(ctx context.Context, shipment *domain.ShippingShipment) error {
	order, err := uc.OrderRepo.GetOrderByID(ctx, shipment.OrderID)
	if err != nil {
		return uc.retryOrEscalate(ctx, shipment, "ORDER_LOOKUP_FAILED", err.Error(), true)
	}

	if missing := order.Shipping.Validate(); len(missing) > 0 {
		return uc.escalate(ctx, shipment, order, "INVALID_SNAPSHOT",
			"shipping snapshot missing: "+strings.Join(missing, ", "))
	}

	result, err := uc.Carrier.CreateLabel(ctx, domain.CreateLabelInput{
		OrderID:  order.ID,
		Shipping: *order.Shipping,
		Method:   order.ShippingMethod,
	})
	if err != nil {
		code, msg := carrierErrorParts(err)
		uc.countAttempt("failed")
		return uc.retryOrEscalate(ctx, shipment, code, msg, domain.TransientCarrierError(err))
	}
	uc.countAttempt("succeeded")

	if err := uc.ShipmentRepo.MarkSucceeded(ctx, shipment.ID, result.ProviderRef, result.TrackingNumber); err != nil {
		return err
	}
	if err := uc.OrderRepo.SetShippingState(ctx, order.ID, domain.ShippingLabelCreated, result.TrackingNumber); err != nil {
		uc.Log.Errorw("failed to mirror shipping state onto order", "order_id", order.ID, "error", err)
	}
	uc.countTerminal(domain.ShipmentSucceeded)
	uc.audit(ctx, order.ID, "shipment.label_created", string(domain.ShippingProcessing),
		string(domain.ShippingLabelCreated), "tracking "+result.TrackingNumber)
	uc.publish(domain.FulfillmentEvent{
		OrderID:        order.ID,
		Stage:          domain.StageShipmentCreated,
		PaymentStatus:  string(order.PaymentStatus),
		ShippingStatus: string(domain.ShippingLabelCreated),
		AmountMinor:    order.TotalAmountMinor,
		Currency:       order.Currency,
		TrackingNumber: result.TrackingNumber,
	})
	return nil
}

func (uc *DefaultShipmentUsecase) retryOrEscalate(ctx context.Context, shipment *domain.ShippingShipment, code, msg string, transient bool) error {
	attempts := shipment.AttemptCount + 1
	if !transient || attempts >= uc.Cfg.MaxAttempts {
		order, err := uc.OrderRepo.GetOrderByID(ctx, shipment.OrderID)
		if err != nil {
			// Escalate blind; the order row catches up on the janitor pass.
			order = &domain.Order{ID: shipment.OrderID}
		}
		return uc.escalate(ctx, shipment, order, code, msg)
	}

	next := time.Now().Add(backoffDelay(uc.Cfg.RetryBase, uc.Cfg.RetryCap, attempts))
	if err := uc.ShipmentRepo.MarkRetry(ctx, shipment.ID, attempts, next, code, msg); err != nil {
		return err
	}
	if err := uc.OrderRepo.SetShippingState(ctx, shipment.OrderID, domain.ShippingFailed, ""); err != nil {
		uc.Log.Errorw("failed to mirror shipping state onto order", "order_id", shipment.OrderID, "error", err)
	}
	uc.Log.Warnw("shipment attempt failed, retry scheduled",
		"shipment_id", shipment.ID, "order_id", shipment.OrderID,
		"attempt", attempts, "next_attempt_at", next, "code", code)
	return nil
}

func (uc *DefaultShipmentUsecase) escalate(ctx context.Context, shipment *domain.ShippingShipment, order *domain.Order, code, msg string) error {
	if err := uc.ShipmentRepo.MarkNeedsAttention(ctx, shipment.ID, shipment.AttemptCount+1, code, msg); err != nil {
		return err
	}
	if err := uc.OrderRepo.SetShippingState(ctx, shipment.OrderID, domain.ShippingNeedsAttention, ""); err != nil {
		uc.Log.Errorw("failed to mirror shipping state onto order", "order_id", shipment.OrderID, "error", err)
	}
	uc.countTerminal(domain.ShipmentNeedsAttention)
	uc.audit(ctx, shipment.OrderID, "shipment.needs_attention", "", string(domain.ShippingNeedsAttention), code+": "+msg)
	uc.publish(domain.FulfillmentEvent{
		OrderID:        shipment.OrderID,
		Stage:          domain.StageShipmentEscalated,
		PaymentStatus:  string(order.PaymentStatus),
		ShippingStatus: string(domain.ShippingNeedsAttention),
		AmountMinor:    order.TotalAmountMinor,
		Currency:       order.Currency,
	})
	uc.Log.Errorw("shipment escalated to needs_attention",
		"shipment_id", shipment.ID, "order_id", shipment.OrderID, "code", code, "message", msg)
	return nil
}

// backoffDelay is base doubled per prior attempt, capped. Attempt 1 waits
// base, attempt 2 waits 2*base, and so on.
func backoffDelay(base, cap time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}

func carrierErrorParts(err error) (string, string) {
	var ce *domain.CarrierError
	if errors.As(err, &ce) {
		return ce.Code, ce.Message
	}
	return "CARRIER_UNREACHABLE", err.Error()
}

func (uc *DefaultShipmentUsecase) countAttempt(outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.ShipmentAttemptsTotal.WithLabelValues(outcome).Inc()
	}
}

func (uc *DefaultShipmentUsecase) countTerminal(status domain.ShipmentStatus) {
	if uc.Metrics != nil {
		uc.Metrics.ShipmentOutcomesTotal.WithLabelValues(string(status)).Inc()
	}
}

func (uc *DefaultShipmentUsecase) publish(event domain.FulfillmentEvent) {
	if uc.Publisher == nil {
		return
	}
	if err := uc.Publisher.Publish(event); err != nil {
		uc.Log.Errorw("failed to publish fulfillment event",
			"order_id", event.OrderID, "stage", event.Stage, "error", err)
	}
}

func (uc *DefaultShipmentUsecase) audit(ctx context.Context, orderID, action, from, to, note string) {
	if uc.AuditRepo == nil {
		return
	}
	err := uc.AuditRepo.Append(ctx, &domain.AuditEntry{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		Action:     action,
		Actor:      domain.ActorShipment,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		uc.Log.Errorw("failed to append audit entry", "order_id", orderID, "action", action, "error", err)
	}
}
