package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

type EventUsecase interface {
	// Ingest persists a verified provider notification and, unless the intake
	// mode defers it, applies it. Duplicate deliveries are absorbed here.
	Ingest(ctx context.Context, notif *domain.ProviderNotification, applyNow bool) (*domain.ProviderEvent, error)
	// ApplyEvent drives one stored event to an applied outcome. Safe to call
	// any number of times from any process.
	ApplyEvent(ctx context.Context, eventID string) error
}

type DefaultEventUsecase struct {
	EventRepo    domain.ProviderEventRepository
	OrderRepo    domain.OrderRepository
	ShipmentRepo domain.ShipmentRepository
	AuditRepo    domain.AuditRepository
	RestockUC    RestockUsecase
	Publisher    domain.PublisherPort
	Metrics      *metrics.FulfillmentMetrics
	Log          *zap.SugaredLogger
	ClaimTTL     time.Duration
}

func NewDefaultEventUsecase(
	eventRepo domain.ProviderEventRepository,
	orderRepo domain.OrderRepository,
	shipmentRepo domain.ShipmentRepository,
	auditRepo domain.AuditRepository,
	restockUC RestockUsecase,
	publisher domain.PublisherPort,
	m *metrics.FulfillmentMetrics,
	log *zap.SugaredLogger,
	cfg config.Webhooks) *DefaultEventUsecase {

	return &DefaultEventUsecase{
		EventRepo:    eventRepo,
		OrderRepo:    orderRepo,
		ShipmentRepo: shipmentRepo,
		AuditRepo:    auditRepo,
		RestockUC:    restockUC,
		Publisher:    publisher,
		Metrics:      m,
		Log:          log,
		ClaimTTL:     cfg.EventClaimTTL,
	}
}

func (uc *DefaultEventUsecase) Ingest(ctx context.Context, notif *domain.ProviderNotification, applyNow bool) (*domain.ProviderEvent, error) {
	event := &domain.ProviderEvent{
		ID:                 uuid.NewString(),
		EventKey:           domain.EventKey(notif.Raw),
		Provider:           notif.Provider,
		InvoiceID:          notif.InvoiceID,
		Status:             notif.Status,
		AmountMinor:        notif.AmountMinor,
		Currency:           notif.Currency,
		ProviderModifiedAt: notif.ProviderModifiedAt,
		RawPayload:         string(notif.Raw),
		CreatedAt:          time.Now(),
	}
	stored, created, err := uc.EventRepo.Insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if uc.Metrics != nil {
		dedup := "new"
		if !created {
			dedup = "duplicate"
		}
		uc.Metrics.EventsReceivedTotal.WithLabelValues(string(notif.Provider), dedup).Inc()
	}
	if stored.Applied() {
		return stored, nil
	}
	if applyNow {
		if err := uc.ApplyEvent(ctx, stored.ID); err != nil {
			// Intake already succeeded; the janitor backfill will retry the
			// application, so the provider still gets a 2xx.
			uc.Log.Errorw("inline event application failed, deferring to backfill",
				"event_id", stored.ID, "provider", notif.Provider, "error", err)
		}
	}
	return stored, nil
}

// ApplyEvent claims the event, effects at most one durable order transition
// and always records a terminal applied outcome before releasing the claim.
// Losing the claim is not an error: another applier owns the event.
func (uc *DefaultEventUsecase) ApplyEvent(ctx context.Context, eventID string) error {
	started := time.Now()
	defer func() {
		if uc.Metrics != nil {
			uc.Metrics.ApplyDuration.Observe(time.Since(started).Seconds())
		}
	}()

	owner := uuid.NewString()
	claimed, err := uc.EventRepo.Claim(ctx, eventID, owner, time.Now(), uc.ClaimTTL)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	event, err := uc.EventRepo.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if event.Applied() {
		return nil
	}

	result, code := uc.apply(ctx, event)
	if uc.Metrics != nil {
		uc.Metrics.EventsAppliedTotal.WithLabelValues(string(result), code).Inc()
	}
	return uc.EventRepo.FinishApply(ctx, eventID, time.Now(), result, code)
}

// apply classifies the event against the current order state and returns the
// applied outcome. Every anomaly maps to a result+code pair; nothing returns
// an error once the claim is held, so the event always reaches applied.
func (uc *DefaultEventUsecase) apply(ctx context.Context, event *domain.ProviderEvent) (domain.AppliedResult, string) {
	attempt, err := uc.OrderRepo.GetAttemptByProviderRef(ctx, event.Provider, event.InvoiceID)
	if err != nil {
		uc.Log.Warnw("provider event references no known attempt",
			"event_id", event.ID, "provider", event.Provider, "invoice_id", event.InvoiceID)
		return domain.AppliedWithIssue, domain.ApplyErrUnknownReference
	}
	order, err := uc.OrderRepo.GetOrderByID(ctx, attempt.OrderID)
	if err != nil {
		return domain.AppliedWithIssue, domain.ApplyErrUnknownReference
	}

	// Stale delivery: a newer snapshot of this invoice was already applied.
	if event.ProviderModifiedAt != nil {
		last, err := uc.EventRepo.LastAppliedModifiedAt(ctx, event.InvoiceID)
		if err == nil && last != nil && event.ProviderModifiedAt.Before(*last) {
			return domain.AppliedNoop, domain.ApplyErrOutOfOrder
		}
	}

	switch event.Status {
	case domain.NotifySuccess:
		return uc.applySuccess(ctx, event, order, attempt)
	case domain.NotifyFailed, domain.NotifyExpired, domain.NotifyCanceled:
		return uc.applyFailure(ctx, event, order, attempt)
	case domain.NotifyRefunded:
		return uc.applyRefund(ctx, event, order)
	case domain.NotifyProcessing:
		return domain.AppliedNoop, ""
	default:
		uc.Log.Warnw("provider event with unsupported status",
			"event_id", event.ID, "status", event.Status)
		return domain.AppliedWithIssue, domain.ApplyErrUnsupportedStatus
	}
}

func (uc *DefaultEventUsecase) applySuccess(ctx context.Context, event *domain.ProviderEvent, order *domain.Order, attempt *domain.PaymentAttempt) (domain.AppliedResult, string) {
	if event.AmountMinor >= 0 && event.AmountMinor != attempt.ExpectedAmountMinor {
		uc.Log.Errorw("provider-reported amount differs from expected",
			"order_id", order.ID, "expected", attempt.ExpectedAmountMinor, "reported", event.AmountMinor)
		if err := uc.OrderRepo.UpdateAttemptStatus(ctx, attempt.ID, domain.AttemptFailed,
			domain.ApplyErrAmountMismatch, "provider-reported amount differs from expected"); err != nil {
			uc.Log.Errorw("failed to mark attempt failed on amount mismatch", "attempt_id", attempt.ID, "error", err)
		}
		uc.moveToReview(ctx, order, fmt.Sprintf("amount mismatch: expected %d, provider reported %d",
			attempt.ExpectedAmountMinor, event.AmountMinor))
		return domain.AppliedWithIssue, domain.ApplyErrAmountMismatch
	}

	landed, err := uc.OrderRepo.UpdatePaymentStatusGuarded(ctx, order.ID, domain.PaymentStatusUpdate{
		To:   domain.PaymentPaid,
		From: domain.AllowedPaymentSources(domain.PaymentPaid),
	})
	if err != nil {
		uc.Log.Errorw("guarded paid transition failed", "order_id", order.ID, "error", err)
		return domain.AppliedWithIssue, domain.ApplyErrStateBlocked
	}
	if !landed {
		if order.PaymentStatus == domain.PaymentPaid {
			return domain.AppliedNoop, ""
		}
		return domain.AppliedWithIssue, domain.ApplyErrStateBlocked
	}

	if err := uc.OrderRepo.UpdateAttemptStatus(ctx, attempt.ID, domain.AttemptSucceeded, "", ""); err != nil {
		uc.Log.Errorw("failed to mark attempt succeeded", "attempt_id", attempt.ID, "error", err)
	}
	uc.audit(ctx, order.ID, "payment.paid", string(order.PaymentStatus), string(domain.PaymentPaid), event.ID)

	// Fulfillment only starts for goods we still hold a reservation on.
	if order.ShippingRequired && order.InventoryStatus == domain.InventoryReserved && !order.StockRestored {
		shipment := &domain.ShippingShipment{
			ID:        uuid.NewString(),
			OrderID:   order.ID,
			Status:    domain.ShipmentQueued,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if err := uc.ShipmentRepo.Enqueue(ctx, shipment); err != nil {
			uc.Log.Errorw("failed to enqueue shipment", "order_id", order.ID, "error", err)
		} else if err := uc.OrderRepo.SetShippingState(ctx, order.ID, domain.ShippingQueued, ""); err != nil {
			uc.Log.Errorw("failed to set shipping status", "order_id", order.ID, "error", err)
		}
	}

	uc.publish(domain.FulfillmentEvent{
		OrderID:       order.ID,
		Stage:         domain.StagePaid,
		PaymentStatus: string(domain.PaymentPaid),
		AmountMinor:   order.TotalAmountMinor,
		Currency:      order.Currency,
	})
	return domain.AppliedOK, ""
}

func (uc *DefaultEventUsecase) applyFailure(ctx context.Context, event *domain.ProviderEvent, order *domain.Order, attempt *domain.PaymentAttempt) (domain.AppliedResult, string) {
	landed, err := uc.OrderRepo.UpdatePaymentStatusGuarded(ctx, order.ID, domain.PaymentStatusUpdate{
		To:             domain.PaymentFailed,
		From:           domain.AllowedPaymentSources(domain.PaymentFailed),
		FailureCode:    string(event.Status),
		FailureMessage: "payment provider reported " + string(event.Status),
	})
	if err != nil {
		return domain.AppliedWithIssue, domain.ApplyErrStateBlocked
	}
	if !landed {
		if order.PaymentStatus == domain.PaymentFailed {
			return domain.AppliedNoop, ""
		}
		// A paid order must never regress to failed on a late event.
		return domain.AppliedWithIssue, domain.ApplyErrStateBlocked
	}

	if err := uc.OrderRepo.UpdateAttemptStatus(ctx, attempt.ID, domain.AttemptFailed, string(event.Status), "provider terminal failure"); err != nil {
		uc.Log.Errorw("failed to mark attempt failed", "attempt_id", attempt.ID, "error", err)
	}
	uc.audit(ctx, order.ID, "payment.failed", string(order.PaymentStatus), string(domain.PaymentFailed), event.ID)

	if err := uc.RestockUC.RestockOrder(ctx, order.ID, RestockReasonPaymentFailed); err != nil {
		uc.Log.Errorw("restock after payment failure did not complete", "order_id", order.ID, "error", err)
	}

	uc.publish(domain.FulfillmentEvent{
		OrderID:       order.ID,
		Stage:         domain.StageFailed,
		PaymentStatus: string(domain.PaymentFailed),
		AmountMinor:   order.TotalAmountMinor,
		Currency:      order.Currency,
	})
	return domain.AppliedOK, ""
}

func (uc *DefaultEventUsecase) applyRefund(ctx context.Context, event *domain.ProviderEvent, order *domain.Order) (domain.AppliedResult, string) {
	landed, err := uc.OrderRepo.UpdatePaymentStatusGuarded(ctx, order.ID, domain.PaymentStatusUpdate{
		To:   domain.PaymentRefunded,
		From: domain.AllowedPaymentSources(domain.PaymentRefunded),
	})
	if err != nil {
		return domain.AppliedWithIssue, domain.ApplyErrStateBlocked
	}
	if !landed {
		if order.PaymentStatus == domain.PaymentRefunded {
			return domain.AppliedNoop, ""
		}
		return domain.AppliedWithIssue, domain.ApplyErrStateBlocked
	}

	uc.audit(ctx, order.ID, "payment.refunded", string(order.PaymentStatus), string(domain.PaymentRefunded), event.ID)

	if err := uc.RestockUC.RestockOrder(ctx, order.ID, RestockReasonRefunded); err != nil {
		uc.Log.Errorw("restock after refund did not complete", "order_id", order.ID, "error", err)
	}

	uc.publish(domain.FulfillmentEvent{
		OrderID:       order.ID,
		Stage:         domain.StageRefunded,
		PaymentStatus: string(domain.PaymentRefunded),
		AmountMinor:   order.TotalAmountMinor,
		Currency:      order.Currency,
	})
	return domain.AppliedOK, ""
}

func (uc *DefaultEventUsecase) moveToReview(ctx context.Context, order *domain.Order, note string) {
	landed, err := uc.OrderRepo.UpdatePaymentStatusGuarded(ctx, order.ID, domain.PaymentStatusUpdate{
		To:             domain.PaymentNeedsReview,
		From:           domain.AllowedPaymentSources(domain.PaymentNeedsReview),
		FailureCode:    domain.ApplyErrAmountMismatch,
		FailureMessage: note,
	})
	if err != nil || !landed {
		uc.Log.Errorw("failed to move order to review", "order_id", order.ID, "error", err)
		return
	}
	uc.audit(ctx, order.ID, "payment.needs_review", string(order.PaymentStatus), string(domain.PaymentNeedsReview), note)
	uc.publish(domain.FulfillmentEvent{
		OrderID:       order.ID,
		Stage:         domain.StageNeedsReview,
		PaymentStatus: string(domain.PaymentNeedsReview),
		AmountMinor:   order.TotalAmountMinor,
		Currency:      order.Currency,
	})
}

func (uc *DefaultEventUsecase) publish(event domain.FulfillmentEvent) {
	if uc.Publisher == nil {
		return
	}
	if err := uc.Publisher.Publish(event); err != nil {
		uc.Log.Errorw("failed to publish fulfillment event",
			"order_id", event.OrderID, "stage", event.Stage, "error", err)
	}
}

func (uc *DefaultEventUsecase) audit(ctx context.Context, orderID, action, from, to, note string) {
	if uc.AuditRepo == nil {
		return
	}
	err := uc.AuditRepo.Append(ctx, &domain.AuditEntry{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		Action:     action,
		Actor:      domain.ActorEngine,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		uc.Log.Errorw("failed to append audit entry", "order_id", orderID, "action", action, "error", err)
	}
}
