package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Restock reasons recorded in the audit trail and metrics.
const (
	RestockReasonIntentFailed  = "intent_failed"
	RestockReasonPaymentFailed = "payment_failed"
	RestockReasonRefunded      = "refunded"
	RestockReasonOrphaned      = "orphaned_attempt"
)

type RestockUsecase interface {
	// RestockOrder returns stock for every reserved line of the order, at most
	// once across all callers and crashes.
	RestockOrder(ctx context.Context, orderID, reason string) error
}

type DefaultRestockUsecase struct {
	OrderRepo     domain.OrderRepository
	InventoryRepo domain.InventoryRepository
	AuditRepo     domain.AuditRepository
	Metrics       *metrics.FulfillmentMetrics
	Log           *zap.SugaredLogger
}

func NewDefaultRestockUsecase(
	orderRepo domain.OrderRepository,
	inventoryRepo domain.InventoryRepository,
	auditRepo domain.AuditRepository,
	m *metrics.FulfillmentMetrics,
	log *zap.SugaredLogger) *DefaultRestockUsecase {

	return &DefaultRestockUsecase{
		OrderRepo:     orderRepo,
		InventoryRepo: inventoryRepo,
		AuditRepo:     auditRepo,
		Metrics:       m,
		Log:           log,
	}
}

// RestockOrder releases each reserved line, then flips the order's
// stockRestored flag. The release moves are replay-safe by move key, so a
// crash between the two steps just means the next caller redoes harmless
// no-ops before winning the flag. Concurrent callers both release (no-ops for
// the loser) but only the flag winner records the restock.
func (uc *DefaultRestockUsecase) RestockOrder(ctx context.Context, orderID, reason string) error {
	order, err := uc.OrderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		uc.count(reason, "error")
		return err
	}
	if order.StockRestored {
		uc.count(reason, "already_restored")
		return nil
	}
	if order.InventoryStatus != domain.InventoryReserved && order.InventoryStatus != domain.InventoryReleasePending {
		uc.count(reason, "nothing_reserved")
		return nil
	}

	if err := uc.OrderRepo.SetInventoryStatus(ctx, orderID, domain.InventoryReleasePending); err != nil {
		uc.count(reason, "error")
		return err
	}
	for _, line := range order.Lines {
		if err := uc.InventoryRepo.Release(ctx, orderID, line.ProductID, line.Quantity); err != nil {
			uc.count(reason, "error")
			return err
		}
	}

	won, err := uc.OrderRepo.MarkStockRestored(ctx, orderID, time.Now())
	if err != nil {
		uc.count(reason, "error")
		return err
	}
	if !won {
		uc.count(reason, "lost_race")
		return nil
	}

	uc.Log.Infow("restocked order", "order_id", orderID, "reason", reason, "lines", len(order.Lines))
	uc.count(reason, "restored")
	if uc.AuditRepo != nil {
		err := uc.AuditRepo.Append(ctx, &domain.AuditEntry{
			ID:         uuid.NewString(),
			OrderID:    orderID,
			Action:     "inventory.restocked",
			Actor:      domain.ActorRestock,
			FromStatus: string(domain.InventoryReserved),
			ToStatus:   string(domain.InventoryReleased),
			Note:       reason,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			uc.Log.Errorw("failed to append restock audit entry", "order_id", orderID, "error", err)
		}
	}
	return nil
}

func (uc *DefaultRestockUsecase) count(reason, outcome string) {
	if uc.Metrics != nil {
		uc.Metrics.RestocksTotal.WithLabelValues(reason, outcome).Inc()
	}
}
