package background

import (
	"context"
	"errors"
	"time"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/usecase"
	"go.uber.org/zap"
)

// StartShipmentWorker polls for due shipments until ctx is canceled.
func StartShipmentWorker(ctx context.Context, shipmentUC usecase.ShipmentUsecase, cfg config.Shipment, log *zap.SugaredLogger) {
	ticker := time.NewTicker(cfg.PollInterval)
	defer ticker.Stop()

	log.Infow("shipment worker started", "poll_interval", cfg.PollInterval, "batch_size", cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			log.Info("shipment worker stopped")
			return
		case <-ticker.C:
			claimed, err := shipmentUC.ProcessDueShipments(ctx)
			if err != nil {
				log.Errorw("shipment batch failed", "error", err)
				continue
			}
			if claimed > 0 {
				log.Infow("shipment batch processed", "claimed", claimed)
			}
		}
	}
}

// StartJanitorAutoRun fires the janitor on a fixed interval. The durable gate
// still applies, so overlapping instances or a concurrent HTTP trigger just
// see a closed gate.
func StartJanitorAutoRun(ctx context.Context, janitorUC usecase.JanitorUsecase, cfg config.Janitor, log *zap.SugaredLogger) {
	if cfg.AutoRunInterval <= 0 {
		log.Info("janitor auto-run disabled")
		return
	}
	ticker := time.NewTicker(cfg.AutoRunInterval)
	defer ticker.Stop()

	log.Infow("janitor auto-run started", "interval", cfg.AutoRunInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("janitor auto-run stopped")
			return
		case <-ticker.C:
			if _, err := janitorUC.Run(ctx, "auto", usecase.JanitorOptions{}); err != nil {
				var gateErr *usecase.GateClosedError
				if errors.As(err, &gateErr) {
					continue
				}
				log.Errorw("janitor auto-run failed", "error", err)
			}
		}
	}
}
