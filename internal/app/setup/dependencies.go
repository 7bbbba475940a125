package setup

import (
	"github.com/go-chi/chi/v5"
	"github.com/lunamarket/fulfillment-service/internal/client"
	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/delivery/httpapi"
	"github.com/lunamarket/fulfillment-service/internal/domain"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/kafka"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/metrics"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/repository"
	"github.com/lunamarket/fulfillment-service/internal/usecase"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dependencies holds every constructed collaborator; main wires it once and
// hands the pieces to the server and the background loops.
type Dependencies struct {
	Router     chi.Router
	CheckoutUC usecase.CheckoutUsecase
	EventUC    usecase.EventUsecase
	RestockUC  usecase.RestockUsecase
	ShipmentUC usecase.ShipmentUsecase
	JanitorUC  usecase.JanitorUsecase
	Publisher  domain.PublisherPort
	Metrics    *metrics.FulfillmentMetrics
}

func BuildDependencies(cfg *config.FulfillmentConfig, db *gorm.DB, log *zap.SugaredLogger) *Dependencies {
	m := metrics.NewFulfillmentMetrics()

	orderRepo := repository.NewDefaultOrderRepository(db)
	inventoryRepo := repository.NewDefaultInventoryRepository(db)
	eventRepo := repository.NewDefaultProviderEventRepository(db)
	shipmentRepo := repository.NewDefaultShipmentRepository(db)
	auditRepo := repository.NewDefaultAuditRepository(db)
	gateRepo := repository.NewDefaultJobGateRepository(db)

	var publisher domain.PublisherPort = kafka.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = kafka.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}

	pspClients := map[domain.PaymentProvider]domain.PSPClient{
		domain.ProviderStripe:   client.NewStripeClient(cfg.Stripe),
		domain.ProviderMonobank: client.NewMonobankClient(cfg.Monobank),
	}
	carrier := client.NewHTTPCarrierClient(cfg.Shipping)

	restockUC := usecase.NewDefaultRestockUsecase(orderRepo, inventoryRepo, auditRepo, m, log)
	eventUC := usecase.NewDefaultEventUsecase(eventRepo, orderRepo, shipmentRepo, auditRepo, restockUC, publisher, m, log, cfg.Webhooks)
	checkoutUC := usecase.NewDefaultCheckoutUsecase(orderRepo, inventoryRepo, auditRepo, restockUC, pspClients, m, log, cfg.Checkout)
	shipmentUC := usecase.NewDefaultShipmentUsecase(shipmentRepo, orderRepo, auditRepo, carrier, publisher, m, log, cfg.Shipment)
	janitorUC := usecase.NewDefaultJanitorUsecase(orderRepo, eventRepo, gateRepo, eventUC, restockUC, pspClients, m, log, cfg.Janitor)

	router := httpapi.NewRouter(httpapi.RouterDeps{
		Checkout: httpapi.NewCheckoutHandler(checkoutUC, log),
		Webhooks: httpapi.NewWebhookHandler(eventUC, pspClients, cfg.Webhooks, log),
		Janitor:  httpapi.NewJanitorHandler(janitorUC, cfg.Janitor.Secret, log),
		Log:      log,
	})

	return &Dependencies{
		Router:     router,
		CheckoutUC: checkoutUC,
		EventUC:    eventUC,
		RestockUC:  restockUC,
		ShipmentUC: shipmentUC,
		JanitorUC:  janitorUC,
		Publisher:  publisher,
		Metrics:    m,
	}
}
