package postgres

import (
	"log"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func MustInitDB(cfg *config.FulfillmentConfig) *gorm.DB {
	dsn := cfg.OrderDB.Dsn
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("failed to init db: %v\n", err.Error())
	}

	db.AutoMigrate(
		&models.ProductModel{},
		&models.ProductPriceModel{},
		&models.OrderModel{},
		&models.OrderLineModel{},
		&models.PaymentAttemptModel{},
		&models.ProviderEventModel{},
		&models.InventoryMoveModel{},
		&models.ShipmentModel{},
		&models.AuditLogModel{},
		&models.JobGateModel{},
	)

	return db
}
