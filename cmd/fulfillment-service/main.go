package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lunamarket/fulfillment-service/internal/app/background"
	"github.com/lunamarket/fulfillment-service/internal/app/setup"
	"github.com/lunamarket/fulfillment-service/internal/config"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/kafka"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/logger"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/migrate"
	"github.com/lunamarket/fulfillment-service/internal/infrastructure/postgres"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	cfg := config.MustLoad()
	zlog := logger.MustInit(cfg.LogConfig)
	defer zlog.Sync()

	db := postgres.MustInitDB(cfg)
	if err := migrate.RunMigrations(db, cfg.OrderDB.MigrationsPath, zlog); err != nil {
		zlog.Fatalw("migrations failed", "error", err)
	}

	deps := setup.BuildDependencies(cfg, db, zlog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go background.StartShipmentWorker(ctx, deps.ShipmentUC, cfg.Shipment, zlog)
	go background.StartJanitorAutoRun(ctx, deps.JanitorUC, cfg.Janitor, zlog)

	addr := net.JoinHostPort(cfg.HTTPServer.Host, cfg.HTTPServer.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: deps.Router,
	}
	go func() {
		zlog.Infow("http server started", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatalw("http server failed", "error", err)
		}
	}()

	<-ctx.Done()
	zlog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Errorw("http shutdown failed", "error", err)
	}
	if closer, ok := deps.Publisher.(*kafka.KafkaPublisher); ok {
		if err := closer.Close(); err != nil {
			zlog.Errorw("kafka close failed", "error", err)
		}
	}
	zlog.Info("server stopped")
	os.Exit(0)
}
