package logger

import (
	"log"

	"github.com/lunamarket/fulfillment-service/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MustInit builds the process-wide sugared logger from LogConfig. Fatal on a
// bad config, like every other MustX initializer.
func MustInit(cfg config.LogConfig) *zap.SugaredLogger {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to parse log level %q: %v", cfg.LogLevel, err)
	}

	var zc zap.Config
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	l, err := zc.Build()
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	return l.Sugar()
}
