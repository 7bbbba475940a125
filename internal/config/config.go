package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type FulfillmentConfig struct {
	Env        string `yaml:"env" env-default:"local"`
	HTTPServer `yaml:"http_server"`
	OrderDB    `yaml:"order_db"`
	LogConfig  `yaml:"log_config"`
	Stripe     `yaml:"stripe"`
	Monobank   `yaml:"monobank"`
	Shipping   `yaml:"shipping"`
	Kafka      `yaml:"kafka"`
	Webhooks   `yaml:"webhooks"`
	Shipment   `yaml:"shipment"`
	Janitor    `yaml:"janitor"`
	Checkout   `yaml:"checkout"`
}

type HTTPServer struct {
	Host string `yaml:"host" env-default:"0.0.0.0"`
	Port string `yaml:"port" env-default:"8080"`
}

type OrderDB struct {
	Dsn            string `yaml:"dsn"`
	MigrationsPath string `yaml:"migrations_path" env-default:"migrations"`
}

type LogConfig struct {
	LogLevel  string `yaml:"log_level" env-default:"info"`
	LogFormat string `yaml:"log_format" env-default:"json"`
}

type Stripe struct {
	BaseURL       string `yaml:"base_url" env-default:"https://api.stripe.com"`
	SecretKey     string `yaml:"secret_key" env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `yaml:"webhook_secret" env:"STRIPE_WEBHOOK_SECRET"`
}

type Monobank struct {
	BaseURL    string `yaml:"base_url" env-default:"https://api.monobank.ua"`
	Token      string `yaml:"token" env:"MONOBANK_TOKEN"`
	WebhookKey string `yaml:"webhook_key" env:"MONOBANK_WEBHOOK_KEY"`
	// RedirectURL is where the hosted payment page sends the shopper back.
	RedirectURL string `yaml:"redirect_url"`
}

type Shipping struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key" env:"SHIPPING_API_KEY"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env-default:"false"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" env-default:"fulfillment-events"`
}

// Webhooks controls per-provider intake mode: "apply" applies a stored event
// immediately, "store_only" leaves application to the janitor backfill.
// Intake always persists first either way.
type Webhooks struct {
	StripeMode   string `yaml:"stripe_mode" env-default:"apply"`
	MonobankMode string `yaml:"monobank_mode" env-default:"apply"`
	// EventClaimTTL bounds how long one applier may hold an event claim.
	EventClaimTTL time.Duration `yaml:"event_claim_ttl" env-default:"2m"`
}

type Shipment struct {
	PollInterval time.Duration `yaml:"poll_interval" env-default:"10s"`
	BatchSize    int           `yaml:"batch_size" env-default:"10"`
	LeaseTTL     time.Duration `yaml:"lease_ttl" env-default:"5m"`
	MaxAttempts  int           `yaml:"max_attempts" env-default:"5"`
	RetryBase    time.Duration `yaml:"retry_base" env-default:"30s"`
	RetryCap     time.Duration `yaml:"retry_cap" env-default:"30m"`
}

type Janitor struct {
	Secret            string        `yaml:"secret" env:"JANITOR_SECRET"`
	MinInterval       time.Duration `yaml:"min_interval" env-default:"1m"`
	StaleAttemptAfter time.Duration `yaml:"stale_attempt_after" env-default:"15m"`
	StuckOrderAfter   time.Duration `yaml:"stuck_order_after" env-default:"1h"`
	BatchLimit        int           `yaml:"batch_limit" env-default:"50"`
	// AutoRunInterval drives the built-in background trigger; zero disables
	// it, leaving only the authenticated HTTP trigger.
	AutoRunInterval time.Duration `yaml:"auto_run_interval" env-default:"2m"`
}

type Checkout struct {
	MaxAttemptsPerProvider int `yaml:"max_attempts_per_provider" env-default:"3"`
}

func MustLoad() *FulfillmentConfig {
	configPath := os.Getenv("FULFILLMENT_CONFIG_PATH")
	if configPath == "" {
		log.Fatalf("FULFILLMENT_CONFIG_PATH was not found\n")
	}

	if _, err := os.Stat(configPath); err != nil {
		log.Fatalf("failed to find config file: %v\n", err)
	}

	var cfg FulfillmentConfig
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	return &cfg
}
