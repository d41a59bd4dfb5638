package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
		Env  string `yaml:"env"`
	} `yaml:"server"`

	Database struct {
		DSN string `yaml:"url"`
	} `yaml:"database"`

	MercadoPago struct {
		AccessToken     string `yaml:"access_token"`
		BaseURL         string `yaml:"base_url"`
		TimeoutSeconds  int    `yaml:"timeout_seconds"` // per-request bound for every gateway call
		Currency        string `yaml:"currency"`
		NotificationURL string `yaml:"notification_url"` // where the gateway posts webhooks
		BackURL         string `yaml:"back_url"`         // redirect target after checkout
	} `yaml:"mercadopago"`

	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
}

type ReconciliationConfig struct {
	ApplyIntervalSeconds  int `yaml:"apply_interval_seconds"`  // deferred webhook apply cadence
	VerifyIntervalSeconds int `yaml:"verify_interval_seconds"` // stale-pending poll cadence
	VerifyAfterMinutes    int `yaml:"verify_after_minutes"`    // how long a PENDING may wait for a webhook
	BatchSize             int `yaml:"batch_size"`
}

var AppConfig *Config

func LoadConfig() {
	var cfg Config

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")

	if dbURL == "" {
		configPath := os.Getenv("CONFIG_PATH")
		if configPath == "" {
			configPath = "config/config.yaml"
		}

		f, err := os.Open(configPath)
		if err != nil {
			log.Fatalf("Failed to open config file at %s: %v", configPath, err)
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			log.Fatalf("Failed to parse config file at %s: %v", configPath, err)
		}

		applyDefaults(&cfg)
		AppConfig = &cfg
		return
	}

	// Environment-driven configuration (tests, containers)
	cfg.Database.DSN = dbURL
	cfg.Server.Env = os.Getenv("SERVER_ENV")
	cfg.Server.Host = os.Getenv("SERVER_HOST")
	cfg.Server.Port, _ = strconv.Atoi(os.Getenv("SERVER_PORT"))

	cfg.MercadoPago.AccessToken = os.Getenv("MERCADOPAGO_ACCESS_TOKEN")
	cfg.MercadoPago.BaseURL = os.Getenv("MERCADOPAGO_BASE_URL")
	cfg.MercadoPago.NotificationURL = os.Getenv("MERCADOPAGO_NOTIFICATION_URL")
	cfg.MercadoPago.BackURL = os.Getenv("MERCADOPAGO_BACK_URL")

	applyDefaults(&cfg)
	AppConfig = &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.MercadoPago.BaseURL == "" {
		cfg.MercadoPago.BaseURL = "https://api.mercadopago.com"
	}
	if cfg.MercadoPago.TimeoutSeconds == 0 {
		cfg.MercadoPago.TimeoutSeconds = 10
	}
	if cfg.MercadoPago.Currency == "" {
		cfg.MercadoPago.Currency = "ARS"
	}
	if cfg.Reconciliation.ApplyIntervalSeconds == 0 {
		cfg.Reconciliation.ApplyIntervalSeconds = 15
	}
	if cfg.Reconciliation.VerifyIntervalSeconds == 0 {
		cfg.Reconciliation.VerifyIntervalSeconds = 300
	}
	if cfg.Reconciliation.VerifyAfterMinutes == 0 {
		cfg.Reconciliation.VerifyAfterMinutes = 30
	}
	if cfg.Reconciliation.BatchSize == 0 {
		cfg.Reconciliation.BatchSize = 50
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		LoadConfig()
	}
	return AppConfig
}
