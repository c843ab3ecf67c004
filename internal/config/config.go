package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error DEBUG INFO WARN ERROR"`

	// KSE
	KSEURL                string        `envconfig:"KSE_URL" validate:"omitempty,url"`
	KSETimeout            time.Duration `envconfig:"KSE_TIMEOUT" default:"30s" validate:"gt=0"`
	KSEInsecureSkipVerify bool          `envconfig:"KSE_INSECURE_SKIP_VERIFY" default:"false"`
	KSEUseMock            bool          `envconfig:"KSE_USE_MOCK" default:"false"`

	// Batch
	BatchTimeout        time.Duration `envconfig:"BATCH_TIMEOUT" default:"5m" validate:"gt=0"`
	BatchAbortOnFailure bool          `envconfig:"BATCH_ABORT_ON_FAILURE" default:"false"`
	Brand               string        `envconfig:"BRAND" default:"Roomnhome" validate:"required"`
	DefaultCurrency     string        `envconfig:"DEFAULT_CURRENCY" default:"JPY" validate:"len=3"`

	// Shopify
	ShopifyShopDomain  string `envconfig:"SHOPIFY_SHOP_DOMAIN" validate:"omitempty,hostname"`
	ShopifyAccessToken string `envconfig:"SHOPIFY_ACCESS_TOKEN"`
	ShopifyAPIVersion  string `envconfig:"SHOPIFY_API_VERSION" default:"2024-10"`
	ShopifyUseMock     bool   `envconfig:"SHOPIFY_USE_MOCK" default:"false"`

	// Credential store
	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"sqlite" validate:"oneof=postgres sqlite"`
	DatabaseDSN    string `envconfig:"DATABASE_DSN" default:"kse-bridge.db" validate:"required"`

	// Outcome events
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"kse.submissions"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://localhost:4318" validate:"omitempty,url"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"kse-bridge"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

var validate = validator.New()

// Load reads an optional .env file, then configuration from environment
// variables, and validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and the settings required outside mock mode.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q validation", fe.Field(), fe.Tag()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if !c.KSEUseMock && c.KSEURL == "" {
		errs = append(errs, errors.New("KSE_URL is required unless KSE_USE_MOCK is set"))
	}
	if !c.ShopifyUseMock {
		if c.ShopifyShopDomain == "" {
			errs = append(errs, errors.New("SHOPIFY_SHOP_DOMAIN is required unless SHOPIFY_USE_MOCK is set"))
		}
		if c.ShopifyAccessToken == "" {
			errs = append(errs, errors.New("SHOPIFY_ACCESS_TOKEN is required unless SHOPIFY_USE_MOCK is set"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// KafkaEnabled reports whether outcome events should be published.
func (c *Config) KafkaEnabled() bool {
	for _, b := range c.KafkaBrokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("kse.mock", c.KSEUseMock),
		attribute.Bool("shopify.mock", c.ShopifyUseMock),
		attribute.Bool("batch.abort_on_failure", c.BatchAbortOnFailure),
		attribute.String("database.driver", c.DatabaseDriver),
	}
}
