package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/tournevent/kse-bridge/internal/batch"
	"github.com/tournevent/kse-bridge/internal/config"
	"github.com/tournevent/kse-bridge/internal/credential"
	"github.com/tournevent/kse-bridge/internal/events"
	"github.com/tournevent/kse-bridge/internal/telemetry"
	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/tournevent/kse-bridge/pkg/shipper"
	"github.com/tournevent/kse-bridge/pkg/shipper/kse"
	"github.com/tournevent/kse-bridge/pkg/shopify"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.Attributes()...)
	return shutdown, err
}

func initShipperRegistry(cfg *config.Config, logger *otelzap.Logger) *shipper.Registry {
	registry := shipper.NewRegistry()

	registry.Register(kse.New(kse.Config{
		Endpoint:           cfg.KSEURL,
		Timeout:            cfg.KSETimeout,
		InsecureSkipVerify: cfg.KSEInsecureSkipVerify,
		UseMock:            cfg.KSEUseMock,
	}, logger, telemetry.Tracer("kse-bridge/kse")))

	return registry
}

func initCredentialStore(cfg *config.Config) (*credential.Store, error) {
	db, err := credential.Open(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	return credential.NewStore(db), nil
}

func initPublisher(cfg *config.Config, logger *otelzap.Logger) events.Publisher {
	if !cfg.KafkaEnabled() {
		return events.NopPublisher{}
	}
	logger.Info("Publishing outcome events",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
}

// app bundles the wired components shared by every command.
type app struct {
	cfg          *config.Config
	logger       *otelzap.Logger
	metrics      *telemetry.Metrics
	registry     *prometheus.Registry
	store        *credential.Store
	publisher    events.Publisher
	orchestrator *batch.Orchestrator
}

func initApp(cfg *config.Config, logger *otelzap.Logger) (*app, error) {
	store, err := initCredentialStore(cfg)
	if err != nil {
		return nil, err
	}

	source, err := shopify.New(shopify.Config{
		ShopDomain:  cfg.ShopifyShopDomain,
		AccessToken: cfg.ShopifyAccessToken,
		APIVersion:  cfg.ShopifyAPIVersion,
		Timeout:     cfg.KSETimeout,
		UseMock:     cfg.ShopifyUseMock,
	}, logger, telemetry.Tracer("kse-bridge/shopify"))
	if err != nil {
		return nil, err
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewMetrics(promRegistry)
	publisher := initPublisher(cfg, logger)

	orchestrator := batch.New(batch.Config{
		Carrier: "kse",
		Normalize: order.Options{
			Brand:           cfg.Brand,
			DefaultCurrency: cfg.DefaultCurrency,
		},
		ItemTimeout:    cfg.KSETimeout,
		BatchTimeout:   cfg.BatchTimeout,
		AbortOnFailure: cfg.BatchAbortOnFailure,
	}, batch.Deps{
		Source:      source,
		Credentials: credential.NewLookup(store),
		Registry:    initShipperRegistry(cfg, logger),
		Publisher:   publisher,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      telemetry.Tracer("kse-bridge/batch"),
	})

	return &app{
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		registry:     promRegistry,
		store:        store,
		publisher:    publisher,
		orchestrator: orchestrator,
	}, nil
}

func (a *app) Close() {
	if err := a.publisher.Close(); err != nil {
		a.logger.Warn("Failed to close publisher", zap.Error(err))
	}
}
