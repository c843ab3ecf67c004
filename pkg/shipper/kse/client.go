// Package kse provides integration with the KSE logistics order registration API.
package kse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/kse-bridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = "kse"

// Config holds KSE configuration.
type Config struct {
	Endpoint           string
	Timeout            time.Duration
	InsecureSkipVerify bool
	UseMock            bool // When true, uses mock API client
}

// Client is the KSE shipper client.
// It implements the shipper.Shipper interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new KSE client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	var apiClient APIClient

	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		if cfg.InsecureSkipVerify {
			logger.Warn("KSE TLS certificate verification disabled",
				zap.String("endpoint", cfg.Endpoint),
			)
		}
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			Endpoint:           cfg.Endpoint,
			Timeout:            cfg.Timeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new KSE client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = otel.Tracer("kse-bridge/kse")
	}
	return &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// Submit formats the request's line and registers it with KSE.
func (c *Client) Submit(ctx context.Context, req *shipper.SubmitRequest) (*shipper.SubmitResponse, error) {
	rec, err := Format(req.Line)
	if err != nil {
		c.logger.Ctx(ctx).Warn("Cannot format KSE shipment",
			zap.String("line_id", req.Line.ID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return c.SubmitRecord(ctx, rec, req.APIKey)
}

// SubmitRecord posts one record wrapped in a single-element envelope.
// A 2xx body is returned unmodified; HTTP success does not imply the
// provider accepted the package.
func (c *Client) SubmitRecord(ctx context.Context, rec *ShipmentRecord, apiKey string) (*shipper.SubmitResponse, error) {
	ctx, span := c.tracer.Start(ctx, "kse.SubmitRecord",
		trace.WithAttributes(attribute.String("kse.package_no", rec.PackageNo)),
	)
	defer span.End()

	c.logger.Ctx(ctx).Info("Submitting KSE shipment",
		zap.String("package_no", rec.PackageNo),
		zap.Int("goods_count", len(rec.GoodsList)),
	)

	apiResp, err := c.apiClient.CreateShipments(ctx, apiKey, &Envelope{DataList: []ShipmentRecord{*rec}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Ctx(ctx).Error("KSE API error",
			zap.String("package_no", rec.PackageNo),
			zap.Error(err),
		)
		return nil, toShipperError(err)
	}

	span.SetAttributes(attribute.Int("http.status_code", apiResp.StatusCode))

	return &shipper.SubmitResponse{
		Carrier:    carrierName,
		PackageNo:  rec.PackageNo,
		StatusCode: apiResp.StatusCode,
		Body:       apiResp.Body,
	}, nil
}

// toShipperError maps an API client error onto the shipper error taxonomy.
func toShipperError(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return shipper.NewShipperError(carrierName, shipper.CodeProvider, "registration rejected").
			WithCause(fmt.Errorf("%w: %w", shipper.ErrProvider, apiErr)).
			WithStatusCode(apiErr.StatusCode).
			WithBody(apiErr.Body).
			WithRetryable(apiErr.StatusCode >= 500)
	}
	return shipper.NewShipperError(carrierName, shipper.CodeTransport, "request failed").
		WithCause(fmt.Errorf("%w: %w", shipper.ErrTransport, err)).
		WithRetryable(true)
}

// Ensure Client implements shipper.Shipper interface
var _ shipper.Shipper = (*Client)(nil)
