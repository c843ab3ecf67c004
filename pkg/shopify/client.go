// Package shopify fetches unfulfilled orders from the Shopify Admin GraphQL API.
package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds Shopify configuration.
type Config struct {
	ShopDomain  string
	AccessToken string
	APIVersion  string
	Timeout     time.Duration
	UseMock     bool // When true, uses mock API client
}

// Client is the order source backed by the Admin API.
type Client struct {
	apiClient APIClient
	logger    *otelzap.Logger
	tracer    trace.Tracer
}

// New creates a new Shopify client.
// If cfg.UseMock is true, it serves fixture orders instead of calling Shopify.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) (*Client, error) {
	if err := ValidateQuery(UnfulfilledOrdersQuery); err != nil {
		return nil, err
	}

	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			ShopDomain:  cfg.ShopDomain,
			APIVersion:  cfg.APIVersion,
			AccessToken: cfg.AccessToken,
			Timeout:     cfg.Timeout,
		})
	}

	return NewWithAPIClient(apiClient, logger, tracer), nil
}

// NewWithAPIClient creates a new Shopify client with a custom API client.
func NewWithAPIClient(apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	if tracer == nil {
		tracer = otel.Tracer("kse-bridge/shopify")
	}
	return &Client{
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
	}
}

// FetchUnfulfilled returns the current unfulfilled orders.
func (c *Client) FetchUnfulfilled(ctx context.Context) ([]order.RawOrder, error) {
	ctx, span := c.tracer.Start(ctx, "shopify.FetchUnfulfilled")
	defer span.End()

	resp, err := c.apiClient.Execute(ctx, UnfulfilledOrdersQuery, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.Ctx(ctx).Error("Shopify orders query failed", zap.Error(err))
		return nil, fmt.Errorf("fetch unfulfilled orders: %w", err)
	}

	var data ordersData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("parse orders response: %w", err)
	}

	orders := make([]order.RawOrder, 0, len(data.Orders.Nodes))
	for _, n := range data.Orders.Nodes {
		orders = append(orders, n.toRawOrder())
	}

	span.SetAttributes(attribute.Int("shopify.order_count", len(orders)))
	c.logger.Ctx(ctx).Debug("Fetched unfulfilled orders", zap.Int("order_count", len(orders)))

	return orders, nil
}

// ============================================================================
// Conversion helpers
// ============================================================================

func (n orderNode) toRawOrder() order.RawOrder {
	o := order.RawOrder{
		Name:            n.Name,
		ID:              n.ID,
		ShippingAddress: n.ShippingAddress.toAddress(),
	}
	if n.Customer != nil {
		o.Customer = &order.Customer{
			DisplayName:    n.Customer.DisplayName,
			DefaultAddress: n.Customer.DefaultAddress.toAddress(),
		}
	}
	for _, e := range n.LineItems.Edges {
		o.LineItems = append(o.LineItems, e.Node.toRawLineItem())
	}
	return o
}

func (a *addressNode) toAddress() *order.Address {
	if a == nil {
		return nil
	}
	return &order.Address{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		Province:  a.Province,
		Zip:       a.Zip,
		Country:   a.Country,
		Phone:     a.Phone,
	}
}

func (li lineItemNode) toRawLineItem() order.RawLineItem {
	item := order.RawLineItem{
		Title:    li.Title,
		Quantity: li.Quantity,
	}
	if li.OriginalUnitPriceSet != nil && li.OriginalUnitPriceSet.ShopMoney != nil {
		item.UnitPrice = &order.Money{
			Amount:       li.OriginalUnitPriceSet.ShopMoney.Amount,
			CurrencyCode: li.OriginalUnitPriceSet.ShopMoney.CurrencyCode,
		}
	}
	if li.Variant != nil {
		item.VariantTitle = li.Variant.Title
	}
	if li.Product != nil {
		p := &order.Product{Vendor: li.Product.Vendor}
		for _, e := range li.Product.Metafields.Edges {
			p.Metafields = append(p.Metafields, order.Metafield{Key: e.Node.Key, Value: e.Node.Value})
		}
		item.Product = p
	}
	return item
}
