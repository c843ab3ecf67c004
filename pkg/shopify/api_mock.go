package shopify

import (
	"context"
	"encoding/json"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing and
// local runs. By default it serves a small fixed set of unfulfilled orders.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	// Data, when set, replaces the built-in fixture as the "data" object.
	Data json.RawMessage

	OnExecute func(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error)
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// Execute returns the configured or built-in orders fixture.
func (m *MockAPIClient) Execute(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error) {
	if m.SimulateLatency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.SimulateLatency):
		}
	}

	if m.SimulateErrors {
		return nil, ErrorList{{Message: "Simulated API error"}}
	}

	if m.OnExecute != nil {
		return m.OnExecute(ctx, query, variables)
	}

	data := m.Data
	if data == nil {
		data = json.RawMessage(mockOrdersFixture)
	}
	return &GraphQLResponse{Data: data}, nil
}

var _ APIClient = (*MockAPIClient)(nil)

const mockOrdersFixture = `{
  "orders": {
    "nodes": [
      {
        "name": "#1001",
        "id": "gid://shopify/Order/5510001",
        "customer": {
          "displayName": "Taro Yamada",
          "defaultAddress": {
            "address1": "4-5-6 Umeda",
            "address2": null,
            "city": "Kita-ku",
            "province": "Osaka",
            "zip": "530-0001",
            "country": "Japan"
          }
        },
        "shippingAddress": {
          "address1": "4-5-6 Umeda",
          "address2": "Room 201",
          "city": "Kita-ku",
          "province": "Osaka",
          "zip": "530-0001",
          "country": "Japan",
          "firstName": "Taro",
          "lastName": "Yamada",
          "phone": "+81-6-0000-0000"
        },
        "lineItems": {
          "edges": [
            {
              "node": {
                "title": "Walnut Shelf",
                "quantity": 1,
                "originalUnitPriceSet": {"shopMoney": {"amount": "24800.0", "currencyCode": "JPY"}},
                "variant": {"title": "Large"},
                "product": {
                  "vendor": "Roomnhome",
                  "metafields": {"edges": [
                    {"node": {"key": "product_name", "value": "ウォールナットシェルフ"}},
                    {"node": {"key": "url", "value": "https://example.com/products/walnut-shelf"}}
                  ]}
                }
              }
            },
            {
              "node": {
                "title": "Gift Wrapping",
                "quantity": 1,
                "originalUnitPriceSet": {"shopMoney": {"amount": "500.0", "currencyCode": "JPY"}},
                "variant": null,
                "product": {"vendor": "Store Services", "metafields": {"edges": []}}
              }
            }
          ]
        }
      },
      {
        "name": "#1002",
        "id": "gid://shopify/Order/5510002",
        "customer": {"displayName": "Hanako Sato", "defaultAddress": null},
        "shippingAddress": null,
        "lineItems": {
          "edges": [
            {
              "node": {
                "title": "Oak Side Table",
                "quantity": 2,
                "originalUnitPriceSet": {"shopMoney": {"amount": "12800.0", "currencyCode": "JPY"}},
                "variant": {"title": "Natural"},
                "product": {"vendor": "Roomnhome", "metafields": {"edges": []}}
              }
            }
          ]
        }
      }
    ]
  }
}`
