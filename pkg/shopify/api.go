package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// APIClient defines the interface for Shopify Admin GraphQL operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// Execute runs a GraphQL document and returns the raw response.
	Execute(ctx context.Context, query string, variables map[string]any) (*GraphQLResponse, error)
}

// GraphQLRequest is the POST body of a GraphQL call.
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// GraphQLResponse is a GraphQL response envelope. Data holds the "data" object.
type GraphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors,omitempty"`
}

// GraphQLError is one entry of the "errors" array.
type GraphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path,omitempty"`
}

// ErrorList reports GraphQL-level errors returned with an HTTP 200.
type ErrorList []GraphQLError

func (e ErrorList) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return "graphql errors: " + strings.Join(msgs, "; ")
}

// APIError represents a non-success HTTP status from the Admin API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("shopify HTTP_%d: %s", e.StatusCode, e.Body)
}

// ============================================================================
// Orders query response types
// ============================================================================

type ordersData struct {
	Orders struct {
		Nodes []orderNode `json:"nodes"`
	} `json:"orders"`
}

type orderNode struct {
	Name            string        `json:"name"`
	ID              string        `json:"id"`
	Customer        *customerNode `json:"customer"`
	ShippingAddress *addressNode  `json:"shippingAddress"`
	LineItems       struct {
		Edges []struct {
			Node lineItemNode `json:"node"`
		} `json:"edges"`
	} `json:"lineItems"`
}

type customerNode struct {
	DisplayName    string       `json:"displayName"`
	DefaultAddress *addressNode `json:"defaultAddress"`
}

type addressNode struct {
	Address1  string `json:"address1"`
	Address2  string `json:"address2"`
	City      string `json:"city"`
	Province  string `json:"province"`
	Zip       string `json:"zip"`
	Country   string `json:"country"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
}

type lineItemNode struct {
	Title                string `json:"title"`
	Quantity             int    `json:"quantity"`
	OriginalUnitPriceSet *struct {
		ShopMoney *moneyNode `json:"shopMoney"`
	} `json:"originalUnitPriceSet"`
	Variant *struct {
		Title string `json:"title"`
	} `json:"variant"`
	Product *productNode `json:"product"`
}

type moneyNode struct {
	Amount       decimal.Decimal `json:"amount"`
	CurrencyCode string          `json:"currencyCode"`
}

type productNode struct {
	Vendor     string `json:"vendor"`
	Metafields struct {
		Edges []struct {
			Node struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"metafields"`
}
