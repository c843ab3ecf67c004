// Package order turns commerce platform orders into flat, shippable order lines.
package order

import (
	"github.com/shopspring/decimal"
)

// Address is a postal address as the platform reports it.
type Address struct {
	FirstName string
	LastName  string
	Address1  string
	Address2  string
	City      string
	Province  string
	Zip       string
	Country   string
	Phone     string
}

// Customer is the optional customer block of an order.
type Customer struct {
	DisplayName    string
	DefaultAddress *Address
}

// Metafield is a namespaced key/value attached to a product.
type Metafield struct {
	Key   string
	Value string
}

// Product is the product a line item refers to.
type Product struct {
	Vendor     string
	Metafields []Metafield
}

// Money represents a monetary amount.
type Money struct {
	Amount       decimal.Decimal
	CurrencyCode string
}

// RawLineItem is one line item as fetched from the platform.
type RawLineItem struct {
	Title        string
	Quantity     int
	UnitPrice    *Money
	VariantTitle string
	Product      *Product
}

// RawOrder is an unfulfilled order as fetched from the platform.
// Customer and ShippingAddress are nil when the platform omits them.
type RawOrder struct {
	Name            string // e.g. "#1001"
	ID              string // platform GID, e.g. "gid://shopify/Order/5512345"
	Customer        *Customer
	ShippingAddress *Address
	LineItems       []RawLineItem
}

// Line is one line item within one order, flattened for display and shipping.
type Line struct {
	ID              LineID          `json:"id"`
	OrderID         string          `json:"orderId"`
	DisplayName     string          `json:"displayName"`
	Phone           string          `json:"phone"`
	Address         string          `json:"address"`
	ShippingAddress *Address        `json:"shippingAddress,omitempty"`
	ProductTitle    string          `json:"productTitle"`
	VariantTitle    string          `json:"variantTitle"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	Brand           string          `json:"brand"`
	ProductURL      string          `json:"url"`
}

// OrderName returns the name of the order the line belongs to.
func (l Line) OrderName() string {
	return l.ID.OrderName
}
