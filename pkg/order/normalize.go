package order

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Placeholders shown when the platform omits a field.
const (
	NoName    = "No name"
	NoPhone   = "No phone"
	NoAddress = "No address"
)

// Custom metafield keys read from the product.
const (
	MetafieldProductName = "product_name"
	MetafieldURL         = "url"
)

// Defaults for Options.
const (
	DefaultBrand    = "Roomnhome"
	DefaultCurrency = "JPY"
)

// ErrMalformedOrder indicates an order lacks fields the platform always sends.
var ErrMalformedOrder = errors.New("malformed order")

// Options controls normalization.
type Options struct {
	Brand           string // only lines whose vendor equals Brand are kept
	DefaultCurrency string // used when a line has no price currency
}

func (o Options) withDefaults() Options {
	if o.Brand == "" {
		o.Brand = DefaultBrand
	}
	if o.DefaultCurrency == "" {
		o.DefaultCurrency = DefaultCurrency
	}
	return o
}

// Normalize flattens orders into lines, keeps the configured brand and sorts
// by order name descending. The sort is stable, so lines of one order keep
// their positional order. A malformed order fails the whole call.
func Normalize(orders []RawOrder, opts Options) ([]Line, error) {
	opts = opts.withDefaults()

	lines := make([]Line, 0, len(orders))
	for i := range orders {
		o := &orders[i]
		if o.Name == "" || o.ID == "" {
			return nil, fmt.Errorf("%w: order at position %d has no name or id", ErrMalformedOrder, i)
		}

		displayName := resolveDisplayName(o)
		phone := resolvePhone(o)
		address := resolveAddress(o)

		for idx, item := range o.LineItems {
			line := Line{
				ID:              LineID{OrderName: o.Name, Index: idx},
				OrderID:         o.ID,
				DisplayName:     displayName,
				Phone:           phone,
				Address:         address,
				ShippingAddress: o.ShippingAddress,
				ProductTitle:    item.Title,
				VariantTitle:    item.VariantTitle,
				Quantity:        item.Quantity,
				UnitPrice:       decimal.Zero,
				Currency:        opts.DefaultCurrency,
			}
			if item.UnitPrice != nil {
				line.UnitPrice = item.UnitPrice.Amount
				if item.UnitPrice.CurrencyCode != "" {
					line.Currency = item.UnitPrice.CurrencyCode
				}
			}
			if item.Product != nil {
				line.Brand = item.Product.Vendor
				if name := metafield(item.Product.Metafields, MetafieldProductName); name != "" {
					line.ProductTitle = name
				}
				line.ProductURL = metafield(item.Product.Metafields, MetafieldURL)
			}

			if line.Brand != opts.Brand {
				continue
			}
			lines = append(lines, line)
		}
	}

	sort.SliceStable(lines, func(a, b int) bool {
		return lines[a].ID.OrderName > lines[b].ID.OrderName
	})
	return lines, nil
}

// Find returns the line with the given id.
func Find(lines []Line, id LineID) (Line, bool) {
	for _, l := range lines {
		if l.ID == id {
			return l, true
		}
	}
	return Line{}, false
}

func resolveDisplayName(o *RawOrder) string {
	if o.ShippingAddress != nil {
		return o.ShippingAddress.FirstName + " " + o.ShippingAddress.LastName
	}
	if o.Customer != nil && o.Customer.DisplayName != "" {
		return o.Customer.DisplayName
	}
	return NoName
}

func resolvePhone(o *RawOrder) string {
	if o.ShippingAddress != nil && o.ShippingAddress.Phone != "" {
		return o.ShippingAddress.Phone
	}
	return NoPhone
}

func resolveAddress(o *RawOrder) string {
	if o.ShippingAddress != nil {
		return ComposeAddress(o.ShippingAddress)
	}
	if o.Customer != nil && o.Customer.DefaultAddress != nil {
		return ComposeAddress(o.Customer.DefaultAddress)
	}
	return NoAddress
}

// ComposeAddress renders an address on one line. Address2 is always
// inserted, so an empty Address2 leaves a stray space before the first
// comma ("1 Main , Tokyo, ..."). Operators copy this string verbatim into
// other systems; keep the format stable.
func ComposeAddress(a *Address) string {
	var b strings.Builder
	b.WriteString(a.Address1)
	b.WriteString(" ")
	b.WriteString(a.Address2)
	b.WriteString(", ")
	b.WriteString(a.City)
	b.WriteString(", ")
	b.WriteString(a.Province)
	b.WriteString(" ")
	b.WriteString(a.Zip)
	b.WriteString(", ")
	b.WriteString(a.Country)
	return b.String()
}

// metafield returns the value of the first metafield with the given key.
func metafield(fields []Metafield, key string) string {
	for _, f := range fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}
