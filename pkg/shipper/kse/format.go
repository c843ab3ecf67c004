package kse

import (
	"regexp"

	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/tournevent/kse-bridge/pkg/shipper"
)

// Fixed record values. Dimensions are placeholders until the platform
// exposes per-product measurements.
const (
	DeliveryServiceCode = "KSE"
	DestinationCountry  = "JP"
	Market              = "shopify"

	placeholderWeight = 1.0
	placeholderWidth  = 1.1
	placeholderDepth  = 1.2
	placeholderHeight = 1.3
	weightMeasure     = "KG"
	lengthMeasure     = "cm"
)

var digitRun = regexp.MustCompile(`\d+`)

// Format maps an order line to a KSE shipment record. It fails with
// shipper.ErrMissingShippingAddress when the order has no shipping address;
// the customer default address is never used for shipping.
func Format(line order.Line) (*ShipmentRecord, error) {
	addr := line.ShippingAddress
	if addr == nil {
		return nil, shipper.ErrMissingShippingAddress
	}

	goodsCode := orderNumber(line.OrderID)

	return &ShipmentRecord{
		PackageNo:            line.ID.String(),
		DeliveryServiceCode:  DeliveryServiceCode,
		ToCountry:            DestinationCountry,
		ReceiverName:         line.DisplayName,
		ReceiverNameYomigana: line.DisplayName,
		ReceiverTelNo:        addr.Phone,
		ReceiverZipCode:      addr.Zip,
		ReceiverFullAddr:     order.ComposeAddress(addr),
		RealWeight:           placeholderWeight,
		WeightMeasure:        weightMeasure,
		Width:                placeholderWidth,
		Depth:                placeholderDepth,
		Height:               placeholderHeight,
		LengthMeasure:        lengthMeasure,
		Market:               Market,
		GoodsList: []Goods{{
			GoodsOrderNo: goodsCode,
			GoodsCode:    goodsCode,
			Title:        line.ProductTitle,
			Qty:          line.Quantity,
			UnitPrice:    line.UnitPrice,
			Currency:     line.Currency,
			BrandName:    line.Brand,
			OptionName:   line.VariantTitle,
		}},
	}, nil
}

// orderNumber extracts the numeric part of a platform GID
// ("gid://shopify/Order/5512345" -> "5512345").
func orderNumber(gid string) string {
	if m := digitRun.FindString(gid); m != "" {
		return m
	}
	return gid
}
