package kse

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// APIClient defines the interface for KSE API operations.
// This abstraction allows for mock implementations during testing
// and real implementations in production.
type APIClient interface {
	// CreateShipments posts an envelope of shipment records.
	CreateShipments(ctx context.Context, apiKey string, env *Envelope) (*APIResponse, error)
}

// ============================================================================
// API Request/Response Types (match the KSE order registration format)
// ============================================================================

// Envelope is the request body. KSE accepts a list; we always send one record.
type Envelope struct {
	DataList []ShipmentRecord `json:"DataList"`
}

// ShipmentRecord is one package registration.
type ShipmentRecord struct {
	PackageNo            string  `json:"PackageNo"`
	PackageNo2           string  `json:"PackageNo2"`
	DeliveryServiceCode  string  `json:"DeliveryServiceCode"`
	TrackingNo           string  `json:"TrackingNo"`
	ToCountry            string  `json:"ToCountry"`
	ReceiverName         string  `json:"ReceiverName"`
	ReceiverNameYomigana string  `json:"ReceiverNameYomigana"`
	ReceiverTelNo        string  `json:"ReceiverTelNo"`
	ReceiverTelNo2       string  `json:"ReceiverTelNo2"`
	ReceiverEmail        string  `json:"ReceiverEmail"`
	ReceiverSocialNo     string  `json:"ReceiverSocialNo"`
	ReceiverZipCode      string  `json:"ReceiverZipCode"`
	ReceiverFullAddr     string  `json:"ReceiverFullAddr"`
	ReceiverStreet       string  `json:"ReceiverStreet"`
	ReceiverCity         string  `json:"ReceiverCity"`
	ReceiverState        string  `json:"ReceiverState"`
	ReceiverNameEng      string  `json:"ReceiverNameEng"`
	ReceiverFullAddrEng  string  `json:"ReceiverFullAddrEng"`
	ReceiverStreetEng    string  `json:"ReceiverStreetEng"`
	ReceiverStateEng     string  `json:"ReceiverStateEng"`
	ReceiverCityEng      string  `json:"ReceiverCityEng"`
	RealWeight           float64 `json:"RealWeight"`
	WeightMeasure        string  `json:"WeightMeasure"` // "KG"
	Width                float64 `json:"Width"`
	Depth                float64 `json:"Depth"`
	Height               float64 `json:"Height"`
	LengthMeasure        string  `json:"LengthMeasure"` // "cm"
	DelvMessage          string  `json:"DelvMessage"`
	UserData1            string  `json:"UserData1"`
	UserData2            string  `json:"UserData2"`
	UserData3            string  `json:"UserData3"`
	Market               string  `json:"Market"`
	ExportDeclarationNo  string  `json:"ExportDeclarationNo"`
	GoodsList            []Goods `json:"GoodsList"`
}

// Goods is one entry of a record's goods list.
type Goods struct {
	GoodsOrderNo string          `json:"GoodsOrderNo"`
	GoodsCode    string          `json:"GoodsCode"`
	Title        string          `json:"Title"`
	TitleEng     string          `json:"TitleEng"`
	SKU          string          `json:"SKU"`
	HSCODE       string          `json:"HSCODE"`
	Qty          int             `json:"Qty"`
	UnitPrice    decimal.Decimal `json:"UnitPrice"`
	Currency     string          `json:"Currency"`
	BrandName    string          `json:"BrandName"`
	GoodsUrl     string          `json:"GoodsUrl"`
	ImageUrl     string          `json:"ImageUrl"`
	Origin       string          `json:"Origin"`
	Material     string          `json:"Material"`
	OptionCode   string          `json:"OptionCode"`
	OptionName   string          `json:"OptionName"`
}

// APIResponse is a successful HTTP exchange. The body is provider-defined JSON
// and is not interpreted here.
type APIResponse struct {
	StatusCode int
	Body       []byte
}

// APIError represents a non-success HTTP status from the KSE API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP_%d: %s", e.StatusCode, truncate(string(e.Body), 256))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
