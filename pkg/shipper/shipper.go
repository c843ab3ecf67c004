// Package shipper provides an abstraction layer for logistics providers that
// accept shipment records for order lines.
package shipper

import (
	"context"
)

// Shipper defines the interface that all logistics providers must implement.
type Shipper interface {
	// Name returns the provider identifier (e.g., "kse").
	Name() string

	// Submit formats one order line into the provider's shipment record and
	// sends it. Exactly one remote attempt is made per call.
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error)
}
