// Package mock provides a mock shipper implementation for testing.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/tournevent/kse-bridge/pkg/shipper"
)

// Client is a mock shipper for testing. It records every request it receives.
type Client struct {
	name string

	// OnSubmit overrides the default successful response when set.
	OnSubmit func(ctx context.Context, req *shipper.SubmitRequest) (*shipper.SubmitResponse, error)

	mu       sync.Mutex
	requests []shipper.SubmitRequest
}

// New creates a new mock shipper.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// Submit records the request and returns a canned success.
func (c *Client) Submit(ctx context.Context, req *shipper.SubmitRequest) (*shipper.SubmitResponse, error) {
	c.mu.Lock()
	c.requests = append(c.requests, *req)
	c.mu.Unlock()

	if c.OnSubmit != nil {
		return c.OnSubmit(ctx, req)
	}

	packageNo := req.Line.ID.String()
	return &shipper.SubmitResponse{
		Carrier:    c.name,
		PackageNo:  packageNo,
		StatusCode: 200,
		Body:       []byte(fmt.Sprintf(`{"Result":"OK","PackageNo":%q}`, packageNo)),
	}, nil
}

// Requests returns a copy of the requests received so far.
func (c *Client) Requests() []shipper.SubmitRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]shipper.SubmitRequest, len(c.requests))
	copy(out, c.requests)
	return out
}
