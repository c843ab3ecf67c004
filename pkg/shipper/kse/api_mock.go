package kse

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnCreateShipments func(ctx context.Context, apiKey string, env *Envelope) (*APIResponse, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one CreateShipments invocation.
type MockCall struct {
	APIKey   string
	Envelope Envelope
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// CreateShipments returns a mock registration result.
func (m *MockAPIClient) CreateShipments(ctx context.Context, apiKey string, env *Envelope) (*APIResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{APIKey: apiKey, Envelope: *env})
	m.mu.Unlock()

	if m.SimulateLatency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.SimulateLatency):
		}
	}

	if m.SimulateErrors {
		return nil, &APIError{StatusCode: 500, Body: []byte(`{"ResultCode":"E999","ResultMessage":"Simulated API error"}`)}
	}

	if m.OnCreateShipments != nil {
		return m.OnCreateShipments(ctx, apiKey, env)
	}

	packageNo := ""
	if len(env.DataList) > 0 {
		packageNo = env.DataList[0].PackageNo
	}
	body := fmt.Sprintf(`{"ResultCode":"0000","ResultMessage":"OK","DataList":[{"PackageNo":%q,"Result":"S"}]}`, packageNo)
	return &APIResponse{StatusCode: 200, Body: []byte(body)}, nil
}

// Calls returns a copy of the recorded invocations.
func (m *MockAPIClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

var _ APIClient = (*MockAPIClient)(nil)
