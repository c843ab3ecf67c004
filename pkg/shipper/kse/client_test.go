package kse_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kse-bridge/pkg/shipper"
	"github.com/tournevent/kse-bridge/pkg/shipper/kse"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestClient(mockClient *kse.MockAPIClient) *kse.Client {
	logger := otelzap.New(zap.NewNop())
	return kse.NewWithAPIClient(
		kse.Config{},
		mockClient,
		logger,
		nil,
	)
}

func TestClient_Name(t *testing.T) {
	client := newTestClient(kse.NewMockAPIClient())
	assert.Equal(t, "kse", client.Name())
}

func TestClient_Submit_Success(t *testing.T) {
	mockAPI := kse.NewMockAPIClient()
	client := newTestClient(mockAPI)

	resp, err := client.Submit(context.Background(), &shipper.SubmitRequest{
		Line:   testLine(),
		APIKey: "key-123",
	})

	require.NoError(t, err)
	assert.Equal(t, "kse", resp.Carrier)
	assert.Equal(t, "#1002-1", resp.PackageNo)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(resp.Body), `"PackageNo":"#1002-1"`)

	calls := mockAPI.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "key-123", calls[0].APIKey)
	require.Len(t, calls[0].Envelope.DataList, 1)
	assert.Equal(t, "#1002-1", calls[0].Envelope.DataList[0].PackageNo)
}

func TestClient_Submit_MissingShippingAddress(t *testing.T) {
	mockAPI := kse.NewMockAPIClient()
	client := newTestClient(mockAPI)

	line := testLine()
	line.ShippingAddress = nil

	_, err := client.Submit(context.Background(), &shipper.SubmitRequest{Line: line, APIKey: "k"})

	assert.True(t, errors.Is(err, shipper.ErrMissingShippingAddress))
	assert.Empty(t, mockAPI.Calls(), "nothing should be sent")
}

func TestClient_Submit_ProviderError(t *testing.T) {
	mockAPI := kse.NewMockAPIClient()
	mockAPI.SimulateErrors = true
	client := newTestClient(mockAPI)

	_, err := client.Submit(context.Background(), &shipper.SubmitRequest{Line: testLine(), APIKey: "k"})
	require.Error(t, err)

	var shipperErr *shipper.ShipperError
	require.True(t, errors.As(err, &shipperErr))
	assert.Equal(t, shipper.CodeProvider, shipperErr.Code)
	assert.Equal(t, 500, shipperErr.StatusCode)
	assert.Contains(t, string(shipperErr.Body), "Simulated API error")
	assert.True(t, shipperErr.Retryable)
	assert.Equal(t, shipper.ClassProvider, shipper.Classify(err))
}

func TestClient_Submit_TransportError(t *testing.T) {
	mockAPI := kse.NewMockAPIClient()
	mockAPI.OnCreateShipments = func(ctx context.Context, apiKey string, env *kse.Envelope) (*kse.APIResponse, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	client := newTestClient(mockAPI)

	_, err := client.Submit(context.Background(), &shipper.SubmitRequest{Line: testLine(), APIKey: "k"})

	assert.Equal(t, shipper.ClassTransport, shipper.Classify(err))
	assert.True(t, shipper.IsRetryable(err))
}

func TestClient_Submit_ContextTimeout(t *testing.T) {
	mockAPI := kse.NewMockAPIClient()
	mockAPI.SimulateLatency = time.Second
	client := newTestClient(mockAPI)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Submit(ctx, &shipper.SubmitRequest{Line: testLine(), APIKey: "k"})

	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, shipper.ClassTransport, shipper.Classify(err))
}

func TestHTTPAPIClient_CreateShipments(t *testing.T) {
	var gotKey, gotContentType string
	var gotEnvelope kse.Envelope

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get(kse.APIKeyHeader)
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotEnvelope)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ResultCode":"0000","Extra":{"kept":true}}`))
	}))
	defer server.Close()

	client := kse.NewHTTPAPIClient(kse.HTTPAPIClientConfig{Endpoint: server.URL})
	rec, err := kse.Format(testLine())
	require.NoError(t, err)

	resp, err := client.CreateShipments(context.Background(), "merchant-key", &kse.Envelope{DataList: []kse.ShipmentRecord{*rec}})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `{"ResultCode":"0000","Extra":{"kept":true}}`, string(resp.Body))
	assert.Equal(t, "merchant-key", gotKey)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotEnvelope.DataList, 1)
	assert.Equal(t, "#1002-1", gotEnvelope.DataList[0].PackageNo)
	assert.Equal(t, "5512345", gotEnvelope.DataList[0].GoodsList[0].GoodsCode)
}

func TestHTTPAPIClient_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"Message":"invalid api key"}`))
	}))
	defer server.Close()

	client := kse.NewHTTPAPIClient(kse.HTTPAPIClientConfig{Endpoint: server.URL})

	_, err := client.CreateShipments(context.Background(), "bad", &kse.Envelope{})

	var apiErr *kse.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.JSONEq(t, `{"Message":"invalid api key"}`, string(apiErr.Body))
}

func TestHTTPAPIClient_VerifiesTLSByDefault(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	strict := kse.NewHTTPAPIClient(kse.HTTPAPIClientConfig{Endpoint: server.URL})
	_, err := strict.CreateShipments(context.Background(), "k", &kse.Envelope{})
	assert.Error(t, err, "self-signed certificate must be rejected")

	insecure := kse.NewHTTPAPIClient(kse.HTTPAPIClientConfig{Endpoint: server.URL, InsecureSkipVerify: true})
	_, err = insecure.CreateShipments(context.Background(), "k", &kse.Envelope{})
	assert.NoError(t, err)
}

func TestNew_InsecureLogsWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	logger := otelzap.New(zap.New(core))

	kse.New(kse.Config{Endpoint: "https://kse.invalid", InsecureSkipVerify: true}, logger, nil)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "verification disabled")

	kse.New(kse.Config{Endpoint: "https://kse.invalid"}, logger, nil)
	assert.Equal(t, 1, logs.Len(), "verified TLS should not warn")
}
