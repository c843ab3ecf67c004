package batch_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/kse-bridge/internal/batch"
	"github.com/tournevent/kse-bridge/internal/events"
	"github.com/tournevent/kse-bridge/internal/telemetry"
	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/tournevent/kse-bridge/pkg/shipper"
	shippermock "github.com/tournevent/kse-bridge/pkg/shipper/mock"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

type mockSource struct{ mock.Mock }

func (m *mockSource) FetchUnfulfilled(ctx context.Context) ([]order.RawOrder, error) {
	args := m.Called(ctx)
	orders, _ := args.Get(0).([]order.RawOrder)
	return orders, args.Error(1)
}

type mockCredentials struct{ mock.Mock }

func (m *mockCredentials) Resolve(ctx context.Context, sessionID string) (string, error) {
	args := m.Called(ctx, sessionID)
	return args.String(0), args.Error(1)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, evts ...events.OutcomeEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

func shippable(name, gid string) order.RawOrder {
	return order.RawOrder{
		Name: name,
		ID:   gid,
		ShippingAddress: &order.Address{
			FirstName: "Hanako", LastName: "Sato",
			Address1: "1-2-3 Shibuya", City: "Shibuya-ku", Province: "Tokyo",
			Zip: "150-0002", Country: "Japan", Phone: "03-0000-0000",
		},
		LineItems: []order.RawLineItem{{
			Title:     "Oak Side Table",
			Quantity:  1,
			UnitPrice: &order.Money{Amount: decimal.NewFromInt(12800), CurrencyCode: "JPY"},
			Product:   &order.Product{Vendor: "Roomnhome"},
		}},
	}
}

type fixture struct {
	source      *mockSource
	credentials *mockCredentials
	carrier     *shippermock.Client
	metrics     *telemetry.Metrics
}

func newOrchestrator(t *testing.T, cfg batch.Config, orders []order.RawOrder) (*batch.Orchestrator, *fixture) {
	t.Helper()

	f := &fixture{
		source:      &mockSource{},
		credentials: &mockCredentials{},
		carrier:     shippermock.New("kse"),
		metrics:     telemetry.NewMetrics(prometheus.NewRegistry()),
	}
	f.source.On("FetchUnfulfilled", mock.Anything).Return(orders, nil)
	f.credentials.On("Resolve", mock.Anything, "shop-a").Return("secret", nil)
	f.credentials.On("Resolve", mock.Anything, mock.Anything).Return("", shipper.ErrCredentialNotConfigured)

	registry := shipper.NewRegistry()
	registry.Register(f.carrier)

	if cfg.Carrier == "" {
		cfg.Carrier = "kse"
	}

	o := batch.New(cfg, batch.Deps{
		Source:      f.source,
		Credentials: f.credentials,
		Registry:    registry,
		Logger:      otelzap.New(zap.NewNop()),
		Metrics:     f.metrics,
	})
	return o, f
}

func ids(t *testing.T, s ...string) []order.LineID {
	t.Helper()
	out := make([]order.LineID, 0, len(s))
	for _, v := range s {
		id, err := order.ParseLineID(v)
		require.NoError(t, err)
		out = append(out, id)
	}
	return out
}

func statuses(r *batch.Report) []batch.Status {
	out := make([]batch.Status, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		out = append(out, o.Status)
	}
	return out
}

func TestSubmit_AllSucceed(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{}, []order.RawOrder{
		shippable("#1001", "gid://shopify/Order/1"),
		shippable("#1002", "gid://shopify/Order/2"),
	})

	report, err := o.Submit(context.Background(), ids(t, "#1001-0", "#1002-0"), "shop-a")
	require.NoError(t, err)

	assert.Equal(t, []batch.Status{batch.StatusSucceeded, batch.StatusSucceeded}, statuses(report))
	assert.NoError(t, report.Err())
	assert.NotEmpty(t, report.BatchID)
	assert.Equal(t, "kse", report.Carrier)

	reqs := f.carrier.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "#1001-0", reqs[0].Line.ID.String(), "submitted in selection order")
	assert.Equal(t, "secret", reqs[0].APIKey)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.SubmissionsTotal.WithLabelValues("kse", "succeeded")))
}

func TestSubmit_StaleThenSuccess(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{}, []order.RawOrder{
		shippable("#1002", "gid://shopify/Order/2"),
	})

	report, err := o.Submit(context.Background(), ids(t, "#1001-0", "#1002-0"), "shop-a")
	require.NoError(t, err)

	assert.Equal(t, []batch.Status{batch.StatusFailed, batch.StatusSucceeded}, statuses(report))
	assert.True(t, errors.Is(report.Outcomes[0].Err, shipper.ErrStaleSelection))
	assert.Equal(t, shipper.ClassStaleSelection, shipper.Classify(report.Outcomes[0].Err))
	assert.Len(t, f.carrier.Requests(), 1)

	joined := report.Err()
	require.Error(t, joined)
	assert.Contains(t, joined.Error(), "#1001-0")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ItemErrors.WithLabelValues("kse", "stale_selection")))
}

func TestSubmit_AbortOnFailure(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{AbortOnFailure: true}, []order.RawOrder{
		shippable("#1002", "gid://shopify/Order/2"),
	})

	report, err := o.Submit(context.Background(), ids(t, "#1001-0", "#1002-0"), "shop-a")
	require.NoError(t, err)

	assert.Equal(t, []batch.Status{batch.StatusFailed, batch.StatusSkipped}, statuses(report))
	assert.Empty(t, f.carrier.Requests(), "second item must never be submitted")
}

func TestSubmit_ProviderFailureContinues(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{}, []order.RawOrder{
		shippable("#1001", "gid://shopify/Order/1"),
		shippable("#1002", "gid://shopify/Order/2"),
	})
	f.carrier.OnSubmit = func(ctx context.Context, req *shipper.SubmitRequest) (*shipper.SubmitResponse, error) {
		if req.Line.ID.OrderName == "#1002" {
			return nil, shipper.NewShipperError("kse", shipper.CodeProvider, "registration rejected").
				WithCause(shipper.ErrProvider).
				WithStatusCode(400).
				WithBody([]byte(`{"ResultCode":"E001"}`))
		}
		return &shipper.SubmitResponse{Carrier: "kse", StatusCode: 200, Body: []byte(`{"ResultCode":"0000"}`)}, nil
	}

	report, err := o.Submit(context.Background(), ids(t, "#1002-0", "#1001-0"), "shop-a")
	require.NoError(t, err)

	assert.Equal(t, []batch.Status{batch.StatusFailed, batch.StatusSucceeded}, statuses(report))
	assert.Equal(t, shipper.ClassProvider, shipper.Classify(report.Outcomes[0].Err))
}

func TestSubmit_MissingShippingAddress(t *testing.T) {
	noAddress := shippable("#1003", "gid://shopify/Order/3")
	noAddress.ShippingAddress = nil
	o, f := newOrchestrator(t, batch.Config{}, []order.RawOrder{noAddress})
	f.carrier.OnSubmit = func(ctx context.Context, req *shipper.SubmitRequest) (*shipper.SubmitResponse, error) {
		if req.Line.ShippingAddress == nil {
			return nil, shipper.ErrMissingShippingAddress
		}
		return &shipper.SubmitResponse{StatusCode: 200}, nil
	}

	report, err := o.Submit(context.Background(), ids(t, "#1003-0"), "shop-a")
	require.NoError(t, err)
	assert.Equal(t, shipper.ClassValidation, shipper.Classify(report.Outcomes[0].Err))
}

func TestSubmit_DoubleSubmission(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{}, []order.RawOrder{
		shippable("#1001", "gid://shopify/Order/1"),
	})

	for i := 0; i < 2; i++ {
		report, err := o.Submit(context.Background(), ids(t, "#1001-0"), "shop-a")
		require.NoError(t, err)
		assert.Equal(t, []batch.Status{batch.StatusSucceeded}, statuses(report))
	}
	assert.Len(t, f.carrier.Requests(), 2)
	f.source.AssertNumberOfCalls(t, "FetchUnfulfilled", 2)
}

func TestSubmit_MissingCredential(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{}, []order.RawOrder{
		shippable("#1001", "gid://shopify/Order/1"),
	})

	report, err := o.Submit(context.Background(), ids(t, "#1001-0"), "unknown-shop")

	assert.Nil(t, report)
	assert.True(t, errors.Is(err, shipper.ErrCredentialNotConfigured))
	assert.Empty(t, f.carrier.Requests())
	f.source.AssertNotCalled(t, "FetchUnfulfilled", mock.Anything)
}

func TestSubmit_UnknownCarrier(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{Carrier: "missing"}, nil)

	_, err := o.Submit(context.Background(), ids(t, "#1001-0"), "shop-a")

	assert.Equal(t, shipper.ClassConfiguration, shipper.Classify(err))
	assert.Empty(t, f.carrier.Requests())
}

func TestSubmit_FetchFailureAbortsBatch(t *testing.T) {
	source := &mockSource{}
	source.On("FetchUnfulfilled", mock.Anything).Return(nil, errors.New("shopify unavailable"))
	credentials := &mockCredentials{}
	credentials.On("Resolve", mock.Anything, "shop-a").Return("secret", nil)
	carrier := shippermock.New("kse")
	registry := shipper.NewRegistry()
	registry.Register(carrier)

	o := batch.New(batch.Config{Carrier: "kse"}, batch.Deps{
		Source:      source,
		Credentials: credentials,
		Registry:    registry,
		Logger:      otelzap.New(zap.NewNop()),
	})

	report, err := o.Submit(context.Background(), ids(t, "#1001-0"), "shop-a")
	assert.Nil(t, report)
	assert.ErrorContains(t, err, "shopify unavailable")
	assert.Empty(t, carrier.Requests())
}

func TestSubmit_BatchTimeout(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{
		BatchTimeout: 50 * time.Millisecond,
		ItemTimeout:  time.Second,
	}, []order.RawOrder{
		shippable("#1001", "gid://shopify/Order/1"),
		shippable("#1002", "gid://shopify/Order/2"),
	})
	f.carrier.OnSubmit = func(ctx context.Context, req *shipper.SubmitRequest) (*shipper.SubmitResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	report, err := o.Submit(context.Background(), ids(t, "#1001-0", "#1002-0"), "shop-a")
	require.NoError(t, err)

	assert.Equal(t, []batch.Status{batch.StatusFailed, batch.StatusFailed}, statuses(report))
	for _, out := range report.Outcomes {
		assert.True(t, errors.Is(out.Err, context.DeadlineExceeded))
	}
	assert.Len(t, f.carrier.Requests(), 1, "second item is never started")
}

func TestSubmit_PublishesOutcomes(t *testing.T) {
	source := &mockSource{}
	source.On("FetchUnfulfilled", mock.Anything).Return([]order.RawOrder{shippable("#1001", "gid://shopify/Order/1")}, nil)
	credentials := &mockCredentials{}
	credentials.On("Resolve", mock.Anything, "shop-a").Return("secret", nil)
	registry := shipper.NewRegistry()
	registry.Register(shippermock.New("kse"))

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.MatchedBy(func(evts []events.OutcomeEvent) bool {
		return len(evts) == 2 &&
			evts[0].Status == "succeeded" && evts[0].PackageNo == "#1001-0" && evts[0].StatusCode == 200 &&
			evts[1].Status == "failed" && evts[1].ErrorClass == "stale_selection"
	})).Return(errors.New("broker down"))

	o := batch.New(batch.Config{Carrier: "kse"}, batch.Deps{
		Source:      source,
		Credentials: credentials,
		Registry:    registry,
		Publisher:   publisher,
		Logger:      otelzap.New(zap.NewNop()),
	})

	report, err := o.Submit(context.Background(), ids(t, "#1001-0", "#9999-0"), "shop-a")
	require.NoError(t, err, "publish failures never fail the batch")
	assert.Equal(t, []batch.Status{batch.StatusSucceeded, batch.StatusFailed}, statuses(report))
	publisher.AssertExpectations(t)
}

func TestListLines(t *testing.T) {
	o, f := newOrchestrator(t, batch.Config{}, []order.RawOrder{
		shippable("#1001", "gid://shopify/Order/1"),
		shippable("#1002", "gid://shopify/Order/2"),
	})

	lines, err := o.ListLines(context.Background())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "#1002-0", lines[0].ID.String())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.OrderLinesListed))
}

func TestListLines_MalformedOrder(t *testing.T) {
	o, _ := newOrchestrator(t, batch.Config{}, []order.RawOrder{{Name: "", ID: "gid://shopify/Order/1"}})

	_, err := o.ListLines(context.Background())
	assert.True(t, errors.Is(err, order.ErrMalformedOrder))
}

func TestOutcome_MarshalJSON(t *testing.T) {
	id := order.LineID{OrderName: "#1001", Index: 0}

	ok, err := json.Marshal(batch.Outcome{
		LineID:   id,
		Status:   batch.StatusSucceeded,
		Response: &shipper.SubmitResponse{StatusCode: 200, Body: []byte(`{"ResultCode":"0000"}`)},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lineId":"#1001-0","status":"succeeded","statusCode":200,"response":{"ResultCode":"0000"}}`, string(ok))

	failed, err := json.Marshal(batch.Outcome{
		LineID: id,
		Status: batch.StatusFailed,
		Err: shipper.NewShipperError("kse", shipper.CodeProvider, "registration rejected").
			WithCause(shipper.ErrProvider).
			WithStatusCode(401).
			WithBody([]byte("Unauthorized")),
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(failed, &decoded))
	assert.Equal(t, "provider", decoded["errorClass"])
	assert.Equal(t, float64(401), decoded["statusCode"])
	assert.Equal(t, "Unauthorized", decoded["response"])

	skipped, err := json.Marshal(batch.Outcome{LineID: id, Status: batch.StatusSkipped})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lineId":"#1001-0","status":"skipped"}`, string(skipped))
}
