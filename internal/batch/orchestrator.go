// Package batch submits operator-selected order lines to a logistics provider.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/kse-bridge/internal/events"
	"github.com/tournevent/kse-bridge/internal/telemetry"
	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/tournevent/kse-bridge/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// OrderSource fetches the current unfulfilled orders.
type OrderSource interface {
	FetchUnfulfilled(ctx context.Context) ([]order.RawOrder, error)
}

// CredentialResolver resolves the provider API key for a session.
type CredentialResolver interface {
	Resolve(ctx context.Context, sessionID string) (string, error)
}

// Config controls batch behavior.
type Config struct {
	Carrier        string
	Normalize      order.Options
	ItemTimeout    time.Duration // per provider call
	BatchTimeout   time.Duration // whole submission loop
	AbortOnFailure bool          // stop at the first failed item, skipping the rest
}

// Deps are the collaborators of an Orchestrator. Publisher, Metrics and
// Tracer are optional.
type Deps struct {
	Source      OrderSource
	Credentials CredentialResolver
	Registry    *shipper.Registry
	Publisher   events.Publisher
	Logger      *otelzap.Logger
	Metrics     *telemetry.Metrics
	Tracer      trace.Tracer
}

// Orchestrator lists order lines and runs submission batches.
// Batches are strictly sequential with one outstanding provider call.
type Orchestrator struct {
	cfg         Config
	source      OrderSource
	credentials CredentialResolver
	registry    *shipper.Registry
	publisher   events.Publisher
	logger      *otelzap.Logger
	metrics     *telemetry.Metrics
	tracer      trace.Tracer
	now         func() time.Time
}

// New creates a new Orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = 30 * time.Second
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Minute
	}
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("kse-bridge/batch")
	}
	return &Orchestrator{
		cfg:         cfg,
		source:      deps.Source,
		credentials: deps.Credentials,
		registry:    deps.Registry,
		publisher:   publisher,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		tracer:      tracer,
		now:         time.Now,
	}
}

// ListLines fetches and normalizes the current order lines.
func (o *Orchestrator) ListLines(ctx context.Context) ([]order.Line, error) {
	ctx, span := o.tracer.Start(ctx, "batch.ListLines")
	defer span.End()

	lines, err := o.currentLines(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.RecordListing(len(lines))
	}
	span.SetAttributes(attribute.Int("batch.line_count", len(lines)))
	return lines, nil
}

func (o *Orchestrator) currentLines(ctx context.Context) ([]order.Line, error) {
	raws, err := o.source.FetchUnfulfilled(ctx)
	if err != nil {
		return nil, err
	}
	return order.Normalize(raws, o.cfg.Normalize)
}

// Submit sends each selected line to the provider, in selection order.
//
// Batch preconditions (credential, carrier, fresh order fetch) return an
// error and nothing is submitted. After that every selected id gets exactly
// one Outcome. Ids missing from the fresh listing fail as stale selections.
// Submitting the same selection twice submits twice.
func (o *Orchestrator) Submit(ctx context.Context, selected []order.LineID, sessionID string) (*Report, error) {
	batchID := uuid.NewString()
	ctx, span := o.tracer.Start(ctx, "batch.Submit", trace.WithAttributes(
		attribute.String("batch.id", batchID),
		attribute.Int("batch.selected", len(selected)),
		attribute.Bool("batch.abort_on_failure", o.cfg.AbortOnFailure),
	))
	defer span.End()

	log := o.logger.Ctx(ctx)

	apiKey, err := o.credentials.Resolve(ctx, sessionID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warn("Batch rejected", zap.String("batch_id", batchID), zap.Error(err))
		return nil, err
	}

	carrier, err := o.registry.Get(o.cfg.Carrier)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	batchCtx, cancel := context.WithTimeout(ctx, o.cfg.BatchTimeout)
	defer cancel()

	lines, err := o.currentLines(batchCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("Batch aborted: cannot load current orders", zap.String("batch_id", batchID), zap.Error(err))
		return nil, fmt.Errorf("load current orders: %w", err)
	}

	report := &Report{
		BatchID:   batchID,
		SessionID: sessionID,
		Carrier:   carrier.Name(),
		Outcomes:  make([]Outcome, 0, len(selected)),
		StartedAt: o.now(),
	}

	log.Info("Starting batch",
		zap.String("batch_id", batchID),
		zap.String("carrier", carrier.Name()),
		zap.Int("selected", len(selected)),
	)

	aborted := false
	for _, id := range selected {
		if aborted {
			report.Outcomes = append(report.Outcomes, Outcome{LineID: id, Status: StatusSkipped})
			continue
		}

		outcome := o.submitOne(batchCtx, carrier, lines, id, apiKey)
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Status == StatusFailed && o.cfg.AbortOnFailure {
			aborted = true
		}
	}
	report.FinishedAt = o.now()

	o.publish(ctx, report)

	succeeded := report.Count(StatusSucceeded)
	failed := report.Count(StatusFailed)
	span.SetAttributes(
		attribute.Int("batch.succeeded", succeeded),
		attribute.Int("batch.failed", failed),
	)
	log.Info("Batch finished",
		zap.String("batch_id", batchID),
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Int("skipped", report.Count(StatusSkipped)),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)

	return report, nil
}

func (o *Orchestrator) submitOne(batchCtx context.Context, carrier shipper.Shipper, lines []order.Line, id order.LineID, apiKey string) Outcome {
	ctx, span := o.tracer.Start(batchCtx, "batch.SubmitItem", trace.WithAttributes(
		attribute.String("line.id", id.String()),
	))
	defer span.End()

	start := o.now()
	outcome := o.attempt(ctx, carrier, lines, id, apiKey)
	elapsed := o.now().Sub(start).Seconds()

	if outcome.Err != nil {
		class := shipper.Classify(outcome.Err)
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, string(class))
		o.logger.Ctx(ctx).Error("Line submission failed",
			zap.String("line_id", id.String()),
			zap.String("class", string(class)),
			zap.Error(outcome.Err),
		)
		if o.metrics != nil {
			o.metrics.RecordError(carrier.Name(), string(class))
		}
	} else {
		o.logger.Ctx(ctx).Info("Line submitted",
			zap.String("line_id", id.String()),
			zap.Int("status_code", outcome.Response.StatusCode),
		)
	}
	if o.metrics != nil {
		o.metrics.RecordSubmission(carrier.Name(), string(outcome.Status), elapsed)
	}
	return outcome
}

func (o *Orchestrator) attempt(batchCtx context.Context, carrier shipper.Shipper, lines []order.Line, id order.LineID, apiKey string) Outcome {
	// items not started before the batch deadline fail with the context error
	if err := batchCtx.Err(); err != nil {
		return Outcome{LineID: id, Status: StatusFailed, Err: err}
	}

	line, ok := order.Find(lines, id)
	if !ok {
		return Outcome{
			LineID: id,
			Status: StatusFailed,
			Err:    fmt.Errorf("%w: %s is no longer unfulfilled", shipper.ErrStaleSelection, id),
		}
	}

	ctx, cancel := context.WithTimeout(batchCtx, o.cfg.ItemTimeout)
	defer cancel()

	resp, err := carrier.Submit(ctx, &shipper.SubmitRequest{Line: line, APIKey: apiKey})
	if err != nil {
		return Outcome{LineID: id, Status: StatusFailed, Err: err}
	}
	return Outcome{LineID: id, Status: StatusSucceeded, Response: resp}
}

// publish emits one event per outcome. Failures are logged and never
// change the report.
func (o *Orchestrator) publish(ctx context.Context, report *Report) {
	evts := make([]events.OutcomeEvent, 0, len(report.Outcomes))
	for _, out := range report.Outcomes {
		e := events.OutcomeEvent{
			BatchID:    report.BatchID,
			SessionID:  report.SessionID,
			LineID:     out.LineID.String(),
			PackageNo:  out.LineID.String(),
			Carrier:    report.Carrier,
			Status:     string(out.Status),
			OccurredAt: report.FinishedAt,
		}
		if out.Err != nil {
			e.ErrorClass = string(shipper.Classify(out.Err))
			e.Error = out.Err.Error()
			var shipperErr *shipper.ShipperError
			if errors.As(out.Err, &shipperErr) {
				e.StatusCode = shipperErr.StatusCode
			}
		}
		if out.Response != nil {
			e.StatusCode = out.Response.StatusCode
			e.Response = out.Response.JSON()
		}
		evts = append(evts, e)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := o.publisher.Publish(pubCtx, evts...); err != nil {
		o.logger.Ctx(ctx).Warn("Failed to publish outcome events",
			zap.String("batch_id", report.BatchID),
			zap.Error(err),
		)
	}
}
