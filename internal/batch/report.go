package batch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/tournevent/kse-bridge/pkg/shipper"
)

// Status is the final state of one selected line.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Outcome is the result for one selected line.
type Outcome struct {
	LineID   order.LineID
	Status   Status
	Err      error
	Response *shipper.SubmitResponse
}

type outcomeJSON struct {
	LineID     order.LineID    `json:"lineId"`
	Status     Status          `json:"status"`
	ErrorClass shipper.Class   `json:"errorClass,omitempty"`
	Error      string          `json:"error,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
}

// MarshalJSON renders the outcome with its error class and the provider
// response passed through unmodified.
func (o Outcome) MarshalJSON() ([]byte, error) {
	out := outcomeJSON{
		LineID: o.LineID,
		Status: o.Status,
	}
	if o.Err != nil {
		out.ErrorClass = shipper.Classify(o.Err)
		out.Error = o.Err.Error()
		var shipperErr *shipper.ShipperError
		if errors.As(o.Err, &shipperErr) {
			out.StatusCode = shipperErr.StatusCode
			out.Response = (&shipper.SubmitResponse{Body: shipperErr.Body}).JSON()
		}
	}
	if o.Response != nil {
		out.StatusCode = o.Response.StatusCode
		out.Response = o.Response.JSON()
	}
	return json.Marshal(out)
}

// Report is the per-item result of one batch. Outcomes are in selection order.
type Report struct {
	BatchID    string    `json:"batchId"`
	SessionID  string    `json:"sessionId"`
	Carrier    string    `json:"carrier"`
	Outcomes   []Outcome `json:"outcomes"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Count returns how many outcomes have the given status.
func (r *Report) Count(status Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Err joins the item failures into one error, or returns nil when every
// item succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed && o.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", o.LineID, o.Err))
		}
	}
	return errors.Join(errs...)
}
