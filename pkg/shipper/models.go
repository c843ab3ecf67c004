package shipper

import (
	"encoding/json"

	"github.com/tournevent/kse-bridge/pkg/order"
)

// SubmitRequest is the request for submitting one order line.
type SubmitRequest struct {
	Line   order.Line
	APIKey string
}

// SubmitResponse is the provider's answer to one submission.
type SubmitResponse struct {
	Carrier    string
	PackageNo  string
	StatusCode int
	// Body is the provider response passed through unmodified. HTTP success
	// does not imply business success; callers inspect provider fields.
	Body []byte
}

// JSON returns Body as raw JSON, or as a JSON string when the provider did
// not answer with valid JSON.
func (r *SubmitResponse) JSON() json.RawMessage {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	if json.Valid(r.Body) {
		return json.RawMessage(r.Body)
	}
	quoted, _ := json.Marshal(string(r.Body))
	return quoted
}
