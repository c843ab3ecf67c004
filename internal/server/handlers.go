package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tournevent/kse-bridge/internal/batch"
	"github.com/tournevent/kse-bridge/internal/credential"
	"github.com/tournevent/kse-bridge/pkg/order"
	"github.com/tournevent/kse-bridge/pkg/shipper"
	"go.uber.org/zap"
)

// SessionHeader carries the merchant session identity.
const SessionHeader = "X-Session-Id"

// settingsPath is where the operator configures the provider credential.
const settingsPath = "/settings"

const maxBodyBytes = 1 << 20

var validate = validator.New()

type errorResponse struct {
	Error    string `json:"error"`
	Class    string `json:"class,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

type ordersResponse struct {
	Lines  []order.Line `json:"lines"`
	Notice *Notice      `json:"notice,omitempty"`
}

type submitRequest struct {
	SessionID string   `json:"sessionId"`
	LineIDs   []string `json:"lineIds" validate:"required,min=1,dive,required"`
}

type submitResponse struct {
	*batch.Report
	Notice *Notice `json:"notice,omitempty"`
}

type settingsRequest struct {
	APIKey string `json:"apiKey" validate:"required"`
}

type settingsResponse struct {
	SessionID  string     `json:"sessionId"`
	Configured bool       `json:"configured"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// sessionID returns the caller's session from the header or the query string.
func sessionID(r *http.Request) string {
	if s := strings.TrimSpace(r.Header.Get(SessionHeader)); s != "" {
		return s
	}
	return strings.TrimSpace(r.URL.Query().Get("session"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	if class := shipper.Classify(err); class != shipper.ClassUnknown {
		resp.Class = string(class)
	}
	writeJSON(w, status, resp)
}

// handleListOrders lists the current order lines. A failed fetch or
// normalization degrades to an empty list with a warning notice.
func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	lines, err := s.orchestrator.ListLines(ctx)
	if err != nil {
		s.logger.Ctx(ctx).Error("Order listing failed", zap.Error(err))
		notice := Notice{Level: LevelWarning, Message: "Orders could not be loaded. Showing an empty list."}
		s.notifier.Notify(ctx, notice)
		writeJSON(w, http.StatusOK, ordersResponse{Lines: []order.Line{}, Notice: &notice})
		return
	}

	writeJSON(w, http.StatusOK, ordersResponse{Lines: lines})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}
	if req.SessionID == "" {
		req.SessionID = sessionID(r)
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing session"))
		return
	}

	ids := make([]order.LineID, 0, len(req.LineIDs))
	for _, raw := range req.LineIDs {
		id, err := order.ParseLineID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ids = append(ids, id)
	}

	report, err := s.orchestrator.Submit(ctx, ids, req.SessionID)
	if err != nil {
		s.notifier.Notify(ctx, Notice{Level: LevelError, Message: err.Error()})
		switch {
		case errors.Is(err, shipper.ErrCredentialNotConfigured):
			writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:    "KSE API key is not configured",
				Class:    string(shipper.ClassConfiguration),
				Redirect: settingsPath,
			})
		case shipper.Classify(err) == shipper.ClassConfiguration:
			writeError(w, http.StatusInternalServerError, err)
		default:
			writeError(w, http.StatusBadGateway, err)
		}
		return
	}

	notice := summarize(report)
	s.notifier.Notify(ctx, notice)
	writeJSON(w, http.StatusOK, submitResponse{Report: report, Notice: &notice})
}

func summarize(report *batch.Report) Notice {
	succeeded := report.Count(batch.StatusSucceeded)
	failed := report.Count(batch.StatusFailed)
	skipped := report.Count(batch.StatusSkipped)

	if failed == 0 {
		return Notice{Level: LevelInfo, Message: fmt.Sprintf("%d line(s) sent to KSE", succeeded)}
	}
	msg := fmt.Sprintf("%d line(s) sent to KSE, %d failed", succeeded, failed)
	if skipped > 0 {
		msg += fmt.Sprintf(", %d skipped", skipped)
	}
	return Notice{Level: LevelWarning, Message: msg}
}

// handleGetSettings reports whether a credential is configured. The key
// itself is never returned.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing session"))
		return
	}

	rec, err := s.settings.FindBySession(ctx, session)
	if errors.Is(err, credential.ErrNotFound) {
		writeJSON(w, http.StatusOK, settingsResponse{SessionID: session})
		return
	}
	if err != nil {
		s.logger.Ctx(ctx).Error("Settings lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	updated := rec.UpdatedAt
	writeJSON(w, http.StatusOK, settingsResponse{
		SessionID:  session,
		Configured: rec.APIKey != "",
		UpdatedAt:  &updated,
	})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionID(r)
	if session == "" {
		writeError(w, http.StatusBadRequest, errors.New("missing session"))
		return
	}

	var req settingsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON: %w", err))
		return
	}
	req.APIKey = strings.TrimSpace(req.APIKey)
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request: %w", err))
		return
	}

	rec, err := s.settings.Upsert(ctx, session, req.APIKey)
	if err != nil {
		s.logger.Ctx(ctx).Error("Settings update failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.logger.Ctx(ctx).Info("KSE credential updated", zap.String("session_id", session), zap.String("record_id", rec.ID))
	s.notifier.Notify(ctx, Notice{Level: LevelInfo, Message: "Settings saved"})

	updated := rec.UpdatedAt
	writeJSON(w, http.StatusOK, settingsResponse{
		SessionID:  session,
		Configured: true,
		UpdatedAt:  &updated,
	})
}
