package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/caioniehues/clibridge/internal/apperror"
	"github.com/caioniehues/clibridge/internal/cli"
	"github.com/caioniehues/clibridge/internal/config"
	"github.com/caioniehues/clibridge/internal/perf"
	"github.com/caioniehues/clibridge/internal/protocol"
)

var validate = validator.New()

// SessionService is the façade surface the handlers need.
type SessionService interface {
	RunSession(ctx context.Context, opts cli.Options, onMessage cli.MessageHandler) error
	ProbeAvailability(ctx context.Context) bool
	Cancel()
	Metrics() perf.Metrics
	State() cli.State
}

// SessionHandler exposes the run-session, cancel, availability, and
// performance endpoints.
type SessionHandler struct {
	service SessionService
	cfg     config.CLIConfig
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(service SessionService, cfg config.CLIConfig) *SessionHandler {
	return &SessionHandler{service: service, cfg: cfg}
}

// sessionRequest is the JSON body for both session endpoints.
type sessionRequest struct {
	Message             string   `json:"message" validate:"required"`
	SessionID           string   `json:"session_id"`
	WorkingContextPath  string   `json:"working_context_path"`
	Streaming           *bool    `json:"streaming"`
	AllowedCapabilities []string `json:"allowed_capabilities"`
	TimeoutMillis       int      `json:"timeout_ms" validate:"omitempty,min=1"`
}

// toOptions maps the request onto session options, applying configured
// defaults and the timeout ceiling.
func (h *SessionHandler) toOptions(req sessionRequest) cli.Options {
	timeout := h.cfg.DefaultTimeout()
	if req.TimeoutMillis > 0 {
		timeout = time.Duration(req.TimeoutMillis) * time.Millisecond
	}
	if max := h.cfg.MaxTimeout(); max > 0 && timeout > max {
		timeout = max
	}

	caps := req.AllowedCapabilities
	if len(caps) == 0 {
		caps = h.cfg.AllowedTools
	}

	return cli.Options{
		Message:             req.Message,
		SessionID:           req.SessionID,
		WorkingContextPath:  req.WorkingContextPath,
		DisableStreaming:    req.Streaming != nil && !*req.Streaming,
		AllowedCapabilities: caps,
		Timeout:             timeout,
	}
}

func (h *SessionHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (sessionRequest, bool) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}

	if err := validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make(map[string]string)
			for _, e := range validationErrs {
				fields[e.Field()] = formatValidationError(e)
			}
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{
				"error":  "validation_error",
				"fields": fields,
			})
			return req, false
		}
		writeError(w, http.StatusBadRequest, "validation failed")
		return req, false
	}
	return req, true
}

// Run handles POST /api/v1/sessions.
// Runs one session to completion and returns the aggregated text content.
func (h *SessionHandler) Run(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	var content strings.Builder
	var messageCount int
	var ended bool

	err := h.service.RunSession(r.Context(), h.toOptions(req), func(msg protocol.Message) {
		messageCount++
		switch msg.Type {
		case protocol.MessageContent:
			content.WriteString(msg.Content)
		case protocol.MessageEnd:
			ended = true
		}
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content":  content.String(),
		"messages": messageCount,
		"ended":    ended,
	})
}

// Stream handles POST /api/v1/sessions/stream.
// Runs one session, forwarding each decoded protocol message as an SSE
// event in arrival order, then a terminal done or error event.
func (h *SessionHandler) Stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, fok := w.(http.Flusher)
	if !fok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := h.service.RunSession(r.Context(), h.toOptions(req), func(msg protocol.Message) {
		writeSSE(w, "message", msg)
		flusher.Flush()
	})

	if err != nil {
		writeSSE(w, "error", map[string]interface{}{
			"error":  http.StatusText(apperror.HTTPStatus(err)),
			"detail": err.Error(),
		})
	} else {
		writeSSE(w, "done", map[string]string{"status": "succeeded"})
	}
	flusher.Flush()
}

// Cancel handles POST /api/v1/sessions/cancel.
// Forces the in-flight session, if any, into timeout-style teardown.
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.service.Cancel()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// Availability handles GET /api/v1/availability.
func (h *SessionHandler) Availability(w http.ResponseWriter, r *http.Request) {
	available := h.service.ProbeAvailability(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// SessionMetrics handles GET /api/v1/metrics/sessions.
func (h *SessionHandler) SessionMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Metrics())
}

// writeSSE writes a named SSE event with JSON data.
func writeSSE(w http.ResponseWriter, event string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData)
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + e.Param()
	default:
		return "is invalid"
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func writeAppError(w http.ResponseWriter, err error) {
	status := apperror.HTTPStatus(err)
	body := map[string]interface{}{
		"error":   http.StatusText(status),
		"message": err.Error(),
	}
	if code, ok := apperror.ExitCode(err); ok {
		body["exit_code"] = code
	}
	writeJSON(w, status, body)
}
