// Package handlers contains the HTTP handlers of the impact alert bridge:
// manual SMS dispatch (immediate and scheduled) and the prediction proxy.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"impactalert/internal/alerts"
	"impactalert/internal/core"
	"impactalert/internal/types"
)

// Dispatcher is the manual-send side of the alert orchestrator.
type Dispatcher interface {
	Send(ctx context.Context, m alerts.ManualRequest) (types.DispatchResult, error)
	Schedule(ctx context.Context, m alerts.ManualRequest) (types.DispatchResult, error)
}

// SMSHandler serves the manual SMS endpoints.
type SMSHandler struct {
	dispatcher Dispatcher
	logger     *slog.Logger
}

// NewSMSHandler creates an SMSHandler.
func NewSMSHandler(d Dispatcher, logger *slog.Logger) *SMSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SMSHandler{dispatcher: d, logger: logger}
}

// RegisterRoutes mounts the SMS endpoints.
func (h *SMSHandler) RegisterRoutes(r chi.Router) {
	r.Post("/send-sms", h.HandleSend)
	r.Post("/schedule-sms", h.HandleSchedule)
}

type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

type scheduleRequest struct {
	To     string  `json:"to"`
	Body   string  `json:"body"`
	SendAt *string `json:"sendAt"`
}

// HandleSend handles POST /api/send-sms.
func (h *SMSHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		writeDispatch(w, r, types.DispatchFailure(err), nil)
		return
	}

	res, err := h.dispatcher.Send(r.Context(), alerts.ManualRequest{Recipient: req.To, Body: req.Body})
	writeDispatch(w, r, res, err)
}

// HandleSchedule handles POST /api/schedule-sms. sendAt is an ISO-8601
// timestamp; a timestamp without a zone is read as UTC.
func (h *SMSHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		writeDispatch(w, r, types.DispatchFailure(err), nil)
		return
	}

	m := alerts.ManualRequest{Recipient: req.To, Body: req.Body}
	if req.SendAt != nil && strings.TrimSpace(*req.SendAt) != "" {
		at, err := ParseSendAt(*req.SendAt)
		if err != nil {
			writeDispatch(w, r, types.DispatchFailure(err), nil)
			return
		}
		m.SendAt = &at
	}

	res, err := h.dispatcher.Schedule(r.Context(), m)
	writeDispatch(w, r, res, err)
}

// writeDispatch maps a dispatch outcome to the endpoint's status contract:
// 429 when suppressed, 400 for any failure, 200 on success.
func writeDispatch(w http.ResponseWriter, r *http.Request, res types.DispatchResult, err error) {
	switch {
	case errors.Is(err, alerts.ErrSuppressed):
		core.JSON(w, r, http.StatusTooManyRequests, res)
	case err != nil:
		core.JSON(w, r, http.StatusBadRequest, types.DispatchFailure(err))
	case !res.OK:
		core.JSON(w, r, http.StatusBadRequest, res)
	default:
		core.JSON(w, r, http.StatusOK, res)
	}
}

var sendAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseSendAt parses an ISO-8601 timestamp. Times without a zone are UTC.
func ParseSendAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range sendAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, types.NewAppError(
		types.ErrCodeValidationInvalidSendAt,
		"Invalid sendAt: expected an ISO-8601 timestamp, got "+s,
		nil,
	)
}
