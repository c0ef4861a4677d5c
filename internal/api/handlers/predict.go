package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"impactalert/internal/core"
	"impactalert/internal/types"
)

// PredictionPipeline is the prediction side of the alert orchestrator.
type PredictionPipeline interface {
	HandlePrediction(ctx context.Context, req *types.PredictionRequest) (*types.PredictionOutcome, error)
}

// PredictHandler proxies prediction requests through the alert pipeline.
type PredictHandler struct {
	pipeline PredictionPipeline
	logger   *slog.Logger
}

// NewPredictHandler creates a PredictHandler.
func NewPredictHandler(p PredictionPipeline, logger *slog.Logger) *PredictHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictHandler{pipeline: p, logger: logger}
}

// RegisterRoutes mounts the prediction endpoint.
func (h *PredictHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict", h.HandlePredict)
}

// predictError is the 400 body of POST /api/predict.
type predictError struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// HandlePredict handles POST /api/predict. The upstream response is written
// back byte for byte; every failure is a 400 carrying the upstream's
// explanation in details.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	raw, err := core.ReadBody(w, r)
	if err != nil {
		writePredictError(w, r, err)
		return
	}

	req, err := types.ParsePredictionRequest(raw)
	if err != nil {
		writePredictError(w, r, err)
		return
	}

	outcome, err := h.pipeline.HandlePrediction(r.Context(), req)
	if err != nil {
		h.logger.WarnContext(r.Context(), "prediction failed",
			"request_id", types.GetRequestID(r.Context()),
			"error", err,
		)
		writePredictError(w, r, err)
		return
	}

	core.RawJSON(w, http.StatusOK, outcome.Raw)
}

func writePredictError(w http.ResponseWriter, r *http.Request, err error) {
	body := predictError{Error: err.Error()}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		body.Error = appErr.Message
		if upstream, ok := appErr.Details["upstream"]; ok {
			body.Details = upstream
		} else if appErr.Err != nil {
			body.Details = appErr.Err.Error()
		}
	}
	core.JSON(w, r, http.StatusBadRequest, body)
}
