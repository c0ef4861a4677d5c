package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"impactalert/internal/types"
)

// PredictionClientConfig locates the prediction service.
type PredictionClientConfig struct {
	BaseURL string
	Logger  *slog.Logger
}

// PredictionClient forwards prediction requests to the external service.
// The request body is sent byte for byte and the response is kept raw apart
// from the fields the alert pipeline inspects.
type PredictionClient struct {
	base    *BaseClient
	baseURL string
	logger  *slog.Logger
}

// NewPredictionClient creates a PredictionClient. The httpClient timeout is
// the upper bound on a prediction call.
func NewPredictionClient(httpClient *http.Client, cfg PredictionClientConfig) *PredictionClient {
	base := NewBaseClient(httpClient, "prediction", "ImpactAlert/1.0", WithFinalResponse())
	return NewPredictionClientWithBase(base, cfg)
}

// NewPredictionClientWithBase creates a PredictionClient with a pre-configured
// BaseClient.
func NewPredictionClientWithBase(base *BaseClient, cfg PredictionClientConfig) *PredictionClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictionClient{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// Predict posts raw to {base}/predict. Every failure, including non-2xx
// responses and undecodable bodies, is an upstream_prediction_unavailable
// AppError whose Details["upstream"] carries the upstream's explanation.
func (c *PredictionClient) Predict(ctx context.Context, raw []byte) (*types.PredictionOutcome, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(raw))
	if err != nil {
		return nil, unavailable("failed to create prediction request", err.Error(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		detail := err.Error()
		var appErr *types.AppError
		if errors.As(err, &appErr) {
			detail = appErr.Message
		}
		return nil, unavailable("prediction service unreachable", detail, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable("prediction response was unreadable", err.Error(), err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, unavailable(
			fmt.Sprintf("prediction service returned %d", resp.StatusCode),
			upstreamDetail(body, resp.StatusCode),
			nil,
		)
	}

	outcome, err := types.ParsePredictionOutcome(body)
	if err != nil {
		return nil, unavailable("prediction response was not a JSON object", err.Error(), err)
	}
	return outcome, nil
}

func unavailable(msg string, detail any, err error) *types.AppError {
	return types.NewAppErrorWithDetails(
		types.ErrCodeUpstreamPredictionUnavail,
		msg,
		err,
		map[string]any{"upstream": detail},
	)
}

// upstreamDetail extracts the service's "detail" field (its validation
// errors) when the body is JSON, otherwise returns the body text.
func upstreamDetail(body []byte, status int) any {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		return envelope.Detail
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return http.StatusText(status)
}
