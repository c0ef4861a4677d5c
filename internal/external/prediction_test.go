package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"impactalert/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPredictionClient(serverURL string, timeout time.Duration) *PredictionClient {
	return NewPredictionClient(&http.Client{Timeout: timeout}, PredictionClientConfig{BaseURL: serverURL + "/"})
}

func TestPredictionClient_ForwardsBodyVerbatim(t *testing.T) {
	request := []byte(`{"type":"stony","diameter_m":50,"lat":40.7,"lon":-74.0,"notify_phone":"+1555"}`)
	response := `{"hazard_level":"low","red_alert":false,"energy_megatons":0.2,"extra":[1,2]}`

	var gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(response))
	}))
	defer server.Close()

	client := newTestPredictionClient(server.URL, 5*time.Second)
	outcome, err := client.Predict(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, "/predict", gotPath)
	assert.Equal(t, string(request), string(gotBody))
	assert.Equal(t, "low", outcome.HazardLevel)
	assert.False(t, outcome.RedAlert)
	assert.JSONEq(t, response, string(outcome.Raw))
}

func TestPredictionClient_UpstreamValidationDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"detail":[{"loc":["body","diameter_m"],"msg":"field required"}]}`))
	}))
	defer server.Close()

	_, err := newTestPredictionClient(server.URL, 5*time.Second).Predict(context.Background(), []byte(`{}`))

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamPredictionUnavail, appErr.Code)

	detail, err := json.Marshal(appErr.Details["upstream"])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"loc":["body","diameter_m"],"msg":"field required"}]`, string(detail))
}

func TestPredictionClient_ServerErrorText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	_, err := newTestPredictionClient(server.URL, 5*time.Second).Predict(context.Background(), []byte(`{}`))

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamPredictionUnavail, appErr.Code)
	assert.Equal(t, "Internal Server Error", appErr.Details["upstream"])
}

func TestPredictionClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	_, err := newTestPredictionClient(server.URL, 50*time.Millisecond).Predict(context.Background(), []byte(`{}`))

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamPredictionUnavail, appErr.Code)
}

func TestPredictionClient_NonObjectResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[1,2,3]`))
	}))
	defer server.Close()

	_, err := newTestPredictionClient(server.URL, 5*time.Second).Predict(context.Background(), []byte(`{}`))

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamPredictionUnavail, appErr.Code)
}
