package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactalert/internal/alerts"
	"impactalert/internal/types"
)

type mockDispatcher struct {
	result types.DispatchResult
	err    error
	sends  []alerts.ManualRequest
	scheds []alerts.ManualRequest
}

func (m *mockDispatcher) Send(_ context.Context, req alerts.ManualRequest) (types.DispatchResult, error) {
	m.sends = append(m.sends, req)
	return m.result, m.err
}

func (m *mockDispatcher) Schedule(_ context.Context, req alerts.ManualRequest) (types.DispatchResult, error) {
	m.scheds = append(m.scheds, req)
	return m.result, m.err
}

func newSMSRouter(d Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", NewSMSHandler(d, nil).RegisterRoutes)
	return r
}

func doPost(t *testing.T, h http.Handler, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return rec, out
}

func TestHandleSend_Success(t *testing.T) {
	d := &mockDispatcher{result: types.DispatchSuccess("SM123")}

	rec, out := doPost(t, newSMSRouter(d), "/api/send-sms", `{"to":"+15551234567","body":"hello"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"ok": true, "sid": "SM123"}, out)
	require.Len(t, d.sends, 1)
	assert.Equal(t, alerts.ManualRequest{Recipient: "+15551234567", Body: "hello"}, d.sends[0])
}

func TestHandleSend_EmptyBodyUsesDefaults(t *testing.T) {
	d := &mockDispatcher{result: types.DispatchSuccess("SM1")}

	rec, _ := doPost(t, newSMSRouter(d), "/api/send-sms", ``)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.sends, 1)
	assert.Equal(t, alerts.ManualRequest{}, d.sends[0])
}

func TestHandleSend_Suppressed(t *testing.T) {
	d := &mockDispatcher{result: types.DispatchFailure(alerts.ErrSuppressed), err: alerts.ErrSuppressed}

	rec, out := doPost(t, newSMSRouter(d), "/api/send-sms", `{"body":"x"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, false, out["ok"])
	assert.Equal(t, "Duplicate request suppressed", out["error"])
}

func TestHandleSend_AdapterFailureIs400(t *testing.T) {
	tests := []struct {
		name string
		err  *types.AppError
	}{
		{"not configured", types.NewAppError(types.ErrCodeSMSNotConfigured, "SMS provider is not configured", nil)},
		{"missing recipient", types.NewAppError(types.ErrCodeValidationMissingRecipient, "Missing recipient", nil)},
		{"provider rejected", types.NewAppError(types.ErrCodeUpstreamSMSProvider, "The 'To' number is not a valid phone number.", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &mockDispatcher{result: types.DispatchFailure(tt.err)}

			rec, out := doPost(t, newSMSRouter(d), "/api/send-sms", `{}`)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, false, out["ok"])
			assert.Equal(t, tt.err.Message, out["error"])
			assert.NotContains(t, out, "code")
		})
	}
}

func TestHandleSend_MalformedJSON(t *testing.T) {
	d := &mockDispatcher{}

	rec, out := doPost(t, newSMSRouter(d), "/api/send-sms", `{"to":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["ok"])
	assert.NotEmpty(t, out["error"])
	assert.Empty(t, d.sends)
}

func TestHandleSchedule_ExplicitSendAt(t *testing.T) {
	d := &mockDispatcher{result: types.DispatchSuccess("SM9")}

	rec, out := doPost(t, newSMSRouter(d), "/api/schedule-sms",
		`{"to":"+1555","body":"later","sendAt":"2026-03-01T14:00:00+02:00"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SM9", out["sid"])
	require.Len(t, d.scheds, 1)
	require.NotNil(t, d.scheds[0].SendAt)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), *d.scheds[0].SendAt)
}

func TestHandleSchedule_NoSendAt(t *testing.T) {
	d := &mockDispatcher{result: types.DispatchSuccess("SM9")}

	rec, _ := doPost(t, newSMSRouter(d), "/api/schedule-sms", `{"body":"later"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, d.scheds, 1)
	assert.Nil(t, d.scheds[0].SendAt, "the orchestrator applies the default time")
}

func TestHandleSchedule_InvalidSendAt(t *testing.T) {
	d := &mockDispatcher{}

	rec, out := doPost(t, newSMSRouter(d), "/api/schedule-sms", `{"sendAt":"next tuesday"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["ok"])
	assert.Contains(t, out["error"], "Invalid sendAt")
	assert.Empty(t, d.scheds, "no provider call for an unparseable time")
}

func TestHandleSchedule_Suppressed(t *testing.T) {
	d := &mockDispatcher{result: types.DispatchFailure(alerts.ErrSuppressed), err: alerts.ErrSuppressed}

	rec, _ := doPost(t, newSMSRouter(d), "/api/schedule-sms", `{"sendAt":"2026-03-01T12:00:00Z"}`)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestParseSendAt(t *testing.T) {
	want := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

	for _, in := range []string{
		"2026-03-01T12:30:00Z",
		"2026-03-01T12:30:00.000Z",
		"2026-03-01T13:30:00+01:00",
		"2026-03-01T12:30:00",
		"2026-03-01T12:30",
		"2026-03-01 12:30:00",
		" 2026-03-01T12:30:00Z ",
	} {
		got, err := ParseSendAt(in)
		if assert.NoError(t, err, in) {
			assert.True(t, want.Equal(got), "%q parsed as %v", in, got)
			assert.Equal(t, time.UTC, got.Location())
		}
	}

	_, err := ParseSendAt("01/03/2026")
	assert.Error(t, err)
}
