package sms

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"impactalert/internal/notifications/core"
	"impactalert/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider records calls and returns canned results.
type fakeProvider struct {
	mu         sync.Mutex
	configured bool
	sid        string
	err        error
	sends      []string
	schedules  []time.Time
}

func (f *fakeProvider) Configured() bool { return f.configured }

func (f *fakeProvider) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, to+"|"+body)
	return f.sid, f.err
}

func (f *fakeProvider) Schedule(_ context.Context, to, body string, sendAt time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schedules = append(f.schedules, sendAt)
	return f.sid, f.err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends) + len(f.schedules)
}

// recordingMetrics captures delivery results.
type recordingMetrics struct {
	core.NoopMetrics
	mu      sync.Mutex
	results []core.MetricResult
}

func (m *recordingMetrics) RecordDelivery(_ context.Context, _ core.Channel, r core.MetricResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
}

func newTestAdapter(p *fakeProvider) (*Adapter, *recordingMetrics) {
	m := &recordingMetrics{}
	return NewAdapter(p, m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

func TestSendNow_Success(t *testing.T) {
	p := &fakeProvider{configured: true, sid: "SM1"}
	a, m := newTestAdapter(p)

	res := a.SendNow(context.Background(), types.NotificationRequest{Recipient: "+1555", Body: "hi"})

	assert.True(t, res.OK)
	assert.Equal(t, "SM1", res.SID)
	assert.Equal(t, []string{"+1555|hi"}, p.sends)
	assert.Equal(t, []core.MetricResult{core.MetricSuccess}, m.results)
}

func TestSendNow_Preconditions(t *testing.T) {
	tests := []struct {
		name       string
		configured bool
		req        types.NotificationRequest
		wantCode   types.ErrorCode
	}{
		{"not configured wins over missing fields", false, types.NotificationRequest{}, types.ErrCodeSMSNotConfigured},
		{"not configured", false, types.NotificationRequest{Recipient: "+1", Body: "b"}, types.ErrCodeSMSNotConfigured},
		{"missing recipient", true, types.NotificationRequest{Body: "b"}, types.ErrCodeValidationMissingRecipient},
		{"missing recipient before body", true, types.NotificationRequest{}, types.ErrCodeValidationMissingRecipient},
		{"missing body", true, types.NotificationRequest{Recipient: "+1", Body: "  "}, types.ErrCodeValidationMissingBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProvider{configured: tt.configured, sid: "SM1"}
			a, m := newTestAdapter(p)

			res := a.SendNow(context.Background(), tt.req)

			assert.False(t, res.OK)
			assert.Equal(t, tt.wantCode, res.Code)
			assert.NotEmpty(t, res.Error)
			assert.Zero(t, p.calls(), "provider must not be contacted")
			assert.Equal(t, []core.MetricResult{core.MetricSkipped}, m.results)
		})
	}
}

func TestSendNow_NilProviderIsNotConfigured(t *testing.T) {
	a := NewAdapter(nil, nil, nil)
	res := a.SendNow(context.Background(), types.NotificationRequest{Recipient: "+1", Body: "b"})
	assert.Equal(t, types.ErrCodeSMSNotConfigured, res.Code)
}

func TestSendNow_ProviderFailureSurfacedVerbatim(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		err:        types.NewAppError(types.ErrCodeUpstreamSMSProvider, "The 'To' number +1 is not a valid phone number.", nil),
	}
	a, m := newTestAdapter(p)

	res := a.SendNow(context.Background(), types.NotificationRequest{Recipient: "+1", Body: "b"})

	assert.False(t, res.OK)
	assert.Equal(t, "The 'To' number +1 is not a valid phone number.", res.Error)
	assert.Equal(t, types.ErrCodeUpstreamSMSProvider, res.Code)
	assert.Equal(t, 1, p.calls(), "exactly one attempt")
	assert.Equal(t, []core.MetricResult{core.MetricFailed}, m.results)
}

func TestSendNow_PlainErrorBecomesProviderFailure(t *testing.T) {
	p := &fakeProvider{configured: true, err: errors.New("connection reset by peer")}
	a, _ := newTestAdapter(p)

	res := a.SendNow(context.Background(), types.NotificationRequest{Recipient: "+1", Body: "b"})

	assert.Equal(t, "connection reset by peer", res.Error)
	assert.Equal(t, types.ErrCodeUpstreamSMSProvider, res.Code)
}

func TestSendScheduled_PassesTimeThrough(t *testing.T) {
	p := &fakeProvider{configured: true, sid: "SM2"}
	a, _ := newTestAdapter(p)
	at := time.Date(2030, 5, 1, 9, 0, 0, 0, time.UTC)

	res := a.SendScheduled(context.Background(), types.NotificationRequest{Recipient: "+1", Body: "b", ScheduledAt: &at})

	require.True(t, res.OK)
	assert.Equal(t, []time.Time{at}, p.schedules)
}

func TestSendScheduled_PastTimeRejectedByProvider(t *testing.T) {
	p := &fakeProvider{
		configured: true,
		err:        types.NewAppError(types.ErrCodeUpstreamSMSProvider, "SendAt time must be in the future", nil),
	}
	a, _ := newTestAdapter(p)
	past := time.Now().Add(-time.Hour)

	res := a.SendScheduled(context.Background(), types.NotificationRequest{Recipient: "+1", Body: "b", ScheduledAt: &past})

	assert.False(t, res.OK)
	assert.Equal(t, "SendAt time must be in the future", res.Error)
	assert.Equal(t, 1, p.calls(), "past times are forwarded, not pre-validated")
}

func TestSendScheduled_MissingTime(t *testing.T) {
	p := &fakeProvider{configured: true}
	a, _ := newTestAdapter(p)

	res := a.SendScheduled(context.Background(), types.NotificationRequest{Recipient: "+1", Body: "b"})

	assert.Equal(t, types.ErrCodeValidationMissingSendAt, res.Code)
	assert.Zero(t, p.calls())
}
