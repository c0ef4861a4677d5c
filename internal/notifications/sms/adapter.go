// Package sms turns notification requests into single provider calls and
// normalizes every outcome into a types.DispatchResult.
package sms

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"impactalert/internal/external"
	"impactalert/internal/notifications/core"
	"impactalert/internal/types"
)

// Adapter validates requests and makes exactly one provider call per
// dispatch. It never retries.
type Adapter struct {
	provider external.SMSProvider
	metrics  core.NotificationMetrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewAdapter creates an Adapter. A nil metrics recorder disables telemetry.
func NewAdapter(provider external.SMSProvider, metrics core.NotificationMetrics, logger *slog.Logger) *Adapter {
	if metrics == nil {
		metrics = core.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		provider: provider,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// SendNow dispatches req immediately. ScheduledAt is ignored.
func (a *Adapter) SendNow(ctx context.Context, req types.NotificationRequest) types.DispatchResult {
	if err := a.validate(req); err != nil {
		return a.skip(ctx, err)
	}
	return a.dispatch(ctx, req, func(ctx context.Context) (string, error) {
		return a.provider.Send(ctx, req.Recipient, req.Body)
	})
}

// SendScheduled asks the provider to dispatch req at req.ScheduledAt. The time
// is not checked against the clock here; the provider's verdict is returned.
func (a *Adapter) SendScheduled(ctx context.Context, req types.NotificationRequest) types.DispatchResult {
	if err := a.validate(req); err != nil {
		return a.skip(ctx, err)
	}
	if req.ScheduledAt == nil || req.ScheduledAt.IsZero() {
		return a.skip(ctx, types.NewAppError(types.ErrCodeValidationMissingSendAt, "Missing sendAt", nil))
	}
	sendAt := *req.ScheduledAt
	return a.dispatch(ctx, req, func(ctx context.Context) (string, error) {
		return a.provider.Schedule(ctx, req.Recipient, req.Body, sendAt)
	})
}

// validate applies the preconditions in order: provider configuration,
// recipient, body.
func (a *Adapter) validate(req types.NotificationRequest) error {
	switch {
	case a.provider == nil || !a.provider.Configured():
		return types.NewAppError(types.ErrCodeSMSNotConfigured, "SMS provider is not configured", nil)
	case strings.TrimSpace(req.Recipient) == "":
		return types.NewAppError(types.ErrCodeValidationMissingRecipient, "Missing recipient", nil)
	case strings.TrimSpace(req.Body) == "":
		return types.NewAppError(types.ErrCodeValidationMissingBody, "Missing message body", nil)
	}
	return nil
}

func (a *Adapter) skip(ctx context.Context, err error) types.DispatchResult {
	a.metrics.RecordDelivery(ctx, core.ChannelSMS, core.MetricSkipped)
	return types.DispatchFailure(err)
}

func (a *Adapter) dispatch(
	ctx context.Context,
	req types.NotificationRequest,
	call func(context.Context) (string, error),
) types.DispatchResult {
	start := a.now()
	sid, err := call(ctx)
	a.metrics.RecordLatency(ctx, core.ChannelSMS, a.now().Sub(start))

	if err != nil {
		a.metrics.RecordDelivery(ctx, core.ChannelSMS, core.MetricFailed)
		a.logger.WarnContext(ctx, "sms dispatch failed",
			"request_id", types.GetRequestID(ctx),
			"to", RedactPhone(req.Recipient),
			"scheduled", req.ScheduledAt != nil,
			"error", err.Error(),
		)
		return types.DispatchFailure(err)
	}

	a.metrics.RecordDelivery(ctx, core.ChannelSMS, core.MetricSuccess)
	a.logger.InfoContext(ctx, "sms dispatched",
		"request_id", types.GetRequestID(ctx),
		"to", RedactPhone(req.Recipient),
		"sid", sid,
		"scheduled", req.ScheduledAt != nil,
	)
	return types.DispatchSuccess(sid)
}
