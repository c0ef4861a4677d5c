// Package alerts decides, for every prediction outcome and manual request,
// which notifications go out. Broadcasts are unconditional; SMS is gated by
// the red-alert flag, a resolvable recipient and the suppression window.
package alerts

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"impactalert/internal/external"
	"impactalert/internal/notifications/core"
	"impactalert/internal/types"
)

// Broadcaster pushes events to live subscribers. It must not block.
type Broadcaster interface {
	Publish(ctx context.Context, event types.BroadcastEvent)
}

// Notifier dispatches SMS.
type Notifier interface {
	SendNow(ctx context.Context, req types.NotificationRequest) types.DispatchResult
	SendScheduled(ctx context.Context, req types.NotificationRequest) types.DispatchResult
}

// Admitter is the suppression window.
type Admitter interface {
	Admit(key string) bool
}

// Deps are the Orchestrator's collaborators.
type Deps struct {
	Predictor        external.PredictionService
	Broadcaster      Broadcaster
	Notifier         Notifier
	Window           Admitter
	DefaultRecipient string
	Metrics          core.NotificationMetrics
	Logger           *slog.Logger
	Now              func() time.Time
}

// Orchestrator runs the alert pipeline.
type Orchestrator struct {
	predictor        external.PredictionService
	broadcaster      Broadcaster
	notifier         Notifier
	window           Admitter
	defaultRecipient string
	metrics          core.NotificationMetrics
	logger           *slog.Logger
	now              func() time.Time
}

// NewOrchestrator wires an Orchestrator. Metrics, Logger and Now are optional.
func NewOrchestrator(d Deps) *Orchestrator {
	o := &Orchestrator{
		predictor:        d.Predictor,
		broadcaster:      d.Broadcaster,
		notifier:         d.Notifier,
		window:           d.Window,
		defaultRecipient: strings.TrimSpace(d.DefaultRecipient),
		metrics:          d.Metrics,
		logger:           d.Logger,
		now:              d.Now,
	}
	if o.metrics == nil {
		o.metrics = core.NoopMetrics{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// HandlePrediction forwards req to the prediction service, broadcasts the
// hazard summary and, for red alerts, sends at most one SMS per suppression
// window. Only a prediction failure is returned as an error; SMS problems are
// logged and never change the returned outcome.
//
// Upstream calls outlive the caller: a cancelled ctx neither aborts the
// prediction call nor an admitted SMS. The HTTP client timeouts bound both.
func (o *Orchestrator) HandlePrediction(ctx context.Context, req *types.PredictionRequest) (*types.PredictionOutcome, error) {
	ctx = context.WithoutCancel(ctx)

	outcome, err := o.predictor.Predict(ctx, req.Raw)
	if err != nil {
		return nil, err
	}

	severeRadius := outcome.SevereRadius()
	o.broadcaster.Publish(ctx, types.BroadcastEvent{
		Timestamp: o.now().UTC(),
		Summary: types.BroadcastSummary{
			HazardLevel:    outcome.HazardLevel,
			EnergyEstimate: outcome.EnergyMegatons,
			SevereRadius:   severeRadius,
			Mode:           outcome.Mode,
		},
		Location: types.Location{Lat: req.Lat, Lon: req.Lon},
	})

	if !outcome.RedAlert {
		return outcome, nil
	}

	logger := o.logger.With(
		"request_id", types.GetRequestID(ctx),
		"hazard_level", outcome.HazardLevel,
	)

	recipient := strings.TrimSpace(req.NotifyPhone)
	if recipient == "" {
		recipient = o.defaultRecipient
	}
	if recipient == "" {
		o.metrics.RecordDelivery(ctx, core.ChannelSMS, core.MetricSkipped)
		logger.WarnContext(ctx, "red alert without a recipient, sms skipped")
		return outcome, nil
	}

	key := SuppressionKey(KindAlert, recipient, req.Lat.String(), req.Lon.String(), severeRadius.String())
	if !o.window.Admit(key) {
		o.metrics.RecordDelivery(ctx, core.ChannelSMS, core.MetricSuppressed)
		logger.InfoContext(ctx, "duplicate red alert suppressed", "key", key)
		return outcome, nil
	}

	res := o.notifier.SendNow(ctx, types.NotificationRequest{
		Recipient: recipient,
		Body:      ComposeAlertBody(req.Lat, req.Lon, severeRadius),
	})
	if !res.OK {
		logger.ErrorContext(ctx, "red alert sms failed", "code", res.Code, "error", res.Error)
	} else {
		logger.InfoContext(ctx, "red alert sms sent", "sid", res.SID)
	}

	return outcome, nil
}

// ManualRequest is a manual send. Empty fields take the configured defaults.
type ManualRequest struct {
	Recipient string
	Body      string
	SendAt    *time.Time
}

// ErrSuppressed is returned when an identical manual request was admitted
// within the suppression window.
var ErrSuppressed = types.NewAppError(types.ErrCodeSuppressedDuplicate, "Duplicate request suppressed", nil)

// Send dispatches a manual SMS immediately. It returns ErrSuppressed without
// contacting the provider when the request duplicates a recent one. Once
// admitted, the dispatch is not cancelled with ctx.
func (o *Orchestrator) Send(ctx context.Context, m ManualRequest) (types.DispatchResult, error) {
	ctx = context.WithoutCancel(ctx)
	to, body := o.defaults(m)
	if !o.window.Admit(SuppressionKey(KindSend, to, body)) {
		o.metrics.RecordDelivery(ctx, core.ChannelSMS, core.MetricSuppressed)
		return types.DispatchFailure(ErrSuppressed), ErrSuppressed
	}
	return o.notifier.SendNow(ctx, types.NotificationRequest{Recipient: to, Body: body}), nil
}

// Schedule dispatches a manual SMS at m.SendAt, defaulting to one minute from
// now. The send time is part of the suppression key.
func (o *Orchestrator) Schedule(ctx context.Context, m ManualRequest) (types.DispatchResult, error) {
	ctx = context.WithoutCancel(ctx)
	to, body := o.defaults(m)

	sendAt := o.now().Add(DefaultScheduleDelay)
	if m.SendAt != nil && !m.SendAt.IsZero() {
		sendAt = *m.SendAt
	}
	sendAt = sendAt.UTC()

	if !o.window.Admit(SuppressionKey(KindSchedule, to, body, sendAt.Format(time.RFC3339Nano))) {
		o.metrics.RecordDelivery(ctx, core.ChannelSMS, core.MetricSuppressed)
		return types.DispatchFailure(ErrSuppressed), ErrSuppressed
	}
	return o.notifier.SendScheduled(ctx, types.NotificationRequest{Recipient: to, Body: body, ScheduledAt: &sendAt}), nil
}

// DefaultScheduleDelay is used when a scheduled send names no time.
const DefaultScheduleDelay = 60 * time.Second

func (o *Orchestrator) defaults(m ManualRequest) (string, string) {
	to := strings.TrimSpace(m.Recipient)
	if to == "" {
		to = o.defaultRecipient
	}
	body := m.Body
	if strings.TrimSpace(body) == "" {
		body = DefaultManualBody
	}
	return to, body
}
