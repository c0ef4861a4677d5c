// Package main is the entry point for the impact alert bridge.
//
// It loads the configuration, wires the prediction and SMS clients, the
// suppression window, the broadcast hub and the alert orchestrator into the
// HTTP chassis, and serves until SIGINT or SIGTERM. The hub and the HTTP
// server run under one errgroup; either failing stops both.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"impactalert/internal/alerts"
	"impactalert/internal/api/handlers"
	"impactalert/internal/config"
	"impactalert/internal/core"
	"impactalert/internal/external"
	"impactalert/internal/notifications/broadcast"
	notifcore "impactalert/internal/notifications/core"
	"impactalert/internal/notifications/sms"
	"impactalert/internal/notifications/suppression"
)

// shutdownTimeout bounds the graceful drain of in-flight requests.
const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("impact alert bridge starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"port", cfg.Server.Port,
		"sms_configured", cfg.SMS.Configured(),
		"metrics_backend", cfg.Metrics.Backend,
	)
	if !cfg.SMS.Configured() {
		logger.Warn("SMS provider credentials are incomplete; every SMS dispatch will fail until they are set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder, metricsHandler, err := newMetrics(ctx, cfg.Metrics, logger)
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}

	a, err := newApp(cfg, logger, recorder, metricsHandler)
	if err != nil {
		return err
	}
	return a.serve(ctx)
}

// app is the fully wired bridge.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	server *core.Server
	hub    *broadcast.Hub
}

// newApp wires every component. metricsHandler may be nil, in which case no
// /metrics route is mounted.
func newApp(cfg *config.Config, logger *slog.Logger, recorder notifcore.Recorder, metricsHandler http.Handler) (*app, error) {
	predictor := external.NewPredictionClient(
		&http.Client{Timeout: cfg.Prediction.Timeout},
		external.PredictionClientConfig{BaseURL: cfg.Prediction.BaseURL, Logger: logger},
	)
	twilio := external.NewTwilioClient(
		&http.Client{Timeout: cfg.SMS.Timeout},
		external.TwilioClientConfig{
			AccountSID:          cfg.SMS.AccountSID,
			AuthToken:           cfg.SMS.AuthToken,
			MessagingServiceSID: cfg.SMS.MessagingServiceSID,
			BaseURL:             cfg.SMS.BaseURL,
			Logger:              logger,
		},
	)

	hub := broadcast.NewHub(recorder, logger)
	orchestrator := alerts.NewOrchestrator(alerts.Deps{
		Predictor:        predictor,
		Broadcaster:      hub,
		Notifier:         sms.NewAdapter(twilio, recorder, logger),
		Window:           suppression.New(cfg.Suppression.Window, suppression.WithSweepFactor(cfg.Suppression.SweepFactor)),
		DefaultRecipient: cfg.SMS.DefaultRecipient,
		Metrics:          recorder,
		Logger:           logger,
	})

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = recorder

	smsHandler := handlers.NewSMSHandler(orchestrator, logger)
	predictHandler := handlers.NewPredictHandler(orchestrator, logger)
	srv.APIRoutes = append(srv.APIRoutes, smsHandler.RegisterRoutes, predictHandler.RegisterRoutes)

	wsHandler := broadcast.NewHandler(hub, cfg.Security.CorsAllowedOrigins)
	srv.RootRoutes = append(srv.RootRoutes, func(r chi.Router) {
		r.Method(http.MethodGet, "/ws", wsHandler)
	})
	if metricsHandler != nil {
		srv.RootRoutes = append(srv.RootRoutes, func(r chi.Router) {
			r.Method(http.MethodGet, "/metrics", metricsHandler)
		})
	}

	srv.MountRoutes()

	return &app{cfg: cfg, logger: logger, server: srv, hub: hub}, nil
}

// serve runs the hub and the HTTP server until ctx is cancelled or one of
// them fails, then drains in-flight requests.
func (a *app) serve(ctx context.Context) error {
	httpServer := a.server.HTTPServer()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.hub.Run(gctx)
	})

	g.Go(func() error {
		a.logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(shutdownCtx)
		_ = a.hub.Close()
		if err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("server stopped cleanly")
	return nil
}

// newMetrics selects the metrics backend. Only the Prometheus backend exposes
// an HTTP handler.
func newMetrics(ctx context.Context, cfg config.MetricsConfig, logger *slog.Logger) (notifcore.Recorder, http.Handler, error) {
	switch cfg.Backend {
	case "prometheus":
		m := notifcore.NewPrometheusMetrics()
		return m, m.Handler(), nil
	case "cloudwatch":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, nil, fmt.Errorf("loading AWS config: %w", err)
		}
		return notifcore.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Namespace, logger), nil, nil
	default:
		return notifcore.NoopMetrics{}, nil, nil
	}
}

// newLogger creates a JSON slog.Logger for the given level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
