package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/earthboundkid/versioninfo/v2"
	"github.com/getsentry/sentry-go"
	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"

	"github.com/dynoinc/incidentbridge/internal/config"
	"github.com/dynoinc/incidentbridge/internal/incident"
	"github.com/dynoinc/incidentbridge/internal/opsgenie"
	"github.com/dynoinc/incidentbridge/internal/otel/telemetry"
	"github.com/dynoinc/incidentbridge/internal/signature"
	"github.com/dynoinc/incidentbridge/internal/slack_integration"
	"github.com/dynoinc/incidentbridge/internal/web"
)

func main() {
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help {
		if err := config.Usage(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	c, err := config.Load()
	if err != nil {
		slog.Error("error loading configuration", "error", err)
		os.Exit(1)
	}
	setupLogging(c)

	if err := run(c); err != nil {
		slog.Error("error running server", "error", err)
		os.Exit(1)
	}
}

func setupLogging(c config.Config) {
	var handler slog.Handler
	if c.IsDevelopment() {
		handler = tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.Kitchen, AddSource: true})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func run(c config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.InfoContext(ctx, "running version", "version", versioninfo.Short(), "environment", c.Environment)

	// Sentry setup
	if c.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              c.SentryDSN,
			Environment:      c.Environment,
			Release:          versioninfo.Short(),
			EnableTracing:    true,
			TracesSampleRate: c.TraceSampleRate,
		}); err != nil {
			return fmt.Errorf("setting up Sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Telemetry setup
	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "incidentbridge",
		Environment: c.Environment,
		Exporter:    c.TraceExporter,
		SampleRate:  c.TraceSampleRate,
		Sentry:      c.SentryDSN != "",
	})
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer shutdownCancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error shutting down telemetry", "error", err)
		}
	}()

	// Alert backend setup
	defaults, err := incident.LoadAlertDefaults(c.AlertDefaultsFile)
	if err != nil {
		return fmt.Errorf("loading alert defaults: %w", err)
	}
	alerts := opsgenie.New(opsgenie.Config{
		APIKey:      c.OpsGenieAPIKey,
		TeamID:      c.OpsGenieTeamID,
		BaseURL:     c.OpsGenieAPIURL,
		Domain:      c.OpsGenieDomain,
		Environment: c.Environment,
	})
	if err := alerts.ValidateConnection(ctx); err != nil {
		slog.WarnContext(ctx, "OpsGenie connection check failed, continuing", "error", err)
	}

	// Slack setup
	slackIntegration := slack_integration.New(slack_integration.Config{
		BotToken:  c.SlackBotToken,
		APIURL:    c.SlackAPIURL,
		SkipModal: c.IsTest(),
	}, nil)

	workflow := incident.NewWorkflow(alerts, slackIntegration, defaults)

	if c.SignatureBypass {
		slog.WarnContext(ctx, "unsigned Slack requests are accepted", "environment", c.Environment)
	}

	// HTTP server setup
	handler := web.New(web.Options{
		Verifier:  signature.New(c.SlackSigningSecret, c.SignatureBypass),
		Workflow:  workflow,
		Readiness: alerts,
		Metrics:   tel.MetricsHandler,
	})

	server := &http.Server{
		BaseContext:       func(listener net.Listener) context.Context { return ctx },
		Addr:              c.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg, ctx := errgroup.WithContext(ctx)
	wg.Go(func() error {
		slog.InfoContext(ctx, "starting HTTP server", "addr", c.HTTPAddr)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}

		return nil
	})
	wg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(sig)

		select {
		case <-ctx.Done():
		case <-sig:
			slog.InfoContext(ctx, "shutting down")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down HTTP server: %w", err)
		}
		workflow.Wait()

		return nil
	})

	if err := wg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
