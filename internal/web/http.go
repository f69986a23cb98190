package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/slack-go/slack"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dynoinc/incidentbridge/internal/incident"
	"github.com/dynoinc/incidentbridge/internal/signature"
)

const missingTriggerText = "Sorry, this command could not open the incident form. Please run it again."

type Workflow interface {
	StartSlashCommand(ctx context.Context, cmd slack.SlashCommand) (incident.State, error)
	HandleSubmission(ctx context.Context, cb slack.InteractionCallback) incident.Outcome
}

type ConnectionChecker interface {
	ValidateConnection(ctx context.Context) error
}

type Options struct {
	Verifier *signature.Verifier
	Workflow Workflow
	// Readiness backs /health/ready. Nil means always ready.
	Readiness ConnectionChecker
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

type httpHandlers struct {
	workflow  Workflow
	readiness ConnectionChecker
}

func New(o Options) http.Handler {
	handlers := &httpHandlers{
		workflow:  o.Workflow,
		readiness: o.Readiness,
	}

	mux := http.NewServeMux()
	mux.Handle("POST /slack/commands", o.Verifier.Middleware(http.HandlerFunc(handlers.slashCommand)))
	mux.Handle("POST /slack/interactivity", o.Verifier.Middleware(http.HandlerFunc(handlers.interactivity)))
	mux.HandleFunc("GET /health", handlers.health)
	mux.HandleFunc("GET /health/ready", handlers.ready)
	if o.Metrics != nil {
		mux.Handle("GET /metrics", o.Metrics)
	}

	sentryHandler := sentryhttp.New(sentryhttp.Options{WaitForDelivery: false, Timeout: 2 * time.Second})
	return otelhttp.NewHandler(sentryHandler.Handle(mux), "incidentbridge",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

func (h *httpHandlers) slashCommand(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	cmd, err := slack.SlashCommandParse(request)
	if err != nil {
		slog.WarnContext(ctx, "unparseable slash command", "error", err)
		writeEphemeral(writer, missingTriggerText)
		return
	}

	if _, err := h.workflow.StartSlashCommand(ctx, cmd); err != nil {
		if errors.Is(err, incident.ErrMissingTrigger) {
			writeEphemeral(writer, missingTriggerText)
			return
		}
		slog.ErrorContext(ctx, "slash command failed", "error", err)
	}

	writer.WriteHeader(http.StatusOK)
}

func (h *httpHandlers) interactivity(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()

	cb, err := decodeInteraction(request)
	if err != nil {
		slog.ErrorContext(ctx, "unparseable interaction payload", "error", err)
		writeJSON(writer, slack.NewClearViewSubmissionResponse())
		return
	}

	out := h.workflow.HandleSubmission(ctx, cb)
	slog.DebugContext(ctx, "handled interaction", "state", out.State)
	if out.Response == nil {
		writer.WriteHeader(http.StatusOK)
		return
	}

	writeJSON(writer, out.Response)
}

func (h *httpHandlers) health(writer http.ResponseWriter, _ *http.Request) {
	writer.Header().Set("Content-Type", "text/plain")
	_, _ = writer.Write([]byte("OK"))
}

func (h *httpHandlers) ready(writer http.ResponseWriter, request *http.Request) {
	if h.readiness != nil {
		ctx, cancel := context.WithTimeout(request.Context(), 5*time.Second)
		defer cancel()

		if err := h.readiness.ValidateConnection(ctx); err != nil {
			slog.WarnContext(ctx, "readiness check failed", "error", err)
			http.Error(writer, "alert backend unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	writer.Header().Set("Content-Type", "text/plain")
	_, _ = writer.Write([]byte("OK"))
}

// decodeInteraction accepts the form-encoded payload Slack sends, and JSON bodies that
// carry the callback directly or under "payload" as a string or an object.
func decodeInteraction(request *http.Request) (slack.InteractionCallback, error) {
	var cb slack.InteractionCallback

	body, err := io.ReadAll(request.Body)
	if err != nil {
		return cb, fmt.Errorf("reading body: %w", err)
	}
	body = bytes.TrimSpace(body)

	var raw []byte
	if bytes.HasPrefix(body, []byte("{")) {
		var envelope struct {
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return cb, fmt.Errorf("decoding JSON body: %w", err)
		}

		switch {
		case len(envelope.Payload) == 0 || bytes.Equal(envelope.Payload, []byte("null")):
			raw = body
		case envelope.Payload[0] == '"':
			var s string
			if err := json.Unmarshal(envelope.Payload, &s); err != nil {
				return cb, fmt.Errorf("decoding payload string: %w", err)
			}
			raw = []byte(s)
		default:
			raw = envelope.Payload
		}
	} else {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return cb, fmt.Errorf("parsing form: %w", err)
		}
		raw = []byte(values.Get("payload"))
	}

	if len(raw) == 0 {
		return cb, errors.New("empty payload")
	}
	if err := json.Unmarshal(raw, &cb); err != nil {
		return cb, fmt.Errorf("decoding payload: %w", err)
	}

	return cb, nil
}

func writeEphemeral(writer http.ResponseWriter, text string) {
	writeJSON(writer, &slack.Msg{ResponseType: slack.ResponseTypeEphemeral, Text: text})
}

func writeJSON(writer http.ResponseWriter, v any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(writer).Encode(v)
}
