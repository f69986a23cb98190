package opsgenie

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
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dynoinc/incidentbridge/internal/incident"
	"github.com/dynoinc/incidentbridge/internal/otel/semconv"
)

const (
	DefaultBaseURL = "https://api.opsgenie.com/v2"
	DefaultDomain  = "app"

	DefaultReconcileAttempts = 3
	DefaultReconcileDelay    = time.Second

	aliasPrefix = "slack-incident"
)

// Errors returned by the client. They are the shared alert backend errors so
// callers can match on either package.
var (
	ErrRateLimited  = incident.ErrRateLimited
	ErrUnreachable  = incident.ErrUnreachable
	ErrConnectivity = incident.ErrConnectivity

	ErrEmptyIdentifier = errors.New("alert identifier is empty")
)

type BackendError = incident.BackendError

type Config struct {
	APIKey      string
	TeamID      string
	BaseURL     string
	Domain      string
	Environment string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithClock sets the clock used for alert aliases.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithReconcile overrides the number of alias lookups after creation and the wait before each one.
func WithReconcile(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithTimer replaces time.After for the reconciliation wait.
func WithTimer(after func(time.Duration) <-chan time.Time) Option {
	return func(c *Client) { c.after = after }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer("github.com/dynoinc/incidentbridge/internal/opsgenie") }
}

type Client struct {
	c Config

	http     *http.Client
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time
	attempts int
	delay    time.Duration

	tracer            trace.Tracer
	created           metric.Int64Counter
	failed            metric.Int64Counter
	reconcileAttempts metric.Int64Histogram
}

var _ incident.AlertGateway = (*Client)(nil)

func New(c Config, opts ...Option) *Client {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}

	client := &Client{
		c: c,
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		now:      time.Now,
		after:    time.After,
		attempts: DefaultReconcileAttempts,
		delay:    DefaultReconcileDelay,
		tracer:   otel.Tracer("github.com/dynoinc/incidentbridge/internal/opsgenie"),
	}
	for _, opt := range opts {
		opt(client)
	}

	meter := otel.Meter("github.com/dynoinc/incidentbridge/internal/opsgenie")
	var err error
	if client.created, err = meter.Int64Counter("incidentbridge.alerts.created",
		metric.WithDescription("Alerts accepted by OpsGenie")); err != nil {
		slog.Warn("creating alerts created counter", "error", err)
	}
	if client.failed, err = meter.Int64Counter("incidentbridge.alerts.failed",
		metric.WithDescription("Alert creations rejected or not delivered")); err != nil {
		slog.Warn("creating alerts failed counter", "error", err)
	}
	if client.reconcileAttempts, err = meter.Int64Histogram("incidentbridge.alerts.reconcile.attempts",
		metric.WithDescription("Alias lookups made before an alert id was resolved")); err != nil {
		slog.Warn("creating reconcile attempts histogram", "error", err)
	}

	return client
}

// Alias is the deduplication key sent with every new alert.
func Alias(reporterID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", aliasPrefix, reporterID, at.UnixMilli())
}

// AlertURL is the OpsGenie web link for an alert id.
func AlertURL(domain, id string) string {
	return fmt.Sprintf("https://%s.app.opsgenie.com/alert/detail/%s/details", domain, id)
}

type responder struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type createRequest struct {
	Message     string            `json:"message"`
	Description string            `json:"description,omitempty"`
	Priority    incident.Priority `json:"priority"`
	Responders  []responder       `json:"responders"`
	Tags        []string          `json:"tags"`
	Source      string            `json:"source"`
	Alias       string            `json:"alias"`
	Entity      string            `json:"entity,omitempty"`
	Details     map[string]string `json:"details"`
}

type asyncResponse struct {
	Result    string  `json:"result"`
	Took      float64 `json:"took"`
	RequestID string  `json:"requestId"`
}

type alertData struct {
	ID          string            `json:"id"`
	TinyID      string            `json:"tinyId"`
	Alias       string            `json:"alias"`
	Message     string            `json:"message"`
	Description string            `json:"description"`
	Priority    incident.Priority `json:"priority"`
	Source      string            `json:"source"`
	Entity      string            `json:"entity"`
	Tags        []string          `json:"tags"`
	Details     map[string]string `json:"details"`
}

func (c *Client) CreateAlert(ctx context.Context, alert incident.Alert) (result *incident.CreationResult, err error) {
	priority := alert.Priority
	if !priority.Valid() {
		priority = incident.PriorityForUrgency(string(alert.Urgency))
	}
	alias := Alias(alert.Reporter.ID, c.now())

	ctx, span := c.tracer.Start(ctx, "opsgenie.create_alert", trace.WithAttributes(
		semconv.ForceTraceKey.Bool(true),
		semconv.AlertAliasKey.String(alias),
		semconv.AlertPriorityKey.String(string(priority)),
	), trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.countFailure(ctx, err)
		}
		span.End()
	}()

	req := createRequest{
		Message:     alert.Title,
		Description: alert.Description,
		Priority:    priority,
		Responders:  []responder{{Type: "team", ID: c.c.TeamID}},
		Tags:        alert.Tags,
		Source:      alert.Source,
		Alias:       alias,
		Entity:      alert.Entity,
		Details:     c.details(alert),
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}

	var resp asyncResponse
	if err := c.do(ctx, http.MethodPost, "/alerts", nil, req, &resp); err != nil {
		return nil, fmt.Errorf("creating alert: %w", err)
	}
	if resp.RequestID == "" {
		return nil, fmt.Errorf("creating alert: %w", &BackendError{
			StatusCode: http.StatusInternalServerError,
			Message:    "invalid response from OpsGenie",
		})
	}
	span.SetAttributes(semconv.AlertRequestIDKey.String(resp.RequestID))

	id, attempts, found := c.reconcile(ctx, alias)
	if !found {
		id = resp.RequestID
		slog.WarnContext(ctx, "alert id not resolved, using request id", "alias", alias, "request_id", resp.RequestID, "attempts", attempts)
	}

	span.SetAttributes(
		semconv.AlertIDKey.String(id),
		semconv.AlertReconciledKey.Bool(found),
		semconv.AlertAttemptsKey.Int(attempts),
	)
	if c.created != nil {
		c.created.Add(ctx, 1, metric.WithAttributes(semconv.AlertPriorityKey.String(string(priority))))
	}
	if c.reconcileAttempts != nil {
		c.reconcileAttempts.Record(ctx, int64(attempts), metric.WithAttributes(semconv.AlertReconciledKey.Bool(found)))
	}

	return &incident.CreationResult{
		ID:         id,
		Alias:      alias,
		Title:      alert.Title,
		Priority:   priority,
		URL:        AlertURL(c.c.Domain, id),
		RequestID:  resp.RequestID,
		Reconciled: found,
	}, nil
}

func (c *Client) details(alert incident.Alert) map[string]string {
	details := make(map[string]string, len(alert.Details)+7)
	for k, v := range alert.Details {
		details[k] = v
	}

	details["reportedBy"] = alert.Reporter.Username
	details["slackUserId"] = alert.Reporter.ID
	details["slackUsername"] = alert.Reporter.Name
	details["environment"] = c.c.Environment
	if alert.Urgency != "" {
		details["originalUrgency"] = string(alert.Urgency)
	}
	if alert.Team.Name != "" {
		details["slackTeam"] = alert.Team.Name
	}
	if alert.Channel != "" {
		details["slackChannel"] = alert.Channel
	}

	return details
}

// reconcile looks the alert up by alias, waiting before every lookup. It makes at most
// c.attempts lookups and gives up early when ctx ends.
func (c *Client) reconcile(ctx context.Context, alias string) (string, int, bool) {
	lookups := 0
	for lookups < c.attempts {
		select {
		case <-ctx.Done():
			slog.WarnContext(ctx, "alert reconciliation interrupted", "alias", alias, "error", ctx.Err())
			return "", lookups, false
		case <-c.after(c.delay):
		}

		lookups++
		id, err := c.findByAlias(ctx, alias)
		if err != nil {
			slog.WarnContext(ctx, "alert lookup failed", "alias", alias, "attempt", lookups, "error", err)
			continue
		}
		if id != "" {
			return id, lookups, true
		}

		slog.DebugContext(ctx, "alert not found yet", "alias", alias, "attempt", lookups)
	}

	return "", lookups, false
}

func (c *Client) findByAlias(ctx context.Context, alias string) (string, error) {
	query := url.Values{}
	query.Set("query", "alias:"+alias)
	query.Set("limit", "1")

	var resp struct {
		Data []alertData `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/alerts", query, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "", nil
	}

	return resp.Data[0].ID, nil
}

func (c *Client) GetAlert(ctx context.Context, id incident.Identifier) (*incident.Alert, error) {
	if id.Empty() {
		return nil, ErrEmptyIdentifier
	}
	value, kind := id.Value()

	ctx, span := c.tracer.Start(ctx, "opsgenie.get_alert", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	var resp struct {
		Data alertData `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/alerts/"+url.PathEscape(value), url.Values{"identifierType": {kind}}, nil, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("getting alert %s: %w", value, err)
	}

	data := resp.Data
	return &incident.Alert{
		Title:       data.Message,
		Description: data.Description,
		Priority:    data.Priority,
		Urgency:     incident.Urgency(data.Details["originalUrgency"]),
		Source:      data.Source,
		Entity:      data.Entity,
		Tags:        data.Tags,
		Details:     data.Details,
		Reporter: incident.Reporter{
			ID:       data.Details["slackUserId"],
			Name:     data.Details["slackUsername"],
			Username: data.Details["reportedBy"],
		},
		Team: incident.Team{
			ID:   c.c.TeamID,
			Name: "Default Team",
		},
		Channel: data.Details["slackChannel"],
	}, nil
}

func (c *Client) CloseAlert(ctx context.Context, id incident.Identifier) error {
	if id.Empty() {
		return ErrEmptyIdentifier
	}
	value, kind := id.Value()

	ctx, span := c.tracer.Start(ctx, "opsgenie.close_alert", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	body := map[string]string{
		"source": "Slack",
		"note":   "Closed from Slack",
	}
	if err := c.do(ctx, http.MethodPost, "/alerts/"+url.PathEscape(value)+"/close", url.Values{"identifierType": {kind}}, body, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("closing alert %s: %w", value, err)
	}

	return nil
}

func (c *Client) ValidateConnection(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "opsgenie.validate_connection", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	if err := c.do(ctx, http.MethodGet, "/alerts/count", nil, nil, nil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %w", ErrConnectivity, err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "GenieKey "+c.c.APIKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response: %w", ErrUnreachable, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		return &BackendError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &BackendError{StatusCode: http.StatusInternalServerError, Message: "invalid response from OpsGenie"}
	}

	return nil
}

func (c *Client) countFailure(ctx context.Context, err error) {
	if c.failed == nil {
		return
	}

	c.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", failureReason(err))))
}

func failureReason(err error) string {
	var backendErr *BackendError
	switch {
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	case errors.As(err, &backendErr):
		return "backend"
	default:
		return "unknown"
	}
}
