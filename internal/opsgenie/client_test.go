package opsgenie_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/dynoinc/incidentbridge/internal/incident"
	"github.com/dynoinc/incidentbridge/internal/opsgenie"
	"github.com/dynoinc/incidentbridge/internal/otel/semconv"
)

const testKey = "0b0e8a4c-6d5e-4f7a-9c1b-2d3e4f5a6b7c"

var fixedNow = time.UnixMilli(1700000000000)

type fakeOpsGenie struct {
	*httptest.Server

	createStatus int
	createBody   string
	foundAfter   int // lookups that return nothing before the alert shows up; -1 never
	lookupStatus int

	lookups atomic.Int32
	created atomic.Pointer[map[string]any]
	lastReq atomic.Pointer[http.Request]
}

func newFakeOpsGenie(t *testing.T) *fakeOpsGenie {
	t.Helper()
	f := &fakeOpsGenie{
		createStatus: http.StatusAccepted,
		createBody:   `{"result":"Request will be processed","took":0.1,"requestId":"req-1"}`,
		lookupStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /alerts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GenieKey "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		f.created.Store(&payload)

		w.WriteHeader(f.createStatus)
		_, _ = w.Write([]byte(f.createBody))
	})
	mux.HandleFunc("GET /alerts", func(w http.ResponseWriter, r *http.Request) {
		n := int(f.lookups.Add(1))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))

		if f.lookupStatus != http.StatusOK {
			w.WriteHeader(f.lookupStatus)
			_, _ = w.Write([]byte(`{"message":"internal error"}`))
			return
		}
		if f.foundAfter < 0 || n <= f.foundAfter {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"abc-123","tinyId":"42","alias":"` +
			r.URL.Query().Get("query")[len("alias:"):] + `"}]}`))
	})
	mux.HandleFunc("GET /alerts/count", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "GenieKey "+testKey {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Could not authenticate"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"count":7}}`))
	})
	mux.HandleFunc("GET /alerts/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.lastReq.Store(r)
		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Alert does not exist"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{
			"id":"abc-123","alias":"slack-incident-U123-1700000000000",
			"message":"DB down","description":"primary unreachable","priority":"P1",
			"source":"Slack","entity":"Slack Incident","tags":["slack-incident"],
			"details":{"reportedBy":"alice","slackUserId":"U123","slackUsername":"alice",
				"originalUrgency":"critical","slackChannel":"ops"}}}`))
	})
	mux.HandleFunc("POST /alerts/{id}/close", func(w http.ResponseWriter, r *http.Request) {
		f.lastReq.Store(r)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Slack", body["source"])
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"result":"Request will be processed","requestId":"req-close"}`))
	})

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newClient(f *fakeOpsGenie, opts ...opsgenie.Option) *opsgenie.Client {
	opts = append([]opsgenie.Option{
		opsgenie.WithHTTPClient(f.Client()),
		opsgenie.WithClock(func() time.Time { return fixedNow }),
		opsgenie.WithReconcile(3, time.Millisecond),
	}, opts...)

	return opsgenie.New(opsgenie.Config{
		APIKey:      testKey,
		TeamID:      "team-1",
		BaseURL:     f.URL + "/",
		Domain:      "acme",
		Environment: "test",
	}, opts...)
}

func testAlert() incident.Alert {
	req := incident.Request{
		ReporterID:   "U123",
		ReporterName: "alice",
		TeamID:       "T999",
		Channel:      incident.ChannelContext{ChannelID: "C42", ChannelName: "ops", TeamDomain: "acme"},
		Title:        "DB down",
		Description:  "primary unreachable",
		Urgency:      incident.UrgencyCritical,
	}
	defaults := incident.DefaultAlertDefaults()
	defaults.Details = map[string]string{"runbook": "https://runbooks/db", "environment": "overridden"}
	return incident.NewAlert(req, defaults)
}

func TestCreateAlertReconciles(t *testing.T) {
	f := newFakeOpsGenie(t)
	f.foundAfter = 1
	c := newClient(f)

	result, err := c.CreateAlert(t.Context(), testAlert())
	require.NoError(t, err)

	assert.Equal(t, "abc-123", result.ID)
	assert.Equal(t, "slack-incident-U123-1700000000000", result.Alias)
	assert.Equal(t, "req-1", result.RequestID)
	assert.Equal(t, incident.PriorityP1, result.Priority)
	assert.Equal(t, "https://acme.app.opsgenie.com/alert/detail/abc-123/details", result.URL)
	assert.True(t, result.Reconciled)
	assert.EqualValues(t, 2, f.lookups.Load())

	payload := *f.created.Load()
	assert.Equal(t, "DB down", payload["message"])
	assert.Equal(t, "primary unreachable", payload["description"])
	assert.Equal(t, "P1", payload["priority"])
	assert.Equal(t, "slack-incident-U123-1700000000000", payload["alias"])
	assert.Equal(t, "Slack", payload["source"])
	assert.Equal(t, "Slack Incident", payload["entity"])
	assert.Equal(t, []any{"slack-incident"}, payload["tags"])
	assert.Equal(t, []any{map[string]any{"type": "team", "id": "team-1"}}, payload["responders"])
	assert.Equal(t, map[string]any{
		"reportedBy":      "alice",
		"slackUserId":     "U123",
		"slackUsername":   "alice",
		"originalUrgency": "critical",
		"slackTeam":       "acme",
		"slackChannel":    "ops",
		"environment":     "test",
		"runbook":         "https://runbooks/db",
	}, payload["details"])
}

func TestCreateAlertFallsBackToRequestID(t *testing.T) {
	f := newFakeOpsGenie(t)
	f.foundAfter = -1
	c := newClient(f)

	result, err := c.CreateAlert(t.Context(), testAlert())
	require.NoError(t, err)
	assert.Equal(t, "req-1", result.ID)
	assert.False(t, result.Reconciled)
	assert.Equal(t, "https://acme.app.opsgenie.com/alert/detail/req-1/details", result.URL)
	assert.EqualValues(t, 3, f.lookups.Load())
}

func TestCreateAlertLookupErrorsCountAsNotFound(t *testing.T) {
	f := newFakeOpsGenie(t)
	f.lookupStatus = http.StatusInternalServerError
	c := newClient(f, opsgenie.WithReconcile(5, time.Millisecond))

	result, err := c.CreateAlert(t.Context(), testAlert())
	require.NoError(t, err)
	assert.Equal(t, "req-1", result.ID)
	assert.False(t, result.Reconciled)
	assert.EqualValues(t, 5, f.lookups.Load())
}

func TestCreateAlertStopsWhenContextEnds(t *testing.T) {
	f := newFakeOpsGenie(t)
	f.foundAfter = 0

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	c := newClient(f, opsgenie.WithTimer(func(time.Duration) <-chan time.Time {
		cancel()
		return make(chan time.Time)
	}))

	result, err := c.CreateAlert(ctx, testAlert())
	require.NoError(t, err)
	assert.Equal(t, "req-1", result.ID)
	assert.False(t, result.Reconciled)
	assert.EqualValues(t, 0, f.lookups.Load())
}

func TestCreateAlertPriorityFromUrgency(t *testing.T) {
	f := newFakeOpsGenie(t)
	c := newClient(f)

	alert := testAlert()
	alert.Priority = "urgent"
	alert.Urgency = incident.UrgencyLow

	result, err := c.CreateAlert(t.Context(), alert)
	require.NoError(t, err)
	assert.Equal(t, incident.PriorityP4, result.Priority)
	assert.Equal(t, "P4", (*f.created.Load())["priority"])
}

func TestCreateAlertErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(t *testing.T, err error)
		lookups int32
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"message":"You are making too many requests!"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, opsgenie.ErrRateLimited)
				assert.ErrorIs(t, err, incident.ErrRateLimited)
			},
		},
		{
			name:   "backend message",
			status: http.StatusUnprocessableEntity,
			body:   `{"message":"Request body is not processable","took":0.001}`,
			check: func(t *testing.T, err error) {
				var backendErr *opsgenie.BackendError
				require.ErrorAs(t, err, &backendErr)
				assert.Equal(t, http.StatusUnprocessableEntity, backendErr.StatusCode)
				assert.Equal(t, "Request body is not processable", backendErr.Message)
				assert.False(t, backendErr.Retryable())
			},
		},
		{
			name:   "missing request id",
			status: http.StatusAccepted,
			body:   `{"result":"Request will be processed"}`,
			check: func(t *testing.T, err error) {
				var backendErr *incident.BackendError
				require.ErrorAs(t, err, &backendErr)
				assert.Equal(t, http.StatusInternalServerError, backendErr.StatusCode)
				assert.Equal(t, "invalid response from OpsGenie", backendErr.Message)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeOpsGenie(t)
			f.createStatus = tt.status
			f.createBody = tt.body
			c := newClient(f)

			result, err := c.CreateAlert(t.Context(), testAlert())
			require.Error(t, err)
			assert.Nil(t, result)
			tt.check(t, err)
			assert.EqualValues(t, 0, f.lookups.Load())
		})
	}
}

func TestCreateAlertUnreachable(t *testing.T) {
	f := newFakeOpsGenie(t)
	c := newClient(f)
	f.Close()

	_, err := c.CreateAlert(t.Context(), testAlert())
	require.ErrorIs(t, err, opsgenie.ErrUnreachable)
}

func TestCreateAlertSpan(t *testing.T) {
	f := newFakeOpsGenie(t)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	c := newClient(f, opsgenie.WithTracerProvider(tp))

	_, err := c.CreateAlert(t.Context(), testAlert())
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "opsgenie.create_alert", spans[0].Name())

	attrs := map[string]any{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, true, attrs[string(semconv.ForceTraceKey)])
	assert.Equal(t, true, attrs[string(semconv.AlertReconciledKey)])
	assert.Equal(t, "abc-123", attrs[string(semconv.AlertIDKey)])
	assert.Equal(t, int64(1), attrs[string(semconv.AlertAttemptsKey)])
}

func TestGetAlert(t *testing.T) {
	f := newFakeOpsGenie(t)
	c := newClient(f)

	first, err := c.GetAlert(t.Context(), incident.Identifier{Alias: "slack-incident-U123-1700000000000"})
	require.NoError(t, err)
	assert.Equal(t, "alias", f.lastReq.Load().URL.Query().Get("identifierType"))

	second, err := c.GetAlert(t.Context(), incident.Identifier{Alias: "slack-incident-U123-1700000000000"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, "DB down", first.Title)
	assert.Equal(t, incident.PriorityP1, first.Priority)
	assert.Equal(t, incident.UrgencyCritical, first.Urgency)
	assert.Equal(t, incident.Reporter{ID: "U123", Name: "alice", Username: "alice"}, first.Reporter)
	assert.Equal(t, incident.Team{ID: "team-1", Name: "Default Team"}, first.Team)
	assert.Equal(t, "ops", first.Channel)

	_, err = c.GetAlert(t.Context(), incident.Identifier{ID: "abc-123", Alias: "ignored"})
	require.NoError(t, err)
	assert.Equal(t, "id", f.lastReq.Load().URL.Query().Get("identifierType"))
	assert.Equal(t, "/alerts/abc-123", f.lastReq.Load().URL.Path)
}

func TestGetAlertNotFound(t *testing.T) {
	f := newFakeOpsGenie(t)
	c := newClient(f)

	_, err := c.GetAlert(t.Context(), incident.Identifier{ID: "missing"})
	var backendErr *opsgenie.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusNotFound, backendErr.StatusCode)
	assert.Equal(t, "Alert does not exist", backendErr.Message)

	_, err = c.GetAlert(t.Context(), incident.Identifier{})
	require.ErrorIs(t, err, opsgenie.ErrEmptyIdentifier)
}

func TestCloseAlert(t *testing.T) {
	f := newFakeOpsGenie(t)
	c := newClient(f)

	require.NoError(t, c.CloseAlert(t.Context(), incident.Identifier{ID: "abc-123"}))
	req := f.lastReq.Load()
	assert.Equal(t, "/alerts/abc-123/close", req.URL.Path)
	assert.Equal(t, "id", req.URL.Query().Get("identifierType"))

	require.ErrorIs(t, c.CloseAlert(t.Context(), incident.Identifier{}), opsgenie.ErrEmptyIdentifier)
}

func TestValidateConnection(t *testing.T) {
	f := newFakeOpsGenie(t)
	require.NoError(t, newClient(f).ValidateConnection(t.Context()))

	bad := opsgenie.New(opsgenie.Config{
		APIKey:  "00000000-0000-0000-0000-000000000000",
		BaseURL: f.URL,
	}, opsgenie.WithHTTPClient(f.Client()))
	err := bad.ValidateConnection(t.Context())
	require.ErrorIs(t, err, opsgenie.ErrConnectivity)

	var backendErr *opsgenie.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusUnauthorized, backendErr.StatusCode)
}

func TestAliasAndURL(t *testing.T) {
	assert.Equal(t, "slack-incident-U1-1700000000000", opsgenie.Alias("U1", fixedNow))
	assert.Equal(t, "https://app.app.opsgenie.com/alert/detail/x/details", opsgenie.AlertURL("app", "x"))
}
