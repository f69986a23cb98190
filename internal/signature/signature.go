package signature

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	HeaderSignature = "X-Slack-Signature"
	HeaderTimestamp = "X-Slack-Request-Timestamp"

	// MaxAge is the replay window for signed requests.
	MaxAge = 300 * time.Second
)

var (
	ErrMissingHeaders   = errors.New("missing required headers")
	ErrStaleRequest     = errors.New("request timestamp too old")
	ErrMissingBody      = errors.New("missing request body")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Verify checks a Slack request signature of the form "{version}={hex}".
func Verify(signature, timestamp string, body []byte, secret string, now time.Time) error {
	if signature == "" || timestamp == "" {
		return ErrMissingHeaders
	}

	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil || ts < now.Add(-MaxAge).Unix() {
		return ErrStaleRequest
	}

	if len(body) == 0 {
		return ErrMissingBody
	}

	version, hash, ok := strings.Cut(signature, "=")
	if !ok || version == "" || hash == "" {
		return ErrInvalidSignature
	}

	if !hmac.Equal([]byte(Compute(version, timestamp, body, secret)), []byte(hash)) {
		return ErrInvalidSignature
	}

	return nil
}

// Compute returns the hex HMAC-SHA256 of "{version}:{timestamp}:{body}".
func Compute(version, timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(version))
	mac.Write([]byte(":"))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// StatusCode maps a verification error to the HTTP status returned to the caller.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrMissingBody):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingHeaders), errors.Is(err, ErrStaleRequest), errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

type Verifier struct {
	Secret string
	// AllowUnsigned lets requests carrying neither signature header through.
	// Only ever set from an explicit development flag.
	AllowUnsigned bool
	Now           func() time.Time

	failures metric.Int64Counter
}

func New(secret string, allowUnsigned bool) *Verifier {
	failures, err := otel.Meter("github.com/dynoinc/incidentbridge/internal/signature").Int64Counter(
		"incidentbridge.signature.failures",
		metric.WithDescription("Inbound requests rejected by signature verification"),
	)
	if err != nil {
		slog.Warn("creating signature failure counter", "error", err)
	}

	return &Verifier{
		Secret:        secret,
		AllowUnsigned: allowUnsigned,
		Now:           time.Now,
		failures:      failures,
	}
}

func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sig := r.Header.Get(HeaderSignature)
		ts := r.Header.Get(HeaderTimestamp)

		if sig == "" && ts == "" && v.AllowUnsigned {
			slog.WarnContext(ctx, "signature verification bypassed", "path", r.URL.Path)
			next.ServeHTTP(w, r)
			return
		}

		var body []byte
		if r.Body != nil {
			var err error
			body, err = io.ReadAll(r.Body)
			if err != nil {
				slog.ErrorContext(ctx, "reading request body", "error", err)
				http.Error(w, "failed to read request", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		if err := Verify(sig, ts, body, v.Secret, v.now()); err != nil {
			v.reject(ctx, w, r, err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (v *Verifier) now() time.Time {
	if v.Now == nil {
		return time.Now()
	}
	return v.Now()
}

func (v *Verifier) reject(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(ctx, "signature verification failed", "path", r.URL.Path, "error", err)
	if v.failures != nil {
		v.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason(err))))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(StatusCode(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingHeaders):
		return "missing_headers"
	case errors.Is(err, ErrStaleRequest):
		return "stale_request"
	case errors.Is(err, ErrMissingBody):
		return "missing_body"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "unknown"
	}
}
