package slack_integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dynoinc/incidentbridge/internal/incident"
)

var ErrMissingTrigger = incident.ErrMissingTrigger

// ModalOpenFailedError carries the reason Slack gave for refusing views.open,
// e.g. expired_trigger_id.
type ModalOpenFailedError struct {
	Reason string
	Err    error
}

func (e *ModalOpenFailedError) Error() string {
	return "failed to open modal: " + e.Reason
}

func (e *ModalOpenFailedError) Unwrap() error {
	return e.Err
}

type Config struct {
	BotToken string
	// APIURL is the Slack Web API base, ending in /api.
	APIURL string
	// SkipModal turns OpenModal into a no-op for test environments.
	SkipModal bool
}

type Integration struct {
	c Config

	client *slack.Client
}

var _ incident.Notifier = (*Integration)(nil)

func New(c Config, httpClient *http.Client) *Integration {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	opts := []slack.Option{slack.OptionHTTPClient(httpClient)}
	if c.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimRight(c.APIURL, "/")+"/"))
	}

	return &Integration{
		c:      c,
		client: slack.New(c.BotToken, opts...),
	}
}

func (b *Integration) Client() *slack.Client {
	return b.client
}

func (b *Integration) OpenModal(ctx context.Context, triggerID string, cc incident.ChannelContext) error {
	if strings.TrimSpace(triggerID) == "" {
		return ErrMissingTrigger
	}

	if b.c.SkipModal {
		slog.InfoContext(ctx, "skipping views.open in test environment", "channel_id", cc.ChannelID)
		return nil
	}

	if _, err := b.client.OpenViewContext(ctx, triggerID, incident.NewModalView(cc)); err != nil {
		return &ModalOpenFailedError{Reason: slackReason(err), Err: err}
	}

	slog.DebugContext(ctx, "opened incident modal", "channel_id", cc.ChannelID)
	return nil
}

func (b *Integration) SendMessage(ctx context.Context, channel, text string, blocks ...slack.Block) error {
	opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
	if len(blocks) > 0 {
		opts = append(opts, slack.MsgOptionBlocks(blocks...))
	}

	if _, _, err := b.client.PostMessageContext(ctx, channel, opts...); err != nil {
		return fmt.Errorf("posting message to %s: %w", channel, err)
	}

	return nil
}

// SendResponse posts an ephemeral reply to a slash command response_url.
func (b *Integration) SendResponse(ctx context.Context, responseURL, text string) error {
	_, _, err := b.client.PostMessageContext(ctx, "",
		slack.MsgOptionText(text, false),
		slack.MsgOptionResponseURL(responseURL, slack.ResponseTypeEphemeral),
	)
	if err != nil {
		return fmt.Errorf("posting to response_url: %w", err)
	}

	return nil
}

func slackReason(err error) string {
	var slackErr slack.SlackErrorResponse
	if errors.As(err, &slackErr) && slackErr.Err != "" {
		return slackErr.Err
	}
	return err.Error()
}
