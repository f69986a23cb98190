package incident

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-playground/validator/v10"
	"github.com/slack-go/slack"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dynoinc/incidentbridge/internal/otel/semconv"
)

type State string

const (
	// slash command path
	StateReceived     State = "received"
	StateAcknowledged State = "acknowledged"
	StateModalOpened  State = "modal_opened"
	StateModalFailed  State = "modal_failed"

	// modal submission path
	StateSubmissionReceived State = "submission_received"
	StateValidated          State = "validated"
	StateAlertCreated       State = "alert_created"
	StateNotified           State = "notified"
	StateFailed             State = "failed"
	StateRejected           State = "rejected"
	StateIgnored            State = "ignored"
)

const (
	titleRequiredMessage = "Title is required"

	successText     = "Incident created successfully!"
	failureText     = "Failed to create incident. Please try again."
	rateLimitedText = "OpsGenie is rate limiting requests right now. Please wait a minute and try again."
	modalFailedText = "Sorry, something went wrong while opening the incident form. Please try again."
)

// Outcome is the result of handling a modal submission. A nil Response means
// the caller should answer with an empty 200.
type Outcome struct {
	State    State
	Response *slack.ViewSubmissionResponse
}

type Workflow struct {
	alerts   AlertGateway
	notifier Notifier
	defaults AlertDefaults

	validate *validator.Validate
	tracer   trace.Tracer

	// ModalTimeout bounds the background modal open after a slash command is acknowledged.
	ModalTimeout time.Duration

	wg sync.WaitGroup
}

func NewWorkflow(alerts AlertGateway, notifier Notifier, defaults AlertDefaults) *Workflow {
	return &Workflow{
		alerts:       alerts,
		notifier:     notifier,
		defaults:     defaults,
		validate:     validator.New(),
		tracer:       otel.Tracer("github.com/dynoinc/incidentbridge/internal/incident"),
		ModalTimeout: 10 * time.Second,
	}
}

// Wait blocks until all background modal opens have finished.
func (w *Workflow) Wait() {
	w.wg.Wait()
}

// StartSlashCommand validates the command and opens the modal in the background.
// The caller acknowledges the HTTP request as soon as this returns.
func (w *Workflow) StartSlashCommand(ctx context.Context, cmd slack.SlashCommand) (State, error) {
	if strings.TrimSpace(cmd.TriggerID) == "" {
		slog.WarnContext(ctx, "slash command without trigger_id", "channel_id", cmd.ChannelID, "user_id", cmd.UserID)
		return StateReceived, ErrMissingTrigger
	}

	slog.InfoContext(ctx, "received slash command",
		"command", cmd.Command,
		"user_id", cmd.UserID,
		"channel_id", cmd.ChannelID,
		"trigger_id", cmd.TriggerID,
	)

	cc := ChannelContext{
		ChannelID:   cmd.ChannelID,
		ChannelName: cmd.ChannelName,
		TeamDomain:  cmd.TeamDomain,
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.ModalTimeout)
		defer cancel()

		w.openModal(bgCtx, cmd.TriggerID, cmd.ResponseURL, cc)
	}()

	return StateAcknowledged, nil
}

func (w *Workflow) openModal(ctx context.Context, triggerID, responseURL string, cc ChannelContext) (state State) {
	ctx, span := w.tracer.Start(ctx, "incident.open_modal", trace.WithAttributes(semconv.SlackChannelIDKey.String(cc.ChannelID)))
	defer func() {
		span.SetAttributes(semconv.WorkflowStateKey.String(string(state)))
		span.End()
	}()
	defer func() {
		if r := recover(); r != nil {
			recoverPanic(ctx, r)
			state = StateModalFailed
		}
	}()

	if err := w.notifier.OpenModal(ctx, triggerID, cc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "failed to open modal", "channel_id", cc.ChannelID, "error", err)

		if responseURL == "" {
			return StateModalFailed
		}
		if err := w.notifier.SendResponse(ctx, responseURL, modalFailedText); err != nil {
			slog.ErrorContext(ctx, "failed to send modal failure follow-up", "error", err)
		}
		return StateModalFailed
	}

	return StateModalOpened
}

// HandleSubmission processes a view submission. It never returns an error: expected
// validation failures become inline field errors and everything else closes the modal.
func (w *Workflow) HandleSubmission(ctx context.Context, cb slack.InteractionCallback) (out Outcome) {
	ctx, span := w.tracer.Start(ctx, "incident.handle_submission", trace.WithAttributes(
		semconv.SlackInteractionKey.String(string(cb.Type)),
		semconv.SlackCallbackIDKey.String(cb.View.CallbackID),
		semconv.SlackUserKey.String(cb.User.ID),
	))
	defer func() {
		span.SetAttributes(semconv.WorkflowStateKey.String(string(out.State)))
		span.End()
	}()
	defer func() {
		if r := recover(); r != nil {
			recoverPanic(ctx, r)
			out = Outcome{State: StateFailed, Response: slack.NewClearViewSubmissionResponse()}
		}
	}()

	if cb.Type != slack.InteractionTypeViewSubmission || cb.View.CallbackID != ModalCallbackID {
		slog.DebugContext(ctx, "ignoring interaction", "type", cb.Type, "callback_id", cb.View.CallbackID)
		return Outcome{State: StateIgnored}
	}

	values := ReadFormValues(cb.View)
	req := Request{
		ReporterID:   cb.User.ID,
		ReporterName: cb.User.Name,
		TeamID:       cb.Team.ID,
		TeamDomain:   cb.Team.Domain,
		Channel:      DecodeChannelContext(cb.View.PrivateMetadata),
		Title:        values.Title,
		Description:  values.Description,
		Urgency:      values.Urgency,
	}

	if fieldErrors, err := w.validateRequest(req); len(fieldErrors) > 0 {
		return Outcome{State: StateRejected, Response: slack.NewErrorsViewSubmissionResponse(fieldErrors)}
	} else if err != nil {
		slog.ErrorContext(ctx, "invalid submission", "error", err)
		captureException(ctx, err)
		return Outcome{State: StateFailed, Response: slack.NewClearViewSubmissionResponse()}
	}

	alert := NewAlert(req, w.defaults)
	result, err := w.alerts.CreateAlert(ctx, alert)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "failed to create alert", "user_id", req.ReporterID, "error", err)
		if !errors.Is(err, ErrRateLimited) {
			captureException(ctx, err)
		}

		if err := w.notifier.SendMessage(ctx, req.ReporterID, failureMessage(err)); err != nil {
			slog.ErrorContext(ctx, "failed to send failure message", "user_id", req.ReporterID, "error", err)
		}
		return Outcome{State: StateFailed, Response: slack.NewClearViewSubmissionResponse()}
	}

	slog.InfoContext(ctx, "created alert",
		"alias", result.Alias,
		"id", result.ID,
		"priority", result.Priority,
		"reconciled", result.Reconciled,
	)

	state := StateNotified
	if err := w.notifier.SendMessage(ctx, req.ReporterID, successText, successBlocks(req.Title, result)...); err != nil {
		slog.ErrorContext(ctx, "failed to send success message", "user_id", req.ReporterID, "error", err)
		state = StateAlertCreated
	}

	return Outcome{State: state, Response: slack.NewClearViewSubmissionResponse()}
}

// validateRequest returns modal field errors keyed by block id, or an error for
// problems the user cannot fix in the form.
func (w *Workflow) validateRequest(req Request) (map[string]string, error) {
	err := w.validate.Struct(req)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fieldErrors := map[string]string{}
	for _, fe := range verrs {
		if fe.StructField() == "Title" {
			fieldErrors[TitleBlockID] = titleRequiredMessage
		}
	}
	if len(fieldErrors) > 0 {
		return fieldErrors, nil
	}

	return nil, fmt.Errorf("validating submission: %w", err)
}

func failureMessage(err error) string {
	if errors.Is(err, ErrRateLimited) {
		return rateLimitedText
	}
	return failureText
}

func successBlocks(title string, result *CreationResult) []slack.Block {
	summary := fmt.Sprintf("✅ *%s*\n\n*Title:* %s\n*Priority:* %s\n*ID:* %s",
		successText, title, result.Priority, result.ID)

	blocks := []slack.Block{
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, summary, false, false), nil, nil),
	}
	if result.URL != "" {
		link := fmt.Sprintf("🔗 <%s|View in OpsGenie>", result.URL)
		blocks = append(blocks, slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, link, false, false), nil, nil))
	}

	return blocks
}

func hub(ctx context.Context) *sentry.Hub {
	if h := sentry.GetHubFromContext(ctx); h != nil {
		return h
	}
	return sentry.CurrentHub()
}

func captureException(ctx context.Context, err error) {
	hub(ctx).CaptureException(err)
}

func recoverPanic(ctx context.Context, r any) {
	slog.ErrorContext(ctx, "recovered from panic", "panic", r)
	hub(ctx).RecoverWithContext(ctx, r)
}
