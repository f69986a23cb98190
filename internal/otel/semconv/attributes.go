// Standardized attribute keys and values for use in all OpenTelemetry signals
// Before adding a new attribute, first check to see if an attribute is already defined
// in the OpenTelemetry spec (https://opentelemetry.io/docs/specs/semconv/)
package semconv

import "go.opentelemetry.io/otel/attribute"

const (
	// Slack-specific attributes
	SlackChannelIDKey   = attribute.Key("slack.channel.id")
	SlackUserKey        = attribute.Key("slack.user")
	SlackCallbackIDKey  = attribute.Key("slack.callback_id")
	SlackInteractionKey = attribute.Key("slack.interaction.type")

	// Alert backend attributes
	AlertAliasKey      = attribute.Key("alert.alias")
	AlertIDKey         = attribute.Key("alert.id")
	AlertPriorityKey   = attribute.Key("alert.priority")
	AlertRequestIDKey  = attribute.Key("alert.request_id")
	AlertReconciledKey = attribute.Key("alert.reconciled")
	AlertAttemptsKey   = attribute.Key("alert.reconcile.attempts")

	// Application-specific attributes
	ForceTraceKey    = attribute.Key("force_trace")
	WorkflowStateKey = attribute.Key("incident.workflow.state")
)
