package incident

import (
	"context"

	"github.com/slack-go/slack"
)

//go:generate go tool mockgen -destination=mocks/mocks.go -package=mocks . AlertGateway,Notifier

type AlertGateway interface {
	CreateAlert(ctx context.Context, alert Alert) (*CreationResult, error)
	GetAlert(ctx context.Context, id Identifier) (*Alert, error)
	CloseAlert(ctx context.Context, id Identifier) error
	ValidateConnection(ctx context.Context) error
}

type Notifier interface {
	OpenModal(ctx context.Context, triggerID string, cc ChannelContext) error
	SendMessage(ctx context.Context, channel, text string, blocks ...slack.Block) error
	SendResponse(ctx context.Context, responseURL, text string) error
}
