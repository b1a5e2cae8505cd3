package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackBackend posts notifications to a single Slack channel using a bot
// token.
type SlackBackend struct {
	client    *slack.Client
	channelID string
}

// NewSlackBackend constructs a backend authenticated with a bot token,
// posting to channelID.
func NewSlackBackend(botToken, channelID string) *SlackBackend {
	return &SlackBackend{client: slack.New(botToken), channelID: channelID}
}

// Notify implements Backend.
func (s *SlackBackend) Notify(ctx context.Context, e Event) error {
	text := fmt.Sprintf("[%s] %s\n%s", e.Severity, e.Title, e.Detail)
	if e.Server != "" {
		text = fmt.Sprintf("%s\nserver: %s", text, e.Server)
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channelID, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: slack send: %w", err)
	}
	return nil
}
