package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordBackend posts notifications to a single Discord channel using a
// bot token.
type DiscordBackend struct {
	session   *discordgo.Session
	channelID string
}

// NewDiscordBackend constructs a backend authenticated with a bot token,
// posting to channelID.
func NewDiscordBackend(botToken, channelID string) (*DiscordBackend, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &DiscordBackend{session: session, channelID: channelID}, nil
}

// Notify implements Backend.
func (d *DiscordBackend) Notify(ctx context.Context, e Event) error {
	msg := fmt.Sprintf("**[%s] %s**\n%s", e.Severity, e.Title, e.Detail)
	if e.Server != "" {
		msg = fmt.Sprintf("%s\nserver: `%s`", msg, e.Server)
	}
	_, err := d.session.ChannelMessageSend(d.channelID, msg)
	if err != nil {
		return fmt.Errorf("notify: discord send: %w", err)
	}
	return nil
}
