package gateway

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

const discordMessageLimit = 2000

// DiscordGateway posts to channels over the REST API; it never opens the
// websocket since it only sends.
type DiscordGateway struct {
	Session *discordgo.Session
}

func NewDiscordGateway(token string) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordGateway{Session: s}, nil
}

func (dg *DiscordGateway) Name() string { return "discord" }

func (dg *DiscordGateway) Send(channelID string, text string) error {
	if channelID == "" {
		return fmt.Errorf("invalid channel ID: %q", channelID)
	}
	for _, part := range chunk(text, discordMessageLimit) {
		if _, err := dg.Session.ChannelMessageSend(channelID, part); err != nil {
			return err
		}
	}
	return nil
}
