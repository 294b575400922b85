// Package discord connects the bot to Discord via the gateway API.
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/paywallbot/internal/bus"
	"github.com/nextlevelbuilder/paywallbot/internal/channels"
	"github.com/nextlevelbuilder/paywallbot/internal/config"
)

const (
	ChannelName = "discord"
	maxLen      = 2000
)

// Channel connects to Discord via the Bot API using gateway events.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	botUserID string // populated on start
}

// New creates a new Discord channel from config.
func New(cfg config.DiscordConfig, router bus.MessageRouter) (*Channel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	// Request necessary intents
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel(ChannelName, router),
		session:     session,
	}, nil
}

// Start opens the Discord gateway connection and begins receiving events.
func (c *Channel) Start(_ context.Context) error {
	slog.Info("starting discord bot")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	// Fetch bot identity
	user, err := c.session.User("@me")
	if err != nil {
		c.session.Close()
		return fmt.Errorf("fetch discord bot identity: %w", err)
	}
	c.botUserID = user.ID
	c.SetSelfName(user.Username)

	c.SetRunning(true)
	slog.Info("discord bot connected", "username", user.Username, "id", user.ID)
	return nil
}

// Stop closes the Discord gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping discord bot")
	c.SetRunning(false)
	return c.session.Close()
}

// Send delivers an outbound message to a Discord channel.
func (c *Channel) Send(_ context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("empty chat ID for discord send")
	}
	return c.sendChunked(msg.ChatID, msg.Content)
}

// SendDirect opens the DM channel with userID and posts content.
func (c *Channel) SendDirect(_ context.Context, userID, content string) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}
	dm, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return fmt.Errorf("open discord dm: %w", err)
	}
	return c.sendChunked(dm.ID, content)
}

// sendChunked sends content, splitting into multiple messages if over 2000 bytes.
func (c *Channel) sendChunked(channelID, content string) error {
	for _, chunk := range splitChunks(content, maxLen) {
		if _, err := c.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("send discord message: %w", err)
		}
	}
	return nil
}

// splitChunks cuts content into pieces of at most limit bytes, preferring a
// newline in the second half of each piece.
func splitChunks(content string, limit int) []string {
	var chunks []string
	for len(content) > limit {
		cutAt := limit
		if idx := lastIndexByte(content[:limit], '\n'); idx > limit/2 {
			cutAt = idx + 1
		}
		chunks = append(chunks, content[:cutAt])
		content = content[cutAt:]
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}

func (c *Channel) handleMessage(_ *discordgo.Session, m *discordgo.MessageCreate) {
	in, ok := inboundFromMessage(m, c.botUserID)
	if !ok {
		return
	}

	slog.Debug("discord message received",
		"sender_id", in.SenderID,
		"channel_id", in.ChatID,
		"preview", channels.Truncate(in.Content, 50),
	)
	c.HandleMessage(in.MessageID, in.ChatID, in.SenderID, in.SenderName, in.Content, in.Metadata)
}

// inboundFromMessage maps a gateway message to an inbound event, skipping
// the bot's own messages and other bots.
func inboundFromMessage(m *discordgo.MessageCreate, botUserID string) (bus.InboundMessage, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return bus.InboundMessage{}, false
	}
	if m.Author.ID == botUserID || m.Author.Bot || m.Content == "" {
		return bus.InboundMessage{}, false
	}
	return bus.InboundMessage{
		Channel:    ChannelName,
		MessageID:  m.ID,
		ChatID:     m.ChannelID,
		SenderID:   m.Author.ID,
		SenderName: m.Author.Username,
		Content:    m.Content,
		Metadata: map[string]string{
			"guild_id": m.GuildID,
			"is_dm":    fmt.Sprintf("%t", m.GuildID == ""),
		},
	}, true
}

// lastIndexByte returns the last index of byte c in s, or -1.
func lastIndexByte(s string, c byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == c {
			return i
		}
	}
	return -1
}
