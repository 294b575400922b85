// Package telegram connects the bot to Telegram via the Bot API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/nextlevelbuilder/paywallbot/internal/bus"
	"github.com/nextlevelbuilder/paywallbot/internal/channels"
	"github.com/nextlevelbuilder/paywallbot/internal/config"
)

const ChannelName = "telegram"

// Channel connects to Telegram via the Bot API using long polling.
type Channel struct {
	*channels.BaseChannel
	bot        *telego.Bot
	pollCancel context.CancelFunc // cancels the long polling context
	pollDone   chan struct{}      // closed when polling goroutine exits
}

// New creates a new Telegram channel from config.
func New(cfg config.TelegramConfig, router bus.MessageRouter) (*Channel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel(ChannelName, router),
		bot:         bot,
	}, nil
}

// Start begins long polling for Telegram updates.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("starting telegram bot (polling mode)")

	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}

	c.SetSelfName(c.bot.Username())
	c.SetRunning(true)
	slog.Info("telegram bot connected", "username", c.bot.Username())

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					slog.Info("telegram updates channel closed")
					return
				}
				c.handleUpdate(update)
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits for the polling goroutine to exit.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping telegram bot")
	c.SetRunning(false)

	if c.pollCancel != nil {
		c.pollCancel()
	}
	if c.pollDone != nil {
		select {
		case <-c.pollDone:
			slog.Info("telegram bot stopped")
		case <-time.After(10 * time.Second):
			slog.Warn("telegram polling goroutine did not exit within timeout")
		}
	}
	return nil
}

// Send posts a message to a chat.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	return c.sendText(ctx, msg.ChatID, msg.Content)
}

// SendDirect messages a user in their private chat with the bot. Telegram
// rejects this until the user has started a conversation with the bot.
func (c *Channel) SendDirect(ctx context.Context, userID, content string) error {
	return c.sendText(ctx, userID, content)
}

func (c *Channel) sendText(ctx context.Context, chatIDStr, text string) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", chatIDStr, err)
	}
	if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

func (c *Channel) handleUpdate(update telego.Update) {
	in, ok := inboundFromMessage(update.Message)
	if !ok {
		slog.Debug("telegram update skipped", "update_id", update.UpdateID)
		return
	}

	slog.Debug("telegram message received",
		"chat_id", in.ChatID,
		"username", in.SenderName,
		"preview", channels.Truncate(in.Content, 50),
	)
	c.HandleMessage(in.MessageID, in.ChatID, in.SenderID, in.SenderName, in.Content, in.Metadata)
}

// inboundFromMessage maps a Telegram message to an inbound event. Message ids
// are only unique per chat, so the chat id is folded in.
func inboundFromMessage(msg *telego.Message) (bus.InboundMessage, bool) {
	if msg == nil || msg.From == nil || msg.Text == "" {
		return bus.InboundMessage{}, false
	}

	name := msg.From.Username
	if name == "" {
		name = msg.From.FirstName
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	return bus.InboundMessage{
		Channel:    ChannelName,
		MessageID:  fmt.Sprintf("%s:%d", chatID, msg.MessageID),
		ChatID:     chatID,
		SenderID:   strconv.FormatInt(msg.From.ID, 10),
		SenderName: name,
		Content:    msg.Text,
		Metadata:   map[string]string{"chat_type": msg.Chat.Type},
	}, true
}
