// Package channels provides the chat-platform abstraction for the bot.
// Each channel connects to one platform (Rocket.Chat, Telegram, Discord),
// publishes inbound messages to the bus and exposes room and direct sends.
package channels

import (
	"context"
	"sync/atomic"

	"github.com/mattn/go-runewidth"

	"github.com/nextlevelbuilder/paywallbot/internal/bus"
)

// Channel defines the interface that all channel implementations must satisfy.
type Channel interface {
	// Name returns the channel identifier (e.g., "rocketchat", "telegram").
	Name() string

	// Start connects and begins listening for messages. Non-blocking after setup.
	Start(ctx context.Context) error

	// Stop disconnects from the platform.
	Stop(ctx context.Context) error

	// Send posts a message to a room.
	Send(ctx context.Context, msg bus.OutboundMessage) error

	// SendDirect sends a private message to a user, addressed by the
	// SenderID the channel put on inbound messages.
	SendDirect(ctx context.Context, userID, content string) error

	// SelfName returns the bot's own handle on the platform ("" before Start).
	SelfName() string

	// IsRunning returns whether the channel is connected.
	IsRunning() bool
}

// BaseChannel provides shared functionality for all channel implementations.
// Channel implementations should embed this struct.
type BaseChannel struct {
	name     string
	bus      bus.MessageRouter
	running  atomic.Bool
	selfName atomic.Value // string
}

// NewBaseChannel creates a new BaseChannel with the given parameters.
func NewBaseChannel(name string, router bus.MessageRouter) *BaseChannel {
	c := &BaseChannel{name: name, bus: router}
	c.selfName.Store("")
	return c
}

// Name returns the channel name.
func (c *BaseChannel) Name() string { return c.name }

// IsRunning returns whether the channel is running.
func (c *BaseChannel) IsRunning() bool { return c.running.Load() }

// SetRunning updates the running state.
func (c *BaseChannel) SetRunning(running bool) { c.running.Store(running) }

// SelfName returns the bot identity recorded at login.
func (c *BaseChannel) SelfName() string { return c.selfName.Load().(string) }

// SetSelfName records the bot identity.
func (c *BaseChannel) SetSelfName(name string) { c.selfName.Store(name) }

// HandleMessage publishes an inbound message to the bus.
// This is the standard way for channels to forward received messages.
func (c *BaseChannel) HandleMessage(messageID, chatID, senderID, senderName, content string, metadata map[string]string) {
	c.bus.PublishInbound(bus.InboundMessage{
		Channel:    c.name,
		MessageID:  messageID,
		ChatID:     chatID,
		SenderID:   senderID,
		SenderName: senderName,
		Content:    content,
		Metadata:   metadata,
	})
}

// Truncate shortens s to maxWidth display columns, appending "..." if truncated.
func Truncate(s string, maxWidth int) string {
	return runewidth.Truncate(s, maxWidth, "...")
}
