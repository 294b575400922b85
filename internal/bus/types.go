package bus

import "context"

// InboundMessage is a chat message received from a channel (Rocket.Chat, Telegram, Discord).
type InboundMessage struct {
	Channel    string            `json:"channel"`
	MessageID  string            `json:"message_id,omitempty"` // platform message id; empty = not deduplicated
	ChatID     string            `json:"chat_id"`              // room the message was posted in
	SenderID   string            `json:"sender_id"`            // address used for direct messages
	SenderName string            `json:"sender_name"`          // handle used in @mentions
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is a message to post to a room of a channel.
type OutboundMessage struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// MessageRouter abstracts inbound routing between channels and the bot.
type MessageRouter interface {
	PublishInbound(msg InboundMessage)
	ConsumeInbound(ctx context.Context) (InboundMessage, bool)
}
