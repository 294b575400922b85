// Package bus carries inbound chat events from channel adapters to the bot.
package bus

import (
	"context"
	"sync"
)

const inboundBufferSize = 128

// MessageBus is a buffered inbound queue. Publishers block when it is full so
// every delivered event reaches the consumer exactly once.
type MessageBus struct {
	inbound chan InboundMessage
	done    chan struct{}
	once    sync.Once
}

// New creates a MessageBus.
func New() *MessageBus {
	return &MessageBus{
		inbound: make(chan InboundMessage, inboundBufferSize),
		done:    make(chan struct{}),
	}
}

// PublishInbound queues msg for the consumer. It is dropped only after Close.
func (b *MessageBus) PublishInbound(msg InboundMessage) {
	select {
	case b.inbound <- msg:
	case <-b.done:
	}
}

// ConsumeInbound waits for the next message. ok is false when ctx is done or
// the bus has been closed.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	case <-ctx.Done():
		return InboundMessage{}, false
	case <-b.done:
		return InboundMessage{}, false
	}
}

// Close releases blocked publishers and consumers.
func (b *MessageBus) Close() {
	b.once.Do(func() { close(b.done) })
}
