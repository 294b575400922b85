// Package bot runs the per-event pipeline: self filter, dedup, command
// dispatch or URL rewriting, then replies with a direct-message fallback.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/nextlevelbuilder/paywallbot/internal/bus"
	"github.com/nextlevelbuilder/paywallbot/internal/commands"
	"github.com/nextlevelbuilder/paywallbot/internal/dedup"
	"github.com/nextlevelbuilder/paywallbot/internal/metrics"
	"github.com/nextlevelbuilder/paywallbot/internal/rewrite"
)

// Sender delivers replies through the channel an event came from.
// *channels.Manager satisfies it.
type Sender interface {
	SendToChannel(ctx context.Context, channel, chatID, content string) error
	SendDirect(ctx context.Context, channel, userID, content string) error
	SelfName(channel string) string
}

// Dispatcher runs chat commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) (commands.Reply, bool)
}

// Rewriter rewrites URLs in message text.
type Rewriter interface {
	Rewrite(text string) rewrite.Result
}

// Options carries optional collaborators. Zero values disable them.
type Options struct {
	Metrics *metrics.Metrics
	Tracer  trace.Tracer

	// DomainCount reports the effective list size after each command.
	DomainCount func() int
}

// Bot handles inbound events one at a time.
type Bot struct {
	sender      Sender
	dispatcher  Dispatcher
	rewriter    Rewriter
	guard       *dedup.Guard
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	domainCount func() int
}

func New(sender Sender, dispatcher Dispatcher, rewriter Rewriter, guard *dedup.Guard, opts Options) *Bot {
	tracer := opts.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}
	if guard == nil {
		guard = dedup.New(dedup.DefaultCapacity)
	}
	return &Bot{
		sender:      sender,
		dispatcher:  dispatcher,
		rewriter:    rewriter,
		guard:       guard,
		metrics:     opts.Metrics,
		tracer:      tracer,
		domainCount: opts.DomainCount,
	}
}

// Run consumes the bus until ctx is done or the bus is closed. Events are
// handled sequentially, so registry mutations never interleave.
func (b *Bot) Run(ctx context.Context, router bus.MessageRouter) error {
	slog.Info("bot consumer started")
	for {
		msg, ok := router.ConsumeInbound(ctx)
		if !ok {
			slog.Info("bot consumer stopped")
			return nil
		}
		b.Handle(ctx, msg)
	}
}

// Handle processes one inbound event and returns its outcome label.
func (b *Bot) Handle(ctx context.Context, msg bus.InboundMessage) string {
	start := time.Now()
	ctx, span := b.tracer.Start(ctx, "bot.handle", trace.WithAttributes(
		attribute.String("channel", msg.Channel),
		attribute.String("room_id", msg.ChatID),
	))
	defer span.End()

	outcome := b.handle(ctx, msg, span)

	span.SetAttributes(attribute.String("outcome", outcome))
	b.metrics.IncrementEvent(outcome)
	b.metrics.ObserveHandleLatency(time.Since(start))
	return outcome
}

func (b *Bot) handle(ctx context.Context, msg bus.InboundMessage, span trace.Span) string {
	if msg.SenderName == "" || strings.EqualFold(msg.SenderName, b.sender.SelfName(msg.Channel)) {
		return metrics.OutcomeIgnored
	}

	if msg.MessageID != "" && !b.guard.Admit(msg.Channel+":"+msg.MessageID) {
		slog.Debug("duplicate event dropped", "channel", msg.Channel, "message_id", msg.MessageID)
		return metrics.OutcomeDuplicate
	}

	if reply, handled := b.dispatcher.Dispatch(ctx, msg.Content); handled {
		b.metrics.IncrementCommand(reply.Command, reply.OK)
		if b.domainCount != nil {
			b.metrics.SetEffectiveDomains(b.domainCount())
		}
		b.replyToCommand(ctx, msg, reply)
		return metrics.OutcomeCommand
	}

	res := b.rewriter.Rewrite(msg.Content)
	if !res.Changed {
		return metrics.OutcomeUntouched
	}

	var social, paywall int
	for _, rep := range res.Replacements {
		if rep.Class == rewrite.SocialMirror {
			social++
		} else {
			paywall++
		}
		slog.Info("replaced "+rep.Class.String()+" url", "from", rep.Original, "to", rep.Rewritten)
	}
	b.metrics.AddRewrites(rewrite.SocialMirror.String(), social)
	b.metrics.AddRewrites(rewrite.Paywall.String(), paywall)

	text := fmt.Sprintf("@%s shared: %s", msg.SenderName, res.Text)
	if err := b.sender.SendToChannel(ctx, msg.Channel, msg.ChatID, text); err != nil {
		slog.Error("failed to send rewritten message", "channel", msg.Channel, "room_id", msg.ChatID, "error", err)
		b.metrics.IncrementSendFailure("room")
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
	}
	return metrics.OutcomeRewritten
}

// replyToCommand sends the private acknowledgment and, for list changes,
// the public announcement.
func (b *Bot) replyToCommand(ctx context.Context, msg bus.InboundMessage, reply commands.Reply) {
	b.sendPrivate(ctx, msg, reply.Text)

	if !reply.Announce {
		return
	}
	text := fmt.Sprintf("%s (requested by @%s)", reply.Text, msg.SenderName)
	if err := b.sender.SendToChannel(ctx, msg.Channel, msg.ChatID, text); err != nil {
		slog.Error("failed to announce command result", "channel", msg.Channel, "room_id", msg.ChatID, "error", err)
		b.metrics.IncrementSendFailure("room")
	}
}

// sendPrivate DMs the requester. If that fails, a single mention is posted
// to the originating room; its failure is only logged.
func (b *Bot) sendPrivate(ctx context.Context, msg bus.InboundMessage, text string) {
	err := b.sender.SendDirect(ctx, msg.Channel, msg.SenderID, text)
	if err == nil {
		slog.Debug("sent direct message", "channel", msg.Channel, "username", msg.SenderName)
		return
	}
	slog.Warn("failed to send direct message", "channel", msg.Channel, "username", msg.SenderName, "error", err)
	b.metrics.IncrementSendFailure("direct")

	fallback := fmt.Sprintf("@%s I tried to DM you but couldn't. Please check your DM settings.", msg.SenderName)
	if err := b.sender.SendToChannel(ctx, msg.Channel, msg.ChatID, fallback); err != nil {
		slog.Error("failed to send fallback message", "channel", msg.Channel, "room_id", msg.ChatID, "error", err)
		b.metrics.IncrementSendFailure("fallback")
	}
}
