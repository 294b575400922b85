package channels

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nextlevelbuilder/paywallbot/internal/bus"
)

type fakeChannel struct {
	*BaseChannel
	startErr error
	sent     []bus.OutboundMessage
	direct   []string
	stopped  bool
}

func newFake(name string, startErr error) *fakeChannel {
	return &fakeChannel{BaseChannel: NewBaseChannel(name, bus.New()), startErr: startErr}
}

func (f *fakeChannel) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.SetSelfName(f.Name() + "-bot")
	f.SetRunning(true)
	return nil
}

func (f *fakeChannel) Stop(context.Context) error {
	f.stopped = true
	f.SetRunning(false)
	return nil
}

func (f *fakeChannel) Send(_ context.Context, msg bus.OutboundMessage) error {
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) SendDirect(_ context.Context, userID, content string) error {
	f.direct = append(f.direct, userID+":"+content)
	return nil
}

func TestManager_Routing(t *testing.T) {
	ctx := context.Background()
	rc := newFake("rocketchat", nil)
	tg := newFake("telegram", nil)

	m := NewManager()
	m.RegisterChannel(rc)
	m.RegisterChannel(tg)

	if err := m.StartAll(ctx); err != nil {
		t.Fatalf("StartAll: %v", err)
	}
	if got := m.GetEnabledChannels(); !slices.Equal(got, []string{"rocketchat", "telegram"}) {
		t.Errorf("channels = %v", got)
	}
	if m.SelfName("rocketchat") != "rocketchat-bot" || m.SelfName("nope") != "" {
		t.Errorf("SelfName mismatch")
	}

	if err := m.SendToChannel(ctx, "rocketchat", "GENERAL", "hello"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendDirect(ctx, "telegram", "42", "psst"); err != nil {
		t.Fatal(err)
	}
	if len(rc.sent) != 1 || rc.sent[0].ChatID != "GENERAL" || rc.sent[0].Channel != "rocketchat" {
		t.Errorf("rocketchat sent = %+v", rc.sent)
	}
	if !slices.Equal(tg.direct, []string{"42:psst"}) {
		t.Errorf("telegram direct = %v", tg.direct)
	}
	if err := m.SendToChannel(ctx, "discord", "c1", "x"); err == nil {
		t.Error("expected error for unknown channel")
	}

	status := m.GetStatus()
	if !status["rocketchat"] || !status["telegram"] {
		t.Errorf("status = %v", status)
	}

	m.StopAll(ctx)
	if !rc.stopped || !tg.stopped {
		t.Error("channels should be stopped")
	}
}

func TestManager_StartAllFails(t *testing.T) {
	boom := errors.New("login failed")
	m := NewManager()
	m.RegisterChannel(newFake("rocketchat", boom))

	if err := m.StartAll(context.Background()); !errors.Is(err, boom) {
		t.Errorf("StartAll error = %v, want %v", err, boom)
	}
}

func TestManager_NoChannels(t *testing.T) {
	if err := NewManager().StartAll(context.Background()); err == nil {
		t.Error("expected error with no channels")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello world", 8); got != "hello..." {
		t.Errorf("Truncate = %q", got)
	}
	if got := Truncate("short", 50); got != "short" {
		t.Errorf("Truncate = %q", got)
	}
}
