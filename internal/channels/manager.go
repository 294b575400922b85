package channels

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/nextlevelbuilder/paywallbot/internal/bus"
)

// Manager manages all registered channels, handling their lifecycle
// and routing outbound messages to the correct channel.
type Manager struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewManager creates a new channel manager.
// Channels are registered externally via RegisterChannel.
func NewManager() *Manager {
	return &Manager{channels: make(map[string]Channel)}
}

// RegisterChannel adds a channel to the manager.
func (m *Manager) RegisterChannel(channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[channel.Name()] = channel
}

// GetChannel returns a channel by name.
func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

// GetEnabledChannels returns the names of all registered channels, sorted.
func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetStatus returns the running state of every channel.
func (m *Manager) GetStatus() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := make(map[string]bool, len(m.channels))
	for name, channel := range m.channels {
		status[name] = channel.IsRunning()
	}
	return status
}

// StartAll starts every registered channel. The first failure is returned;
// channels started before it are left running for the caller to stop.
func (m *Manager) StartAll(ctx context.Context) error {
	if len(m.GetEnabledChannels()) == 0 {
		return fmt.Errorf("no channels enabled")
	}

	for _, name := range m.GetEnabledChannels() {
		channel, _ := m.GetChannel(name)
		slog.Info("starting channel", "channel", name)
		if err := channel.Start(ctx); err != nil {
			return fmt.Errorf("start channel %s: %w", name, err)
		}
	}

	slog.Info("all channels started")
	return nil
}

// StopAll gracefully stops all channels.
func (m *Manager) StopAll(ctx context.Context) {
	slog.Info("stopping all channels")

	for _, name := range m.GetEnabledChannels() {
		channel, _ := m.GetChannel(name)
		if !channel.IsRunning() {
			continue
		}
		if err := channel.Stop(ctx); err != nil {
			slog.Error("error stopping channel", "channel", name, "error", err)
		}
	}
}

// SendToChannel posts content to a room of the named channel.
func (m *Manager) SendToChannel(ctx context.Context, channelName, chatID, content string) error {
	channel, ok := m.GetChannel(channelName)
	if !ok {
		return fmt.Errorf("channel %s not found", channelName)
	}
	return channel.Send(ctx, bus.OutboundMessage{
		Channel: channelName,
		ChatID:  chatID,
		Content: content,
	})
}

// SendDirect sends a private message through the named channel.
func (m *Manager) SendDirect(ctx context.Context, channelName, userID, content string) error {
	channel, ok := m.GetChannel(channelName)
	if !ok {
		return fmt.Errorf("channel %s not found", channelName)
	}
	return channel.SendDirect(ctx, userID, content)
}

// SelfName returns the bot handle on the named channel.
func (m *Manager) SelfName(channelName string) string {
	channel, ok := m.GetChannel(channelName)
	if !ok {
		return ""
	}
	return channel.SelfName()
}
