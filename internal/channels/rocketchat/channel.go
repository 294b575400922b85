// Package rocketchat connects the bot to a Rocket.Chat server over the
// realtime (DDP) websocket API.
package rocketchat

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nextlevelbuilder/paywallbot/internal/bus"
	"github.com/nextlevelbuilder/paywallbot/internal/channels"
	"github.com/nextlevelbuilder/paywallbot/internal/config"
	"github.com/nextlevelbuilder/paywallbot/pkg/protocol"
)

const (
	ChannelName = "rocketchat"

	minBackoff = time.Second
	maxBackoff = 60 * time.Second
)

// Channel is a Rocket.Chat session: one websocket, logged in as the bot
// user, subscribed to every room the bot belongs to.
type Channel struct {
	*channels.BaseChannel
	cfg        config.RocketChatConfig
	wsURL      string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu       sync.RWMutex
	client   *ddpClient
	dmRooms  map[string]string // username → direct room id
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopping bool

	// Inbound events are queued so the socket reader never blocks on the bus.
	inboxMu sync.Mutex
	inbox   []roomMessage
	wake    chan struct{}
}

// New creates a Rocket.Chat channel from config.
func New(cfg config.RocketChatConfig, router bus.MessageRouter) (*Channel, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("rocketchat url is required")
	}
	if cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("rocketchat user and password are required")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = config.Duration(config.DefaultConnectTimeout)
	}
	if cfg.SendRate <= 0 {
		cfg.SendRate = config.DefaultSendRate
	}
	if cfg.SendBurst <= 0 {
		cfg.SendBurst = config.DefaultSendBurst
	}

	var httpClient *http.Client
	if cfg.InsecureSkipVerify {
		httpClient = &http.Client{Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}}
	}

	c := &Channel{
		BaseChannel: channels.NewBaseChannel(ChannelName, router),
		cfg:         cfg,
		wsURL:       websocketURL(cfg.URL, cfg.UseSSL),
		httpClient:  httpClient,
		limiter:     rate.NewLimiter(rate.Limit(cfg.SendRate), cfg.SendBurst),
		dmRooms:     make(map[string]string),
		wake:        make(chan struct{}, 1),
	}
	c.SetSelfName(cfg.User)
	return c, nil
}

// Start connects, logs in, joins the configured rooms and subscribes to
// messages. Failure here is returned to the caller; later disconnects are
// retried in the background.
func (c *Channel) Start(ctx context.Context) error {
	slog.Info("connecting to rocketchat", "url", c.wsURL, "user", c.cfg.User, "rooms", len(c.cfg.Rooms))

	client, err := c.connect(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.stopping = false
	c.mu.Unlock()

	c.wg.Add(2)
	go c.supervise(runCtx, client)
	go c.pump(runCtx)
	return nil
}

// Stop disconnects and stops reconnecting.
func (c *Channel) Stop(_ context.Context) error {
	slog.Info("stopping rocketchat channel")

	c.mu.Lock()
	c.stopping = true
	cancel := c.cancel
	client := c.client
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if client != nil {
		client.Close()
	}
	c.wg.Wait()
	c.SetRunning(false)
	return nil
}

// Send posts msg.Content to the room msg.ChatID.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if msg.ChatID == "" {
		return fmt.Errorf("empty room id for rocketchat send")
	}
	return c.sendMessage(ctx, msg.ChatID, msg.Content)
}

// SendDirect opens (or reuses) the direct room with username and posts content.
func (c *Channel) SendDirect(ctx context.Context, username, content string) error {
	rid, err := c.directRoom(ctx, username)
	if err != nil {
		return err
	}
	return c.sendMessage(ctx, rid, content)
}

func (c *Channel) directRoom(ctx context.Context, username string) (string, error) {
	c.mu.RLock()
	rid, ok := c.dmRooms[username]
	c.mu.RUnlock()
	if ok {
		return rid, nil
	}

	client, err := c.activeClient()
	if err != nil {
		return "", err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	raw, err := client.Call(ctx, protocol.MethodCreateDirectMessage, username)
	if err != nil {
		return "", err
	}
	var room struct {
		RID string `json:"rid"`
	}
	if err := json.Unmarshal(raw, &room); err != nil || room.RID == "" {
		return "", fmt.Errorf("rocketchat: no direct room for %s", username)
	}

	c.mu.Lock()
	c.dmRooms[username] = room.RID
	c.mu.Unlock()
	return room.RID, nil
}

func (c *Channel) sendMessage(ctx context.Context, rid, text string) error {
	client, err := c.activeClient()
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err = client.Call(ctx, protocol.MethodSendMessage, map[string]string{
		"_id": uuid.NewString(),
		"rid": rid,
		"msg": text,
	})
	return err
}

func (c *Channel) activeClient() (*ddpClient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.client == nil || !c.IsRunning() {
		return nil, fmt.Errorf("rocketchat not connected")
	}
	return c.client, nil
}

// connect runs the full session setup within the configured timeout.
func (c *Channel) connect(ctx context.Context) (*ddpClient, error) {
	cctx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout.Std())
	defer cancel()

	client, err := dialDDP(cctx, c.wsURL, c.httpClient, c.handleChanged)
	if err != nil {
		return nil, err
	}

	if _, err := client.Call(cctx, protocol.MethodLogin, loginParams(c.cfg.User, c.cfg.Password)); err != nil {
		client.Close()
		return nil, err
	}

	if err := client.Subscribe(cctx, protocol.StreamRoomMessages, protocol.MyMessagesEvent, false); err != nil {
		client.Close()
		return nil, err
	}

	for _, room := range c.cfg.Rooms {
		if err := joinRoom(cctx, client, room); err != nil {
			client.Close()
			return nil, err
		}
		slog.Info("joined rocketchat room", "room", room)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	c.SetRunning(true)
	slog.Info("rocketchat connected", "user", c.cfg.User)
	return client, nil
}

func joinRoom(ctx context.Context, client *ddpClient, room string) error {
	raw, err := client.Call(ctx, protocol.MethodGetRoomIDByNameOrID, room)
	if err != nil {
		return err
	}
	var rid string
	if err := json.Unmarshal(raw, &rid); err != nil || rid == "" {
		return fmt.Errorf("rocketchat: room %q not found", room)
	}
	_, err = client.Call(ctx, protocol.MethodJoinRoom, rid)
	return err
}

// supervise reconnects with exponential backoff whenever the session drops.
func (c *Channel) supervise(ctx context.Context, client *ddpClient) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			client.Close()
			return
		case <-client.Done():
		}

		c.SetRunning(false)
		if c.isStopping() {
			return
		}
		slog.Warn("rocketchat connection lost", "error", client.err())

		backoff := minBackoff
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			next, err := c.connect(ctx)
			if err == nil {
				client = next
				break
			}
			backoff = nextBackoff(backoff)
			slog.Warn("rocketchat reconnect failed", "error", err, "retry_in", backoff)
		}
	}
}

func (c *Channel) isStopping() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stopping
}

func nextBackoff(d time.Duration) time.Duration {
	return min(d*2, maxBackoff)
}

// handleChanged turns stream-room-messages events into inbound messages.
func (c *Channel) handleChanged(collection string, fields json.RawMessage) {
	if collection != protocol.StreamRoomMessages {
		return
	}
	msg, ok, err := parseRoomMessage(fields)
	if err != nil {
		slog.Debug("rocketchat: bad room message event", "error", err)
		return
	}
	if !ok {
		return
	}

	slog.Debug("rocketchat message received",
		"message_id", msg.ID,
		"room_id", msg.RoomID,
		"username", msg.User.Username,
		"preview", channels.Truncate(msg.Text, 50),
	)

	c.inboxMu.Lock()
	c.inbox = append(c.inbox, msg)
	c.inboxMu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// pump forwards queued events to the bus in arrival order.
func (c *Channel) pump(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}

		c.inboxMu.Lock()
		batch := c.inbox
		c.inbox = nil
		c.inboxMu.Unlock()

		for _, msg := range batch {
			c.HandleMessage(msg.ID, msg.RoomID, msg.User.Username, msg.User.Username, msg.Text, map[string]string{
				"user_id": msg.User.ID,
			})
		}
	}
}

type roomMessage struct {
	ID     string `json:"_id"`
	RoomID string `json:"rid"`
	Text   string `json:"msg"`
	Type   string `json:"t,omitempty"` // set for system messages (joins, topic changes)
	User   struct {
		ID       string `json:"_id"`
		Username string `json:"username"`
	} `json:"u"`
}

var errNoArgs = errors.New("event has no args")

// parseRoomMessage decodes the first arg of a stream event. ok is false for
// system messages, which are not user content.
func parseRoomMessage(fields json.RawMessage) (roomMessage, bool, error) {
	var sf protocol.StreamFields
	if err := json.Unmarshal(fields, &sf); err != nil {
		return roomMessage{}, false, err
	}
	if len(sf.Args) == 0 {
		return roomMessage{}, false, errNoArgs
	}
	var msg roomMessage
	if err := json.Unmarshal(sf.Args[0], &msg); err != nil {
		return roomMessage{}, false, err
	}
	if msg.Type != "" {
		return msg, false, nil
	}
	return msg, true, nil
}

// loginParams builds the DDP login payload with a sha-256 password digest.
func loginParams(username, password string) map[string]any {
	sum := sha256.Sum256([]byte(password))
	return map[string]any{
		"user": map[string]string{"username": username},
		"password": map[string]string{
			"digest":    hex.EncodeToString(sum[:]),
			"algorithm": "sha-256",
		},
	}
}

// websocketURL maps a configured server address to its realtime endpoint.
// A scheme in the address is ignored; useSSL alone selects ws or wss.
func websocketURL(host string, useSSL bool) string {
	h := strings.TrimRight(strings.TrimSpace(host), "/")
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	scheme := "ws"
	if useSSL {
		scheme = "wss"
	}
	return scheme + "://" + h + "/websocket"
}
