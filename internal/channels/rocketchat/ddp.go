package rocketchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/paywallbot/pkg/protocol"
)

// ErrClosed is returned for calls on a connection that has gone away.
var ErrClosed = errors.New("rocketchat: connection closed")

const readLimit = 4 << 20 // 4MB

// ChangedFunc receives collection "changed" events in arrival order.
type ChangedFunc func(collection string, fields json.RawMessage)

type callResult struct {
	result json.RawMessage
	err    error
}

// ddpClient is a minimal DDP client over coder/websocket. A single reader
// goroutine owns the socket reads; writes are serialized by writeMu.
type ddpClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu        sync.Mutex
	pending   map[string]chan callResult
	connected chan error
	onChanged ChangedFunc

	done    chan struct{}
	doneErr error
}

// dialDDP opens the websocket, performs the DDP connect handshake and starts
// the reader. The handshake is bounded by ctx.
func dialDDP(ctx context.Context, wsURL string, httpClient *http.Client, onChanged ChangedFunc) (*ddpClient, error) {
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: httpClient})
	if err != nil {
		return nil, fmt.Errorf("rocketchat: ws dial: %w", err)
	}
	conn.SetReadLimit(readLimit)

	c := &ddpClient{
		conn:      conn,
		pending:   make(map[string]chan callResult),
		connected: make(chan error, 1),
		onChanged: onChanged,
		done:      make(chan struct{}),
	}
	// The reader must outlive the dial context.
	go c.readLoop(context.WithoutCancel(ctx))

	connect := protocol.Frame{
		Msg:     protocol.MsgConnect,
		Version: protocol.ProtocolVersion,
		Support: []string{protocol.ProtocolVersion},
	}
	if err := c.write(ctx, connect); err != nil {
		c.Close()
		return nil, err
	}

	select {
	case err := <-c.connected:
		if err != nil {
			c.Close()
			return nil, err
		}
	case <-c.done:
		return nil, c.err()
	case <-ctx.Done():
		c.Close()
		return nil, fmt.Errorf("rocketchat: ddp connect: %w", ctx.Err())
	}
	return c, nil
}

// Call invokes a server method and waits for its result.
func (c *ddpClient) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	id := uuid.NewString()
	res, err := c.roundTrip(ctx, id, protocol.Frame{
		Msg:    protocol.MsgMethod,
		ID:     id,
		Method: method,
		Params: params,
	})
	if err != nil {
		return nil, fmt.Errorf("rocketchat: %s: %w", method, err)
	}
	return res, nil
}

// Subscribe starts a subscription and waits until the server reports it ready.
func (c *ddpClient) Subscribe(ctx context.Context, name string, params ...any) error {
	id := uuid.NewString()
	if _, err := c.roundTrip(ctx, id, protocol.Frame{
		Msg:    protocol.MsgSub,
		ID:     id,
		Name:   name,
		Params: params,
	}); err != nil {
		return fmt.Errorf("rocketchat: subscribe %s: %w", name, err)
	}
	return nil
}

func (c *ddpClient) roundTrip(ctx context.Context, id string, frame protocol.Frame) (json.RawMessage, error) {
	ch := make(chan callResult, 1)

	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return nil, c.err()
	default:
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(ctx, frame); err != nil {
		return nil, err
	}

	select {
	case res := <-ch:
		return res.result, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the connection is lost.
func (c *ddpClient) Done() <-chan struct{} { return c.done }

func (c *ddpClient) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doneErr != nil {
		return c.doneErr
	}
	return ErrClosed
}

// Close sends a normal close frame; the reader then shuts down.
func (c *ddpClient) Close() {
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (c *ddpClient) write(ctx context.Context, frame protocol.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("rocketchat: encode %s: %w", frame.Msg, err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("rocketchat: ws write: %w", err)
	}
	return nil
}

func (c *ddpClient) readLoop(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			c.shutdown(err)
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			slog.Debug("rocketchat: undecodable frame", "error", err)
			continue
		}
		c.dispatch(ctx, frame)
	}
}

func (c *ddpClient) dispatch(ctx context.Context, frame protocol.Frame) {
	switch frame.Msg {
	case protocol.MsgPing:
		if err := c.write(ctx, protocol.Frame{Msg: protocol.MsgPong, ID: frame.ID}); err != nil {
			slog.Warn("rocketchat: pong failed", "error", err)
		}
	case protocol.MsgConnected:
		slog.Debug("rocketchat: ddp session established", "session", frame.Session)
		c.signalConnected(nil)
	case protocol.MsgFailed:
		c.signalConnected(fmt.Errorf("rocketchat: server rejected ddp version %q", frame.Version))
	case protocol.MsgResult:
		res := callResult{result: frame.Result}
		if frame.Error != nil {
			res.err = frame.Error
		}
		c.resolve(frame.ID, res)
	case protocol.MsgReady:
		for _, id := range frame.Subs {
			c.resolve(id, callResult{})
		}
	case protocol.MsgNoSub:
		err := error(ErrClosed)
		if frame.Error != nil {
			err = frame.Error
		}
		c.resolve(frame.ID, callResult{err: err})
	case protocol.MsgChanged:
		if c.onChanged != nil {
			c.onChanged(frame.Collection, frame.Fields)
		}
	case protocol.MsgError:
		slog.Warn("rocketchat: ddp error", "reason", frame.Reason)
	}
}

func (c *ddpClient) signalConnected(err error) {
	select {
	case c.connected <- err:
	default:
	}
}

func (c *ddpClient) resolve(id string, res callResult) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- res:
	default:
	}
}

func (c *ddpClient) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		c.doneErr = ErrClosed
	} else {
		c.doneErr = fmt.Errorf("%w: %w", ErrClosed, err)
	}
	close(c.done)
	for id, ch := range c.pending {
		select {
		case ch <- callResult{err: c.doneErr}:
		default:
		}
		delete(c.pending, id)
	}
}
