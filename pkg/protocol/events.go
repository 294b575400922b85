package protocol

import "encoding/json"

// DDP message types pushed from server to client.
const (
	MsgConnected = "connected"
	MsgFailed    = "failed"
	MsgResult    = "result"
	MsgReady     = "ready"
	MsgNoSub     = "nosub"
	MsgChanged   = "changed"
	MsgError     = "error"
)

// Frame is the envelope of every DDP message in both directions.
// Fields are a union over message types; unused ones are omitted.
type Frame struct {
	Msg     string   `json:"msg"`
	ID      string   `json:"id,omitempty"`
	Version string   `json:"version,omitempty"`
	Support []string `json:"support,omitempty"`
	Session string   `json:"session,omitempty"`

	// method / sub
	Method string `json:"method,omitempty"`
	Name   string `json:"name,omitempty"`
	Params []any  `json:"params,omitempty"`

	// result
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`

	// collection events
	Collection string          `json:"collection,omitempty"`
	Fields     json.RawMessage `json:"fields,omitempty"`

	// ready
	Subs []string `json:"subs,omitempty"`

	// error (connection level)
	Reason string `json:"reason,omitempty"`
}

// Error is a DDP method or subscription error.
type Error struct {
	Code    any    `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Reason != "" {
		return e.Reason
	}
	return "ddp error"
}

// StreamFields is the payload of a "changed" event on a Rocket.Chat stream.
type StreamFields struct {
	EventName string            `json:"eventName"`
	Args      []json.RawMessage `json:"args"`
}
