package protocol

// ProtocolVersion is the DDP protocol version negotiated with the chat server.
const ProtocolVersion = "1"

// DDP message types sent by the client.
const (
	MsgConnect = "connect"
	MsgMethod  = "method"
	MsgSub     = "sub"
	MsgUnsub   = "unsub"
	MsgPing    = "ping"
	MsgPong    = "pong"
)

// Rocket.Chat realtime methods used by the bot.
const (
	MethodLogin               = "login"
	MethodGetRoomIDByNameOrID = "getRoomIdByNameOrId"
	MethodJoinRoom            = "joinRoom"
	MethodSendMessage         = "sendMessage"
	MethodCreateDirectMessage = "createDirectMessage"
)

// Subscriptions.
const (
	StreamRoomMessages = "stream-room-messages"

	// MyMessagesEvent subscribes to every room the logged-in user belongs to.
	MyMessagesEvent = "__my_messages__"
)
