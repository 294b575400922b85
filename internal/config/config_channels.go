package config

// ChannelsConfig contains per-channel configuration.
type ChannelsConfig struct {
	RocketChat RocketChatConfig `json:"rocketchat"`
	Telegram   TelegramConfig   `json:"telegram"`
	Discord    DiscordConfig    `json:"discord"`
}

type RocketChatConfig struct {
	Enabled            bool                `json:"enabled"`
	URL                string              `json:"url"`                            // host[:port], scheme optional
	User               string              `json:"user"`                           // bot username
	Password           string              `json:"-"`                              // from env ROCKETCHAT_PASSWORD only
	UseSSL             bool                `json:"use_ssl,omitempty"`              // wss:// instead of ws://
	Rooms              FlexibleStringSlice `json:"rooms"`                          // room names or ids to join
	ConnectTimeout     Duration            `json:"connect_timeout,omitempty"`      // default 40s
	SendRate           float64             `json:"send_rate,omitempty"`            // outbound calls per second (default 5)
	SendBurst          int                 `json:"send_burst,omitempty"`           // default 10
	InsecureSkipVerify bool                `json:"insecure_skip_verify,omitempty"` // accept self-signed certificates
}

type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}

type DiscordConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token"`
}
