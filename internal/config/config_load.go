package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/titanous/json5"
)

const (
	DefaultDataDir        = "data"
	DefaultOverridesFile  = "user-sites.json"
	DefaultConnectTimeout = 40 * time.Second
	DefaultSendRate       = 5
	DefaultSendBurst      = 10
	DefaultServiceName    = "paywallbot"
)

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Channels: ChannelsConfig{
			RocketChat: RocketChatConfig{
				ConnectTimeout: Duration(DefaultConnectTimeout),
				SendRate:       DefaultSendRate,
				SendBurst:      DefaultSendBurst,
			},
		},
		Sites: SitesConfig{
			DataDir:       DefaultDataDir,
			OverridesFile: DefaultOverridesFile,
			MatchMode:     "substring",
		},
		Rewrite: RewriteConfig{
			ArchivePrefix: "https://archive.is/newest/",
			MirrorHost:    "xcancel.com",
			SocialDomains: FlexibleStringSlice{"x.com", "twitter.com"},
		},
		Telemetry: TelemetryConfig{
			Protocol:    "grpc",
			ServiceName: DefaultServiceName,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file yields the defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := json5.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "true" || v == "1"
		}
	}

	rc := &c.Channels.RocketChat
	envStr("ROCKETCHAT_URL", &rc.URL)
	envStr("ROCKETCHAT_USER", &rc.User)
	envStr("ROCKETCHAT_PASSWORD", &rc.Password)
	envBool("ROCKETCHAT_USE_SSL", &rc.UseSSL)
	if v := os.Getenv("ROCKETCHAT_ROOMS"); v != "" {
		rc.Rooms = splitList(v)
	}
	if v := os.Getenv("ROCKETCHAT_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			rc.ConnectTimeout = Duration(d)
		} else if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			rc.ConnectTimeout = Duration(time.Duration(ms) * time.Millisecond)
		}
	}

	envStr("PAYWALLBOT_TELEGRAM_TOKEN", &c.Channels.Telegram.Token)
	envStr("PAYWALLBOT_DISCORD_TOKEN", &c.Channels.Discord.Token)

	// Auto-enable channels if credentials are provided via env
	if rc.URL != "" && rc.User != "" && rc.Password != "" {
		rc.Enabled = true
	}
	if c.Channels.Telegram.Token != "" {
		c.Channels.Telegram.Enabled = true
	}
	if c.Channels.Discord.Token != "" {
		c.Channels.Discord.Enabled = true
	}

	// Sites
	envStr("PAYWALLBOT_DATA_DIR", &c.Sites.DataDir)
	envStr("PAYWALLBOT_MATCH_MODE", &c.Sites.MatchMode)

	// Metrics
	envStr("PAYWALLBOT_METRICS_ADDR", &c.Metrics.ListenAddr)

	// Telemetry
	envStr("PAYWALLBOT_TELEMETRY_ENDPOINT", &c.Telemetry.Endpoint)
	envStr("PAYWALLBOT_TELEMETRY_PROTOCOL", &c.Telemetry.Protocol)
	envStr("PAYWALLBOT_TELEMETRY_SERVICE_NAME", &c.Telemetry.ServiceName)
	envBool("PAYWALLBOT_TELEMETRY_ENABLED", &c.Telemetry.Enabled)
	envBool("PAYWALLBOT_TELEMETRY_INSECURE", &c.Telemetry.Insecure)
}

// applyDefaults fills values a config file may have blanked out.
func (c *Config) applyDefaults() {
	rc := &c.Channels.RocketChat
	rc.URL = strings.TrimRight(strings.TrimSpace(rc.URL), "/")
	rc.Rooms = splitList(strings.Join(rc.Rooms, ","))
	if rc.ConnectTimeout <= 0 {
		rc.ConnectTimeout = Duration(DefaultConnectTimeout)
	}
	if rc.SendRate <= 0 {
		rc.SendRate = DefaultSendRate
	}
	if rc.SendBurst <= 0 {
		rc.SendBurst = DefaultSendBurst
	}

	if c.Sites.DataDir == "" {
		c.Sites.DataDir = DefaultDataDir
	}
	if c.Sites.OverridesFile == "" {
		c.Sites.OverridesFile = DefaultOverridesFile
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = DefaultServiceName
	}
}

// splitList splits a comma separated value, trimming blanks and empty items.
func splitList(v string) FlexibleStringSlice {
	parts := strings.Split(v, ",")
	out := make(FlexibleStringSlice, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ExpandHome replaces leading ~ with the user home directory.
func ExpandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, _ := os.UserHomeDir()
	if len(path) > 1 && path[1] == '/' {
		return home + path[1:]
	}
	return home
}
