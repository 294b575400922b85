package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"
)

// FlexibleStringSlice accepts both ["str"] and [123] in JSON.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

// Duration is a time.Duration that reads from Go duration strings ("40s")
// or from a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration for the paywall bot.
type Config struct {
	Channels  ChannelsConfig  `json:"channels"`
	Sites     SitesConfig     `json:"sites"`
	Rewrite   RewriteConfig   `json:"rewrite"`
	Metrics   MetricsConfig   `json:"metrics,omitempty"`
	Telemetry TelemetryConfig `json:"telemetry,omitempty"`
}

// SitesConfig locates the override file and selects the domain match mode.
type SitesConfig struct {
	DataDir       string `json:"data_dir"`                 // directory holding the override file (default "data")
	OverridesFile string `json:"overrides_file,omitempty"` // file name inside data_dir (default "user-sites.json")
	MatchMode     string `json:"match_mode,omitempty"`     // "substring" (default) or "suffix"
	Watch         *bool  `json:"watch,omitempty"`          // reload on external edits (default true)
}

// OverridesPath returns the full path of the override file.
func (s SitesConfig) OverridesPath() string {
	return filepath.Join(ExpandHome(s.DataDir), s.OverridesFile)
}

// WatchEnabled reports whether the override file should be watched.
func (s SitesConfig) WatchEnabled() bool {
	return s.Watch == nil || *s.Watch
}

// RewriteConfig holds the mirror targets used when rewriting URLs.
type RewriteConfig struct {
	ArchivePrefix string              `json:"archive_prefix,omitempty"` // default "https://archive.is/newest/"
	MirrorHost    string              `json:"mirror_host,omitempty"`    // default "xcancel.com"
	SocialDomains FlexibleStringSlice `json:"social_domains,omitempty"` // default x.com, twitter.com
}

// MetricsConfig configures the Prometheus listener. Empty address disables it.
type MetricsConfig struct {
	ListenAddr string `json:"listen_addr,omitempty"` // e.g. ":9090"
}

// TelemetryConfig configures OpenTelemetry OTLP export.
type TelemetryConfig struct {
	Enabled     bool              `json:"enabled,omitempty"`      // enable OTLP export (default false)
	Endpoint    string            `json:"endpoint,omitempty"`     // OTLP endpoint (e.g. "localhost:4317")
	Protocol    string            `json:"protocol,omitempty"`     // "grpc" (default) or "http"
	Insecure    bool              `json:"insecure,omitempty"`     // plaintext connection (local collectors)
	ServiceName string            `json:"service_name,omitempty"` // default "paywallbot"
	Headers     map[string]string `json:"headers,omitempty"`      // extra headers (e.g. auth tokens for cloud backends)
}
