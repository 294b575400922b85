package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/paywallbot/internal/config"
	"github.com/nextlevelbuilder/paywallbot/internal/store/file"
	"github.com/nextlevelbuilder/paywallbot/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and data directory health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("paywallbot doctor")
	fmt.Printf("  Version:  %s (ddp %s)\n", Version, protocol.ProtocolVersion)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	// Config
	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults + env)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	// Channels
	fmt.Println()
	fmt.Println("  Channels:")
	rc := cfg.Channels.RocketChat
	checkChannel("Rocket.Chat", rc.Enabled, rc.URL != "" && rc.User != "" && rc.Password != "")
	if rc.Enabled {
		fmt.Printf("    %-12s %s as %s, rooms: %s\n", "", rc.URL, rc.User, strings.Join(rc.Rooms, ", "))
	}
	checkChannel("Telegram", cfg.Channels.Telegram.Enabled, cfg.Channels.Telegram.Token != "")
	checkChannel("Discord", cfg.Channels.Discord.Enabled, cfg.Channels.Discord.Token != "")

	// Paywall list
	fmt.Println()
	fmt.Println("  Sites:")
	checkOverrides(cfg.Sites)

	// Observability
	fmt.Println()
	fmt.Println("  Observability:")
	if cfg.Metrics.ListenAddr != "" {
		fmt.Printf("    %-12s %s\n", "Metrics:", cfg.Metrics.ListenAddr)
	} else {
		fmt.Printf("    %-12s disabled\n", "Metrics:")
	}
	if cfg.Telemetry.Enabled {
		fmt.Printf("    %-12s %s (%s)\n", "Tracing:", cfg.Telemetry.Endpoint, cfg.Telemetry.Protocol)
	} else {
		fmt.Printf("    %-12s disabled\n", "Tracing:")
	}
	fmt.Println()
}

func checkChannel(name string, enabled, hasCredentials bool) {
	status := "disabled"
	switch {
	case enabled && hasCredentials:
		status = "enabled"
	case enabled:
		status = "enabled (MISSING CREDENTIALS)"
	}
	fmt.Printf("    %-12s %s\n", name+":", status)
}

func checkOverrides(sc config.SitesConfig) {
	path := sc.OverridesPath()
	fmt.Printf("    %-12s %s\n", "File:", path)
	fmt.Printf("    %-12s %s\n", "Match mode:", sc.MatchMode)

	o, err := file.NewOverrideFile(path).Load(context.Background())
	if err != nil {
		fmt.Printf("    %-12s UNREADABLE (%s)\n", "Status:", err)
		return
	}
	fmt.Printf("    %-12s %d added, %d removed\n", "Overrides:", len(o.Added), len(o.Removed))

	tmp, err := os.CreateTemp(filepath.Dir(path), ".doctor-*")
	if err != nil {
		fmt.Printf("    %-12s NOT WRITABLE (%s)\n", "Data dir:", err)
		return
	}
	tmp.Close()
	os.Remove(tmp.Name())
	fmt.Printf("    %-12s writable\n", "Data dir:")
}
