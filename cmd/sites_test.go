package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/paywallbot/internal/commands"
)

func useTempData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("PAYWALLBOT_DATA_DIR", dir)
	t.Setenv("PAYWALLBOT_MATCH_MODE", "")
	cfgFile = filepath.Join(dir, "missing-config.json")
	t.Cleanup(func() { cfgFile = "" })
	return dir
}

func TestSitesAddRemove(t *testing.T) {
	dir := useTempData(t)

	var out bytes.Buffer
	add := sitesEditCmd("add", commands.AddSite, "")
	add.SetOut(&out)
	add.SetArgs([]string{"https://www.Example.com/story"})
	if err := add.Execute(); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.Contains(out.String(), "Added example.com to the paywall list.") {
		t.Errorf("add output = %q", out.String())
	}

	data, err := os.ReadFile(filepath.Join(dir, "user-sites.json"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"example.com"`) {
		t.Errorf("override file = %s", data)
	}

	out.Reset()
	again := sitesEditCmd("add", commands.AddSite, "")
	again.SetOut(&out)
	again.SilenceUsage = true
	again.SilenceErrors = true
	again.SetArgs([]string{"example.com"})
	if err := again.Execute(); err == nil {
		t.Error("expected error adding a listed domain")
	}

	out.Reset()
	list := sitesListCmd()
	list.SetOut(&out)
	list.SetArgs([]string{"--user"})
	if err := list.Execute(); err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.HasPrefix(out.String(), "example.com\n") {
		t.Errorf("list output = %q", out.String())
	}
	if !strings.Contains(out.String(), "1 added, 0 removed") {
		t.Errorf("list summary = %q", out.String())
	}

	out.Reset()
	remove := sitesEditCmd("remove", commands.RemoveSite, "")
	remove.SetOut(&out)
	remove.SetArgs([]string{"nytimes.com"})
	if err := remove.Execute(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !strings.Contains(out.String(), "Removed nytimes.com from the paywall list.") {
		t.Errorf("remove output = %q", out.String())
	}
}
