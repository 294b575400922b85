package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/paywallbot/internal/store"
)

// OverrideFile stores user overrides as a pretty-printed JSON document:
//
//	{"added": ["example.com"], "removed": ["nytimes.com"]}
//
// The parent directory is created on demand.
type OverrideFile struct {
	path string
}

func NewOverrideFile(path string) *OverrideFile {
	return &OverrideFile{path: filepath.Clean(path)}
}

// Path returns the location of the override file.
func (f *OverrideFile) Path() string { return f.path }

// Load reads the override file. A missing file yields empty overrides.
// A field that is absent or not an array of strings decodes as empty.
func (f *OverrideFile) Load(_ context.Context) (store.Overrides, error) {
	empty := store.Overrides{Added: []string{}, Removed: []string{}}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return empty, fmt.Errorf("create override dir: %w", err)
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return empty, fmt.Errorf("read overrides: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return empty, fmt.Errorf("parse overrides: %w", err)
	}

	return store.Overrides{
		Added:   decodeList(raw["added"]),
		Removed: decodeList(raw["removed"]),
	}, nil
}

// Save writes the overrides atomically: temp file in the same directory, then rename.
func (f *OverrideFile) Save(_ context.Context, o store.Overrides) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create override dir: %w", err)
	}

	data, err := json.MarshalIndent(o.Clone(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode overrides: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".user-sites-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("write overrides: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("sync overrides: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close overrides: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace overrides: %w", err)
	}
	cleanup = false
	return nil
}

func decodeList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil || list == nil {
		return []string{}
	}
	return list
}
