package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// LocalConfig is per-checkout state kept in .sync_temp/config.json.
type LocalConfig struct {
	Upload LocalUpload `json:"upload"`
}

type LocalUpload struct {
	// LastProfile is the profile picked in the last interactive upload.
	LastProfile string `json:"last_profile,omitempty"`
	// LastScope is the project relative path of the last upload root.
	LastScope string `json:"last_scope,omitempty"`
}

// LocalConfigPath returns the path to .sync_temp/config.json under root.
func LocalConfigPath(root string) string {
	return filepath.Join(root, SyncTempDir, "config.json")
}

// LoadLocalConfig loads the local state, returning an empty one when the
// file does not exist yet.
func LoadLocalConfig(root string) (*LocalConfig, error) {
	path := LocalConfigPath(root)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &LocalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read local config: %w", err)
	}

	var lc LocalConfig
	if err := json.Unmarshal(data, &lc); err != nil {
		return nil, fmt.Errorf("failed to parse local config: %w", err)
	}
	return &lc, nil
}

// Save writes the local state under root.
func (lc *LocalConfig) Save(root string) error {
	path := LocalConfigPath(root)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", SyncTempDir, err)
	}

	data, err := json.MarshalIndent(lc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal local config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write local config: %w", err)
	}
	return nil
}
