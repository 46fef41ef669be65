// Package config holds the daemon's overridable tunables, loaded with a
// JSON-merge-over-defaults pattern: an optional project file overrides
// built-in defaults, never the other way around.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config is the full set of overridable tunables.
type Config struct {
	PollIntervalSec    int    `json:"poll_interval_sec,omitempty"`
	BroadcastBatchSize int    `json:"broadcast_batch_size,omitempty"`
	RecvRingCapacity   int    `json:"recv_ring_capacity,omitempty"`
	// MQMaxMsgDefault is the per-queue message-count capacity, not a byte
	// size.
	MQMaxMsgDefault int `json:"mq_maxmsg_default,omitempty"`
	DocBaseName        string `json:"doc_base_name,omitempty"`
	// RegistryName and QueueNamePrefix are loaded and merged like the other
	// fields, but the registry and transport use their built-in names
	// (registry.Name and the "/mq_" prefix) and do not read them.
	RegistryName       string `json:"registry_name,omitempty"`
	QueueNamePrefix    string `json:"queue_name_prefix,omitempty"`
}

// Defaults returns the daemon's built-in tunable values.
func Defaults() *Config {
	return &Config{
		PollIntervalSec:    2,
		BroadcastBatchSize: 5,
		RecvRingCapacity:   4096,
		MQMaxMsgDefault:    10,
		DocBaseName:        "base_doc.txt",
		RegistryName:       "/synctext_registry_v1",
		QueueNamePrefix:    "/mq_",
	}
}

// settingsPath is where a project may override defaults.
func settingsPath(projectDir string) string {
	return filepath.Join(projectDir, ".synctext", "settings.json")
}

// Load reads an optional project settings file and merges it over the
// built-in defaults; a missing file is not an error.
func Load(projectDir string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(settingsPath(projectDir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var override Config
	if err := json.Unmarshal(data, &override); err != nil {
		return nil, err
	}
	mergeInto(cfg, &override)
	return cfg, nil
}

func mergeInto(base, override *Config) {
	if override.PollIntervalSec != 0 {
		base.PollIntervalSec = override.PollIntervalSec
	}
	if override.BroadcastBatchSize != 0 {
		base.BroadcastBatchSize = override.BroadcastBatchSize
	}
	if override.RecvRingCapacity != 0 {
		base.RecvRingCapacity = override.RecvRingCapacity
	}
	if override.MQMaxMsgDefault != 0 {
		base.MQMaxMsgDefault = override.MQMaxMsgDefault
	}
	if override.DocBaseName != "" {
		base.DocBaseName = override.DocBaseName
	}
	if override.RegistryName != "" {
		base.RegistryName = override.RegistryName
	}
	if override.QueueNamePrefix != "" {
		base.QueueNamePrefix = override.QueueNamePrefix
	}
}

// Save writes cfg to the project's settings file, creating the directory
// if needed.
func Save(projectDir string, cfg *Config) error {
	dir := filepath.Join(projectDir, ".synctext")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsPath(projectDir), data, 0644)
}
