package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config holds all ivrflow configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	DBPath         string `json:"db_path"`
	LogLevel       string `json:"log_level"`
	Organization   string `json:"organization"`
	RemoteEndpoint string `json:"remote_endpoint"`
	RemoteToken    string `json:"remote_token"`
	SyncCron       string `json:"sync_cron"`
	GuardEngine    string `json:"guard_engine"`
}

func defaultConfig() Config {
	return Config{
		DBPath:      filepath.Join(ivrflowDir(), "ivrflow.db"),
		LogLevel:    "info",
		SyncCron:    "0 * * * *",
		GuardEngine: "expr",
	}
}

func ivrflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ivrflow"
	}
	return filepath.Join(home, ".ivrflow")
}

func settingsPath() string {
	return filepath.Join(ivrflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("IVRFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("IVRFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("IVRFLOW_ORGANIZATION"); v != "" {
		cfg.Organization = v
	}
	if v := os.Getenv("IVRFLOW_REMOTE_ENDPOINT"); v != "" {
		cfg.RemoteEndpoint = v
	}
	if v := os.Getenv("IVRFLOW_REMOTE_TOKEN"); v != "" {
		cfg.RemoteToken = v
	}
	if v := os.Getenv("IVRFLOW_SYNC_CRON"); v != "" {
		cfg.SyncCron = v
	}
	if v := os.Getenv("IVRFLOW_GUARD_ENGINE"); v != "" {
		cfg.GuardEngine = v
	}

	return cfg
}
