package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime configuration loaded from environment variables.
// Command-line flags override these values.
type Config struct {
	// Panels
	PanelsFile string // env: DILI_PANELS_FILE, default: "" (built-in panels)
	Model      string // env: DILI_MODEL, default model for agents without one

	// Label review
	LabelsFile string // env: DILI_LABELS_FILE, YAML map of drug name to label PDF

	// Runs
	DataDir string        // env: DILI_DATA_DIR
	Timeout time.Duration // env: DILI_TIMEOUT, per-agent timeout in seconds

	// Server
	ServerAddr string // env: DILI_SERVER_ADDR
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		PanelsFile: getEnv("DILI_PANELS_FILE", ""),
		Model:      getEnv("DILI_MODEL", "gpt-4o-mini"),
		LabelsFile: getEnv("DILI_LABELS_FILE", ""),
		DataDir:    getEnv("DILI_DATA_DIR", "data"),
		Timeout:    time.Duration(getEnvInt("DILI_TIMEOUT", 120)) * time.Second,
		ServerAddr: getEnv("DILI_SERVER_ADDR", ":8080"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
