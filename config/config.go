// Package config resolves the mind-root directory and loads the optional
// config.json that tunes digest windowing and per-surface audit reporting.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// HotDigestTuning overrides the Hot Digest Builder's adaptive window
// parameters. Zero values mean "use the builder's default".
type HotDigestTuning struct {
	MinHours    float64 `json:"min_hours"`
	MaxHours    float64 `json:"max_hours"`
	BaseHours   float64 `json:"base_hours"`
	TargetRate  float64 `json:"target_rate"`
}

// StreamTuning groups stream-adjacent tunables read from config.json.
type StreamTuning struct {
	HotDigest HotDigestTuning `json:"hot_digest"`
}

// fileConfig is the on-disk shape of config.json.
type fileConfig struct {
	Services map[string]bool `json:"services"`
	Stream   StreamTuning    `json:"stream"`
}

// Config holds resolved runtime configuration for every mindstream
// component: the mind-root path, per-surface service toggles, and
// digest-window tuning.
type Config struct {
	MindRoot string
	Env      string
	LogLevel string

	// Services maps a surface/service name to whether audit reporting
	// is enabled for it. Absent keys default to enabled.
	Services map[string]bool

	Stream StreamTuning

	RedisURL string
}

// Load resolves the mind-root, loads a .env file if present (for
// development), then reads config.json beneath the mind-root. Missing
// or malformed config.json is treated as an empty default — it is
// never a fatal error.
func Load() *Config {
	_ = godotenv.Load()

	root := mindRoot()

	cfg := &Config{
		MindRoot: root,
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Services: map[string]bool{},
		RedisURL: getEnv("REDIS_URL", ""),
	}

	raw, err := os.ReadFile(filepath.Join(root, "config.json"))
	if err != nil {
		return cfg
	}

	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return cfg
	}
	if fc.Services != nil {
		cfg.Services = fc.Services
	}
	cfg.Stream = fc.Stream
	return cfg
}

// ServiceEnabled reports whether audit reporting is enabled for the
// named surface/service. Unknown names default to enabled.
func (c *Config) ServiceEnabled(name string) bool {
	if v, ok := c.Services[name]; ok {
		return v
	}
	return true
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// StreamPath joins the mind-root with the stream/ subtree.
func (c *Config) StreamPath(parts ...string) string {
	return filepath.Join(append([]string{c.MindRoot, "stream"}, parts...)...)
}

// StatePath joins the mind-root with the state/ subtree.
func (c *Config) StatePath(parts ...string) string {
	return filepath.Join(append([]string{c.MindRoot, "state"}, parts...)...)
}

// SensesPath joins the mind-root with the senses/ subtree.
func (c *Config) SensesPath(parts ...string) string {
	return filepath.Join(append([]string{c.MindRoot, "senses"}, parts...)...)
}

// MemoryPath joins the mind-root with the memory/ subtree.
func (c *Config) MemoryPath(parts ...string) string {
	return filepath.Join(append([]string{c.MindRoot, "memory"}, parts...)...)
}

// mindRoot resolves the mind-root directory from SAMARA_MIND_PATH,
// falling back to MIND_PATH, then to <home>/.claude-mind.
func mindRoot() string {
	if v := os.Getenv("SAMARA_MIND_PATH"); v != "" {
		return v
	}
	if v := os.Getenv("MIND_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".claude-mind")
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
