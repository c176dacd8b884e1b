package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration. Defaults are overlaid by an
// optional YAML file, then by environment variables.
type Config struct {
	// Server
	Port   int    `yaml:"port"`
	DBPath string `yaml:"db_path"` // empty = in-memory journal

	// Multi-process (optional, empty RedisURL = single process)
	RedisURL     string `yaml:"redis_url"`
	RedisChannel string `yaml:"redis_channel"`
	CounterKey   string `yaml:"counter_key"`

	// Simulation
	FailEvery     int           `yaml:"fail_every"` // 0 disables simulated failures
	Tick          time.Duration `yaml:"tick"`
	Steps         int           `yaml:"steps"`
	PauseSteps    []int         `yaml:"pause_steps"`
	CompleteDelay time.Duration `yaml:"complete_delay"`
	StartDelay    time.Duration `yaml:"start_delay"`
	FailDelay     time.Duration `yaml:"fail_delay"`

	// Placeholder media
	PlaceholderImage string        `yaml:"placeholder_image"`
	TrackDuration    time.Duration `yaml:"track_duration"`

	// Ollama titles (empty OllamaURL = pool titles only)
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`

	// Client
	APIURL            string        `yaml:"api_url"`
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	ReconnectBackoff  time.Duration `yaml:"reconnect_backoff"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Port: 3000,

		RedisChannel: "mgpt:events",
		CounterKey:   "mgpt:submissions",

		FailEvery:     3,
		Tick:          200 * time.Millisecond,
		Steps:         40,
		PauseSteps:    []int{12, 24, 30},
		CompleteDelay: 500 * time.Millisecond,
		StartDelay:    300 * time.Millisecond,
		FailDelay:     500 * time.Millisecond,

		PlaceholderImage: "/cover.svg",
		TrackDuration:    30 * time.Second,

		OllamaModel: "llama3.2",

		APIURL:            "http://localhost:3000",
		ReconnectAttempts: 5,
		ReconnectBackoff:  time.Second,
	}
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	cfg := Defaults()
	cfg.applyEnv()
	return cfg
}

// LoadFile applies the YAML file at path over the defaults, then the
// environment. An empty path behaves like Load.
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// Addr returns the listen address for Port.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) applyEnv() {
	c.Port = envInt("MGPT_PORT", c.Port)
	c.DBPath = envStr("MGPT_DB_PATH", c.DBPath)

	c.RedisURL = envStr("MGPT_REDIS_URL", c.RedisURL)
	c.RedisChannel = envStr("MGPT_REDIS_CHANNEL", c.RedisChannel)
	c.CounterKey = envStr("MGPT_COUNTER_KEY", c.CounterKey)

	c.FailEvery = envInt("MGPT_FAIL_EVERY", c.FailEvery)
	c.Tick = envDuration("MGPT_TICK", c.Tick)
	c.Steps = envInt("MGPT_STEPS", c.Steps)
	c.PauseSteps = envInts("MGPT_PAUSE_STEPS", c.PauseSteps)
	c.CompleteDelay = envDuration("MGPT_COMPLETE_DELAY", c.CompleteDelay)
	c.StartDelay = envDuration("MGPT_START_DELAY", c.StartDelay)
	c.FailDelay = envDuration("MGPT_FAIL_DELAY", c.FailDelay)

	c.PlaceholderImage = envStr("MGPT_PLACEHOLDER_IMAGE", c.PlaceholderImage)
	c.TrackDuration = envDuration("MGPT_TRACK_DURATION", c.TrackDuration)

	c.OllamaURL = envStr("OLLAMA_URL", c.OllamaURL)
	c.OllamaModel = envStr("OLLAMA_MODEL", c.OllamaModel)

	c.APIURL = envStr("MGPT_API_URL", c.APIURL)
	c.ReconnectAttempts = envInt("MGPT_RECONNECT_ATTEMPTS", c.ReconnectAttempts)
	c.ReconnectBackoff = envDuration("MGPT_RECONNECT_BACKOFF", c.ReconnectBackoff)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envInts parses a comma-separated list. Any bad entry keeps the fallback.
func envInts(key string, fallback []int) []int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return fallback
		}
		out = append(out, n)
	}
	return out
}
