package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

var envVars = []string{
	"MGPT_PORT", "MGPT_DB_PATH", "MGPT_REDIS_URL", "MGPT_REDIS_CHANNEL",
	"MGPT_COUNTER_KEY", "MGPT_FAIL_EVERY", "MGPT_TICK", "MGPT_STEPS",
	"MGPT_PAUSE_STEPS", "MGPT_COMPLETE_DELAY", "MGPT_START_DELAY",
	"MGPT_FAIL_DELAY", "MGPT_PLACEHOLDER_IMAGE", "MGPT_TRACK_DURATION",
	"OLLAMA_URL", "OLLAMA_MODEL", "MGPT_API_URL",
	"MGPT_RECONNECT_ATTEMPTS", "MGPT_RECONNECT_BACKOFF",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envVars {
		// t.Setenv restores the original value after the test
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.DBPath != "" {
		t.Errorf("DBPath = %q, want in-memory default", cfg.DBPath)
	}
	if cfg.RedisURL != "" {
		t.Errorf("RedisURL = %q, want empty default", cfg.RedisURL)
	}
	if cfg.RedisChannel != "mgpt:events" {
		t.Errorf("RedisChannel = %q, want default", cfg.RedisChannel)
	}
	if cfg.FailEvery != 3 {
		t.Errorf("FailEvery = %d, want 3", cfg.FailEvery)
	}
	if cfg.Tick != 200*time.Millisecond {
		t.Errorf("Tick = %v, want 200ms", cfg.Tick)
	}
	if cfg.Steps != 40 {
		t.Errorf("Steps = %d, want 40", cfg.Steps)
	}
	if !slices.Equal(cfg.PauseSteps, []int{12, 24, 30}) {
		t.Errorf("PauseSteps = %v, want [12 24 30]", cfg.PauseSteps)
	}
	if cfg.CompleteDelay != 500*time.Millisecond {
		t.Errorf("CompleteDelay = %v, want 500ms", cfg.CompleteDelay)
	}
	if cfg.StartDelay != 300*time.Millisecond {
		t.Errorf("StartDelay = %v, want 300ms", cfg.StartDelay)
	}
	if cfg.FailDelay != 500*time.Millisecond {
		t.Errorf("FailDelay = %v, want 500ms", cfg.FailDelay)
	}
	if cfg.TrackDuration != 30*time.Second {
		t.Errorf("TrackDuration = %v, want 30s", cfg.TrackDuration)
	}
	if cfg.OllamaURL != "" {
		t.Errorf("OllamaURL = %q, want empty default", cfg.OllamaURL)
	}
	if cfg.ReconnectAttempts != 5 || cfg.ReconnectBackoff != time.Second {
		t.Errorf("reconnect = %d/%v, want 5/1s", cfg.ReconnectAttempts, cfg.ReconnectBackoff)
	}
	if cfg.Addr() != ":3000" {
		t.Errorf("Addr = %q, want :3000", cfg.Addr())
	}
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MGPT_PORT", "8080")
	t.Setenv("MGPT_DB_PATH", "/tmp/j.db")
	t.Setenv("MGPT_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MGPT_FAIL_EVERY", "0")
	t.Setenv("MGPT_TICK", "50ms")
	t.Setenv("MGPT_PAUSE_STEPS", "5, 10")
	t.Setenv("MGPT_TRACK_DURATION", "1m")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("MGPT_RECONNECT_ATTEMPTS", "2")

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DBPath != "/tmp/j.db" {
		t.Errorf("DBPath = %q, want env override", cfg.DBPath)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q, want env override", cfg.RedisURL)
	}
	if cfg.FailEvery != 0 {
		t.Errorf("FailEvery = %d, want 0", cfg.FailEvery)
	}
	if cfg.Tick != 50*time.Millisecond {
		t.Errorf("Tick = %v, want 50ms", cfg.Tick)
	}
	if !slices.Equal(cfg.PauseSteps, []int{5, 10}) {
		t.Errorf("PauseSteps = %v, want [5 10]", cfg.PauseSteps)
	}
	if cfg.TrackDuration != time.Minute {
		t.Errorf("TrackDuration = %v, want 1m", cfg.TrackDuration)
	}
	if cfg.OllamaURL != "http://ollama:11434" {
		t.Errorf("OllamaURL = %q, want env override", cfg.OllamaURL)
	}
	if cfg.ReconnectAttempts != 2 {
		t.Errorf("ReconnectAttempts = %d, want 2", cfg.ReconnectAttempts)
	}
}

func TestEnvInvalidFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("MGPT_PORT", "not-a-number")
	t.Setenv("MGPT_TICK", "fast")
	t.Setenv("MGPT_PAUSE_STEPS", "1,two")

	cfg := Load()
	if cfg.Port != 3000 {
		t.Errorf("Invalid int env should fallback to default: got %d, want 3000", cfg.Port)
	}
	if cfg.Tick != 200*time.Millisecond {
		t.Errorf("Invalid duration env should fallback: got %v", cfg.Tick)
	}
	if !slices.Equal(cfg.PauseSteps, []int{12, 24, 30}) {
		t.Errorf("Invalid list env should fallback: got %v", cfg.PauseSteps)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "mgpt.yaml")
	data := `
port: 4000
fail_every: 5
tick: 100ms
pause_steps: [3]
ollama_model: mistral
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MGPT_PORT", "4001")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Port != 4001 {
		t.Errorf("Port = %d, env should win over file", cfg.Port)
	}
	if cfg.FailEvery != 5 {
		t.Errorf("FailEvery = %d, want 5 from file", cfg.FailEvery)
	}
	if cfg.Tick != 100*time.Millisecond {
		t.Errorf("Tick = %v, want 100ms from file", cfg.Tick)
	}
	if !slices.Equal(cfg.PauseSteps, []int{3}) {
		t.Errorf("PauseSteps = %v, want [3]", cfg.PauseSteps)
	}
	if cfg.OllamaModel != "mistral" {
		t.Errorf("OllamaModel = %q, want mistral", cfg.OllamaModel)
	}
	// untouched keys keep defaults
	if cfg.Steps != 40 || cfg.CounterKey != "mgpt:submissions" {
		t.Errorf("defaults lost: steps=%d counter=%q", cfg.Steps, cfg.CounterKey)
	}
}

func TestLoadFileErrors(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("port: [not an int"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}

	cfg, err := LoadFile("")
	if err != nil || cfg.Port != 3000 {
		t.Errorf("LoadFile(\"\") = %d, %v", cfg.Port, err)
	}
}
