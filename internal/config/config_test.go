package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with empty path: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Simulation.DefaultNumSimulations != 1000 {
		t.Errorf("expected 1000 default simulations, got %d", cfg.Simulation.DefaultNumSimulations)
	}
	if cfg.History.Capacity != 5000 {
		t.Errorf("expected history capacity 5000, got %d", cfg.History.Capacity)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected info log level, got %q", cfg.Logging.Level)
	}
}

func TestLoad_FileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9090
simulation:
  workers: 4
history:
  capacity: 1000
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("file should override port, got %d", cfg.Server.Port)
	}
	if cfg.Simulation.Workers != 4 {
		t.Errorf("file should set workers, got %d", cfg.Simulation.Workers)
	}
	if cfg.History.Capacity != 1000 {
		t.Errorf("file should override capacity, got %d", cfg.History.Capacity)
	}
	// Fields the file does not mention keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host default lost, got %q", cfg.Server.Host)
	}
	if cfg.Simulation.MaxSimulations != 10000 {
		t.Errorf("max simulations default lost, got %d", cfg.Simulation.MaxSimulations)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("DATABASE_URL", "postgres://example/bench")
	t.Setenv("HISTORY_CAPACITY", "250")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("PORT override lost, got %d", cfg.Server.Port)
	}
	if cfg.History.DatabaseURL != "postgres://example/bench" {
		t.Errorf("DATABASE_URL override lost, got %q", cfg.History.DatabaseURL)
	}
	if cfg.History.Capacity != 250 {
		t.Errorf("HISTORY_CAPACITY override lost, got %d", cfg.History.Capacity)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("LOG_LEVEL override lost, got %q", cfg.Logging.Level)
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "3000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("env should win over file, got %d", cfg.Server.Port)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
