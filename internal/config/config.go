// Package config loads the server configuration from a YAML file and
// applies environment variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level server configuration.
type Config struct {
	Server     Server     `yaml:"server"`
	Simulation Simulation `yaml:"simulation"`
	History    History    `yaml:"history"`
	Logging    Logging    `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Simulation holds defaults and caps for simulation runs.
type Simulation struct {
	DefaultNumSimulations  int     `yaml:"default_num_simulations"`
	DefaultHorizonDays     int     `yaml:"default_horizon_days"`
	DefaultInitialCapital  float64 `yaml:"default_initial_capital"`
	DefaultConfidenceLevel float64 `yaml:"default_confidence_level"`
	MaxSimulations         int     `yaml:"max_simulations"`
	MaxHorizonDays         int     `yaml:"max_horizon_days"`
	MaxWorkUnits           int     `yaml:"max_work_units"`
	Workers                int     `yaml:"workers"` // 0 = GOMAXPROCS
}

// History configures the trade history tiers.
type History struct {
	Capacity        int    `yaml:"capacity"`
	DatabaseURL     string `yaml:"database_url"`
	RedisURL        string `yaml:"redis_url"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Server: Server{Host: "0.0.0.0", Port: 8080},
		Simulation: Simulation{
			DefaultNumSimulations:  1000,
			DefaultHorizonDays:     30,
			DefaultInitialCapital:  10000,
			DefaultConfidenceLevel: 0.95,
			MaxSimulations:         10000,
			MaxHorizonDays:         3650,
			MaxWorkUnits:           10_000_000,
		},
		History: History{
			Capacity:        5000,
			CacheTTLSeconds: 30,
		},
		Logging: Logging{Level: "info"},
	}
}

// Load reads the YAML file at path, merges it over the defaults, and
// applies environment overrides. An empty path yields defaults plus env
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding fields when set. The names match what the deployment
// environment already exports.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.History.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.History.RedisURL = v
	}
	if v := os.Getenv("HISTORY_CAPACITY"); v != "" {
		if capacity, err := strconv.Atoi(v); err == nil {
			cfg.History.Capacity = capacity
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
