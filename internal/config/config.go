package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	DB     DBConfig     `yaml:"db"`
	Log    LogConfig    `yaml:"log"`
	Sync   SyncConfig   `yaml:"sync"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// SyncConfig controls delivery to the central store.
type SyncConfig struct {
	RemoteURL     string `yaml:"remote_url"`
	MaxRetries    int    `yaml:"max_retries"`
	BackoffMS     []int  `yaml:"backoff_ms"`
	SettleDelayMS int    `yaml:"settle_delay_ms"`
	ProbeSeconds  int    `yaml:"probe_seconds"`
}

// Backoff returns the retry backoff schedule as durations.
func (c SyncConfig) Backoff() []time.Duration {
	backoff := make([]time.Duration, 0, len(c.BackoffMS))
	for _, ms := range c.BackoffMS {
		backoff = append(backoff, time.Duration(ms)*time.Millisecond)
	}
	return backoff
}

// SettleDelay returns the post-restore settle delay.
func (c SyncConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMS) * time.Millisecond
}

// ProbeInterval returns the connectivity probe interval.
func (c SyncConfig) ProbeInterval() time.Duration {
	return time.Duration(c.ProbeSeconds) * time.Second
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Path: "crewlog.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Sync: SyncConfig{
			MaxRetries:    3,
			BackoffMS:     []int{1000, 5000, 30000},
			SettleDelayMS: 2000,
			ProbeSeconds:  30,
		},
	}

	if path := os.Getenv("CREWLOG_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if host := os.Getenv("CREWLOG_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("CREWLOG_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CREWLOG_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if dbPath := os.Getenv("CREWLOG_DB_PATH"); dbPath != "" {
		cfg.DB.Path = dbPath
	}
	if level := os.Getenv("CREWLOG_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if remote := os.Getenv("CREWLOG_SYNC_REMOTE_URL"); remote != "" {
		cfg.Sync.RemoteURL = remote
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
