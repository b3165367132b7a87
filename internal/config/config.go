// Package config loads process configuration for the edge and backend
// commands.
//
// Sources, later ones winning:
//  1. built-in defaults
//  2. an optional YAML file
//  3. environment variables (a .env file is read first if present)
//
// The merged result is checked with struct tags before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration. Each command reads the sections it needs.
type Config struct {
	Terminal TerminalConfig `yaml:"terminal"`
	Queue    QueueConfig    `yaml:"queue"`
	Retry    RetryConfig    `yaml:"retry"`
	Agent    AgentConfig    `yaml:"agent"`
	Server   ServerConfig   `yaml:"server"`
}

// TerminalConfig locates the accounting terminal.
type TerminalConfig struct {
	URL          string        `yaml:"url" validate:"required,url"`
	ProbeTimeout time.Duration `yaml:"probe_timeout" validate:"gt=0"`
	SendTimeout  time.Duration `yaml:"send_timeout" validate:"gt=0"`
}

// QueueConfig locates the edge's durable queue.
type QueueConfig struct {
	DBPath string `yaml:"db_path" validate:"required"`
}

// RetryConfig tunes the retry worker.
type RetryConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
	SendRate float64       `yaml:"send_rate" validate:"gt=0"`
}

// AgentConfig configures the edge agent and its backend uploads.
type AgentConfig struct {
	Listen        string        `yaml:"listen" validate:"required,hostname_port"`
	BackendURL    string        `yaml:"backend_url" validate:"required,url"`
	ClientID      string        `yaml:"client_id" validate:"required"`
	ClientToken   string        `yaml:"client_token"`
	SyncTypes     []string      `yaml:"sync_types" validate:"dive,required"`
	RequestsDir   string        `yaml:"requests_dir" validate:"required"`
	UploadTimeout time.Duration `yaml:"upload_timeout" validate:"gt=0"`
}

// ServerConfig configures the backend ingestion server.
type ServerConfig struct {
	Addr       string `yaml:"addr" validate:"required"`
	DBPath     string `yaml:"db_path" validate:"required"`
	AdminToken string `yaml:"admin_token"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Terminal: TerminalConfig{
			URL:          "http://localhost:9000",
			ProbeTimeout: 3 * time.Second,
			SendTimeout:  30 * time.Second,
		},
		Queue: QueueConfig{
			DBPath: "queue.db",
		},
		Retry: RetryConfig{
			Interval: 15 * time.Minute,
			SendRate: 5,
		},
		Agent: AgentConfig{
			Listen:        "127.0.0.1:8765",
			BackendURL:    "http://localhost:8000",
			ClientID:      "demo",
			SyncTypes:     []string{"ledgers"},
			RequestsDir:   "requests",
			UploadTimeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr:   ":8000",
			DBPath: "backend.db",
		},
	}
}

// Load merges defaults, the YAML file at path (skipped when path is empty),
// and the environment, then validates the result.
//
// A path that is given but does not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := loadEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv reads KEY=VALUE files into the process environment without
// overriding variables that are already set. With no paths it reads ./.env.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c Config) Validate() error {
	return validate.Struct(c)
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func loadEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("TALLY_URL", &cfg.Terminal.URL)
	setString("QUEUE_DB", &cfg.Queue.DBPath)
	setString("BACKEND_URL", &cfg.Agent.BackendURL)
	setString("CLIENT_ID", &cfg.Agent.ClientID)
	setString("CLIENT_TOKEN", &cfg.Agent.ClientToken)
	setString("AGENT_LISTEN", &cfg.Agent.Listen)
	setString("SERVER_ADDR", &cfg.Server.Addr)
	setString("SERVER_DB", &cfg.Server.DBPath)
	setString("ADMIN_TOKEN", &cfg.Server.AdminToken)

	if v := os.Getenv("RETRY_INTERVAL"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("RETRY_INTERVAL: %w", err)
		}
		cfg.Retry.Interval = d
	}

	if v := os.Getenv("SYNC_TYPES"); v != "" {
		cfg.Agent.SyncTypes = SplitTypes(v)
	}

	return nil
}

// parseInterval accepts a Go duration ("15m") or a bare number of seconds.
func parseInterval(v string) (time.Duration, error) {
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// SplitTypes parses a comma-separated type list, lower-casing entries and
// dropping blanks.
func SplitTypes(v string) []string {
	types := []string{}
	for _, t := range strings.Split(v, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			types = append(types, t)
		}
	}
	return types
}
