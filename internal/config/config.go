package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models roadwise.yml.
type Config struct {
	Server struct {
		Addr                   string `yaml:"addr"`
		BasePath               string `yaml:"base_path"`
		JWTSecret              string `yaml:"jwt_secret"`
		AllowLegacyActorHeader bool   `yaml:"allow_legacy_actor_header"`
	} `yaml:"server"`
	Operators []Operator      `yaml:"operators"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
	Seed      struct {
		Signalements int `yaml:"signalements"`
		Maintenances int `yaml:"maintenances"`
	} `yaml:"seed"`
}

// Operator is a dashboard account allowed to log in.
type Operator struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
}

// WebhookConfig describes an outbound event delivery target. An empty Events
// list subscribes to everything.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// FindOperator returns the operator with the given email, if any.
func (c *Config) FindOperator(email string) (Operator, bool) {
	for _, op := range c.Operators {
		if op.Email == email {
			return op, true
		}
	}
	return Operator{}, false
}

// Load reads and validates config from the workspace, falling back to defaults
// when no roadwise.yml exists.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath == "" {
		return fmt.Errorf("config.server.base_path is required")
	}
	if c.Seed.Signalements < 0 || c.Seed.Maintenances < 0 {
		return fmt.Errorf("config.seed counts must not be negative")
	}
	seen := map[string]bool{}
	for i, op := range c.Operators {
		if op.ID == "" {
			return fmt.Errorf("operator %d has empty id", i)
		}
		if op.Email == "" {
			return fmt.Errorf("operator %s has empty email", op.ID)
		}
		if op.Role != "admin" && op.Role != "manager" {
			return fmt.Errorf("operator %s has unknown role %s", op.ID, op.Role)
		}
		if seen[op.Email] {
			return fmt.Errorf("operator email %s duplicated", op.Email)
		}
		seen[op.Email] = true
	}
	for i, hook := range c.Webhooks {
		if hook.URL == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "roadwise.yml")
}

// Default returns the built-in default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateDefault returns the default config YAML, for `rw config init`.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8787
  base_path: /v0
  jwt_secret: dev-secret-change-me
  allow_legacy_actor_header: true

operators:
  - id: "1"
    name: Admin User
    email: admin@roadwise.com
    role: admin
    password: admin123
  - id: "2"
    name: Manager User
    email: manager@roadwise.com
    role: manager
    password: manager123

seed:
  signalements: 20
  maintenances: 8
`
