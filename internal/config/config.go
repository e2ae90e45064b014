package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in a workspace.
const FileName = "mutual.yml"

// Config models mutual.yml.
type Config struct {
	Repository struct {
		Owner      string `yaml:"owner"`
		Name       string `yaml:"name"`
		BaseBranch string `yaml:"base_branch"`
		ContentDir string `yaml:"content_dir"`
	} `yaml:"repository"`
	GitHub struct {
		APIURL         string `yaml:"api_url"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"github"`
	Auth struct {
		CookieName string `yaml:"cookie_name"`
		DevLogin   bool   `yaml:"dev_login"`
	} `yaml:"auth"`
	Registry struct {
		CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
	} `yaml:"registry"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig describes an endpoint notified of pipeline events.
type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with mutual config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
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
	if strings.TrimSpace(c.Repository.Owner) == "" {
		return fmt.Errorf("config.repository.owner is required")
	}
	if strings.TrimSpace(c.Repository.Name) == "" {
		return fmt.Errorf("config.repository.name is required")
	}
	if strings.TrimSpace(c.Repository.BaseBranch) == "" {
		return fmt.Errorf("config.repository.base_branch is required")
	}
	if strings.Contains(c.Repository.ContentDir, "..") {
		return fmt.Errorf("config.repository.content_dir must stay inside the repository")
	}
	if c.GitHub.TimeoutSeconds < 0 {
		return fmt.Errorf("config.github.timeout_seconds must not be negative")
	}
	if c.Registry.CacheTTLSeconds < 0 {
		return fmt.Errorf("config.registry.cache_ttl_seconds must not be negative")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("webhook %s has empty event type", hook.URL)
			}
		}
	}
	return nil
}

// GitHubTimeout is the bound applied to a single change-request creation.
func (c *Config) GitHubTimeout() time.Duration {
	if c.GitHub.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.GitHub.TimeoutSeconds) * time.Second
}

// RegistryCacheTTL returns zero when caching is disabled.
func (c *Config) RegistryCacheTTL() time.Duration {
	return time.Duration(c.Registry.CacheTTLSeconds) * time.Second
}

// CookieName is the session cookie carrying the identity token.
func (c *Config) CookieName() string {
	if c.Auth.CookieName == "" {
		return "mutual_session"
	}
	return c.Auth.CookieName
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `repository:
  owner: mutualsupply
  name: library
  base_branch: main
  content_dir: case-studies

github:
  timeout_seconds: 20

auth:
  cookie_name: mutual_session
  dev_login: false

registry:
  cache_ttl_seconds: 0

logging:
  level: info
  format: json
`
