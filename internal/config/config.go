// Package config loads and validates ingot.yaml. Environment variables
// override the credentials-adjacent fields so secrets can stay out of the
// file entirely.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ConfigPathEnv names the environment variable that overrides the config
// file location.
const ConfigPathEnv = "INGOT_CONFIG"

// DefaultConfigFile is the conventional file name searched in the working
// directory.
const DefaultConfigFile = "ingot.yaml"

// Config is the root configuration document.
type Config struct {
	Platforms PlatformsConfig `yaml:"platforms"`
	Cache     CacheConfig     `yaml:"cache"`
	Backend   BackendConfig   `yaml:"backend"`
	Retry     RetryConfig     `yaml:"retry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PlatformsConfig carries per-platform defaults and credentials.
type PlatformsConfig struct {
	Jira   JiraConfig   `yaml:"jira"`
	GitHub GitHubConfig `yaml:"github"`
	Linear LinearConfig `yaml:"linear"`
	Azure  AzureConfig  `yaml:"azure_devops"`
	Monday MondayConfig `yaml:"monday"`
	Trello TrelloConfig `yaml:"trello"`
}

type JiraConfig struct {
	URL            string `yaml:"url" validate:"omitempty,url"`
	Email          string `yaml:"email" validate:"omitempty,email"`
	Token          string `yaml:"token"`
	DefaultProject string `yaml:"default_project"`
}

type GitHubConfig struct {
	Token        string `yaml:"token"`
	APIURL       string `yaml:"api_url" validate:"omitempty,url"`
	DefaultOwner string `yaml:"default_owner"`
	DefaultRepo  string `yaml:"default_repo"`
	// Host admits a GitHub Enterprise host besides github.com.
	Host string `yaml:"host" validate:"omitempty,hostname"`
}

type LinearConfig struct {
	APIKey string `yaml:"api_key"`
}

type AzureConfig struct {
	Organization string `yaml:"organization"`
	Project      string `yaml:"project"`
	PAT          string `yaml:"pat"`
}

type MondayConfig struct {
	APIToken    string `yaml:"api_token"`
	AccountSlug string `yaml:"account_slug"`
}

type TrelloConfig struct {
	Key   string `yaml:"key"`
	Token string `yaml:"token"`
}

// CacheConfig selects and tunes the cache variant.
type CacheConfig struct {
	Backend    string        `yaml:"backend" validate:"omitempty,oneof=memory file redis none"`
	Dir        string        `yaml:"dir"`
	TTL        time.Duration `yaml:"ttl" validate:"min=0"`
	MaxEntries int           `yaml:"max_entries" validate:"min=0"`
	RedisAddr  string        `yaml:"redis_addr"`
	RedisDB    int           `yaml:"redis_db" validate:"min=0"`
}

// BackendConfig names the AI agent backend.
type BackendConfig struct {
	Name    string        `yaml:"name" validate:"omitempty,oneof=auggie claude cursor"`
	Binary  string        `yaml:"binary"`
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`
}

// RetryConfig mirrors the ratelimit policy record.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries" validate:"min=0"`
	BaseDelay         time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay          time.Duration `yaml:"max_delay" validate:"min=0"`
	JitterFactor      float64       `yaml:"jitter_factor" validate:"min=0,max=1"`
	RetryableStatuses []int         `yaml:"retryable_statuses" validate:"dive,min=100,max=599"`
}

// LoggingConfig tunes the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// Duration fields are declared as time.Duration but yaml.v3 has no native
// decoding for "30m"-style scalars, so the three sections carrying them
// decode through an aux struct. Absent keys keep the pre-filled defaults.

func (c *CacheConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		Backend    string `yaml:"backend"`
		Dir        string `yaml:"dir"`
		TTL        string `yaml:"ttl"`
		MaxEntries int    `yaml:"max_entries"`
		RedisAddr  string `yaml:"redis_addr"`
		RedisDB    int    `yaml:"redis_db"`
	}
	r := raw{Backend: c.Backend, Dir: c.Dir, MaxEntries: c.MaxEntries,
		RedisAddr: c.RedisAddr, RedisDB: c.RedisDB}
	if err := value.Decode(&r); err != nil {
		return err
	}
	ttl, err := parseDuration(r.TTL, c.TTL)
	if err != nil {
		return fmt.Errorf("cache.ttl: %w", err)
	}
	*c = CacheConfig{Backend: r.Backend, Dir: r.Dir, TTL: ttl,
		MaxEntries: r.MaxEntries, RedisAddr: r.RedisAddr, RedisDB: r.RedisDB}
	return nil
}

func (c *BackendConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		Name    string `yaml:"name"`
		Binary  string `yaml:"binary"`
		Timeout string `yaml:"timeout"`
	}
	r := raw{Name: c.Name, Binary: c.Binary}
	if err := value.Decode(&r); err != nil {
		return err
	}
	timeout, err := parseDuration(r.Timeout, c.Timeout)
	if err != nil {
		return fmt.Errorf("backend.timeout: %w", err)
	}
	*c = BackendConfig{Name: r.Name, Binary: r.Binary, Timeout: timeout}
	return nil
}

func (c *RetryConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw struct {
		MaxRetries        int     `yaml:"max_retries"`
		BaseDelay         string  `yaml:"base_delay"`
		MaxDelay          string  `yaml:"max_delay"`
		JitterFactor      float64 `yaml:"jitter_factor"`
		RetryableStatuses []int   `yaml:"retryable_statuses"`
	}
	r := raw{MaxRetries: c.MaxRetries, JitterFactor: c.JitterFactor,
		RetryableStatuses: c.RetryableStatuses}
	if err := value.Decode(&r); err != nil {
		return err
	}
	base, err := parseDuration(r.BaseDelay, c.BaseDelay)
	if err != nil {
		return fmt.Errorf("retry.base_delay: %w", err)
	}
	max, err := parseDuration(r.MaxDelay, c.MaxDelay)
	if err != nil {
		return fmt.Errorf("retry.max_delay: %w", err)
	}
	*c = RetryConfig{MaxRetries: r.MaxRetries, BaseDelay: base, MaxDelay: max,
		JitterFactor: r.JitterFactor, RetryableStatuses: r.RetryableStatuses}
	return nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     time.Hour,
		},
		Retry: RetryConfig{
			MaxRetries:   3,
			BaseDelay:    2 * time.Second,
			MaxDelay:     60 * time.Second,
			JitterFactor: 0.25,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the config file at path, or the INGOT_CONFIG / working
// directory default when path is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	explicit := path != ""
	if path == "" {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			cfg.applyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs the struct-tag validation.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overlays credentials-adjacent fields from the environment. These
// are the same variables the credentials manager honors; setting them here
// keeps a dumped config consistent with runtime behavior.
func (c *Config) applyEnv() {
	overlay(&c.Platforms.Jira.URL, "INGOT_JIRA_URL")
	overlay(&c.Platforms.Jira.Email, "INGOT_JIRA_EMAIL")
	overlay(&c.Platforms.Jira.Token, "INGOT_JIRA_TOKEN")
	overlay(&c.Platforms.Jira.DefaultProject, "INGOT_JIRA_DEFAULT_PROJECT")
	overlay(&c.Platforms.GitHub.Token, "INGOT_GITHUB_TOKEN")
	overlay(&c.Platforms.GitHub.APIURL, "INGOT_GITHUB_API_URL")
	overlay(&c.Platforms.GitHub.DefaultOwner, "INGOT_GITHUB_DEFAULT_OWNER")
	overlay(&c.Platforms.GitHub.DefaultRepo, "INGOT_GITHUB_DEFAULT_REPO")
	overlay(&c.Platforms.GitHub.Host, "INGOT_GITHUB_HOST")
	overlay(&c.Platforms.Linear.APIKey, "INGOT_LINEAR_API_KEY")
	overlay(&c.Platforms.Azure.Organization, "INGOT_AZURE_DEVOPS_ORGANIZATION")
	overlay(&c.Platforms.Azure.Project, "INGOT_AZURE_DEVOPS_PROJECT")
	overlay(&c.Platforms.Azure.PAT, "INGOT_AZURE_DEVOPS_PAT")
	overlay(&c.Platforms.Monday.APIToken, "INGOT_MONDAY_API_TOKEN")
	overlay(&c.Platforms.Monday.AccountSlug, "INGOT_MONDAY_ACCOUNT_SLUG")
	overlay(&c.Platforms.Trello.Key, "INGOT_TRELLO_KEY")
	overlay(&c.Platforms.Trello.Token, "INGOT_TRELLO_TOKEN")
	overlay(&c.Backend.Name, "INGOT_BACKEND")
}

func overlay(target *string, env string) {
	if v := os.Getenv(env); v != "" {
		*target = v
	}
}
