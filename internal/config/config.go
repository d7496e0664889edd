// Package config provides configuration loading and management for recordsync.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/recordsync/internal/remote"
	"github.com/stacklok/recordsync/internal/telemetry"
)

// EnvPrefix is the prefix of environment variables that override the file
const EnvPrefix = "RECORDSYNC"

const (
	// DefaultPageSize is the number of records requested per page
	DefaultPageSize = 150

	// DefaultRetryDelay is used when the service suggests no retry delay
	DefaultRetryDelay = "5s"

	// DefaultPollInterval is the interval between full fetches
	DefaultPollInterval = "15m"

	// DefaultSubscriptionAttempts bounds subscription registration at startup
	DefaultSubscriptionAttempts = 5

	// DefaultStorePath is the local SQLite store
	DefaultStorePath = "./data/records.db"

	// DefaultStatusDir holds the per-record-type status files
	DefaultStatusDir = "./data/status"

	// DefaultRemoteTimeout is the per-request timeout of the remote client
	DefaultRemoteTimeout = "30s"

	// DefaultNotificationAddress is where the notification receiver listens
	DefaultNotificationAddress = ":8080"
)

var recordTypeNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path  string
	viper *viper.Viper
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithViper reads environment overrides through v instead of a fresh
// RECORDSYNC-prefixed instance.
func WithViper(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		if v == nil {
			return fmt.Errorf("viper instance is required")
		}
		cfg.viper = v
		return nil
	}
}

// NewViper returns a viper instance reading RECORDSYNC_* environment variables
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Config represents the root configuration structure
type Config struct {
	Remote        RemoteConfig        `yaml:"remote"`
	Store         StoreConfig         `yaml:"store,omitempty"`
	Sync          SyncConfig          `yaml:"sync,omitempty"`
	RecordTypes   []RecordTypeConfig  `yaml:"recordTypes"`
	Notifications NotificationsConfig `yaml:"notifications,omitempty"`
	Telemetry     *telemetry.Config   `yaml:"telemetry,omitempty"`
}

// RemoteConfig defines how to reach the remote record service
type RemoteConfig struct {
	// Endpoint is the base URL of the service, e.g. "https://records.example.com"
	Endpoint string `yaml:"endpoint"`

	// Scope selects the public or the private database. Defaults to private.
	Scope string `yaml:"scope,omitempty"`

	// Token is the session token attached to every request
	Token string `yaml:"token,omitempty"`

	// TokenFile is the path to a file containing the session token.
	// It takes precedence over Token.
	TokenFile string `yaml:"tokenFile,omitempty"`

	// Timeout is the per-request timeout (e.g., "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// RateLimit paces requests, in requests per second. Zero disables pacing.
	RateLimit float64 `yaml:"rateLimit,omitempty"`

	// Burst is the number of requests allowed above RateLimit
	Burst int `yaml:"burst,omitempty"`
}

// StoreConfig defines where local data lives
type StoreConfig struct {
	Path      string `yaml:"path,omitempty"`
	StatusDir string `yaml:"statusDir,omitempty"`
}

// SyncConfig defines fetch and scheduling settings shared by all record types
type SyncConfig struct {
	PageSize             int    `yaml:"pageSize,omitempty"`
	RetryDelay           string `yaml:"retryDelay,omitempty"`
	PollInterval         string `yaml:"pollInterval,omitempty"`
	SubscriptionAttempts int    `yaml:"subscriptionAttempts,omitempty"`
}

// RecordTypeConfig defines one synchronized record type
type RecordTypeConfig struct {
	Name string `yaml:"name"`
}

// NotificationsConfig defines the notification receiver
type NotificationsConfig struct {
	Address string `yaml:"address,omitempty"`
}

// LoadConfig loads, overrides, defaults and validates configuration
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	v := loaderCfg.viper
	if v == nil {
		v = NewViper()
	}
	config.applyEnvOverrides(v)
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnvOverrides(v *viper.Viper) {
	if s := v.GetString("remote.endpoint"); s != "" {
		c.Remote.Endpoint = s
	}
	if s := v.GetString("remote.token"); s != "" {
		c.Remote.Token = s
	}
	if s := v.GetString("remote.scope"); s != "" {
		c.Remote.Scope = s
	}
	if s := v.GetString("store.path"); s != "" {
		c.Store.Path = s
	}
}

func (c *Config) applyDefaults() {
	if c.Remote.Scope == "" {
		c.Remote.Scope = string(remote.ScopePrivate)
	}
	if c.Remote.Timeout == "" {
		c.Remote.Timeout = DefaultRemoteTimeout
	}
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Store.StatusDir == "" {
		c.Store.StatusDir = DefaultStatusDir
	}
	if c.Sync.PageSize == 0 {
		c.Sync.PageSize = DefaultPageSize
	}
	if c.Sync.RetryDelay == "" {
		c.Sync.RetryDelay = DefaultRetryDelay
	}
	if c.Sync.PollInterval == "" {
		c.Sync.PollInterval = DefaultPollInterval
	}
	if c.Sync.SubscriptionAttempts == 0 {
		c.Sync.SubscriptionAttempts = DefaultSubscriptionAttempts
	}
	if c.Notifications.Address == "" {
		c.Notifications.Address = DefaultNotificationAddress
	}
}

// Validate performs validation on the configuration and returns the first violation
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := c.Remote.validate(); err != nil {
		return err
	}
	if err := c.Sync.validate(); err != nil {
		return err
	}

	if len(c.RecordTypes) == 0 {
		return fmt.Errorf("at least one record type must be configured")
	}
	names := make(map[string]bool)
	for i, rt := range c.RecordTypes {
		if rt.Name == "" {
			return fmt.Errorf("recordTypes[%d]: name is required", i)
		}
		if !recordTypeNamePattern.MatchString(rt.Name) {
			return fmt.Errorf("recordTypes[%d] (%s): name must start with a letter and contain only letters, digits and underscores", i, rt.Name)
		}
		if names[rt.Name] {
			return fmt.Errorf("recordTypes[%d]: duplicate record type '%s'", i, rt.Name)
		}
		names[rt.Name] = true
	}

	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

func (r *RemoteConfig) validate() error {
	if r.Endpoint == "" {
		return fmt.Errorf("remote: endpoint is required")
	}
	u, err := url.Parse(r.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote: endpoint must be an http or https URL, got %q", r.Endpoint)
	}
	if r.Scope != "" && !remote.Scope(r.Scope).Valid() {
		return fmt.Errorf("remote: scope must be %q or %q, got %q", remote.ScopePublic, remote.ScopePrivate, r.Scope)
	}
	if r.Timeout != "" {
		if _, err := time.ParseDuration(r.Timeout); err != nil {
			return fmt.Errorf("remote: timeout must be a valid duration (e.g., '30s'): %w", err)
		}
	}
	if r.RateLimit < 0 {
		return fmt.Errorf("remote: rateLimit must not be negative")
	}
	if r.Burst < 0 {
		return fmt.Errorf("remote: burst must not be negative")
	}
	return nil
}

func (s *SyncConfig) validate() error {
	if s.PageSize < 0 {
		return fmt.Errorf("sync: pageSize must be positive, got %d", s.PageSize)
	}
	for name, value := range map[string]string{
		"retryDelay":   s.RetryDelay,
		"pollInterval": s.PollInterval,
	} {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("sync: %s must be a valid duration (e.g., '30m', '1h'): %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("sync: %s must be positive, got %s", name, value)
		}
	}
	if s.SubscriptionAttempts < 0 {
		return fmt.Errorf("sync: subscriptionAttempts must not be negative")
	}
	return nil
}

// GetToken returns the session token, read from TokenFile when it is set.
// An empty token means requests are sent unauthenticated.
func (r *RemoteConfig) GetToken() (string, error) {
	if r.TokenFile != "" {
		data, err := os.ReadFile(filepath.Clean(r.TokenFile))
		if err != nil {
			return "", fmt.Errorf("failed to read token from file %s: %w", r.TokenFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return r.Token, nil
}

// GetScope returns the remote database scope
func (r *RemoteConfig) GetScope() remote.Scope {
	if r.Scope == "" {
		return remote.ScopePrivate
	}
	return remote.Scope(r.Scope)
}

// GetTimeout returns the per-request timeout
func (r *RemoteConfig) GetTimeout() time.Duration {
	return parseDurationOr(r.Timeout, 30*time.Second)
}

// GetRetryDelay returns the default retry delay
func (s *SyncConfig) GetRetryDelay() time.Duration {
	return parseDurationOr(s.RetryDelay, 5*time.Second)
}

// GetPollInterval returns the interval between full fetches
func (s *SyncConfig) GetPollInterval() time.Duration {
	return parseDurationOr(s.PollInterval, 15*time.Minute)
}

// GetPageSize returns the page size
func (s *SyncConfig) GetPageSize() int {
	if s.PageSize <= 0 {
		return DefaultPageSize
	}
	return s.PageSize
}

// RecordTypeNames returns the configured record type names in order
func (c *Config) RecordTypeNames() []string {
	names := make([]string, 0, len(c.RecordTypes))
	for _, rt := range c.RecordTypes {
		names = append(names, rt.Name)
	}
	return names
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return fallback
}
