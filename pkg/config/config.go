package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// CustomTitle is the election type that takes its title from free text
const CustomTitle = "CUSTOM"

// Config holds all configuration settings for the client
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	API         APIConfig      `mapstructure:"api"`
	Poller      PollerConfig   `mapstructure:"poller"`
	Session     SessionConfig  `mapstructure:"session"`
	Election    ElectionConfig `mapstructure:"election"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Log         LogConfig      `mapstructure:"log"`
}

// APIConfig holds remote election API settings
type APIConfig struct {
	// BaseURL wins over origin-based detection when set
	BaseURL            string        `mapstructure:"base_url"`
	Origin             string        `mapstructure:"origin"`
	LocalURL           string        `mapstructure:"local_url"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	SlowRequestTimeout time.Duration `mapstructure:"slow_request_timeout"`
}

// PollerConfig holds election state polling settings
type PollerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// SessionConfig holds client-side session persistence settings
type SessionConfig struct {
	Backend    string      `mapstructure:"backend"`
	Path       string      `mapstructure:"path"`
	Passphrase string      `mapstructure:"passphrase"`
	Redis      RedisConfig `mapstructure:"redis"`
}

// RedisConfig locates a shared session record in Redis
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig controls the Prometheus scrape endpoint
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// ElectionConfig holds the choices offered on the login forms
type ElectionConfig struct {
	Departments   []string `mapstructure:"departments"`
	ElectionTypes []string `mapstructure:"election_types"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	OutputPath string `mapstructure:"output_path"`
	MaxSize    int    `mapstructure:"max_size_mb"`
	MaxAge     int    `mapstructure:"max_age_days"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		if !isMissingConfig(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will rely on defaults and env vars
	}

	v.SetEnvPrefix("CHAINVOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration produced by defaults alone
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.origin", "http://localhost")
	v.SetDefault("api.local_url", "http://localhost:5000/api")
	v.SetDefault("api.request_timeout", "10s")
	v.SetDefault("api.slow_request_timeout", "60s")

	v.SetDefault("poller.enabled", true)
	v.SetDefault("poller.interval", "3s")

	v.SetDefault("session.backend", "file")
	v.SetDefault("session.path", "data/session.json")
	v.SetDefault("session.passphrase", "")
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.key", "chainvote:session")
	v.SetDefault("session.redis.ttl", "24h")
	v.SetDefault("session.redis.timeout", "3s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", "127.0.0.1:9464")

	v.SetDefault("election.departments", []string{"CSE", "IT", "ENTC", "MECH"})
	v.SetDefault("election.election_types", []string{
		"Class Representative Election 2026",
		"Student Council Election 2026",
		"Technical Club Election 2026",
	})

	v.SetDefault("log.output_path", "logs/chainvote.log")
	v.SetDefault("log.max_size_mb", 20)
	v.SetDefault("log.max_age_days", 14)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.compress", true)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}

	if err := c.validatePoller(); err != nil {
		return fmt.Errorf("poller config: %w", err)
	}

	if err := c.validateSession(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}

	if err := c.validateElection(); err != nil {
		return fmt.Errorf("election config: %w", err)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics config: addr cannot be empty when enabled")
	}

	return nil
}

func (c *Config) validateAPI() error {
	if c.API.BaseURL != "" {
		if _, err := url.ParseRequestURI(c.API.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	} else if c.API.Origin != "" {
		if _, err := url.Parse(c.API.Origin); err != nil {
			return fmt.Errorf("invalid origin: %w", err)
		}
	}
	if c.API.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.API.SlowRequestTimeout < c.API.RequestTimeout {
		return fmt.Errorf("slow_request_timeout (%s) cannot be less than request_timeout (%s)",
			c.API.SlowRequestTimeout, c.API.RequestTimeout)
	}
	return nil
}

func (c *Config) validatePoller() error {
	if !c.Poller.Enabled {
		return nil
	}
	if c.Poller.Interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", c.Poller.Interval)
	}
	if c.Poller.Interval%time.Second != 0 {
		return fmt.Errorf("interval must be a whole number of seconds, got %s", c.Poller.Interval)
	}
	return nil
}

func (c *Config) validateSession() error {
	switch c.Session.Backend {
	case "memory":
	case "file":
		if c.Session.Path == "" {
			return fmt.Errorf("path cannot be empty for file backend")
		}
		c.Session.Path = filepath.Clean(c.Session.Path)
	case "redis":
		r := c.Session.Redis
		if r.Addr == "" || r.Key == "" {
			return fmt.Errorf("redis addr and key are required for redis backend")
		}
		if r.TTL < 0 || r.Timeout <= 0 {
			return fmt.Errorf("redis ttl cannot be negative and timeout must be positive")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Session.Backend)
	}
	return nil
}

func (c *Config) validateElection() error {
	if len(c.Election.Departments) == 0 {
		return fmt.Errorf("departments cannot be empty")
	}
	for _, t := range c.Election.ElectionTypes {
		if strings.EqualFold(t, CustomTitle) {
			return fmt.Errorf("election_types cannot contain the reserved value %s", CustomTitle)
		}
	}
	return nil
}

// ResolveBaseURL picks the API base URL the way the web client did:
// local origins talk to the development server, anything else uses
// same-origin /api.
func (c *Config) ResolveBaseURL() string {
	if c.API.BaseURL != "" {
		return strings.TrimRight(c.API.BaseURL, "/")
	}
	if c.IsLocalOrigin() {
		return strings.TrimRight(c.API.LocalURL, "/")
	}
	return strings.TrimRight(c.API.Origin, "/") + "/api"
}

// IsLocalOrigin reports whether the configured origin is a development host
func (c *Config) IsLocalOrigin() bool {
	u, err := url.Parse(c.API.Origin)
	if err != nil {
		return true
	}
	switch u.Hostname() {
	case "", "localhost", "127.0.0.1":
		return true
	}
	return false
}

// HasDepartment reports whether dept is one of the configured departments
func (c *Config) HasDepartment(dept string) bool {
	for _, d := range c.Election.Departments {
		if strings.EqualFold(d, dept) {
			return true
		}
	}
	return false
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}

func isMissingConfig(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	// SetConfigFile with an absent path surfaces the os error instead
	return errors.Is(err, fs.ErrNotExist)
}
