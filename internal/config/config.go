// Package config handles configuration loading, validation, and management for formsync.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Storage backends understood by kv.Open.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendFile   = "file"
)

// Config holds the complete engine configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Draft configuration for the persisted form draft.
	Draft DraftConfig `toml:"draft" json:"draft" yaml:"draft"`

	// Store configuration for the durable key-value store.
	Store StoreConfig `toml:"store" json:"store" yaml:"store"`

	// Field configuration for input reconciliation.
	Field FieldConfig `toml:"field" json:"field" yaml:"field"`

	// Autosave configuration for the draft autosave trigger.
	Autosave AutosaveConfig `toml:"autosave" json:"autosave" yaml:"autosave"`

	// Validation configuration for form submission.
	Validation ValidationConfig `toml:"validation" json:"validation" yaml:"validation"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// DraftConfig holds draft key configuration.
type DraftConfig struct {
	// Namespace prefixes every key the draft store owns.
	Namespace string `toml:"namespace" json:"namespace" yaml:"namespace"`
}

// StoreConfig holds key-value store configuration.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "redis", "file".
	Backend string `toml:"backend" json:"backend" yaml:"backend"`

	// Path is the database file (sqlite) or JSON file (file).
	Path string `toml:"path" json:"path" yaml:"path"`

	// RedisURL is the connection URL for the redis backend.
	RedisURL string `toml:"redis_url" json:"redis_url" yaml:"redis_url"`

	// RedisPrefix is prepended to every redis key.
	RedisPrefix string `toml:"redis_prefix" json:"redis_prefix" yaml:"redis_prefix"`

	// IntegritySecret enables per-row MACs in the sqlite backend.
	IntegritySecret string `toml:"integrity_secret" json:"integrity_secret" yaml:"integrity_secret"`

	// TimeoutMs bounds each store call.
	TimeoutMs int `toml:"timeout_ms" json:"timeout_ms" yaml:"timeout_ms"`
}

// FieldConfig holds per-field reconciliation settings.
type FieldConfig struct {
	// DebounceMs is the quiet period before a keystroke is committed.
	// Zero commits every keystroke.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`

	// FlushOnUnmount commits an unflushed value when a field is closed
	// instead of dropping it.
	FlushOnUnmount bool `toml:"flush_on_unmount" json:"flush_on_unmount" yaml:"flush_on_unmount"`
}

// AutosaveConfig holds autosave trigger settings.
type AutosaveConfig struct {
	// IntervalMs is the quiet period after a form change before the draft
	// is written. Zero writes on every change.
	IntervalMs int `toml:"interval_ms" json:"interval_ms" yaml:"interval_ms"`
}

// ValidationConfig holds submit-time validation settings.
type ValidationConfig struct {
	// SchemaPath overrides the embedded plan JSON schema.
	SchemaPath string `toml:"schema_path" json:"schema_path" yaml:"schema_path"`

	// Rules are cross-field expression rules.
	Rules []RuleConfig `toml:"rules" json:"rules" yaml:"rules"`
}

// RuleConfig is a single expression rule.
type RuleConfig struct {
	Field   string `toml:"field" json:"field" yaml:"field"`
	Expr    string `toml:"expr" json:"expr" yaml:"expr"`
	Message string `toml:"message" json:"message" yaml:"message"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stderr", "stdout", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file used when Output includes a file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// AddSource adds file:line to log entries.
	AddSource bool `toml:"add_source" json:"add_source" yaml:"add_source"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()

	return &Config{
		Version: Version,
		Draft: DraftConfig{
			Namespace: "plan-form",
		},
		Store: StoreConfig{
			Backend:     BackendSQLite,
			Path:        filepath.Join(dir, "drafts.db"),
			RedisURL:    "redis://localhost:6379/0",
			RedisPrefix: "formsync:",
			TimeoutMs:   2000,
		},
		Field: FieldConfig{
			DebounceMs:     300,
			FlushOnUnmount: false,
		},
		Autosave: AutosaveConfig{
			IntervalMs: 1000,
		},
		Validation: ValidationConfig{
			Rules: DefaultRules(),
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Output:   "stderr",
			FilePath: filepath.Join(PlatformLogDir(), "formsync.log"),
		},
	}
}

// DefaultRules returns the cross-field rules applied to the plan form.
func DefaultRules() []RuleConfig {
	return []RuleConfig{
		{
			Field:   "yearlyPrice",
			Expr:    "number(yearlyPrice) == nil || number(monthlyPrice) == nil || number(yearlyPrice) <= number(monthlyPrice) * 12",
			Message: "yearly price must not exceed twelve monthly payments",
		},
		{
			Field:   "trialDays",
			Expr:    "number(trialDays) == nil || number(trialDays) <= 90",
			Message: "trial cannot be longer than 90 days",
		},
	}
}

// Load reads the configuration at path. A missing file yields defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration as TOML.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg.mu.RLock()
	defer cfg.mu.RUnlock()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with FORMSYNC_.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v := os.Getenv("FORMSYNC_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("FORMSYNC_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("FORMSYNC_REDIS_URL"); v != "" {
		c.Store.RedisURL = v
	}
	if v := os.Getenv("FORMSYNC_INTEGRITY_SECRET"); v != "" {
		c.Store.IntegritySecret = v
	}
	if v := os.Getenv("FORMSYNC_DEBOUNCE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Field.DebounceMs = ms
		}
	}
	if v := os.Getenv("FORMSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FORMSYNC_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version:    c.Version,
		Draft:      c.Draft,
		Store:      c.Store,
		Field:      c.Field,
		Autosave:   c.Autosave,
		Validation: c.Validation,
		Logging:    c.Logging,
	}
	clone.Validation.Rules = append([]RuleConfig{}, c.Validation.Rules...)
	return clone
}

// Debounce returns the field debounce period.
func (c *Config) Debounce() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Field.DebounceMs) * time.Millisecond
}

// AutosaveInterval returns the autosave quiet period.
func (c *Config) AutosaveInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.Autosave.IntervalMs) * time.Millisecond
}

// Timeout returns the per-call store timeout.
func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMs) * time.Millisecond
}
