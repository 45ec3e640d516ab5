package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	if strings.TrimSpace(c.Draft.Namespace) == "" {
		errs = append(errs, ValidationError{
			Field:   "draft.namespace",
			Message: "namespace is required",
		})
	}

	errs = append(errs, validateStore(&c.Store)...)
	errs = append(errs, validateTiming(c)...)
	errs = append(errs, validateRules(c.Validation.Rules)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateStore(s *StoreConfig) ValidationErrors {
	var errs ValidationErrors

	switch s.Backend {
	case BackendMemory:
	case BackendSQLite, BackendFile:
		if s.Path == "" {
			errs = append(errs, ValidationError{
				Field:   "store.path",
				Message: fmt.Sprintf("path is required for the %s backend", s.Backend),
			})
		}
	case BackendRedis:
		u, err := url.Parse(s.RedisURL)
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			errs = append(errs, ValidationError{
				Field:   "store.redis_url",
				Message: "must be a redis:// or rediss:// URL",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend %q", s.Backend),
		})
	}

	if s.IntegritySecret != "" && len(s.IntegritySecret) < 16 {
		errs = append(errs, ValidationError{
			Field:   "store.integrity_secret",
			Message: "secret must be at least 16 characters",
		})
	}
	if s.TimeoutMs <= 0 {
		errs = append(errs, ValidationError{
			Field:   "store.timeout_ms",
			Message: "timeout must be positive",
		})
	}
	return errs
}

func validateTiming(c *Config) ValidationErrors {
	var errs ValidationErrors

	if c.Field.DebounceMs < 0 || c.Field.DebounceMs > 10000 {
		errs = append(errs, ValidationError{
			Field:   "field.debounce_ms",
			Message: "debounce must be between 0 and 10000ms",
		})
	}
	if c.Autosave.IntervalMs < 0 || c.Autosave.IntervalMs > 60000 {
		errs = append(errs, ValidationError{
			Field:   "autosave.interval_ms",
			Message: "interval must be between 0 and 60000ms",
		})
	}
	return errs
}

func validateRules(rules []RuleConfig) ValidationErrors {
	var errs ValidationErrors
	for i, r := range rules {
		if strings.TrimSpace(r.Expr) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("validation.rules[%d].expr", i),
				Message: "expression is required",
			})
		}
		if r.Field == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("validation.rules[%d].field", i),
				Message: "field is required",
			})
		}
	}
	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("unknown level %q", l.Level),
		})
	}
	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("unknown format %q", l.Format),
		})
	}
	switch l.Output {
	case "stderr", "stdout":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required for file output",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("unknown output %q", l.Output),
		})
	}
	return errs
}
