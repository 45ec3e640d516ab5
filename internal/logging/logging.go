// Package logging provides structured logging with slog for formsync.
//
// Features:
//   - JSON and text output formats
//   - Log levels (debug, info, warn, error)
//   - Component and per-session attributes
//   - Sensitive data redaction
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	// FormatText outputs human-readable text logs.
	FormatText Format = iota
	// FormatJSON outputs JSON-structured logs.
	FormatJSON
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or JSON).
	Format Format

	// Output specifies where logs are written.
	// Can be "stdout", "stderr", "file", or "both".
	Output string

	// FilePath is the path to the log file when Output includes "file".
	FilePath string

	// AddSource adds source file and line to log entries.
	AddSource bool

	// Component is the name of the component using this logger.
	Component string

	// Writer overrides Output when set.
	Writer io.Writer
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:     LevelInfo,
		Format:    FormatText,
		Output:    "stderr",
		Component: "formsync",
	}
}

// Logger wraps slog.Logger with additional functionality.
type Logger struct {
	*slog.Logger
	config *Config
	file   *os.File
	mu     sync.Mutex
}

// New creates a new Logger with the given configuration.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{config: cfg}
	w, err := l.writer()
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:       cfg.Level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	}
	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("component", cfg.Component)})
	}

	l.Logger = slog.New(handler)
	return l, nil
}

// Discard returns a logger that drops everything. Used by tests and as the
// fallback when no logger is injected.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelError + 1}))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// writer resolves Config.Output. "file" and "both" open FilePath for append.
func (l *Logger) writer() (io.Writer, error) {
	if l.config.Writer != nil {
		return l.config.Writer, nil
	}

	output := strings.ToLower(l.config.Output)
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "file", "both":
	default:
		return os.Stderr, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.config.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l.file = f
	if output == "both" {
		return io.MultiWriter(os.Stderr, f), nil
	}
	return f, nil
}

// redactedKeys are substrings of attribute keys whose values never reach the
// log. The draft store's integrity secret and the submit endpoint's token
// both match.
var redactedKeys = []string{"secret", "token", "password", "credential", "cookie", "api_key", "apikey", "auth"}

func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, k := range redactedKeys {
		if strings.Contains(key, k) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}
	return a
}

// WithSession returns a child logger tagged with a form session id. An empty
// id generates a new one.
func (l *Logger) WithSession(id string) (*Logger, string) {
	if id == "" {
		id = NewSessionID()
	}
	return &Logger{
		Logger: l.Logger.With(slog.String("session_id", id)),
		config: l.config,
		file:   l.file,
	}, id
}

// NewSessionID generates a unique id for a form session.
func NewSessionID() string {
	return uuid.NewString()
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

var levels = map[string]Level{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel parses a level name. Unknown names fall back to info with an error.
func ParseLevel(s string) (Level, error) {
	if level, ok := levels[strings.ToLower(s)]; ok {
		return level, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %q", s)
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %q", s)
	}
}
