package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// reloadDebounce coalesces bursts of write events from editors that save in
// several steps.
const reloadDebounce = 100 * time.Millisecond

// Loader handles configuration loading, watching, and hot-reloading.
type Loader struct {
	path     string
	config   *Config
	mu       sync.RWMutex
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	ctx      context.Context
	cancel   context.CancelFunc
	errChan  chan error
	done     chan struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	if path == "" {
		path = ConfigPath()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Loader{
		path:    path,
		errChan: make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Path returns the watched file.
func (l *Loader) Path() string { return l.path }

// Load reads and parses the configuration file.
func (l *Loader) Load() (*Config, error) {
	cfg, err := Load(l.path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers a callback invoked with every successfully reloaded
// configuration. Register callbacks before calling Watch.
func (l *Loader) OnChange(cb func(*Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors returns a channel for receiving errors that occur during watching.
func (l *Loader) Errors() <-chan error {
	return l.errChan
}

// Watch starts watching the configuration file for changes.
func (l *Loader) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: editors often replace the file instead of writing it.
	dir := filepath.Dir(l.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	l.watcher = watcher
	l.done = make(chan struct{})
	go l.watchLoop()
	return nil
}

func (l *Loader) watchLoop() {
	defer close(l.done)

	pending := time.AfterFunc(time.Hour, l.reload)
	pending.Stop()
	defer pending.Stop()

	for {
		select {
		case <-l.ctx.Done():
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if l.touchesConfig(event) {
				pending.Reset(reloadDebounce)
			}
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.reportError(err)
		}
	}
}

// touchesConfig reports whether event may have changed the watched file.
// Remove is ignored: an editor's rename-into-place is followed by Create.
func (l *Loader) touchesConfig(event fsnotify.Event) bool {
	if filepath.Base(event.Name) != filepath.Base(l.path) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

// reload applies a changed file. An invalid file keeps the previous
// configuration in place.
func (l *Loader) reload() {
	if l.ctx.Err() != nil {
		return
	}

	newCfg, err := Load(l.path)
	if err != nil {
		l.reportError(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	l.config = newCfg
	callbacks := slices.Clone(l.onChange)
	l.mu.Unlock()

	for _, cb := range callbacks {
		cb(newCfg)
	}
}

func (l *Loader) reportError(err error) {
	select {
	case l.errChan <- err:
	default:
	}
}

// Close stops the watcher and releases resources.
func (l *Loader) Close() error {
	l.cancel()
	if l.watcher == nil {
		return nil
	}
	err := l.watcher.Close()
	<-l.done
	return err
}

type decodeFunc func(data []byte, cfg *Config) error

func decodeTOML(data []byte, cfg *Config) error { return toml.Unmarshal(data, cfg) }
func decodeJSON(data []byte, cfg *Config) error { return json.Unmarshal(data, cfg) }
func decodeYAML(data []byte, cfg *Config) error { return yaml.Unmarshal(data, cfg) }

// decoders maps file extensions to formats. Unknown extensions try each in
// order and take the first that parses.
var decoders = []struct {
	name   string
	exts   []string
	decode decodeFunc
}{
	{"TOML", []string{".toml"}, decodeTOML},
	{"JSON", []string{".json"}, decodeJSON},
	{"YAML", []string{".yaml", ".yml"}, decodeYAML},
}

// loadConfigFromFile overlays the file at path on DefaultConfig. A missing
// file yields the defaults.
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	for _, d := range decoders {
		if slices.Contains(d.exts, ext) {
			cfg := DefaultConfig()
			if err := d.decode(data, cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", d.name, err)
			}
			return cfg, nil
		}
	}

	for _, d := range decoders {
		cfg := DefaultConfig()
		if d.decode(data, cfg) == nil {
			return cfg, nil
		}
	}
	return nil, fmt.Errorf("parse config %s: not TOML, JSON or YAML", filepath.Base(path))
}
