// Package draft persists an in-progress form as a restartable draft.
//
// The Store is the only component that touches the draft keys. None of its
// operations return errors: a failing or corrupted backing store degrades to
// "no draft" and the failure is logged.
package draft

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"formsync/internal/clock"
	"formsync/internal/kv"
	"formsync/internal/logging"
)

// DefaultNamespace prefixes the draft keys when Options.Namespace is empty.
const DefaultNamespace = "plan-form"

// Options configures a Store.
type Options struct {
	// Namespace prefixes every key the store owns.
	Namespace string

	// Timeout bounds each backing-store call. Zero means no extra bound.
	Timeout time.Duration

	Logger *slog.Logger

	// Clock stamps the saved-at key. Defaults to clock.Real.
	Clock clock.Clock
}

// Keys are the backing-store keys owned by a Store.
type Keys struct {
	Draft   string
	Section string
	SavedAt string
}

// KeysFor returns the keys used for namespace.
func KeysFor(namespace string) Keys {
	return Keys{
		Draft:   namespace + ":draft",
		Section: namespace + ":active-section",
		SavedAt: namespace + ":saved-at",
	}
}

// Store reads and writes one draft record.
type Store struct {
	kv      kv.Store
	keys    Keys
	timeout time.Duration
	logger  *slog.Logger
	clock   clock.Clock
}

// New creates a draft store over backing.
func New(backing kv.Store, opts Options) *Store {
	ns := opts.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	return &Store{
		kv:      backing,
		keys:    KeysFor(ns),
		timeout: opts.Timeout,
		logger:  logging.OrDiscard(opts.Logger).With("component", "draft"),
		clock:   c,
	}
}

// Keys returns the keys this store owns.
func (s *Store) Keys() Keys {
	return s.keys
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return s.kv.Get(ctx, key)
}

func (s *Store) set(ctx context.Context, key, value string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return s.kv.Set(ctx, key, value)
}

func (s *Store) delete(ctx context.Context, key string) error {
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return s.kv.Delete(ctx, key)
}

// HasDraft reports whether a field blob or a section token is stored. It is
// always false outside ModeCreate, and any read error counts as absent.
func (s *Store) HasDraft(ctx context.Context, mode Mode) bool {
	if !mode.Persists() {
		return false
	}

	for _, key := range []string{s.keys.Draft, s.keys.Section} {
		_, ok, err := s.get(ctx, key)
		if err != nil {
			s.logger.Warn("read draft key failed", "key", key, "error", err)
			return false
		}
		if ok {
			return true
		}
	}
	return false
}

// LoadDraft applies a stored draft. Every field present in the blob is
// passed to setFieldValue in key order; fields missing from the blob are left
// alone. A blob that fails to decode applies no fields at all. The section is
// applied only when it names a valid Section. Outside ModeCreate nothing
// happens.
func (s *Store) LoadDraft(ctx context.Context, mode Mode, setFieldValue func(name string, value any), setActiveSection func(Section)) {
	if !mode.Persists() {
		return
	}

	if blob, ok, err := s.get(ctx, s.keys.Draft); err != nil {
		s.logger.Warn("read draft failed", "key", s.keys.Draft, "error", err)
	} else if ok {
		snap, err := decodeSnapshot(blob)
		if err != nil {
			s.logger.Warn("discarding malformed draft", "key", s.keys.Draft, "error", err)
		} else if setFieldValue != nil {
			names := make([]string, 0, len(snap))
			for name := range snap {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				setFieldValue(name, snap[name])
			}
			s.logger.Debug("draft restored", "fields", len(names))
		}
	}

	token, ok, err := s.get(ctx, s.keys.Section)
	if err != nil {
		s.logger.Warn("read active section failed", "key", s.keys.Section, "error", err)
		return
	}
	if !ok {
		return
	}
	if section, valid := ParseSection(token); valid && setActiveSection != nil {
		setActiveSection(section)
	}
}

// SaveDraft writes snapshot as the draft and, once the write succeeds, calls
// arm. It returns false without arming when the mode does not persist or the
// write fails.
func (s *Store) SaveDraft(ctx context.Context, mode Mode, snapshot Snapshot, arm func()) bool {
	if !mode.Persists() {
		return false
	}

	blob, err := encodeSnapshot(snapshot)
	if err != nil {
		s.logger.Warn("save draft failed", "error", err)
		return false
	}
	if err := s.set(ctx, s.keys.Draft, blob); err != nil {
		s.logger.Warn("save draft failed", "key", s.keys.Draft, "error", err)
		return false
	}

	stamp := s.clock.Now().UTC().Format(time.RFC3339Nano)
	if err := s.set(ctx, s.keys.SavedAt, stamp); err != nil {
		s.logger.Warn("write draft timestamp failed", "key", s.keys.SavedAt, "error", err)
	}

	if arm != nil {
		arm()
	}
	return true
}

// SaveSection stores the active section. It returns false outside
// ModeCreate or when the write fails.
func (s *Store) SaveSection(ctx context.Context, mode Mode, section Section) bool {
	if !mode.Persists() {
		return false
	}
	if _, ok := ParseSection(string(section)); !ok {
		s.logger.Warn("refusing to save invalid section", "section", string(section))
		return false
	}
	if err := s.set(ctx, s.keys.Section, string(section)); err != nil {
		s.logger.Warn("save active section failed", "key", s.keys.Section, "error", err)
		return false
	}
	return true
}

// SavedAt returns the time of the last successful SaveDraft, if recorded.
func (s *Store) SavedAt(ctx context.Context) (time.Time, bool) {
	v, ok, err := s.get(ctx, s.keys.SavedAt)
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ClearDraft deletes every key the store owns regardless of mode. Each
// deletion is attempted even if an earlier one failed.
func (s *Store) ClearDraft(ctx context.Context) {
	for _, key := range []string{s.keys.Draft, s.keys.Section, s.keys.SavedAt} {
		if err := s.delete(ctx, key); err != nil {
			s.logger.Warn("clear draft key failed", "key", key, "error", err)
		}
	}
}
