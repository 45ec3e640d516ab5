package form

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"formsync/internal/clock"
	"formsync/internal/draft"
	"formsync/internal/indicator"
	"formsync/internal/logging"
	"formsync/internal/notify"
	"formsync/internal/reconciler"
	"formsync/internal/validation"
)

// Errors returned by Session.
var (
	ErrReadOnly = errors.New("form: session is read-only")
	ErrClosed   = errors.New("form: session closed")
)

// Submitter sends a validated form to the API.
type Submitter interface {
	Submit(ctx context.Context, values map[string]any) error
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(ctx context.Context, values map[string]any) error

func (f SubmitFunc) Submit(ctx context.Context, values map[string]any) error { return f(ctx, values) }

// Options configures a Session.
type Options struct {
	Mode draft.Mode

	// Drafts persists the form in ModeCreate. Nil disables drafts.
	Drafts *draft.Store

	Validator validation.Validator
	Submitter Submitter

	// Sink receives user-facing notifications. Defaults to notify.Discard.
	Sink notify.Sink

	Logger *slog.Logger
	Clock  clock.Clock

	// Debounce is the per-field commit delay.
	Debounce time.Duration

	// AutosaveInterval is the quiet period after a change before the draft
	// is written. Zero writes on every change.
	AutosaveInterval time.Duration

	// FlushOnUnmount commits pending field values and a pending autosave on
	// Close instead of dropping them.
	FlushOnUnmount bool

	// Defaults are the initial field values. Defaults to PlanDefaults.
	Defaults map[string]any

	// SessionID tags log lines. Generated when empty.
	SessionID string
}

// Session is one open form screen.
type Session struct {
	id        string
	mode      draft.Mode
	drafts    *draft.Store
	validator validation.Validator
	submitter Submitter
	sink      notify.Sink
	logger    *slog.Logger
	clock     clock.Clock
	interval  time.Duration
	flush     bool
	defaults  map[string]any

	ctx    context.Context
	cancel context.CancelFunc

	state     *State
	indicator *indicator.Indicator
	unsub     func()

	mu            sync.Mutex
	fields        map[string]*reconciler.Field
	debounce      time.Duration
	section       draft.Section
	restored      bool
	closed        bool
	resetting     bool
	autosaveTimer clock.Timer
	autosaveGen   uint64
}

// Open starts a session. In ModeCreate an existing draft is restored into
// the form state and active section before the session is returned.
func Open(ctx context.Context, opts Options) *Session {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Discard
	}
	defaults := opts.Defaults
	if defaults == nil {
		defaults = PlanDefaults()
	}
	id := opts.SessionID
	if id == "" {
		id = logging.NewSessionID()
	}

	base, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		id:        id,
		mode:      opts.Mode,
		drafts:    opts.Drafts,
		validator: opts.Validator,
		submitter: opts.Submitter,
		sink:      sink,
		logger:    logging.OrDiscard(opts.Logger).With("component", "form", "session_id", id, "mode", opts.Mode.String()),
		clock:     c,
		interval:  max(opts.AutosaveInterval, 0),
		flush:     opts.FlushOnUnmount,
		defaults:  copyValues(defaults),
		ctx:       base,
		cancel:    cancel,
		state:     NewState(defaults),
		indicator: indicator.New(c),
		fields:    make(map[string]*reconciler.Field),
		debounce:  max(opts.Debounce, 0),
		section:   draft.SectionBasic,
	}

	if s.drafts != nil && s.drafts.HasDraft(ctx, s.mode) {
		s.drafts.LoadDraft(ctx, s.mode, s.state.SetFieldValue, func(sec draft.Section) {
			s.section = sec
		})
		s.restored = true
		s.logger.Info("draft restored", "section", s.section.String())
		s.sink.Notify(notify.Message{
			Kind:        notify.KindInfo,
			Title:       "Draft restored",
			Description: "Your unsaved changes from a previous session were restored.",
		})
	}

	s.unsub = s.state.Subscribe(s.onStateChange)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Mode returns the operating mode.
func (s *Session) Mode() draft.Mode { return s.mode }

// State returns the form state container.
func (s *Session) State() *State { return s.state }

// Indicator returns the save indicator.
func (s *Session) Indicator() *indicator.Indicator { return s.indicator }

// Restored reports whether Open restored a draft.
func (s *Session) Restored() bool { return s.restored }

// SavingVisible reports whether the "saved" indicator is showing.
func (s *Session) SavingVisible() bool { return s.indicator.Visible() }

// Field returns the reconciled input bound to name, creating it on first
// use. Fields of a ModeView session ignore input.
func (s *Session) Field(name string) *reconciler.Field {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f, ok := s.fields[name]; ok {
		return f
	}

	v, _ := s.state.Value(name)
	f := reconciler.New(reconciler.Options{
		Name:         name,
		Value:        stringValue(v),
		Debounce:     s.debounce,
		FlushOnClose: s.flush,
		Disabled:     !s.mode.Editable(),
		Clock:        s.clock,
		OnChange: func(value string) {
			s.state.SetFieldValue(name, value)
		},
	})
	s.fields[name] = f
	return f
}

// FieldNames returns the names of the fields created so far.
func (s *Session) FieldNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fieldNamesLocked()
}

func (s *Session) fieldNamesLocked() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Session) snapshotFields() []*reconciler.Field {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*reconciler.Field, 0, len(s.fields))
	for _, name := range s.fieldNamesLocked() {
		out = append(out, s.fields[name])
	}
	return out
}

// SetDebounce changes the debounce period of every field, flushing pending
// commits.
func (s *Session) SetDebounce(d time.Duration) {
	d = max(d, 0)
	s.mu.Lock()
	s.debounce = d
	s.mu.Unlock()

	for _, f := range s.snapshotFields() {
		f.SetDebounce(d)
	}
}

// Section returns the active section.
func (s *Session) Section() draft.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.section
}

// SetSection switches the active section and, in ModeCreate, stores it with
// the draft.
func (s *Session) SetSection(ctx context.Context, section draft.Section) error {
	if _, ok := draft.ParseSection(string(section)); !ok {
		return fmt.Errorf("unknown section %q", section)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.section = section
	s.mu.Unlock()

	if s.drafts != nil {
		s.drafts.SaveSection(ctx, s.mode, section)
	}
	return nil
}

func (s *Session) onStateChange(name string, value any) {
	s.mu.Lock()
	f := s.fields[name]
	resetting := s.resetting
	s.mu.Unlock()

	if f != nil {
		f.SetValue(stringValue(value))
	}
	if !resetting {
		s.scheduleAutosave()
	}
}

func (s *Session) scheduleAutosave() {
	if s.drafts == nil || !s.mode.Persists() {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopAutosaveLocked()
	if s.interval == 0 {
		s.mu.Unlock()
		s.autosave()
		return
	}
	gen := s.autosaveGen
	s.autosaveTimer = s.clock.AfterFunc(s.interval, func() {
		s.fireAutosave(gen)
	})
	s.mu.Unlock()
}

func (s *Session) fireAutosave(gen uint64) {
	s.mu.Lock()
	if s.autosaveTimer == nil || s.autosaveGen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.autosaveTimer = nil
	s.autosaveGen++
	s.mu.Unlock()

	s.autosave()
}

func (s *Session) stopAutosaveLocked() bool {
	if s.autosaveTimer == nil {
		return false
	}
	s.autosaveTimer.Stop()
	s.autosaveTimer = nil
	s.autosaveGen++
	return true
}

func (s *Session) autosave() bool {
	ok := s.drafts.SaveDraft(s.ctx, s.mode, s.state.Values(), s.indicator.Arm)
	if ok {
		s.logger.Debug("draft autosaved")
	}
	return ok
}

// AutosavePending reports whether an autosave is scheduled.
func (s *Session) AutosavePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autosaveTimer != nil
}

// SaveNow commits every field with blur semantics and writes the draft
// immediately. It returns whether a draft was written.
func (s *Session) SaveNow(ctx context.Context) bool {
	for _, f := range s.snapshotFields() {
		f.HandleBlur()
	}

	s.mu.Lock()
	if s.closed || s.drafts == nil {
		s.mu.Unlock()
		return false
	}
	s.stopAutosaveLocked()
	s.mu.Unlock()

	return s.drafts.SaveDraft(ctx, s.mode, s.state.Values(), s.indicator.Arm)
}

// Submit commits every field, validates the form and hands it to the
// Submitter. Validation failures return *validation.Errors. On success a
// ModeCreate session clears the draft; other modes leave it in place.
func (s *Session) Submit(ctx context.Context) error {
	if !s.mode.Editable() {
		return ErrReadOnly
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}

	for _, f := range s.snapshotFields() {
		f.HandleBlur()
	}
	values := s.state.Values()

	if s.validator != nil {
		if errs := s.validator.Validate(values); errs != nil {
			s.logger.Info("submit rejected", "errors", errs.Len())
			s.sink.Notify(notify.Message{
				Kind:        notify.KindError,
				Title:       "Please fix the highlighted fields",
				Description: errs.Error(),
			})
			return errs
		}
	}

	if s.submitter != nil {
		if err := s.submitter.Submit(ctx, values); err != nil {
			s.logger.Warn("submit failed", "error", err)
			s.sink.Notify(notify.Message{
				Kind:        notify.KindError,
				Title:       "Could not save plan",
				Description: err.Error(),
			})
			return fmt.Errorf("submit form: %w", err)
		}
	}

	s.mu.Lock()
	s.stopAutosaveLocked()
	s.mu.Unlock()

	if s.drafts != nil && s.mode.Persists() {
		s.drafts.ClearDraft(ctx)
	}

	title := "Plan created"
	if s.mode == draft.ModeEdit {
		title = "Plan updated"
	}
	s.logger.Info("form submitted")
	s.sink.Notify(notify.Message{Kind: notify.KindSuccess, Title: title})
	return nil
}

// Discard returns the form to its defaults. A ModeCreate session also drops
// the draft.
func (s *Session) Discard(ctx context.Context) {
	s.mu.Lock()
	s.stopAutosaveLocked()
	s.resetting = true
	s.section = draft.SectionBasic
	s.mu.Unlock()

	for _, f := range s.snapshotFields() {
		v := s.defaults[f.Name()]
		f.Reset(stringValue(v))
	}
	s.state.Reset(s.defaults)

	s.mu.Lock()
	s.resetting = false
	s.mu.Unlock()

	title := "Changes discarded"
	if s.drafts != nil && s.mode.Persists() {
		s.drafts.ClearDraft(ctx)
		title = "Draft discarded"
	}
	s.logger.Info("form discarded")
	s.sink.Notify(notify.Message{Kind: notify.KindInfo, Title: title})
}

// Close unmounts every field and stops the autosave and indicator timers.
// Pending commits are dropped unless FlushOnUnmount was set, in which case
// they are committed and a pending autosave is written before returning.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	for _, f := range s.snapshotFields() {
		f.Close()
	}

	s.mu.Lock()
	s.closed = true
	hadPending := s.stopAutosaveLocked()
	s.mu.Unlock()

	if s.flush && hadPending {
		s.autosave()
	}

	s.unsub()
	s.indicator.Close()
	s.cancel()
}
