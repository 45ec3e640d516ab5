// Package reconciler keeps a single input's optimistic local value consistent
// with a caller-owned value and a debounced commit callback.
//
// A Field shows every keystroke immediately, commits upward once the user
// pauses (or leaves the field), and refuses to let an externally pushed value
// overwrite what the user is in the middle of typing.
package reconciler

import (
	"sync"
	"time"

	"formsync/internal/clock"
)

// Options configures a Field.
type Options struct {
	// Name identifies the field, usually the form key it is bound to.
	Name string

	// Value is the initial caller-owned value.
	Value string

	// Debounce is the quiet period before a keystroke is committed.
	// Zero commits every keystroke synchronously.
	Debounce time.Duration

	// OnChange receives committed values, one at a time and in commit
	// order. It may call SetValue, Value or the other accessors, but must not
	// call HandleInput, HandleBlur, SetDebounce, Reset or Close on the same
	// field.
	OnChange func(value string)

	// FlushOnClose commits an unflushed value on Close with blur semantics.
	// When false, Close drops it.
	FlushOnClose bool

	// Disabled suppresses HandleInput and HandleBlur.
	Disabled bool

	// Clock schedules the debounce timer. Defaults to clock.Real.
	Clock clock.Clock
}

// Field is the per-input state machine.
type Field struct {
	// emitMu is taken before mu and held across OnChange so deliveries
	// never overlap or reorder.
	emitMu sync.Mutex
	mu     sync.Mutex

	name         string
	clock        clock.Clock
	onChange     func(string)
	debounce     time.Duration
	flushOnClose bool
	disabled     bool
	closed       bool

	local       string
	lastEmitted string
	typing      bool

	// timer is the single live debounce timer; gen invalidates timers that
	// fire after being replaced or stopped.
	timer clock.Timer
	gen   uint64
}

// New creates a Field seeded with opts.Value as both the local and the last
// emitted value.
func New(opts Options) *Field {
	c := opts.Clock
	if c == nil {
		c = clock.Real{}
	}
	onChange := opts.OnChange
	if onChange == nil {
		onChange = func(string) {}
	}
	debounce := opts.Debounce
	if debounce < 0 {
		debounce = 0
	}
	return &Field{
		name:         opts.Name,
		clock:        c,
		onChange:     onChange,
		debounce:     debounce,
		flushOnClose: opts.FlushOnClose,
		disabled:     opts.Disabled,
		local:        opts.Value,
		lastEmitted:  opts.Value,
	}
}

// Name returns the field name.
func (f *Field) Name() string { return f.name }

// Value returns the value to render.
func (f *Field) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local
}

// LastEmitted returns the last value delivered to OnChange.
func (f *Field) LastEmitted() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastEmitted
}

// Typing reports whether external values are currently being ignored.
func (f *Field) Typing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.typing
}

// Pending reports whether a debounce timer is live.
func (f *Field) Pending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer != nil
}

// Debounce returns the current debounce period.
func (f *Field) Debounce() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.debounce
}

// HandleInput records a keystroke.
func (f *Field) HandleInput(value string) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.disabled || f.closed {
		f.mu.Unlock()
		return
	}

	f.typing = true
	f.local = value
	f.stopTimerLocked()

	if f.debounce == 0 {
		f.lastEmitted = value
		f.typing = false
		onChange := f.onChange
		f.mu.Unlock()
		onChange(value)
		return
	}

	gen := f.gen
	f.timer = f.clock.AfterFunc(f.debounce, func() {
		f.fire(gen, value)
	})
	f.mu.Unlock()
}

// HandleBlur ends typing and commits a value the timer has not delivered yet.
func (f *Field) HandleBlur() {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.disabled || f.closed {
		f.mu.Unlock()
		return
	}

	f.typing = false
	value, emit := f.flushLocked()
	onChange := f.onChange
	f.mu.Unlock()

	if emit {
		onChange(value)
	}
}

// SetValue reconciles a value pushed by the owner. It is dropped while the
// user is typing.
func (f *Field) SetValue(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.typing || value == f.lastEmitted {
		return
	}
	f.local = value
	f.lastEmitted = value
}

// Reset discards any pending commit and replaces both the local and the last
// emitted value. Nothing is emitted.
func (f *Field) Reset(value string) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.stopTimerLocked()
	f.typing = false
	f.local = value
	f.lastEmitted = value
}

// SetDebounce changes the debounce period. A pending timer is flushed with
// blur semantics before the new period takes effect.
func (f *Field) SetDebounce(d time.Duration) {
	if d < 0 {
		d = 0
	}

	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.closed || d == f.debounce {
		f.mu.Unlock()
		return
	}

	var (
		value string
		emit  bool
	)
	if f.timer != nil {
		f.typing = false
		value, emit = f.flushLocked()
	}
	f.debounce = d
	onChange := f.onChange
	f.mu.Unlock()

	if emit {
		onChange(value)
	}
}

// SetDisabled toggles input registration.
func (f *Field) SetDisabled(disabled bool) {
	f.mu.Lock()
	f.disabled = disabled
	f.mu.Unlock()
}

// Close unmounts the field. A pending timer is cancelled; its value is
// dropped unless FlushOnClose was set.
func (f *Field) Close() {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.typing = false

	var (
		value string
		emit  bool
	)
	if f.flushOnClose {
		value, emit = f.flushLocked()
	} else {
		f.stopTimerLocked()
	}
	onChange := f.onChange
	f.mu.Unlock()

	if emit {
		onChange(value)
	}
}

// fire delivers a debounced value. The generation is checked after emitMu
// is acquired, so a timer that lost the race to a blur, reset or close
// delivers nothing.
func (f *Field) fire(gen uint64, value string) {
	f.emitMu.Lock()
	defer f.emitMu.Unlock()

	f.mu.Lock()
	if f.timer == nil || f.gen != gen {
		f.mu.Unlock()
		return
	}
	f.timer = nil
	f.gen++
	f.lastEmitted = value
	f.typing = false
	onChange := f.onChange
	f.mu.Unlock()

	onChange(value)
}

// flushLocked cancels a pending timer and reports the value to emit, if the
// local value has not been delivered yet.
func (f *Field) flushLocked() (string, bool) {
	if f.timer == nil {
		return "", false
	}
	f.stopTimerLocked()
	if f.local == f.lastEmitted {
		return "", false
	}
	f.lastEmitted = f.local
	return f.local, true
}

func (f *Field) stopTimerLocked() {
	if f.timer == nil {
		return
	}
	f.timer.Stop()
	f.timer = nil
	f.gen++
}
