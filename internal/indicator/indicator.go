// Package indicator implements the transient "saved" flag shown after a
// successful draft write.
package indicator

import (
	"slices"
	"sync"
	"time"

	"formsync/internal/clock"
)

// ResetDelay is how long the indicator stays visible after the first arm.
const ResetDelay = 2000 * time.Millisecond

// Indicator is a boolean that flips true on Arm and back to false after
// ResetDelay. Arming while already visible does not extend the timer.
type Indicator struct {
	mu       sync.Mutex
	clock    clock.Clock
	visible  bool
	timer    clock.Timer
	gen      uint64
	onChange []func(bool)
}

// New creates a hidden indicator. A nil clock uses clock.Real.
func New(c clock.Clock) *Indicator {
	if c == nil {
		c = clock.Real{}
	}
	return &Indicator{clock: c}
}

// Arm shows the indicator and schedules its reset, unless it is already
// showing, in which case the original reset stays authoritative.
func (i *Indicator) Arm() {
	i.mu.Lock()
	if i.visible {
		i.mu.Unlock()
		return
	}
	i.visible = true
	i.gen++
	gen := i.gen
	i.timer = i.clock.AfterFunc(ResetDelay, func() {
		i.reset(gen)
	})
	observers := i.observersLocked()
	i.mu.Unlock()

	notify(observers, true)
}

// Visible reports the current flag.
func (i *Indicator) Visible() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.visible
}

// OnChange registers an observer invoked on every flip.
func (i *Indicator) OnChange(fn func(visible bool)) {
	if fn == nil {
		return
	}
	i.mu.Lock()
	i.onChange = append(i.onChange, fn)
	i.mu.Unlock()
}

// Close cancels the outstanding reset timer and hides the indicator.
func (i *Indicator) Close() {
	i.mu.Lock()
	if i.timer != nil {
		i.timer.Stop()
		i.timer = nil
	}
	i.gen++
	wasVisible := i.visible
	i.visible = false
	observers := i.observersLocked()
	i.mu.Unlock()

	if wasVisible {
		notify(observers, false)
	}
}

func (i *Indicator) reset(gen uint64) {
	i.mu.Lock()
	if gen != i.gen {
		i.mu.Unlock()
		return
	}
	i.timer = nil
	i.visible = false
	observers := i.observersLocked()
	i.mu.Unlock()

	notify(observers, false)
}

func (i *Indicator) observersLocked() []func(bool) {
	if len(i.onChange) == 0 {
		return nil
	}
	return slices.Clone(i.onChange)
}

func notify(observers []func(bool), visible bool) {
	for _, fn := range observers {
		fn(visible)
	}
}
