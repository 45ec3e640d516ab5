// Package form composes reconciled fields, the draft store and the save
// indicator into one form screen session.
package form

import (
	"fmt"
	"sort"
	"sync"
)

// State is the in-memory source of truth for a form's field values.
type State struct {
	mu     sync.Mutex
	values map[string]any
	subs   map[int]func(name string, value any)
	nextID int
}

// NewState creates a state seeded with a copy of defaults.
func NewState(defaults map[string]any) *State {
	return &State{
		values: copyValues(defaults),
		subs:   make(map[int]func(string, any)),
	}
}

// SetFieldValue stores value under name and notifies subscribers. Callbacks
// run after the state lock is released.
func (s *State) SetFieldValue(name string, value any) {
	s.mu.Lock()
	s.values[name] = value
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(name, value)
	}
}

// Value returns the value stored under name.
func (s *State) Value(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

// Values returns a copy of every field value.
func (s *State) Values() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyValues(s.values)
}

// Subscribe registers fn for every change and returns a function that
// removes it.
func (s *State) Subscribe(fn func(name string, value any)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Reset replaces every value with defaults. Subscribers are notified for
// each default in name order, and for each dropped field with a nil value.
func (s *State) Reset(defaults map[string]any) {
	s.mu.Lock()
	old := s.values
	s.values = copyValues(defaults)

	names := make([]string, 0, len(old)+len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	for name := range old {
		if _, kept := s.values[name]; !kept {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	values := copyValues(s.values)
	subs := s.subscribersLocked()
	s.mu.Unlock()

	for _, name := range names {
		for _, fn := range subs {
			fn(name, values[name])
		}
	}
}

func (s *State) subscribersLocked() []func(string, any) {
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]func(string, any), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

func copyValues(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// stringValue renders a state value for a text input.
func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
