// Package notify delivers user-facing messages such as "Draft restored" or a
// failed submission.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"formsync/internal/logging"
)

// Kind classifies a message.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
)

// Message is a single notification.
type Message struct {
	Kind        Kind
	Title       string
	Description string
}

func (m Message) String() string {
	if m.Description == "" {
		return fmt.Sprintf("[%s] %s", m.Kind, m.Title)
	}
	return fmt.Sprintf("[%s] %s: %s", m.Kind, m.Title, m.Description)
}

// Sink receives notifications.
type Sink interface {
	Notify(Message)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Message)

func (f SinkFunc) Notify(m Message) { f(m) }

// Discard drops every message.
var Discard Sink = SinkFunc(func(Message) {})

// LogSink writes notifications through a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger discards.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logging.OrDiscard(logger).With("component", "notify")}
}

func (s *LogSink) Notify(m Message) {
	level := slog.LevelInfo
	switch m.Kind {
	case KindWarning:
		level = slog.LevelWarn
	case KindError:
		level = slog.LevelError
	}
	s.logger.Log(context.Background(), level, m.Title, "kind", string(m.Kind), "description", m.Description)
}

// Recorder keeps every message it receives.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

func (r *Recorder) Notify(m Message) {
	r.mu.Lock()
	r.messages = append(r.messages, m)
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Last returns the most recent message.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}

// Multi fans a message out to several sinks.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(m Message) {
		for _, s := range sinks {
			if s != nil {
				s.Notify(m)
			}
		}
	})
}
