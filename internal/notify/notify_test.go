package notify

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(Message{Kind: KindInfo, Title: "Draft restored"})
	r.Notify(Message{Kind: KindError, Title: "Submit failed", Description: "name: required"})

	msgs := r.Messages()
	require.Len(t, msgs, 2)
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, KindError, last.Kind)

	msgs[0].Title = "mutated"
	assert.Equal(t, "Draft restored", r.Messages()[0].Title)

	r.Reset()
	assert.Empty(t, r.Messages())
}

func TestMessageString(t *testing.T) {
	assert.Equal(t, "[info] Draft restored", Message{Kind: KindInfo, Title: "Draft restored"}.String())
	assert.Equal(t, "[error] Submit failed: boom",
		Message{Kind: KindError, Title: "Submit failed", Description: "boom"}.String())
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	sink := NewLogSink(logger)

	sink.Notify(Message{Kind: KindInfo, Title: "ignored at warn level"})
	sink.Notify(Message{Kind: KindError, Title: "Submit failed", Description: "boom"})

	out := buf.String()
	assert.NotContains(t, out, "ignored")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, `msg="Submit failed"`)
	assert.Contains(t, out, "description=boom")
}

func TestMulti(t *testing.T) {
	var a, b Recorder
	Multi(&a, nil, &b).Notify(Message{Kind: KindSuccess, Title: "Plan created"})
	assert.Len(t, a.Messages(), 1)
	assert.Len(t, b.Messages(), 1)

	assert.NotPanics(t, func() { Discard.Notify(Message{}) })
}
