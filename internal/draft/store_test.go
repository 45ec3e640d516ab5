package draft

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formsync/internal/clock"
	"formsync/internal/kv"
)

var errBroken = errors.New("storage unavailable")

// faultyStore wraps a memory store and fails selected operations.
type faultyStore struct {
	*kv.Memory
	failGet    bool
	failSet    map[string]bool
	failDelete map[string]bool
	deleted    []string
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		Memory:     kv.NewMemory(),
		failSet:    map[string]bool{},
		failDelete: map[string]bool{},
	}
}

func (f *faultyStore) Get(ctx context.Context, key string) (string, bool, error) {
	if f.failGet {
		return "", false, errBroken
	}
	return f.Memory.Get(ctx, key)
}

func (f *faultyStore) Set(ctx context.Context, key, value string) error {
	if f.failSet[key] {
		return errBroken
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *faultyStore) Delete(ctx context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	if f.failDelete[key] {
		return errBroken
	}
	return f.Memory.Delete(ctx, key)
}

type applied struct {
	fields  map[string]any
	calls   int
	section Section
}

func (a *applied) setField(name string, value any) {
	if a.fields == nil {
		a.fields = map[string]any{}
	}
	a.fields[name] = value
	a.calls++
}

func (a *applied) setSection(s Section) { a.section = s }

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeCreate, ModeEdit, ModeView} {
		parsed, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
	_, err := ParseMode("delete")
	assert.Error(t, err)

	assert.True(t, ModeCreate.Persists())
	assert.False(t, ModeEdit.Persists())
	assert.False(t, ModeView.Persists())
	assert.False(t, Mode(42).Persists())
	assert.False(t, ModeView.Editable())
}

func TestParseSection(t *testing.T) {
	for _, s := range Sections() {
		got, ok := ParseSection(string(s))
		assert.True(t, ok)
		assert.Equal(t, s, got)
	}
	for _, token := range []string{"", "Basic", "billing", " pricing"} {
		_, ok := ParseSection(token)
		assert.False(t, ok, "token %q", token)
	}
}

func TestKeysFor(t *testing.T) {
	k := New(kv.NewMemory(), Options{}).Keys()
	assert.Equal(t, "plan-form:draft", k.Draft)
	assert.Equal(t, "plan-form:active-section", k.Section)
	assert.Equal(t, "plan-form:saved-at", k.SavedAt)

	assert.Equal(t, "tenant:draft", KeysFor("tenant").Draft)
}

func TestModeGating(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem, Options{})

	require.True(t, s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Pro"}, nil))
	require.True(t, s.SaveSection(ctx, ModeCreate, SectionPricing))

	for _, mode := range []Mode{ModeEdit, ModeView} {
		t.Run(mode.String(), func(t *testing.T) {
			assert.False(t, s.HasDraft(ctx, mode))

			var a applied
			s.LoadDraft(ctx, mode, a.setField, a.setSection)
			assert.Zero(t, a.calls)
			assert.Empty(t, a.section)

			armed := false
			assert.False(t, s.SaveDraft(ctx, mode, Snapshot{"name": "Other"}, func() { armed = true }))
			assert.False(t, armed)
			assert.False(t, s.SaveSection(ctx, mode, SectionSLA))

			blob, _, err := mem.Get(ctx, s.Keys().Draft)
			require.NoError(t, err)
			assert.JSONEq(t, `{"name":"Pro"}`, blob)
		})
	}
}

func TestHasDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("empty", func(t *testing.T) {
		assert.False(t, New(kv.NewMemory(), Options{}).HasDraft(ctx, ModeCreate))
	})

	t.Run("section only", func(t *testing.T) {
		s := New(kv.NewMemory(), Options{})
		require.True(t, s.SaveSection(ctx, ModeCreate, SectionAddons))
		assert.True(t, s.HasDraft(ctx, ModeCreate))
	})

	t.Run("read error", func(t *testing.T) {
		f := newFaultyStore()
		s := New(f, Options{})
		require.True(t, s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "x"}, nil))
		f.failGet = true
		assert.False(t, s.HasDraft(ctx, ModeCreate))
	})
}

func TestLoadDraftPartial(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	s := New(mem, Options{})
	require.NoError(t, mem.Set(ctx, s.Keys().Draft, `{"name":"Starter","monthlyPrice":"9"}`))

	defaults := map[string]any{"name": "", "monthlyPrice": "", "description": "default"}
	s.LoadDraft(ctx, ModeCreate, func(name string, v any) { defaults[name] = v }, nil)

	assert.Equal(t, "Starter", defaults["name"])
	assert.Equal(t, "9", defaults["monthlyPrice"])
	assert.Equal(t, "default", defaults["description"], "absent keys are left untouched")
}

func TestLoadDraftMalformed(t *testing.T) {
	ctx := context.Background()

	for _, blob := range []string{`{"name":"Starter",`, `not json`, `["name"]`} {
		t.Run(blob, func(t *testing.T) {
			mem := kv.NewMemory()
			s := New(mem, Options{})
			require.NoError(t, mem.Set(ctx, s.Keys().Draft, blob))
			require.NoError(t, mem.Set(ctx, s.Keys().Section, "features"))

			var a applied
			assert.NotPanics(t, func() {
				s.LoadDraft(ctx, ModeCreate, a.setField, a.setSection)
			})
			assert.Zero(t, a.calls, "a malformed blob applies no fields")
			assert.Equal(t, SectionFeatures, a.section, "section is independent of the blob")
		})
	}
}

func TestLoadDraftSectionValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		token string
		want  Section
	}{
		{"pricing", SectionPricing},
		{"sla", SectionSLA},
		{"billing", ""},
		{"", ""},
	}
	for _, tc := range tests {
		t.Run(tc.token, func(t *testing.T) {
			mem := kv.NewMemory()
			s := New(mem, Options{})
			require.NoError(t, mem.Set(ctx, s.Keys().Section, tc.token))

			called := false
			s.LoadDraft(ctx, ModeCreate, nil, func(sec Section) {
				called = true
				assert.Equal(t, tc.want, sec)
			})
			assert.Equal(t, tc.want != "", called)
		})
	}
}

func TestSaveDraft(t *testing.T) {
	ctx := context.Background()
	c := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	mem := kv.NewMemory()
	s := New(mem, Options{Clock: c})

	arms := 0
	ok := s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Pro", "trialDays": 14.0}, func() { arms++ })
	require.True(t, ok)
	assert.Equal(t, 1, arms)

	blob, found, err := mem.Get(ctx, s.Keys().Draft)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"name":"Pro","trialDays":14}`, blob)

	at, ok := s.SavedAt(ctx)
	require.True(t, ok)
	assert.True(t, at.Equal(c.Now()))
}

func TestSaveDraftWriteFailure(t *testing.T) {
	ctx := context.Background()
	f := newFaultyStore()
	s := New(f, Options{})

	f.failSet[s.Keys().Draft] = true
	armed := false
	assert.False(t, s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Pro"}, func() { armed = true }))
	assert.False(t, armed)
	assert.False(t, s.HasDraft(ctx, ModeCreate))
}

func TestSaveDraftTimestampFailureStillSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFaultyStore()
	s := New(f, Options{})

	f.failSet[s.Keys().SavedAt] = true
	armed := false
	assert.True(t, s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Pro"}, func() { armed = true }))
	assert.True(t, armed)
	_, ok := s.SavedAt(ctx)
	assert.False(t, ok)
}

func TestSaveDraftUnencodable(t *testing.T) {
	s := New(kv.NewMemory(), Options{})
	armed := false
	ok := s.SaveDraft(context.Background(), ModeCreate, Snapshot{"bad": make(chan int)}, func() { armed = true })
	assert.False(t, ok)
	assert.False(t, armed)
}

func TestSaveSectionRejectsInvalid(t *testing.T) {
	s := New(kv.NewMemory(), Options{})
	assert.False(t, s.SaveSection(context.Background(), ModeCreate, Section("billing")))
	assert.False(t, s.HasDraft(context.Background(), ModeCreate))
}

func TestClearDraft(t *testing.T) {
	ctx := context.Background()

	t.Run("regardless of mode", func(t *testing.T) {
		mem := kv.NewMemory()
		s := New(mem, Options{})
		require.True(t, s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Pro"}, nil))
		require.True(t, s.SaveSection(ctx, ModeCreate, SectionSLA))
		require.NoError(t, mem.Set(ctx, "other-form:draft", "{}"))

		s.ClearDraft(ctx)
		assert.False(t, s.HasDraft(ctx, ModeCreate))
		assert.Equal(t, 1, mem.Len(), "keys outside the namespace are untouched")
	})

	t.Run("best effort", func(t *testing.T) {
		f := newFaultyStore()
		s := New(f, Options{})
		require.True(t, s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Pro"}, nil))
		require.True(t, s.SaveSection(ctx, ModeCreate, SectionSLA))
		f.failDelete[s.Keys().Draft] = true

		assert.NotPanics(t, func() { s.ClearDraft(ctx) })
		assert.Equal(t, []string{s.Keys().Draft, s.Keys().Section, s.Keys().SavedAt}, f.deleted)

		_, ok, _ := f.Memory.Get(ctx, s.Keys().Section)
		assert.False(t, ok)
	})
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	backing, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "drafts.db"), "0123456789abcdef")
	require.NoError(t, err)
	defer backing.Close()

	first := New(backing, Options{Timeout: time.Second})
	require.True(t, first.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Test"}, nil))
	assert.True(t, first.HasDraft(ctx, ModeCreate))

	second := New(backing, Options{Timeout: time.Second})
	var a applied
	second.LoadDraft(ctx, ModeCreate, a.setField, a.setSection)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, map[string]any{"name": "Test"}, a.fields)

	second.ClearDraft(ctx)
	assert.False(t, second.HasDraft(ctx, ModeCreate))
}

func TestTamperedDraftIsNoDraft(t *testing.T) {
	ctx := context.Background()
	backing, err := kv.OpenSQLite(filepath.Join(t.TempDir(), "drafts.db"), "0123456789abcdef")
	require.NoError(t, err)
	defer backing.Close()

	s := New(backing, Options{})
	require.True(t, s.SaveDraft(ctx, ModeCreate, Snapshot{"name": "Test"}, nil))

	_, err = backing.DB().Exec(`UPDATE entries SET value = '{"name":"Evil"}' WHERE key = ?`, s.Keys().Draft)
	require.NoError(t, err)

	assert.False(t, s.HasDraft(ctx, ModeCreate))
	var a applied
	s.LoadDraft(ctx, ModeCreate, a.setField, a.setSection)
	assert.Zero(t, a.calls)
}
