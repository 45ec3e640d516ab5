package form

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateSetAndValues(t *testing.T) {
	s := NewState(map[string]any{"name": "", "currency": "USD"})

	s.SetFieldValue("name", "Pro")
	v, ok := s.Value("name")
	assert.True(t, ok)
	assert.Equal(t, "Pro", v)

	values := s.Values()
	values["name"] = "mutated"
	v, _ = s.Value("name")
	assert.Equal(t, "Pro", v, "Values returns a copy")

	_, ok = s.Value("missing")
	assert.False(t, ok)
}

func TestStateSubscribe(t *testing.T) {
	s := NewState(nil)

	var seen []string
	unsubscribe := s.Subscribe(func(name string, value any) {
		seen = append(seen, name+"="+stringValue(value))
	})

	s.SetFieldValue("name", "Pro")
	s.SetFieldValue("trialDays", 14)
	unsubscribe()
	s.SetFieldValue("name", "ignored")

	assert.Equal(t, []string{"name=Pro", "trialDays=14"}, seen)
}

func TestStateSubscriberMayWrite(t *testing.T) {
	s := NewState(nil)
	s.Subscribe(func(name string, value any) {
		if name == "monthlyPrice" {
			s.SetFieldValue("yearlyPrice", stringValue(value)+"0")
		}
	})

	s.SetFieldValue("monthlyPrice", "29")
	v, _ := s.Value("yearlyPrice")
	assert.Equal(t, "290", v)
}

func TestStateReset(t *testing.T) {
	s := NewState(map[string]any{"name": ""})
	s.SetFieldValue("name", "Pro")
	s.SetFieldValue("extra", "x")

	var seen []string
	s.Subscribe(func(name string, value any) {
		seen = append(seen, name+"="+stringValue(value))
	})
	s.Reset(map[string]any{"name": ""})

	assert.Equal(t, []string{"extra=", "name="}, seen)
	assert.Equal(t, map[string]any{"name": ""}, s.Values())
}

func TestStringValue(t *testing.T) {
	assert.Equal(t, "", stringValue(nil))
	assert.Equal(t, "abc", stringValue("abc"))
	assert.Equal(t, "14", stringValue(14))
	assert.Equal(t, "true", stringValue(true))
}
