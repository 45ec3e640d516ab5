package draft

import (
	"fmt"
	"strings"
)

// Mode is the operating mode of a form screen.
type Mode int

const (
	ModeCreate Mode = iota
	ModeEdit
	ModeView
)

// ParseMode parses "create", "edit" or "view".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return ModeCreate, nil
	case "edit":
		return ModeEdit, nil
	case "view":
		return ModeView, nil
	default:
		return 0, fmt.Errorf("unknown mode %q", s)
	}
}

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeEdit:
		return "edit"
	case ModeView:
		return "view"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Persists reports whether drafts are saved and restored in this mode. Only
// ModeCreate persists.
func (m Mode) Persists() bool {
	switch m {
	case ModeCreate:
		return true
	case ModeEdit, ModeView:
		return false
	default:
		return false
	}
}

// Editable reports whether fields accept input in this mode.
func (m Mode) Editable() bool {
	return m != ModeView
}
