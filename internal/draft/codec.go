package draft

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Snapshot is the form's field values keyed by field name. The store passes
// values through without interpreting them.
type Snapshot map[string]any

func encodeSnapshot(s Snapshot) (string, error) {
	if s == nil {
		s = Snapshot{}
	}
	out, err := sonic.MarshalString(s)
	if err != nil {
		return "", fmt.Errorf("encode draft: %w", err)
	}
	return out, nil
}

// decodeSnapshot parses a blob completely before any value is handed out, so
// a malformed blob yields nothing rather than a prefix of its fields.
func decodeSnapshot(blob string) (Snapshot, error) {
	var s Snapshot
	if err := sonic.UnmarshalString(blob, &s); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return s, nil
}
