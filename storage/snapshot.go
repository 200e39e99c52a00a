package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// snapshotEnvelope frames a persisted state snapshot with a checksum of the
// payload so torn or hand-edited snapshots are detected on load.
type snapshotEnvelope struct {
	Sum  uint64          `json:"sum"`
	Data json.RawMessage `json:"data"`
}

// EncodeSnapshot renders value as a checksummed snapshot string suitable for
// Store.Set.
func EncodeSnapshot(value any) (string, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	env := snapshotEnvelope{Sum: xxhash.Sum64(payload), Data: payload}
	data, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	return string(data), nil
}

// DecodeSnapshot parses a snapshot produced by EncodeSnapshot into into.
// Malformed framing, a checksum mismatch, or an undecodable payload all
// report ErrCorruptSnapshot; callers are expected to fall back to defaults.
func DecodeSnapshot(raw string, into any) error {
	var env snapshotEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if env.Data == nil {
		return fmt.Errorf("%w: missing payload", ErrCorruptSnapshot)
	}
	if xxhash.Sum64(env.Data) != env.Sum {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptSnapshot)
	}
	if err := json.Unmarshal(env.Data, into); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	return nil
}
