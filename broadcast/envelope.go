// Package broadcast carries state-change messages between execution contexts.
// The in-process MemoryBus links emitters inside one process; the Connect
// relay extends the same Bus contract across process boundaries.
package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Envelope is one broadcast message. Type is the channel name the message
// belongs to; receivers ignore envelopes whose Type they are not watching.
type Envelope struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewEnvelope builds an Envelope for the named channel, encoding data as
// JSON and assigning a time-ordered unique ID.
func NewEnvelope(channel string, data any) (Envelope, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode envelope: %w", err)
	}

	return Envelope{
		ID:   uuid.Must(uuid.NewV7()).String(),
		Type: channel,
		Data: payload,
	}, nil
}
