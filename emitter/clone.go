package emitter

import "encoding/json"

// cloneJSON deep-copies v through a JSON round-trip, isolating stored state
// from later mutation of the caller's value. Values that do not survive the
// round-trip (channels, funcs, cycles) are returned unchanged.
func cloneJSON[T any](v T) T {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}
