package refresh

import (
	"encoding/json"
	"time"
)

// State is the refresh lifecycle of a Coordinator.
type State int

const (
	StateIdle State = iota
	StateRefreshing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// Status is a point-in-time summary of a Coordinator. Stale is true when the
// last refresh failed but an older forecast is still served.
type Status struct {
	Location    string    `json:"location"`
	State       State     `json:"state"`
	FetchedAt   time.Time `json:"fetched_at,omitzero"`
	LastAttempt time.Time `json:"last_attempt,omitzero"`
	Hours       int       `json:"hours"`
	Stale       bool      `json:"stale"`
	LastError   string    `json:"last_error,omitempty"`
	ErrorKind   string    `json:"error_kind"`
}
