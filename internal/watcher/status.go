package watcher

import "time"

// State is the step the watcher is currently in
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateExtracting State = "extracting"
	StateDiffing    State = "diffing"
	StateNotifying  State = "notifying"
	StatePersisting State = "persisting"
	StateSleeping   State = "sleeping"
)

// Status is a point-in-time view of the watcher, safe to hand to other
// goroutines
type Status struct {
	State               State     `json:"state"`
	StartedAt           time.Time `json:"started_at"`
	LastCheck           time.Time `json:"last_check,omitempty"`
	LastSuccess         time.Time `json:"last_success,omitempty"`
	LastChange          time.Time `json:"last_change,omitempty"`
	LastCycleID         string    `json:"last_cycle_id,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	LastAdded           int       `json:"last_added"`
	LastRemoved         int       `json:"last_removed"`
	Matches             int       `json:"matches"`
	Cycles              int       `json:"cycles"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	AlertThreshold      int       `json:"-"`
}

// Degraded reports whether failures reached the alert threshold
func (s Status) Degraded() bool {
	return s.AlertThreshold > 0 && s.ConsecutiveFailures >= s.AlertThreshold
}

// Uptime is the time since the watcher was created
func (s Status) Uptime(now time.Time) time.Duration {
	return now.Sub(s.StartedAt)
}
