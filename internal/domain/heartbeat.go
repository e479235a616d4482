package domain

import "time"

// Worker lifecycle states published in heartbeats.
const (
	WorkerStarting = "starting"
	WorkerIdle     = "idle"
	WorkerRunning  = "running"
	WorkerError    = "error"
	WorkerStopping = "stopping"
)

// Heartbeat is the latest liveness record published by the worker. Consumers
// compute staleness as now minus Timestamp and compare against a TTL.
type Heartbeat struct {
	Timestamp  time.Time `json:"timestamp"`
	State      string    `json:"state"`
	JobID      string    `json:"job_id,omitempty"`
	RetryCount *int      `json:"retry_count,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Age returns the heartbeat staleness at the given instant, floored at zero.
func (h Heartbeat) Age(now time.Time) time.Duration {
	age := now.Sub(h.Timestamp)
	if age < 0 {
		return 0
	}
	return age
}
