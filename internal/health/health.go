// Package health aggregates per-upstream and cache status into a single
// read-only snapshot for a liveness/readiness surface. It holds no
// state of its own beyond what it is given — no persistence, per
// spec.md's Non-goals.
package health

import "time"

// Status is "healthy", "degraded" or "down".
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusDown     Status = "down"
)

// UpstreamHealth reports one upstream's last known state.
type UpstreamHealth struct {
	Tag          string    `json:"tag"`
	Status       Status    `json:"status"`
	LastSuccess  time.Time `json:"last_success"`
	LastError    string    `json:"last_error,omitempty"`
	CircuitState string    `json:"circuit_state"`
}

// Report is the full aggregate health view.
type Report struct {
	Status        Status                    `json:"status"`
	Timestamp     time.Time                 `json:"timestamp"`
	Upstreams     map[string]UpstreamHealth `json:"upstreams"`
	LastTickAt    time.Time                 `json:"last_tick_at"`
	SubscriberCount int                     `json:"subscriber_count"`
}

// Tracker accumulates the inputs to a Report as the Scheduler and
// adapters report in.
type Tracker struct {
	upstreams map[string]UpstreamHealth
	lastTick  time.Time
}

// NewTracker builds an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{upstreams: make(map[string]UpstreamHealth)}
}

// RecordSuccess marks tag as healthy as of now.
func (t *Tracker) RecordSuccess(tag string, circuitState string, now time.Time) {
	t.upstreams[tag] = UpstreamHealth{
		Tag:          tag,
		Status:       StatusHealthy,
		LastSuccess:  now,
		CircuitState: circuitState,
	}
}

// RecordFailure marks tag as degraded (or down, if the circuit is open)
// with the given error.
func (t *Tracker) RecordFailure(tag string, circuitState string, err error, now time.Time) {
	prev := t.upstreams[tag]
	status := StatusDegraded
	if circuitState == "open" {
		status = StatusDown
	}
	t.upstreams[tag] = UpstreamHealth{
		Tag:          tag,
		Status:       status,
		LastSuccess:  prev.LastSuccess,
		LastError:    err.Error(),
		CircuitState: circuitState,
	}
}

// RecordTick stamps the time of the most recent completed tick.
func (t *Tracker) RecordTick(now time.Time) {
	t.lastTick = now
}

// Snapshot builds a Report from the accumulated state.
func (t *Tracker) Snapshot(subscriberCount int) Report {
	overall := StatusHealthy
	for _, u := range t.upstreams {
		if u.Status == StatusDown {
			overall = StatusDegraded
		}
	}
	if len(t.upstreams) > 0 {
		allDown := true
		for _, u := range t.upstreams {
			if u.Status != StatusDown {
				allDown = false
				break
			}
		}
		if allDown {
			overall = StatusDown
		}
	}

	upstreams := make(map[string]UpstreamHealth, len(t.upstreams))
	for k, v := range t.upstreams {
		upstreams[k] = v
	}

	return Report{
		Status:          overall,
		Timestamp:       time.Now(),
		Upstreams:       upstreams,
		LastTickAt:      t.lastTick,
		SubscriberCount: subscriberCount,
	}
}
