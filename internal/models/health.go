package models

import "time"

// ProbeResult is the outcome of one dependency health probe.
type ProbeResult struct {
	Target     string        `json:"target"`
	Reachable  bool          `json:"reachable"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	ObservedAt time.Time     `json:"observed_at"`
}

// HealthReport aggregates dependency probes for the readiness endpoint.
type HealthReport struct {
	Ready  bool          `json:"ready"`
	Probes []ProbeResult `json:"probes"`
}
