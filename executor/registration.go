package executor

import "time"

// Registration describes an executor that is able to move data on behalf of
// the connector.
type Registration struct {
	// ID uniquely identifies the executor.
	ID string

	// Capabilities is the set of transfer types the executor supports, such
	// as "HttpData-PUSH".
	Capabilities []string

	// Labels are affinity labels, such as a region or a network zone.
	Labels []string

	// Endpoint is the address at which the executor's control API is served.
	Endpoint string

	// Healthy is false if the executor has been marked unhealthy.
	Healthy bool

	// LastHeartbeat is the time at which the executor last reported that it
	// was alive.
	LastHeartbeat time.Time
}

// Supports returns true if the executor has every one of the given
// capabilities.
func (r Registration) Supports(capabilities ...string) bool {
	for _, c := range capabilities {
		if !contains(r.Capabilities, c) {
			return false
		}
	}

	return true
}

// Affinity returns the number of the given labels that the executor carries.
func (r Registration) Affinity(labels ...string) int {
	n := 0

	for _, l := range labels {
		if contains(r.Labels, l) {
			n++
		}
	}

	return n
}

// IsLive returns true if the executor is healthy and has sent a heartbeat
// within the given window before now.
func (r Registration) IsLive(now time.Time, window time.Duration) bool {
	return r.Healthy && !r.LastHeartbeat.Before(now.Add(-window))
}

// Criteria describes the executor required by a transfer.
type Criteria struct {
	// Capabilities must all be supported by the chosen executor.
	Capabilities []string

	// Affinity lists labels that are preferred, but not required.
	Affinity []string
}

func contains(set []string, v string) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}

	return false
}
