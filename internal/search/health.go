// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// DefaultFailureThreshold is the number of consecutive failures after
// which a source is considered unhealthy.
const DefaultFailureThreshold = 3

// HealthStatus is a snapshot of a source's health.
type HealthStatus struct {
	SourceName          string    `json:"source_name"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastRequestTime     time.Time `json:"last_request_time"`
}

// Health tracks consecutive failures of one source. It is safe for
// concurrent use.
type Health struct {
	mu          sync.Mutex
	name        string
	threshold   int
	consecutive int
	last        time.Time
	now         func() time.Time
}

// NewHealth creates a tracker. A threshold < 1 uses DefaultFailureThreshold.
func NewHealth(name string, threshold int) *Health {
	if threshold < 1 {
		threshold = DefaultFailureThreshold
	}
	return &Health{name: name, threshold: threshold, now: time.Now}
}

// RecordSuccess resets the consecutive failure count.
func (h *Health) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive = 0
	h.last = h.now()
}

// RecordFailure increments the consecutive failure count.
func (h *Health) RecordFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consecutive++
	h.last = h.now()
}

// IsHealthy reports whether the source is below the failure threshold.
func (h *Health) IsHealthy() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.consecutive < h.threshold
}

// Status returns a snapshot of the tracker.
func (h *Health) Status() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthStatus{
		SourceName:          h.name,
		Healthy:             h.consecutive < h.threshold,
		ConsecutiveFailures: h.consecutive,
		LastRequestTime:     h.last,
	}
}

// FormatHealth writes one line per source status to w. Sources never
// queried show "-" as their last request.
func FormatHealth(statuses []HealthStatus, w io.Writer) {
	if len(statuses) == 0 {
		return
	}
	fmt.Fprintln(w, "Source health:")
	for _, st := range statuses {
		state := "healthy"
		if !st.Healthy {
			state = "unhealthy"
		}
		last := "-"
		if !st.LastRequestTime.IsZero() {
			last = st.LastRequestTime.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "  %-16s %-9s  failures=%d  last=%s\n", st.SourceName, state, st.ConsecutiveFailures, last)
	}
}
