// Package observability provides metrics collection and tracing for store fetches.
package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/basecamp/stockstatus/internal/store"
)

// FetchMetrics holds timing and outcome information for a single fetch.
type FetchMetrics struct {
	Backend  string
	Table    string
	Duration time.Duration
	Found    bool
	Error    error
}

// SessionMetrics aggregates metrics for an entire session.
type SessionMetrics struct {
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	TotalFetches int           `json:"total_fetches"`
	FailedOps    int           `json:"failed"`
	EmptyResults int           `json:"empty"`
	TotalLatency time.Duration `json:"total_latency_ns"`
	LastError    string        `json:"last_error,omitempty"`
}

// AverageLatency returns the mean fetch duration.
func (m SessionMetrics) AverageLatency() time.Duration {
	if m.TotalFetches == 0 {
		return 0
	}
	return m.TotalLatency / time.Duration(m.TotalFetches)
}

// SessionCollector accumulates metrics across a session.
// It is safe for concurrent use and uses counters instead of unbounded slices.
type SessionCollector struct {
	mu sync.Mutex

	startTime    time.Time
	totalFetches int
	failedOps    int
	emptyResults int
	totalLatency time.Duration
	lastError    string
}

// NewSessionCollector creates a new SessionCollector.
func NewSessionCollector() *SessionCollector {
	return &SessionCollector{
		startTime: time.Now(),
	}
}

// RecordFetch records metrics for one fetch.
func (c *SessionCollector) RecordFetch(m FetchMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalFetches++
	c.totalLatency += m.Duration
	switch {
	case m.Error != nil:
		c.failedOps++
		c.lastError = m.Error.Error()
	case !m.Found:
		c.emptyResults++
	}
}

// RecordFetchFromStore records metrics from store hook types.
func (c *SessionCollector) RecordFetchFromStore(info store.FetchInfo, result store.FetchResult) {
	c.RecordFetch(FetchMetrics{
		Backend:  string(info.Backend),
		Table:    info.Table,
		Duration: result.Duration,
		Found:    result.Found,
		Error:    result.Error,
	})
}

// Summary returns aggregated metrics for the session.
func (c *SessionCollector) Summary() SessionMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	return SessionMetrics{
		StartTime:    c.startTime,
		EndTime:      time.Now(),
		TotalFetches: c.totalFetches,
		FailedOps:    c.failedOps,
		EmptyResults: c.emptyResults,
		TotalLatency: c.totalLatency,
		LastError:    c.lastError,
	}
}

// Reset clears all collected metrics and resets the start time.
func (c *SessionCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = time.Now()
	c.totalFetches = 0
	c.failedOps = 0
	c.emptyResults = 0
	c.totalLatency = 0
	c.lastError = ""
}

// FormatParts renders the metrics as short human-readable fragments
// ("3 fetches", "avg 45ms", "1 failed") for one-line stats output.
func (m SessionMetrics) FormatParts() []string {
	if m.TotalFetches == 0 {
		return nil
	}
	noun := "fetches"
	if m.TotalFetches == 1 {
		noun = "fetch"
	}
	parts := []string{
		fmt.Sprintf("%s %s", humanize.Comma(int64(m.TotalFetches)), noun),
		"avg " + m.AverageLatency().Round(time.Millisecond).String(),
	}
	if m.FailedOps > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", m.FailedOps))
	}
	if m.EmptyResults > 0 {
		parts = append(parts, fmt.Sprintf("%d empty", m.EmptyResults))
	}
	if !m.StartTime.IsZero() && !m.EndTime.IsZero() {
		parts = append(parts, "session "+m.EndTime.Sub(m.StartTime).Round(time.Second).String())
	}
	return parts
}
