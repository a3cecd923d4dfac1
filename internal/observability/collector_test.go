package observability

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/basecamp/stockstatus/internal/store"
)

func TestSessionCollector_RecordFetch(t *testing.T) {
	c := NewSessionCollector()

	c.RecordFetch(FetchMetrics{Backend: "rest", Duration: 50 * time.Millisecond, Found: true})
	c.RecordFetch(FetchMetrics{Backend: "rest", Duration: 10 * time.Millisecond})
	c.RecordFetch(FetchMetrics{Backend: "rest", Duration: 30 * time.Millisecond, Error: errors.New("network error")})

	summary := c.Summary()
	assert.Equal(t, 3, summary.TotalFetches)
	assert.Equal(t, 1, summary.FailedOps)
	assert.Equal(t, 1, summary.EmptyResults)
	assert.Equal(t, 90*time.Millisecond, summary.TotalLatency)
	assert.Equal(t, 30*time.Millisecond, summary.AverageLatency())
	assert.Equal(t, "network error", summary.LastError)
}

func TestSessionCollector_RecordFetchFromStore(t *testing.T) {
	c := NewSessionCollector()

	c.RecordFetchFromStore(
		store.FetchInfo{Backend: store.BackendPostgres, Table: "stock"},
		store.FetchResult{Duration: 45 * time.Millisecond, Found: true, Available: true},
	)

	summary := c.Summary()
	assert.Equal(t, 1, summary.TotalFetches)
	assert.Equal(t, 0, summary.FailedOps)
	assert.Equal(t, 45*time.Millisecond, summary.TotalLatency)
}

func TestSessionCollector_AverageLatencyEmpty(t *testing.T) {
	assert.Equal(t, time.Duration(0), NewSessionCollector().Summary().AverageLatency())
}

func TestSessionCollector_Reset(t *testing.T) {
	c := NewSessionCollector()
	c.RecordFetch(FetchMetrics{Error: errors.New("x")})

	c.Reset()

	summary := c.Summary()
	assert.Equal(t, 0, summary.TotalFetches)
	assert.Equal(t, 0, summary.FailedOps)
	assert.Empty(t, summary.LastError)
}

func TestSessionCollector_Concurrent(t *testing.T) {
	c := NewSessionCollector()

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordFetch(FetchMetrics{Found: true, Duration: time.Millisecond})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Summary().TotalFetches)
}

func TestSessionMetrics_FormatParts(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := SessionMetrics{
		StartTime:    start,
		EndTime:      start.Add(90 * time.Second),
		TotalFetches: 1200,
		FailedOps:    2,
		EmptyResults: 1,
		TotalLatency: 1200 * 45 * time.Millisecond,
	}

	assert.Equal(t, []string{"1,200 fetches", "avg 45ms", "2 failed", "1 empty", "session 1m30s"}, m.FormatParts())
	assert.Nil(t, SessionMetrics{}.FormatParts())
	assert.Equal(t, "1 fetch", SessionMetrics{TotalFetches: 1}.FormatParts()[0])
}
