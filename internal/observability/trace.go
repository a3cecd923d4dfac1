package observability

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/basecamp/stockstatus/internal/store"
)

// sensitiveParams are query parameter names that should be scrubbed from trace output.
var sensitiveParams = map[string]bool{
	"apikey":       true, // Supabase anon / service keys
	"api_key":      true,
	"access_token": true,
	"token":        true,
	"password":     true,
	"secret":       true,
}

// TraceWriter outputs human-readable trace information.
// It formats output with timestamps relative to session start.
type TraceWriter struct {
	mu        sync.Mutex
	writer    io.Writer
	startTime time.Time
}

// NewTraceWriter creates a new TraceWriter that writes to stderr.
func NewTraceWriter() *TraceWriter {
	return NewTraceWriterTo(os.Stderr)
}

// NewTraceWriterTo creates a new TraceWriter that writes to the given writer.
func NewTraceWriterTo(w io.Writer) *TraceWriter {
	return &TraceWriter{
		writer:    w,
		startTime: time.Now(),
	}
}

// WriteFetchStart writes a fetch start trace line.
// Format: [0.234s] -> rest stock https://x.supabase.co/rest/v1/stock?limit=1&select=%2A
func (t *TraceWriter) WriteFetchStart(info store.FetchInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Seconds()
	fmt.Fprintf(t.writer, "[%.3fs] -> %s %s %s\n", elapsed, info.Backend, info.Table, scrubTarget(info.Target))
}

// WriteFetchEnd writes a fetch completion trace line.
// Format: [0.234s] <- rest stock available (45ms)
func (t *TraceWriter) WriteFetchEnd(info store.FetchInfo, result store.FetchResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.startTime).Seconds()

	if result.Error != nil {
		fmt.Fprintf(t.writer, "[%.3fs] <- %s %s ERROR: %v\n", elapsed, info.Backend, info.Table, result.Error)
		return
	}

	outcome := "empty"
	if result.Found {
		outcome = "unavailable"
		if result.Available {
			outcome = "available"
		}
	}
	fmt.Fprintf(t.writer, "[%.3fs] <- %s %s %s (%dms)\n", elapsed, info.Backend, info.Table, outcome, result.Duration.Milliseconds())
}

// Reset resets the start time for relative timestamps.
func (t *TraceWriter) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startTime = time.Now()
}

// scrubTarget redacts credentials from a URL target. SQL targets pass through.
func scrubTarget(target string) string {
	if !strings.Contains(target, "://") {
		return target
	}

	u, err := url.Parse(target)
	if err != nil {
		// Don't leak potentially sensitive malformed URLs
		return "[unparseable URL]"
	}

	if u.User != nil {
		u.User = url.User(u.User.Username())
	}

	query := u.Query()
	for key := range query {
		if sensitiveParams[strings.ToLower(key)] {
			query.Set(key, "[REDACTED]")
		}
	}
	u.RawQuery = query.Encode()
	return u.String()
}
