package observability

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/basecamp/stockstatus/internal/store"
)

func TestTraceWriter_WriteFetchStart(t *testing.T) {
	var buf bytes.Buffer
	w := NewTraceWriterTo(&buf)

	w.WriteFetchStart(testInfo)

	output := buf.String()
	if !strings.Contains(output, "-> rest stock") {
		t.Errorf("expected '-> rest stock', got: %s", output)
	}
	if !strings.HasPrefix(output, "[") {
		t.Errorf("expected timestamp prefix, got: %s", output)
	}
}

func TestTraceWriter_WriteFetchEnd(t *testing.T) {
	tests := []struct {
		name   string
		result store.FetchResult
		want   string
	}{
		{"available", store.FetchResult{Found: true, Available: true, Duration: 50 * time.Millisecond}, "available (50ms)"},
		{"unavailable", store.FetchResult{Found: true, Duration: 5 * time.Millisecond}, "unavailable (5ms)"},
		{"empty", store.FetchResult{}, "empty (0ms)"},
		{"error", store.FetchResult{Error: errors.New("forbidden")}, "ERROR: forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewTraceWriterTo(&buf).WriteFetchEnd(testInfo, tt.result)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("expected %q, got: %s", tt.want, buf.String())
			}
		})
	}
}

func TestScrubTarget(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{
			"https://x.supabase.co/rest/v1/stock?apikey=secret&limit=1",
			"https://x.supabase.co/rest/v1/stock?apikey=%5BREDACTED%5D&limit=1",
		},
		{
			"postgres://user:pw@localhost:5432/db",
			"postgres://user@localhost:5432/db",
		},
		{
			`SELECT id::text FROM "stock" LIMIT 1`,
			`SELECT id::text FROM "stock" LIMIT 1`,
		},
		{
			"http://[::1:bad/",
			"[unparseable URL]",
		},
	}

	for _, tt := range tests {
		if got := scrubTarget(tt.in); got != tt.want {
			t.Errorf("scrubTarget(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTraceWriter_Reset(t *testing.T) {
	w := NewTraceWriterTo(&bytes.Buffer{})
	before := w.startTime
	time.Sleep(time.Millisecond)
	w.Reset()
	if !w.startTime.After(before) {
		t.Error("expected start time to advance")
	}
}
