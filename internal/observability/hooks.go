package observability

import (
	"context"
	"sync"

	"github.com/basecamp/stockstatus/internal/store"
)

// Verify CLIHooks implements store.Hooks at compile time.
var _ store.Hooks = (*CLIHooks)(nil)

// CLIHooks implements store.Hooks for CLI observability.
// It supports configurable verbosity levels:
//   - 0: Silent (collect stats only, no output)
//   - 1: Fetch results
//   - 2: Fetch targets and results
type CLIHooks struct {
	mu        sync.Mutex
	level     int
	collector *SessionCollector
	writer    *TraceWriter
}

// NewCLIHooks creates a new CLIHooks with the given verbosity level.
// If collector is nil, metrics are not collected.
// If writer is nil, no trace output is produced.
func NewCLIHooks(level int, collector *SessionCollector, writer *TraceWriter) *CLIHooks {
	return &CLIHooks{
		level:     level,
		collector: collector,
		writer:    writer,
	}
}

// SetLevel changes the verbosity level at runtime.
func (h *CLIHooks) SetLevel(level int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.level = level
}

// Level returns the current verbosity level.
func (h *CLIHooks) Level() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.level
}

// SetWriter replaces the trace writer. The TUI points it at a log file so
// traces do not draw over the screen.
func (h *CLIHooks) SetWriter(w *TraceWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writer = w
}

// OnFetchStart is called before a fetch is sent.
func (h *CLIHooks) OnFetchStart(ctx context.Context, info store.FetchInfo) context.Context {
	h.mu.Lock()
	level := h.level
	writer := h.writer
	h.mu.Unlock()

	if level >= 2 && writer != nil {
		writer.WriteFetchStart(info)
	}

	return ctx
}

// OnFetchEnd is called after a fetch completes.
func (h *CLIHooks) OnFetchEnd(ctx context.Context, info store.FetchInfo, result store.FetchResult) {
	h.mu.Lock()
	level := h.level
	collector := h.collector
	writer := h.writer
	h.mu.Unlock()

	if collector != nil {
		collector.RecordFetchFromStore(info, result)
	}

	if level >= 1 && writer != nil {
		writer.WriteFetchEnd(info, result)
	}
}
