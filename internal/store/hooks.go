package store

import (
	"context"
	"time"

	"github.com/basecamp/stockstatus/internal/stock"
)

// FetchInfo describes a fetch about to run.
type FetchInfo struct {
	Backend Backend
	Table   string
	Target  string // URL or SQL
}

// FetchResult describes a finished fetch.
type FetchResult struct {
	Duration  time.Duration
	Found     bool
	Available bool
	Error     error
}

// Hooks observes fetches. Implementations must be safe for concurrent use.
type Hooks interface {
	OnFetchStart(ctx context.Context, info FetchInfo) context.Context
	OnFetchEnd(ctx context.Context, info FetchInfo, result FetchResult)
}

// instrumented wraps a Store and reports every fetch to hooks.
type instrumented struct {
	Store
	hooks []Hooks
}

// Instrument returns s with hooks attached. Nil hooks are skipped.
func Instrument(s Store, hooks ...Hooks) Store {
	var active []Hooks
	for _, h := range hooks {
		if h != nil {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return s
	}
	return &instrumented{Store: s, hooks: active}
}

func (i *instrumented) FetchLatest(ctx context.Context) (*stock.Record, error) {
	info := i.Describe()
	for _, h := range i.hooks {
		ctx = h.OnFetchStart(ctx, info)
	}

	start := time.Now()
	rec, err := i.Store.FetchLatest(ctx)
	result := FetchResult{
		Duration:  time.Since(start),
		Found:     rec != nil,
		Available: rec.IsAvailable(),
		Error:     err,
	}

	for _, h := range i.hooks {
		h.OnFetchEnd(ctx, info, result)
	}
	return rec, err
}
