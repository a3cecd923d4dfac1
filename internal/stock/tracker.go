package stock

import (
	"context"
	"time"
)

// RefreshedMessage is the notice emitted after a successful manual refresh.
const RefreshedMessage = "Stock status refreshed"

// Fetcher reads the latest stock row. A nil record with a nil error means
// the table is empty.
type Fetcher interface {
	FetchLatest(ctx context.Context) (*Record, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*Record, error)

// FetchLatest calls f.
func (f FetcherFunc) FetchLatest(ctx context.Context) (*Record, error) {
	return f(ctx)
}

// Result is the outcome of one fetch attempt.
type Result struct {
	Record *Record
	Err    error
	At     time.Time
}

// Notice is a transient notification for the user.
type Notice struct {
	Message string
	IsError bool
}

// Tracker owns the view state and the refreshing overlay. It is not safe
// for concurrent use; callers mutate it from a single event loop.
type Tracker struct {
	state      ViewState
	refreshing bool
	lastFetch  time.Time
}

// NewTracker returns a tracker in the Loading state.
func NewTracker() *Tracker {
	return &Tracker{state: Loading{}}
}

// BeginRefresh marks a manual refresh as in progress.
func (t *Tracker) BeginRefresh() {
	t.refreshing = true
}

// Refreshing reports whether a manual refresh is in progress.
func (t *Tracker) Refreshing() bool {
	return t.refreshing
}

// State returns the current view state.
func (t *Tracker) State() ViewState {
	return t.state
}

// Complete applies a finished fetch. Errors always produce an error notice;
// success produces a notice only for manual refreshes. The refreshing flag
// is cleared either way.
func (t *Tracker) Complete(res Result, manual bool) (Notice, bool) {
	t.refreshing = false
	t.lastFetch = res.At

	if res.Err != nil {
		msg := MessageFor(res.Err)
		t.state = Failed{Message: msg}
		return Notice{Message: msg, IsError: true}, true
	}

	t.state = Loaded{Record: res.Record}
	if manual {
		return Notice{Message: RefreshedMessage}, true
	}
	return Notice{}, false
}

// Snapshot copies the current state.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		State:      t.state,
		Refreshing: t.refreshing,
		LastFetch:  t.lastFetch,
	}
}

// Fetch runs one fetch against f and stamps the result.
func Fetch(ctx context.Context, f Fetcher) Result {
	rec, err := f.FetchLatest(ctx)
	if err != nil {
		err = NewFetchError(err)
	}
	return Result{Record: rec, Err: err, At: time.Now()}
}
