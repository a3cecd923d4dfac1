package stock

import (
	"context"
	"time"
)

// DefaultInterval is the automatic refresh period.
const DefaultInterval = 10 * time.Second

// Ticker is the subset of *time.Ticker used by Watch.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type stdTicker struct{ t *time.Ticker }

func (s stdTicker) Chan() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()                  { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Update is delivered to WatchOptions.OnUpdate after every completed fetch.
type Update struct {
	Snapshot Snapshot
	Manual   bool
	Notice   Notice
	Notify   bool
}

// WatchOptions configures Watch.
type WatchOptions struct {
	// Interval between automatic fetches. Defaults to DefaultInterval.
	Interval time.Duration

	// NewTicker creates the interval timer. Defaults to NewTicker.
	NewTicker func(time.Duration) Ticker

	// Refresh receives manual refresh requests. May be nil.
	Refresh <-chan struct{}

	// OnUpdate is called from the loop goroutine after each fetch completes.
	OnUpdate func(Update)
}

type completion struct {
	res    Result
	manual bool
}

// Watch fetches immediately, then on every tick and every manual refresh
// request, until ctx is done. All tracker mutation happens on the calling
// goroutine; fetches run concurrently and are not cancelled when another
// starts, so the last one to complete wins.
func Watch(ctx context.Context, f Fetcher, opts WatchOptions) *Tracker {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	newTicker := opts.NewTicker
	if newTicker == nil {
		newTicker = NewTicker
	}

	tracker := NewTracker()
	done := make(chan completion)

	start := func(manual bool) {
		go func() {
			res := Fetch(ctx, f)
			select {
			case done <- completion{res: res, manual: manual}:
			case <-ctx.Done():
			}
		}()
	}

	start(false)

	ticker := newTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return tracker
		case <-ticker.Chan():
			start(false)
		case <-opts.Refresh:
			tracker.BeginRefresh()
			start(true)
		case c := <-done:
			notice, notify := tracker.Complete(c.res, c.manual)
			if opts.OnUpdate != nil {
				opts.OnUpdate(Update{
					Snapshot: tracker.Snapshot(),
					Manual:   c.manual,
					Notice:   notice,
					Notify:   notify,
				})
			}
		}
	}
}
