package stock

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTicker struct {
	c       chan time.Time
	stopped atomic.Bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{c: make(chan time.Time)}
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.c }
func (f *fakeTicker) Stop()                  { f.stopped.Store(true) }

func waitUpdate(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
		return Update{}
	}
}

func TestWatch_FetchesOnStartAndEveryTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fetcher := FetcherFunc(func(context.Context) (*Record, error) {
		calls.Add(1)
		return &Record{ID: "1", Available: 1}, nil
	})

	ticker := newFakeTicker()
	var interval time.Duration
	updates := make(chan Update, 16)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		Watch(ctx, fetcher, WatchOptions{
			NewTicker: func(d time.Duration) Ticker {
				interval = d
				return ticker
			},
			OnUpdate: func(u Update) { updates <- u },
		})
	}()

	// t=0
	waitUpdate(t, updates)

	// Simulate 35 seconds: ticks at 10, 20, 30.
	const elapsed = 35 * time.Second
	ticks := int(elapsed / DefaultInterval)
	for range ticks {
		ticker.c <- time.Now()
		u := waitUpdate(t, updates)
		assert.False(t, u.Manual)
		assert.False(t, u.Notify, "automatic success is silent")
	}

	assert.Equal(t, DefaultInterval, interval)
	assert.Equal(t, int32(ticks+1), calls.Load())

	cancel()
	<-finished
	assert.True(t, ticker.stopped.Load(), "ticker must be released on teardown")

	// No further fetch happens after teardown.
	before := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
}

func TestWatch_ManualRefresh(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fail := atomic.Bool{}
	fetcher := FetcherFunc(func(context.Context) (*Record, error) {
		if fail.Load() {
			return nil, errors.New("network error")
		}
		return &Record{ID: "1", Available: 0}, nil
	})

	refresh := make(chan struct{})
	updates := make(chan Update, 16)
	go Watch(ctx, fetcher, WatchOptions{
		NewTicker: func(time.Duration) Ticker { return newFakeTicker() },
		Refresh:   refresh,
		OnUpdate:  func(u Update) { updates <- u },
	})

	first := waitUpdate(t, updates)
	assert.Equal(t, TextNotAvailable, first.Snapshot.Record().StatusText())

	refresh <- struct{}{}
	u := waitUpdate(t, updates)
	assert.True(t, u.Manual)
	require.True(t, u.Notify)
	assert.Equal(t, RefreshedMessage, u.Notice.Message)
	assert.False(t, u.Snapshot.Refreshing)

	fail.Store(true)
	refresh <- struct{}{}
	u = waitUpdate(t, updates)
	assert.Equal(t, Failed{Message: "network error"}, u.Snapshot.State)
	assert.True(t, u.Notice.IsError)
	assert.False(t, u.Snapshot.Refreshing)
}
