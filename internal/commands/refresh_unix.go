//go:build !windows

package commands

import (
	"context"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// refreshSignals turns SIGUSR1 into manual refresh requests until ctx is done.
func refreshSignals(ctx context.Context) <-chan struct{} {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, unix.SIGUSR1)

	out := make(chan struct{})
	go func() {
		defer signal.Stop(sig)
		for {
			select {
			case <-ctx.Done():
				return
			case <-sig:
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

const refreshHint = "Send SIGUSR1 to refresh now"
