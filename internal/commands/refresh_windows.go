//go:build windows

package commands

import "context"

// refreshSignals returns nil: Windows has no user signal to map onto a
// manual refresh, so the headless loop only polls on its interval.
func refreshSignals(context.Context) <-chan struct{} {
	return nil
}

const refreshHint = ""
