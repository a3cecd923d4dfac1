// Package commands implements the stockstatus subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basecamp/stockstatus/internal/appctx"
	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/stock"
	"github.com/basecamp/stockstatus/internal/store"
)

// requireApp returns the App stored by the root command's PersistentPreRunE.
func requireApp(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// summaryFor is the one-line headline for a snapshot.
func summaryFor(s stock.Snapshot) string {
	switch st := s.State.(type) {
	case stock.Loaded:
		return st.Record.StatusText()
	case stock.Failed:
		return "Error: " + st.Message
	default:
		return "Loading stock data..."
	}
}

func storeBackend(name string) (store.Backend, error) {
	b, err := store.ParseBackend(name)
	if err != nil {
		return "", output.ErrUsageHint(err.Error(), "Use rest or postgres")
	}
	return b, nil
}
