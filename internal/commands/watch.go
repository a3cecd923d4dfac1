package commands

import (
	"context"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/basecamp/stockstatus/internal/appctx"
	"github.com/basecamp/stockstatus/internal/config"
	"github.com/basecamp/stockstatus/internal/observability"
	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/stock"
	"github.com/basecamp/stockstatus/internal/tui"
	"github.com/basecamp/stockstatus/internal/tui/status"
)

// DebugLogEnv names a file that receives logs and traces while the TUI owns
// the terminal.
const DebugLogEnv = "STOCKSTATUS_DEBUG_LOG"

func watchLong() string {
	long := `Watch the availability of the stock item, refreshing on an interval.

On a terminal this opens an interactive view (r refreshes, q quits).
Otherwise one document is written per completed fetch`
	if refreshHint != "" {
		return long + "; " + refreshHint + "."
	}
	return long + "."
}

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch stock availability",
		Long:  watchLong(),
		Args: cobra.NoArgs,
		RunE: RunWatch,
	}
}

// RunWatch runs the TUI when attached to a terminal, else the headless stream.
func RunWatch(cmd *cobra.Command, _ []string) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	if app.IsInteractive() {
		return runTUI(cmd.Context(), app)
	}
	return runHeadless(cmd.Context(), app)
}

func runTUI(ctx context.Context, app *appctx.App) error {
	s, err := app.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := app.ServeMetrics(ctx); err != nil {
		return err
	}

	// Traces and logs would draw over the screen; send them to a file or drop them.
	logger := slog.New(slog.DiscardHandler)
	app.Hooks.SetWriter(nil)
	if path := os.Getenv(DebugLogEnv); path != "" {
		f, err := tea.LogToFile(path, "stockstatus")
		if err != nil {
			return output.ErrUsage("cannot open debug log: " + err.Error())
		}
		defer f.Close()
		logger = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
		app.Hooks.SetWriter(observability.NewTraceWriterTo(f))
		if app.Hooks.Level() == 0 {
			app.Hooks.SetLevel(1)
		}
	}

	model := status.New(ctx, s, status.Options{
		Interval: app.Config.Interval,
		Styles:   tui.NewStylesWithTheme(tui.ResolveTheme(config.GlobalConfigDir())),
		Logger:   logger,
	})
	defer model.Stop()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// runHeadless streams one output document per completed fetch until ctx is
// cancelled. Fetch failures are part of the stream, not command errors.
func runHeadless(ctx context.Context, app *appctx.App) error {
	s, err := app.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := app.ServeMetrics(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app.Output = app.Output.Streaming()
	var emitErr error

	stock.Watch(ctx, s, stock.WatchOptions{
		Interval: app.Config.Interval,
		Refresh:  refreshSignals(ctx),
		OnUpdate: func(u stock.Update) {
			if emitErr != nil {
				return
			}
			app.Logger.Debug("fetch complete", "state", u.Snapshot.State.Kind(), "manual", u.Manual)
			opts := []output.ResponseOption{output.WithSummary(summaryFor(u.Snapshot))}
			if u.Notify {
				opts = append(opts, output.WithNotice(u.Notice.Message, u.Notice.IsError))
			}
			if emitErr = app.OK(u.Snapshot.View(), opts...); emitErr != nil {
				cancel()
			}
		},
	})
	return emitErr
}
