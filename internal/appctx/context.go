// Package appctx provides application context helpers.
package appctx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/basecamp/stockstatus/internal/config"
	"github.com/basecamp/stockstatus/internal/credentials"
	"github.com/basecamp/stockstatus/internal/metrics"
	"github.com/basecamp/stockstatus/internal/observability"
	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/store"
	"github.com/basecamp/stockstatus/internal/version"
)

// contextKey is a private type for context keys.
type contextKey string

const appKey contextKey = "app"

// App holds the shared application context for all commands.
type App struct {
	Config      *config.Config
	Credentials *credentials.Store
	Output      *output.Writer
	Logger      *slog.Logger

	// Observability
	Collector *observability.SessionCollector
	Hooks     *observability.CLIHooks
	Metrics   *metrics.Collector
	Registry  *prometheus.Registry

	// Flags holds the global flag values
	Flags GlobalFlags

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// openStore is swapped in tests.
	openStore func(context.Context, store.Config) (store.Store, error)
}

// GlobalFlags holds values for global CLI flags.
type GlobalFlags struct {
	// Output format flags
	JSON   bool
	Quiet  bool
	Styled bool
	JQ     string

	// Store flags
	Backend  string
	StoreURL string
	Table    string
	Interval time.Duration

	// Behavior flags
	Verbose     int // 0=off, 1=fetch results, 2=results+targets (stacks with -v -v or -vv)
	Stats       bool
	MetricsAddr string
}

// Overrides maps the store flags onto config overrides.
func (f GlobalFlags) Overrides() config.FlagOverrides {
	o := config.FlagOverrides{
		Backend:     f.Backend,
		StoreURL:    f.StoreURL,
		Table:       f.Table,
		Interval:    f.Interval,
		MetricsAddr: f.MetricsAddr,
	}
	switch {
	case f.Quiet:
		o.Format = "quiet"
	case f.JSON:
		o.Format = "json"
	case f.Styled:
		o.Format = "styled"
	}
	return o
}

// NewApp creates a new App with the given configuration. The store key is
// taken from the credential store when the environment did not supply one.
func NewApp(cfg *config.Config) *App {
	// Collector always runs to gather stats; hooks control output verbosity.
	// Level 0 initially; ApplyFlags sets the actual level from -v flags.
	collector := observability.NewSessionCollector()
	hooks := observability.NewCLIHooks(0, collector, observability.NewTraceWriter())

	app := &App{
		Config:      cfg,
		Credentials: credentials.NewStore(config.GlobalConfigDir(), os.Stderr),
		Logger:      slog.New(slog.DiscardHandler),
		Collector:   collector,
		Hooks:       hooks,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		openStore:   store.New,
	}
	app.Output, _ = output.New(output.Options{Writer: app.Stdout})
	app.loadStoredKey()
	return app
}

func (a *App) loadStoredKey() {
	if a.Config.StoreKey != "" || a.Config.StoreURL == "" {
		return
	}
	key, err := a.Credentials.Load(a.Config.StoreURL)
	if err != nil {
		return
	}
	a.Config.StoreKey = key
	a.Config.Sources["store_key"] = string(config.SourceKeyring)
}

// ApplyFlags applies global flag values: output format, jq filter,
// verbosity, logging and the optional metrics collector.
func (a *App) ApplyFlags() error {
	format, err := output.ParseFormat(a.Config.Format)
	if err != nil {
		return err
	}
	w, err := output.New(output.Options{
		Format: format,
		Writer: a.Stdout,
		JQ:     a.Flags.JQ,
	})
	if err != nil {
		return err
	}
	a.Output = w

	// Verbosity from flags, config, then STOCKSTATUS_DEBUG ("1", "2" or "true").
	level := a.Flags.Verbose
	if level == 0 && a.Config.Verbose != nil {
		level = *a.Config.Verbose
	}
	if debugEnv := os.Getenv("STOCKSTATUS_DEBUG"); debugEnv != "" {
		if n, err := strconv.Atoi(debugEnv); err == nil {
			level = max(level, n)
		} else if debugEnv == "true" {
			level = 2
		}
	}
	a.Hooks.SetLevel(level)

	if level > 0 {
		a.Logger = slog.New(slog.NewTextHandler(a.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	if !a.Flags.Stats && a.Config.Stats != nil {
		a.Flags.Stats = *a.Config.Stats
	}

	if a.Config.MetricsAddr != "" && a.Metrics == nil {
		a.Registry = prometheus.NewRegistry()
		a.Metrics = metrics.NewCollector(a.Registry)
	}
	return nil
}

// StoreConfig resolves the backend settings, failing with a config error
// when the selected backend is missing its location.
func (a *App) StoreConfig() (store.Config, error) {
	backend, err := store.ParseBackend(a.Config.Backend)
	if err != nil {
		return store.Config{}, output.ErrUsageHint(err.Error(), "Use --backend rest or --backend postgres")
	}

	sc := store.Config{
		Backend:     backend,
		URL:         a.Config.StoreURL,
		Key:         a.Config.StoreKey,
		Table:       a.Config.Table,
		DatabaseURL: a.Config.DatabaseURL,
		Timeout:     a.Config.Timeout,
		UserAgent:   version.UserAgent(),
	}

	switch backend {
	case store.BackendPostgres:
		if sc.DatabaseURL == "" {
			return sc, output.ErrConfig("No database configured",
				"Set STOCKSTATUS_DATABASE_URL or database_url in "+config.GlobalConfigDir()+"/config.json")
		}
	default:
		if sc.URL == "" {
			return sc, output.ErrConfig("No store configured",
				"Set STOCKSTATUS_STORE_URL or store_url in "+config.GlobalConfigDir()+"/config.json")
		}
		if sc.Key == "" {
			return sc, output.ErrConfig("No store key configured",
				"Run: stockstatus config set-key, or set STOCKSTATUS_STORE_KEY")
		}
	}
	return sc, nil
}

// OpenStore opens the configured backend, instrumented with the session
// hooks and, when enabled, the Prometheus collector.
func (a *App) OpenStore(ctx context.Context) (store.Store, error) {
	sc, err := a.StoreConfig()
	if err != nil {
		return nil, err
	}
	s, err := a.openStore(ctx, sc)
	if err != nil {
		return nil, err
	}
	a.Logger.Debug("store opened", "backend", sc.Backend, "table", sc.Table)

	hooks := []store.Hooks{a.Hooks}
	if a.Metrics != nil {
		hooks = append(hooks, a.Metrics)
	}
	return store.Instrument(s, hooks...), nil
}

// SetStoreOpener replaces the backend constructor (for tests).
func (a *App) SetStoreOpener(fn func(context.Context, store.Config) (store.Store, error)) {
	a.openStore = fn
}

// ServeMetrics starts the Prometheus endpoint when --metrics-addr is set.
// The server stops when ctx is done.
func (a *App) ServeMetrics(ctx context.Context) error {
	if a.Config.MetricsAddr == "" || a.Registry == nil {
		return nil
	}
	srv, err := metrics.Listen(a.Config.MetricsAddr, a.Registry)
	if err != nil {
		return output.ErrUsage(fmt.Sprintf("metrics listener on %s: %v", a.Config.MetricsAddr, err))
	}
	a.Logger.Debug("serving metrics", "addr", srv.Addr())
	go func() {
		if err := srv.Serve(ctx); err != nil {
			a.Logger.Error("metrics server stopped", "error", err)
		}
	}()
	return nil
}

// OK outputs a success response, automatically including stats if --stats flag is set.
func (a *App) OK(data any, opts ...output.ResponseOption) error {
	if a.Flags.Stats && a.Collector != nil {
		opts = append(opts, output.WithStats(a.Collector.Summary()))
	}
	return a.Output.OK(data, opts...)
}

// Err outputs an error response, printing stats to stderr if --stats flag is set.
func (a *App) Err(err error) error {
	if outputErr := a.Output.Err(err); outputErr != nil {
		return outputErr
	}

	if a.Flags.Stats && a.Collector != nil && !a.isMachineOutput() {
		if parts := a.Collector.Summary().FormatParts(); len(parts) > 0 {
			fmt.Fprintf(a.Stderr, "\nStats: %s\n", strings.Join(parts, " | "))
		}
	}
	return nil
}

// isMachineOutput returns true if the output mode is intended for programmatic consumption.
func (a *App) isMachineOutput() bool {
	if a.Flags.Quiet || a.Flags.JQ != "" {
		return true
	}
	return a.Config != nil && a.Config.Format == "quiet"
}

// IsInteractive returns true if the terminal supports the TUI.
func (a *App) IsInteractive() bool {
	if a.Flags.JSON || a.Flags.Quiet || a.Flags.JQ != "" {
		return false
	}
	if a.Output != nil && a.Output.Options().Format != output.FormatAuto {
		return false
	}
	f, ok := a.Stdout.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// ExitCode maps err onto the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return output.ExitOK
	}
	var e *output.Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return output.AsError(err).ExitCode()
}

// WithApp stores the app in the context.
func WithApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey, app)
}

// FromContext retrieves the app from the context.
func FromContext(ctx context.Context) *App {
	if ctx == nil {
		return nil
	}
	app, _ := ctx.Value(appKey).(*App)
	return app
}
