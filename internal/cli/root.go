// Package cli assembles the root command.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/basecamp/stockstatus/internal/appctx"
	"github.com/basecamp/stockstatus/internal/commands"
	"github.com/basecamp/stockstatus/internal/config"
	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/version"
)

// Option adjusts the App after it is built (tests swap the store here).
type Option func(*appctx.App)

// NewRootCmd creates the root cobra command with all subcommands.
func NewRootCmd(opts ...Option) *cobra.Command {
	var flags appctx.GlobalFlags

	cmd := &cobra.Command{
		Use:   "stockstatus",
		Short: "Watch the availability of a stock item",
		Long: `stockstatus polls a stock table and shows whether the item is available.

With no subcommand it runs "watch".`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          commands.RunWatch,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipSetup(cmd) {
				return nil
			}

			cfg, err := config.Load(flags.Overrides())
			if err != nil {
				return output.ErrConfig(err.Error(), "Check "+config.GlobalConfigPath()+" and STOCKSTATUS_* variables")
			}

			app := appctx.NewApp(cfg)
			app.Flags = flags
			app.Stdout = cmd.OutOrStdout()
			app.Stderr = cmd.ErrOrStderr()
			app.Credentials.Warn = app.Stderr
			for _, opt := range opts {
				opt(app)
			}

			// Context is set before ApplyFlags so Execute can report its errors
			// through the app.
			cmd.SetContext(appctx.WithApp(cmd.Context(), app))
			return app.ApplyFlags()
		},
	}
	cmd.SetVersionTemplate(version.Full() + "\n")

	// Allow flags anywhere in the command line
	cmd.Flags().SetInterspersed(true)
	cmd.PersistentFlags().SetInterspersed(true)

	pf := cmd.PersistentFlags()

	// Output format flags
	pf.BoolVarP(&flags.JSON, "json", "j", false, "Output as JSON")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "Output data only, no envelope")
	pf.BoolVar(&flags.Styled, "styled", false, "Force styled output (ANSI colors)")
	pf.StringVar(&flags.JQ, "jq", "", "Filter JSON output with a jq expression")

	// Store flags
	pf.StringVar(&flags.Backend, "backend", "", "Store backend: rest or postgres")
	pf.StringVar(&flags.StoreURL, "store-url", "", "Store project URL (e.g. https://<project>.supabase.co)")
	pf.StringVar(&flags.Table, "table", "", "Table holding the stock record")
	pf.DurationVar(&flags.Interval, "interval", 0, "Refresh interval (default 10s)")

	// Behavior flags
	pf.CountVarP(&flags.Verbose, "verbose", "v", "Verbose output (-v for fetch results, -vv for targets)")
	pf.BoolVar(&flags.Stats, "stats", false, "Show session statistics")
	pf.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")

	cmd.AddCommand(
		commands.NewWatchCmd(),
		commands.NewStatusCmd(),
		commands.NewConfigCmd(),
	)

	return cmd
}

func skipSetup(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	return false
}

// Execute runs the root command and exits with its status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, NewRootCmd(), os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

// Run executes root with args and returns the process exit code. Errors are
// written through the app's output writer when setup got that far, else
// through a writer built from the raw flags.
func Run(ctx context.Context, root *cobra.Command, args []string, stdout io.Writer) int {
	root.SetArgs(args)
	root.SetOut(stdout)

	executedCmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return output.ExitOK
	}

	err = transformCobraError(err)
	code := appctx.ExitCode(err)

	if executedCmd != nil {
		if app := appctx.FromContext(executedCmd.Context()); app != nil && app.Output != nil {
			_ = app.Err(err)
			return code
		}
	}

	pf := root.PersistentFlags()
	format := output.FormatAuto
	quiet, _ := pf.GetBool("quiet")
	styled, _ := pf.GetBool("styled")
	jsonFlag, _ := pf.GetBool("json")
	switch {
	case quiet:
		format = output.FormatQuiet
	case jsonFlag:
		format = output.FormatJSON
	case styled:
		format = output.FormatStyled
	}

	// The jq filter may be what failed, so it is not applied here.
	writer, werr := output.New(output.Options{Format: format, Writer: stdout})
	if werr == nil {
		_ = writer.Err(err)
	}
	return code
}

var shorthandRe = regexp.MustCompile(`unknown shorthand flag: '.' in (-\w)`)

// transformCobraError turns cobra's parse errors into usage errors.
func transformCobraError(err error) error {
	msg := err.Error()

	if flag, ok := strings.CutPrefix(msg, "flag needs an argument: "); ok {
		return output.ErrUsage(flag + " requires a value")
	}
	if flag, ok := strings.CutPrefix(msg, "unknown flag: "); ok {
		return output.ErrUsage("Unknown option: " + flag)
	}
	if m := shorthandRe.FindStringSubmatch(msg); len(m) > 1 {
		return output.ErrUsage("Unknown option: " + m[1])
	}
	if strings.HasPrefix(msg, "unknown command") {
		return output.ErrUsageHint(msg, "Run 'stockstatus --help' for usage")
	}
	if strings.Contains(msg, "invalid argument") || strings.Contains(msg, "arg(s)") {
		return output.ErrUsage(msg)
	}
	return err
}
