package commands

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/basecamp/stockstatus/internal/appctx"
	"github.com/basecamp/stockstatus/internal/config"
	"github.com/basecamp/stockstatus/internal/credentials"
	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/tui"
)

// Swapped in tests.
var (
	promptSecret     = tui.SecretInput
	confirmDangerous = tui.ConfirmDangerous
	stdinIsTerminal  = func() bool { return term.IsTerminal(os.Stdin.Fd()) }
)

// NewConfigCmd creates the config command for managing configuration.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage stockstatus configuration.

Configuration is loaded from multiple sources with the following precedence:
  flags > env > local > global > system > defaults

Config locations:
  - System: /etc/stockstatus/config.json
  - Global: ~/.config/stockstatus/config.json
  - Local:  .stockstatus/config.json (cannot set store_url or database_url)

The store key is never read from config files. Set it with
"stockstatus config set-key" or STOCKSTATUS_STORE_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(
		newConfigShowCmd(),
		newConfigSetCmd(),
		newConfigUnsetCmd(),
		newConfigSetKeyCmd(),
		newConfigUnsetKeyCmd(),
	)
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long:  "Display the current effective configuration with source information.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	app, err := requireApp(cmd)
	if err != nil {
		return err
	}
	cfg := app.Config

	entry := func(key string, value any) map[string]any {
		return map[string]any{"value": value, "source": cfg.Source(key)}
	}

	data := map[string]any{
		"backend":  entry("backend", cfg.Backend),
		"table":    entry("table", cfg.Table),
		"interval": entry("interval", cfg.Interval.String()),
		"timeout":  entry("timeout", cfg.Timeout.String()),
		"format":   entry("format", cfg.Format),
	}
	if cfg.StoreURL != "" {
		data["store_url"] = entry("store_url", cfg.StoreURL)
	}
	if cfg.DatabaseURL != "" {
		data["database_url"] = entry("database_url", redactDSN(cfg.DatabaseURL))
	}
	if cfg.StoreKey != "" {
		data["store_key"] = entry("store_key", maskSecret(cfg.StoreKey))
	}
	if cfg.MetricsAddr != "" {
		data["metrics_addr"] = entry("metrics_addr", cfg.MetricsAddr)
	}
	if cfg.Stats != nil {
		data["stats"] = entry("stats", *cfg.Stats)
	}
	if cfg.Verbose != nil {
		data["verbose"] = entry("verbose", *cfg.Verbose)
	}

	keyBackend := "file"
	if app.Credentials.UsesKeyring() {
		keyBackend = "keyring"
	}
	data["credentials"] = map[string]any{"value": keyBackend, "source": "system"}

	return app.OK(data, output.WithSummary("Effective configuration"))
}

func newConfigSetCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Set a configuration value in the global (default) or local config file.

Valid keys: ` + strings.Join(config.SettableKeys(), ", "),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			key, raw := args[0], args[1]

			if _, ok := config.Settable[key]; !ok {
				return output.ErrUsage(fmt.Sprintf("Invalid config key %q. Valid keys: %s", key, strings.Join(config.SettableKeys(), ", ")))
			}
			if local && config.IsAuthorityKey(key) {
				return output.ErrUsageHint(key+" cannot be set in local config", "Drop --local to write the global config")
			}
			value, err := config.ParseValue(key, raw)
			if err != nil {
				return output.ErrUsage(err.Error())
			}
			if key == "backend" {
				if _, err := storeBackend(raw); err != nil {
					return err
				}
			}
			if key == "format" {
				if _, err := output.ParseFormat(raw); err != nil {
					return err
				}
			}

			scope, path := configTarget(local)
			if err := config.Update(path, func(m map[string]any) error {
				m[key] = value
				return nil
			}); err != nil {
				return err
			}

			return app.OK(map[string]any{
				"key":    key,
				"value":  value,
				"scope":  scope,
				"path":   path,
				"status": "set",
			}, output.WithSummary(fmt.Sprintf("Set %s = %v (%s)", key, value, scope)))
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Write .stockstatus/config.json in the current directory")
	return cmd
}

func newConfigUnsetCmd() *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "unset <key>",
		Short: "Unset a configuration value",
		Long:  "Remove a configuration value from the global (default) or local config file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			key := args[0]
			scope, path := configTarget(local)

			if _, err := os.Stat(path); err != nil {
				return app.OK(map[string]any{"key": key, "status": "not_found"},
					output.WithSummary("Config file not found: "+path))
			}

			found := false
			if err := config.Update(path, func(m map[string]any) error {
				_, found = m[key]
				delete(m, key)
				return nil
			}); err != nil {
				return err
			}
			if !found {
				return app.OK(map[string]any{"key": key, "status": "not_set"},
					output.WithSummary("Key not set: "+key))
			}

			return app.OK(map[string]any{
				"key":    key,
				"scope":  scope,
				"status": "unset",
			}, output.WithSummary(fmt.Sprintf("Unset %s (%s)", key, scope)))
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Edit .stockstatus/config.json in the current directory")
	return cmd
}

func newConfigSetKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key [key]",
		Short: "Store the API key for the configured store",
		Long: `Store the store API key in the system keyring (or a 0600 file when no
keyring is available). Without an argument the key is prompted for.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			origin, err := keyOrigin(app)
			if err != nil {
				return err
			}

			var key string
			switch {
			case len(args) == 1:
				key = strings.TrimSpace(args[0])
			case stdinIsTerminal():
				key, err = promptSecret("Store API key", "For "+origin)
				if err != nil {
					return output.ErrUsage("prompt canceled")
				}
			default:
				return output.ErrUsageHint("key required", "Pass the key as an argument or run in a terminal")
			}
			if key == "" {
				return output.ErrUsage("key required")
			}

			if err := app.Credentials.Save(origin, key); err != nil {
				return fmt.Errorf("failed to save key: %w", err)
			}

			backend := "file"
			if app.Credentials.UsesKeyring() {
				backend = "keyring"
			}
			return app.OK(map[string]any{
				"origin":  origin,
				"backend": backend,
				"status":  "saved",
			}, output.WithSummary("Saved key for "+origin))
		},
	}
}

func newConfigUnsetKeyCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "unset-key",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			origin, err := keyOrigin(app)
			if err != nil {
				return err
			}

			if !force && stdinIsTerminal() {
				ok, err := confirmDangerous("Remove the stored key for " + origin + "?")
				if err != nil || !ok {
					return output.ErrUsage("canceled")
				}
			}

			if err := app.Credentials.Delete(origin); err != nil {
				if errors.Is(err, credentials.ErrNotFound) {
					return app.OK(map[string]any{"origin": origin, "status": "not_set"},
						output.WithSummary("No key stored for "+origin))
				}
				return fmt.Errorf("failed to remove key: %w", err)
			}
			return app.OK(map[string]any{"origin": origin, "status": "removed"},
				output.WithSummary("Removed key for "+origin))
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")
	return cmd
}

func keyOrigin(app *appctx.App) (string, error) {
	if app.Config.StoreURL == "" {
		return "", output.ErrConfig("No store configured",
			"Run: stockstatus config set store_url https://<project>.supabase.co")
	}
	return app.Config.StoreURL, nil
}

func configTarget(local bool) (scope, path string) {
	if local {
		return "local", config.LocalConfigPath()
	}
	return "global", config.GlobalConfigPath()
}

// maskSecret keeps the last four characters of s.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// redactDSN hides the password in a postgres URL. Key/value DSNs are
// hidden entirely when they carry a password.
func redactDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	if strings.Contains(dsn, "password=") {
		return "[REDACTED]"
	}
	return dsn
}
