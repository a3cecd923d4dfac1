package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/stockstatus/internal/appctx"
	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/stock"
	"github.com/basecamp/stockstatus/internal/store"
	"github.com/basecamp/stockstatus/internal/version"
)

type fixedStore struct{ rec *stock.Record }

func (s fixedStore) FetchLatest(context.Context) (*stock.Record, error) { return s.rec, nil }
func (s fixedStore) Describe() store.FetchInfo                           { return store.FetchInfo{Backend: store.BackendREST} }
func (s fixedStore) Close()                                              {}

func isolate(t *testing.T) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))
	t.Setenv("STOCKSTATUS_NO_KEYRING", "1")
	for _, k := range []string{"STOCKSTATUS_STORE_URL", "SUPABASE_URL", "STOCKSTATUS_STORE_KEY",
		"SUPABASE_ANON_KEY", "STOCKSTATUS_BACKEND", "STOCKSTATUS_INTERVAL", "STOCKSTATUS_DEBUG"} {
		t.Setenv(k, "")
	}
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))
	t.Chdir(work)
}

func withStore(s store.Store) Option {
	return func(app *appctx.App) {
		app.SetStoreOpener(func(context.Context, store.Config) (store.Store, error) { return s, nil })
	}
}

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"watch", "status", "config"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
	for _, flag := range []string{"json", "quiet", "styled", "jq", "backend", "store-url", "table", "interval", "verbose", "stats", "metrics-addr"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestRunVersion(t *testing.T) {
	isolate(t)
	var out bytes.Buffer
	code := Run(context.Background(), NewRootCmd(), []string{"--version"}, &out)
	assert.Equal(t, output.ExitOK, code)
	assert.Equal(t, version.Full()+"\n", out.String())
}

func TestRunStatusThroughStore(t *testing.T) {
	isolate(t)
	t.Setenv("STOCKSTATUS_STORE_URL", "https://demo.supabase.co")
	t.Setenv("STOCKSTATUS_STORE_KEY", "k")

	var out bytes.Buffer
	root := NewRootCmd(withStore(fixedStore{rec: &stock.Record{Available: 0}}))
	code := Run(context.Background(), root, []string{"status", "-q"}, &out)
	require.Equal(t, output.ExitOK, code, out.String())
	assert.Contains(t, out.String(), stock.TextNotAvailable)
	assert.NotContains(t, out.String(), `"ok"`, "quiet drops the envelope")
}

func TestRunMissingStoreIsConfigError(t *testing.T) {
	isolate(t)
	var out bytes.Buffer
	code := Run(context.Background(), NewRootCmd(), []string{"status", "--json"}, &out)
	assert.Equal(t, output.ExitConfig, code)
	assert.Contains(t, out.String(), `"code":"config"`)
}

func TestRunUnknownCommand(t *testing.T) {
	isolate(t)
	var out bytes.Buffer
	code := Run(context.Background(), NewRootCmd(), []string{"frobnicate", "--json"}, &out)
	assert.Equal(t, output.ExitUsage, code)
}

func TestRunBadJQ(t *testing.T) {
	isolate(t)
	var out bytes.Buffer
	code := Run(context.Background(), NewRootCmd(), []string{"config", "show", "--jq", ".[["}, &out)
	assert.Equal(t, output.ExitUsage, code)
}

func TestSkipSetup(t *testing.T) {
	assert.True(t, skipSetup(&cobra.Command{Use: "help"}))
	assert.True(t, skipSetup(&cobra.Command{Use: cobra.ShellCompRequestCmd}))
	assert.False(t, skipSetup(&cobra.Command{Use: "status"}))
}

func TestTransformCobraError(t *testing.T) {
	tests := []struct {
		in      string
		wantMsg string
	}{
		{"flag needs an argument: --interval", "--interval requires a value"},
		{"unknown flag: --bogus", "Unknown option: --bogus"},
		{"unknown shorthand flag: 'x' in -x", "Unknown option: -x"},
		{`unknown command "frob" for "stockstatus"`, `unknown command "frob" for "stockstatus"`},
		{`invalid argument "abc" for "--interval" flag`, `invalid argument "abc" for "--interval" flag`},
		{"accepts at most 1 arg(s), received 2", "accepts at most 1 arg(s), received 2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e := output.AsError(transformCobraError(errors.New(tt.in)))
			assert.Equal(t, output.CodeUsage, e.Code)
			assert.Equal(t, tt.wantMsg, e.Message)
		})
	}

	other := errors.New("something else")
	assert.Same(t, other, transformCobraError(other))
}

func TestRunRoutesCredentialWarningsToStderr(t *testing.T) {
	isolate(t)
	var stderr bytes.Buffer
	var warn io.Writer
	root := NewRootCmd(func(app *appctx.App) { warn = app.Credentials.Warn })
	root.SetErr(&stderr)

	code := Run(context.Background(), root, []string{"config", "show", "--json"}, &bytes.Buffer{})
	require.Equal(t, output.ExitOK, code)
	assert.Same(t, &stderr, warn)
}
