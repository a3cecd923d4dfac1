package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basecamp/stockstatus/internal/appctx"
	"github.com/basecamp/stockstatus/internal/cli"
	"github.com/basecamp/stockstatus/internal/commands"
	"github.com/basecamp/stockstatus/internal/output"
	"github.com/basecamp/stockstatus/internal/stock"
	"github.com/basecamp/stockstatus/internal/store"
)

type stubStore struct {
	rec *stock.Record
	err error
}

func (s stubStore) FetchLatest(context.Context) (*stock.Record, error) { return s.rec, s.err }
func (s stubStore) Describe() store.FetchInfo {
	return store.FetchInfo{Backend: store.BackendREST, Table: "stock", Target: "stub"}
}
func (s stubStore) Close() {}

// setup isolates config, credentials and the working directory, and points
// the env at a configured REST store.
func setup(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "xdg"))
	t.Setenv("STOCKSTATUS_NO_KEYRING", "1")
	t.Setenv("STOCKSTATUS_STORE_URL", "https://demo.supabase.co")
	t.Setenv("STOCKSTATUS_STORE_KEY", "anon-key-1234")
	for _, k := range []string{"STOCKSTATUS_BACKEND", "STOCKSTATUS_TABLE", "STOCKSTATUS_INTERVAL",
		"STOCKSTATUS_DEBUG", "STOCKSTATUS_STATS", "SUPABASE_URL", "SUPABASE_ANON_KEY",
		"STOCKSTATUS_DATABASE_URL", "DATABASE_URL", "STOCKSTATUS_THEME", "NO_COLOR"} {
		t.Setenv(k, "")
	}
	work := filepath.Join(root, "work")
	require.NoError(t, os.MkdirAll(work, 0o755))
	t.Chdir(work)
	return filepath.Join(root, "xdg", "stockstatus")
}

func run(t *testing.T, ctx context.Context, s store.Store, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	root := cli.NewRootCmd(func(app *appctx.App) {
		app.SetStoreOpener(func(context.Context, store.Config) (store.Store, error) {
			return s, nil
		})
	})
	root.SetErr(&bytes.Buffer{})
	code := cli.Run(ctx, root, args, &out)
	return code, out.String()
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m), s)
	return m
}

func TestStatusAvailable(t *testing.T) {
	setup(t)
	s := stubStore{rec: &stock.Record{ID: "1", Available: 1, UpdatedAt: "2024-01-01T12:00:00Z"}}

	code, out := run(t, context.Background(), s, "status", "--json")
	require.Equal(t, 0, code, out)

	resp := decode(t, out)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, stock.TextAvailable, resp["summary"])
	data := resp["data"].(map[string]any)
	assert.Equal(t, "loaded", data["state"])
	assert.Equal(t, true, data["available"])
	assert.Equal(t, "1", data["record"].(map[string]any)["id"])
}

func TestStatusEmptyTableJQ(t *testing.T) {
	setup(t)
	code, out := run(t, context.Background(), stubStore{}, "status", "--jq", ".data.status")
	require.Equal(t, 0, code, out)
	assert.Equal(t, stock.TextNotAvailable+"\n", out)
}

func TestStatusFetchError(t *testing.T) {
	setup(t)
	s := stubStore{err: store.ErrNetwork(errors.New("network error"))}

	code, out := run(t, context.Background(), s, "status", "--json")
	assert.Equal(t, output.ExitNetwork, code)
	resp := decode(t, out)
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, output.CodeNetwork, resp["code"])
	assert.Equal(t, "network error", resp["error"])
}

func TestStatusNotConfigured(t *testing.T) {
	setup(t)
	t.Setenv("STOCKSTATUS_STORE_URL", "")

	code, out := run(t, context.Background(), stubStore{}, "status", "--json")
	assert.Equal(t, output.ExitConfig, code)
	assert.Equal(t, output.CodeConfig, decode(t, out)["code"])
}

func TestUnknownFlag(t *testing.T) {
	setup(t)
	code, out := run(t, context.Background(), stubStore{}, "status", "--nope", "--json")
	assert.Equal(t, output.ExitUsage, code)
	assert.Contains(t, out, "Unknown option: --nope")
}

func TestInvalidIntervalIsConfigError(t *testing.T) {
	setup(t)
	code, _ := run(t, context.Background(), stubStore{}, "status", "--interval", "10ms", "--json")
	assert.Equal(t, output.ExitConfig, code)
}

func TestStatusWatchStreams(t *testing.T) {
	setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	code, out := run(t, ctx, stubStore{rec: &stock.Record{Available: 1}}, "status", "--watch", "--json")
	require.Equal(t, 0, code, out)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1, "one fetch at start, next one is 10s away")
	resp := decode(t, lines[0])
	assert.Equal(t, stock.TextAvailable, resp["summary"])
	assert.Nil(t, resp["notice"], "timer fetches carry no success notice")
}

func TestWatchHeadlessReportsErrorsInStream(t *testing.T) {
	setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	code, out := run(t, ctx, stubStore{err: errors.New("boom")}, "watch", "--json")
	require.Equal(t, 0, code, out)

	resp := decode(t, strings.TrimSpace(out))
	data := resp["data"].(map[string]any)
	assert.Equal(t, "error", data["state"])
	assert.Equal(t, "boom", data["error"])
	notice := resp["notice"].(map[string]any)
	assert.Equal(t, true, notice["error"])
}

func TestConfigShowMasksKey(t *testing.T) {
	setup(t)
	code, out := run(t, context.Background(), stubStore{}, "config", "show", "--json")
	require.Equal(t, 0, code, out)

	data := decode(t, out)["data"].(map[string]any)
	key := data["store_key"].(map[string]any)
	assert.Equal(t, "****1234", key["value"])
	assert.Equal(t, "env", key["source"])
	assert.Equal(t, "file", data["credentials"].(map[string]any)["value"])
	assert.NotContains(t, out, "anon-key-1234")
}

func TestConfigSetUnset(t *testing.T) {
	globalDir := setup(t)

	code, out := run(t, context.Background(), stubStore{}, "config", "set", "interval", "30s", "--json")
	require.Equal(t, 0, code, out)

	raw, err := os.ReadFile(filepath.Join(globalDir, "config.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"interval":"30s"}`, string(raw))

	code, out = run(t, context.Background(), stubStore{}, "config", "show", "--json")
	require.Equal(t, 0, code)
	interval := decode(t, out)["data"].(map[string]any)["interval"].(map[string]any)
	assert.Equal(t, "30s", interval["value"])
	assert.Equal(t, "global", interval["source"])

	code, out = run(t, context.Background(), stubStore{}, "config", "unset", "interval", "--json")
	require.Equal(t, 0, code)
	assert.Equal(t, "unset", decode(t, out)["data"].(map[string]any)["status"])

	code, out = run(t, context.Background(), stubStore{}, "config", "unset", "interval", "--json")
	require.Equal(t, 0, code)
	assert.Equal(t, "not_set", decode(t, out)["data"].(map[string]any)["status"])
}

func TestConfigSetRejects(t *testing.T) {
	setup(t)
	for _, args := range [][]string{
		{"config", "set", "colour", "blue"},
		{"config", "set", "interval", "soon"},
		{"config", "set", "backend", "mongo"},
		{"config", "set", "format", "yaml"},
		{"config", "set", "--local", "store_url", "https://evil.example.com"},
	} {
		code, _ := run(t, context.Background(), stubStore{}, append(args, "--json")...)
		assert.Equal(t, output.ExitUsage, code, strings.Join(args, " "))
	}
}

func TestConfigSetKeyAndUnsetKey(t *testing.T) {
	globalDir := setup(t)
	t.Setenv("STOCKSTATUS_STORE_KEY", "")
	restore := commands.SetPrompts(
		func(string, string) (string, error) { return "prompted-key", nil },
		func(string) (bool, error) { return true, nil },
		true,
	)
	defer restore()

	code, out := run(t, context.Background(), stubStore{}, "config", "set-key", "--json")
	require.Equal(t, 0, code, out)
	data := decode(t, out)["data"].(map[string]any)
	assert.Equal(t, "https://demo.supabase.co", data["origin"])
	assert.Equal(t, "file", data["backend"])
	assert.FileExists(t, filepath.Join(globalDir, "credentials.json"))

	// The stored key is picked up on the next run.
	code, out = run(t, context.Background(), stubStore{}, "config", "show", "--json")
	require.Equal(t, 0, code)
	key := decode(t, out)["data"].(map[string]any)["store_key"].(map[string]any)
	assert.Equal(t, "credentials", key["source"])

	code, out = run(t, context.Background(), stubStore{}, "config", "unset-key", "--json")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "removed", decode(t, out)["data"].(map[string]any)["status"])

	code, out = run(t, context.Background(), stubStore{}, "config", "unset-key", "--force", "--json")
	require.Equal(t, 0, code, out)
	assert.Equal(t, "not_set", decode(t, out)["data"].(map[string]any)["status"])
}

func TestConfigSetKeyNonInteractiveNeedsArg(t *testing.T) {
	setup(t)
	restore := commands.SetPrompts(nil, nil, false)
	defer restore()

	code, _ := run(t, context.Background(), stubStore{}, "config", "set-key", "--json")
	assert.Equal(t, output.ExitUsage, code)

	code, out := run(t, context.Background(), stubStore{}, "config", "set-key", "from-arg", "--json")
	require.Equal(t, 0, code, out)
}

func TestConfigUnsetKeyDeclined(t *testing.T) {
	setup(t)
	restore := commands.SetPrompts(nil, func(string) (bool, error) { return false, nil }, true)
	defer restore()

	code, _ := run(t, context.Background(), stubStore{}, "config", "unset-key", "--json")
	assert.Equal(t, output.ExitUsage, code)
}

func TestWatchUnreachableDatabaseKeepsPolling(t *testing.T) {
	setup(t)
	t.Setenv("STOCKSTATUS_BACKEND", "postgres")
	t.Setenv("STOCKSTATUS_DATABASE_URL", "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1")

	ctx, cancel := context.WithTimeout(context.Background(), 1600*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	root := cli.NewRootCmd()
	root.SetErr(&bytes.Buffer{})
	code := cli.Run(ctx, root, []string{"watch", "--json", "--interval", "1s"}, &out)
	require.Equal(t, 0, code, out.String())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2, "fetches again on the next tick")
	for _, line := range lines {
		resp := decode(t, line)
		assert.Equal(t, true, resp["ok"])
		assert.Equal(t, "error", resp["data"].(map[string]any)["state"])
	}
}

func TestWatchHelpReadsAsSentence(t *testing.T) {
	long := commands.NewWatchCmd().Long
	assert.NotContains(t, long, "; .")
	assert.True(t, strings.HasSuffix(long, "."), long)
}
