package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/bookingwatch/internal/app"
	"github.com/nhle/bookingwatch/internal/credential"
	"github.com/nhle/bookingwatch/internal/dedup"
	"github.com/nhle/bookingwatch/internal/model"
	"github.com/nhle/bookingwatch/internal/store"
	"github.com/nhle/bookingwatch/tests/testutil"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bookingwatch", cmd.Use)
	assert.Contains(t, cmd.Long, "notifications")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"login", "logout", "watch", "inbox", "availability", "book", "cancel", "state"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestStateSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"show", "clear", "users"} {
		sub, _, err := cmd.Find([]string{"state", name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestWatchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	watchCmd, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)

	require.NotNil(t, watchCmd.Flags().Lookup("metrics-addr"))
	forFlag := watchCmd.Flags().Lookup("for")
	require.NotNil(t, forFlag)
	assert.Equal(t, "0s", forFlag.DefValue)
}

func TestBookCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	bookCmd, _, err := cmd.Find([]string{"book"})
	require.NoError(t, err)

	for _, name := range []string{"service", "at", "availability", "provider", "address", "notes"} {
		assert.NotNil(t, bookCmd.Flags().Lookup(name), name)
	}
}

func TestExitError(t *testing.T) {
	err := NewExitError(ExitCommandError, "bad flag")
	assert.Equal(t, "bad flag", err.Error())
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	cause := errors.New("boom")
	wrapped := WrapExitError(ExitAuthError, "restoring session", cause)
	assert.Equal(t, "restoring session: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, ExitAuthError, GetExitCode(wrapped))

	assert.Equal(t, ExitFailure, GetExitCode(cause))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ExitAuthError, GetExitCode(classify("x", app.ErrNotLoggedIn)))
	assert.Equal(t, ExitFailure, GetExitCode(classify("x", errors.New("api down"))))
}

func TestOutputFormatter(t *testing.T) {
	var buf bytes.Buffer

	f := &OutputFormatter{Format: "text", Writer: &buf}
	require.NoError(t, f.Success(map[string]int{"n": 1}, "one"))
	assert.Equal(t, "one\n", buf.String())

	buf.Reset()
	f.Format = "json"
	require.NoError(t, f.Success(map[string]int{"n": 1}, "one"))
	assert.JSONEq(t, `{"status":"ok","data":{"n":1}}`, buf.String())

	buf.Reset()
	require.NoError(t, f.Line(map[string]int{"n": 2}, "two"))
	assert.JSONEq(t, `{"n":2}`, buf.String())
}

func TestParseID(t *testing.T) {
	id, err := parseID("booking id", "42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID("booking id", bad)
		assert.Equal(t, ExitCommandError, GetExitCode(err), bad)
	}
}

func TestSummarize(t *testing.T) {
	st := dedup.NewState()
	st.SeenBookings[3] = struct{}{}
	st.SeenBookings[1] = struct{}{}
	st.LastStatus[1] = model.StatusPending

	s := summarize(st)
	assert.Equal(t, []int64{1, 3}, s.SeenBookings)
	assert.Equal(t, "2 bookings seen, 1 statuses", s.String())
	assert.Equal(t, "empty", summarize(dedup.NewState()).String())
}

// nopCloseKV keeps the shared test store open across command runs.
type nopCloseKV struct{ store.KV }

func (nopCloseKV) Close() error { return nil }

type cliFixture struct {
	kv    store.KV
	vault *credential.Vault
	cfg   string
	srv   *httptest.Server
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			_ = json.NewEncoder(w).Encode(model.Session{
				Token: "jwt", Email: "ann@example.com",
				Role: model.RoleCustomer, UserID: 9, FullName: "Ann",
			})
		case "/api/availability/provider/5":
			_ = json.NewEncoder(w).Encode([]model.AvailabilitySlot{{ID: 11}, {ID: 12, IsBooked: true}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return &cliFixture{
		kv:    testutil.NewTestStore(t),
		vault: credential.NewVault(keyring.NewArrayKeyring(nil)),
		cfg:   filepath.Join(t.TempDir(), "config.yaml"),
		srv:   srv,
	}
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand(&RootOptions{
		NewApp: func(ctx context.Context, cfg *model.AppConfig, log *zap.Logger) (*app.App, error) {
			cfg.API.BaseURL = f.srv.URL + "/api"
			return app.New(ctx, cfg, zap.NewNop(),
				app.WithKV(nopCloseKV{f.kv}),
				app.WithVault(f.vault),
			)
		},
	})

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config", f.cfg}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInvalidFormat(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run(t, "--format", "xml", "state", "users")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCommandsRequireLogin(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "availability", "5")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	_, err = f.run(t, "state", "show")
	require.Error(t, err)
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestLoginThenAvailability(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "login", "--email", "ann@example.com", "--password", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as Ann")

	out, err = f.run(t, "--format", "json", "availability", "5")
	require.NoError(t, err)

	var resp struct {
		Status string                   `json:"status"`
		Data   []model.AvailabilitySlot `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[1].IsBooked)

	_, err = f.run(t, "availability", "five")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStateShowAndClear(t *testing.T) {
	f := newCLIFixture(t)
	ctx := context.Background()

	d := dedup.NewStore(f.kv, zap.NewNop())
	st := dedup.NewState()
	st.LastStatus[7] = model.StatusConfirmed
	st.LastNotes[7] = "bring a ladder"
	d.Save(ctx, 9, dedup.CategoryCustomerStatuses, st)

	out, err := f.run(t, "state", "users")
	require.NoError(t, err)
	assert.Equal(t, "9\n", out)

	out, err = f.run(t, "state", "show", "--user", "9")
	require.NoError(t, err)
	assert.Contains(t, out, "user 9")
	assert.Contains(t, out, "1 statuses, 1 notes")

	_, err = f.run(t, "state", "clear", "--user", "9")
	require.NoError(t, err)
	assert.True(t, d.Load(ctx, 9, dedup.CategoryCustomerStatuses).Empty())

	out, err = f.run(t, "state", "users")
	require.NoError(t, err)
	assert.Equal(t, "No state stored.\n", out)
}
