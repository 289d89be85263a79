package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/model"
	"github.com/survos/lingua/internal/syncer"
	"github.com/survos/lingua/internal/testutil"
)

// isolate runs the test in an empty directory with no LINGUA_* overrides and
// returns a fresh database path.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testChdir(t, dir)
	for _, k := range []string{
		"LINGUA_BASE_URI", "LINGUA_API_KEY", "LINGUA_DRIVER", "LINGUA_DATABASE",
		"LINGUA_ENGINE", "LINGUA_WEBHOOK_KEY", "LINGUA_TIMEOUT", "LINGUA_TARGETS",
	} {
		t.Setenv(k, "")
	}
	return filepath.Join(dir, "lingua.db")
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func registerTexts(t *testing.T, db string, targets string, texts ...string) {
	t.Helper()
	args := append([]string{"--db", db, "register", "--source", "en", "--targets", targets}, texts...)
	_, _, err := execute(t, args...)
	require.NoError(t, err)
}

func TestRegisterAndStatus(t *testing.T) {
	db := isolate(t)

	out, _, err := execute(t, "--db", db, "register", "--source", "en", "--targets", "es,fr", "Save", "Cancel", "")
	require.NoError(t, err)
	assert.Equal(t, "Registered 2 source string(s), 4 new stub(s), 1 skipped\n", out)

	out, _, err = execute(t, "--db", db, "register", "--targets", "es,fr", "Save")
	require.NoError(t, err)
	assert.Equal(t, "Registered 1 source string(s), 0 new stub(s)\n", out, "registering twice creates nothing")

	out, _, err = execute(t, "--db", db, "--format", "json", "status")
	require.NoError(t, err)
	var stats []model.LocaleStats
	decodeData(t, out, &stats)
	require.Len(t, stats, 2)
	assert.Equal(t, "es", stats[0].Locale)
	assert.Equal(t, 2, stats[0].Total)
	assert.Equal(t, 0, stats[0].Translated)
	assert.Equal(t, 2, stats[0].Missing)
}

func TestStatus_Empty(t *testing.T) {
	db := isolate(t)

	out, _, err := execute(t, "--db", db, "status")
	require.NoError(t, err)
	assert.Equal(t, "No translation stubs found.\n", out)
}

func TestSync_InProcessConverges(t *testing.T) {
	db := isolate(t)
	registerTexts(t, db, "es,fr", "Save", "Cancel")

	out, _, err := execute(t, "--db", db, "--in-process", "sync", "--targets", "es,fr")
	require.NoError(t, err)
	assert.Contains(t, out, "state=done, attempts=1, converged=true, updated=4")
	assert.Contains(t, out, "accepted=4")
	assert.Contains(t, out, "100.0%")

	out, _, err = execute(t, "--db", db, "--format", "json", "status")
	require.NoError(t, err)
	var stats []model.LocaleStats
	decodeData(t, out, &stats)
	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.Equal(t, 100.0, s.Pct, s.Locale)
	}

	// Nothing left to push or pull.
	out, _, err = execute(t, "--db", db, "--in-process", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "batches=0")
	assert.Contains(t, out, "updated=0")
}

func TestSync_FixedRunIDJSON(t *testing.T) {
	db := isolate(t)
	registerTexts(t, db, "es", "Save")

	opts := &SyncOptions{
		RootOptions: &RootOptions{Format: "json", Database: db, InProcess: true},
		IDs:         testutil.NewFixedIDGenerator(""),
		Sleeper:     &testutil.FakeSleeper{},
	}
	cmd := newSyncCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--targets", "es"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	var v struct {
		RunID     string `json:"run_id"`
		State     string `json:"state"`
		Converged bool   `json:"converged"`
		Updated   int64  `json:"updated"`
		Push      struct {
			Accepted int   `json:"accepted"`
			Marked   int64 `json:"marked"`
		} `json:"push"`
	}
	decodeData(t, out.String(), &v)
	assert.Equal(t, "test-run-1", v.RunID)
	assert.Equal(t, string(syncer.StateDone), v.State)
	assert.True(t, v.Converged)
	assert.Equal(t, int64(1), v.Updated)
	assert.Equal(t, 1, v.Push.Accepted)
	assert.Equal(t, int64(1), v.Push.Marked)
}

func TestSync_Handoff(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db := isolate(t)
		registerTexts(t, db, "es", "Save")

		out, _, err := execute(t, "--db", db, "--in-process", "sync", "--targets", "es", "--handoff", "true")
		require.NoError(t, err)
		assert.Contains(t, out, "Hand-off completed")
	})

	t.Run("failure exits 1", func(t *testing.T) {
		db := isolate(t)
		registerTexts(t, db, "es", "Save")

		out, errOut, err := execute(t, "--db", db, "--in-process", "sync", "--targets", "es", "--handoff", "false")
		require.Error(t, err)
		assert.ErrorIs(t, err, syncer.ErrHandoff)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, out, "Hand-off failed")
		assert.Contains(t, errOut, "Error [E006]")
	})

	t.Run("skipped below threshold", func(t *testing.T) {
		db := isolate(t)
		registerTexts(t, db, "es", "Save")

		// Nothing is pushed, so nothing converges and the hand-off never runs.
		out, _, err := execute(t, "--db", db, "--in-process", "sync", "--skip-push", "--targets", "es", "--handoff", "false")
		require.NoError(t, err)
		assert.Contains(t, out, "converged=false")
		assert.NotContains(t, out, "Hand-off")
	})
}

func TestPull_JSON(t *testing.T) {
	db := isolate(t)
	registerTexts(t, db, "es,fr", "Save", "Cancel")

	// A fresh in-process server knows none of the keys.
	out, _, err := execute(t, "--db", db, "--in-process", "--format", "json", "pull")
	require.NoError(t, err)

	var v pullView
	decodeData(t, out, &v)
	assert.Equal(t, 4, v.Rows)
	assert.Equal(t, 2, v.Chunks)
	assert.Equal(t, int64(0), v.Updated)
}

func TestPush_InProcess(t *testing.T) {
	db := isolate(t)
	registerTexts(t, db, "es", "Save", "Cancel", "Open")

	out, _, err := execute(t, "--db", db, "--in-process", "push", "--batch", "2", "--strict")
	require.NoError(t, err)
	assert.Contains(t, out, "Push: batches=2, texts=3, accepted=3, queued=0, missing=0, errored=0")
	assert.Contains(t, out, "marked queued: 3")
}

func TestPush_SourcesModeRequiresTargets(t *testing.T) {
	db := isolate(t)
	registerTexts(t, db, "es", "Save")

	_, errOut, err := execute(t, "--db", db, "--in-process", "push", "--mode", "str")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrNoTargets)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "Error [E002]")
}

func TestDemo_InProcess(t *testing.T) {
	isolate(t)

	out, _, err := execute(t, "--in-process", "demo", "Hello", "--to", "es")
	require.NoError(t, err)
	assert.Contains(t, out, "Status: ok")
	assert.Contains(t, out, "[es] Hello")
}

func TestImportPO(t *testing.T) {
	po, err := filepath.Abs(filepath.Join("..", "registry", "testdata", "messages.es.po"))
	require.NoError(t, err)
	db := isolate(t)

	out, _, err := execute(t, "--db", db, "--format", "json", "import-po", po, "--locale", "es")
	require.NoError(t, err)

	var v registerView
	decodeData(t, out, &v)
	assert.Equal(t, 3, v.Sources)
	assert.Equal(t, 3, v.Stubs)
	assert.Equal(t, int64(2), v.Translated)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"invalid format", []string{"--format", "yaml", "status"}, ExitCommandError},
		{"invalid push mode", []string{"push", "--mode", "all"}, ExitCommandError},
		{"invalid transport", []string{"--in-process", "push", "--transport", "later"}, ExitCommandError},
		{"invalid driver", []string{"--driver", "oracle", "status"}, ExitCommandError},
		{"invalid poll", []string{"sync", "--poll", "soon"}, ExitCommandError},
		{"invalid threshold", []string{"--in-process", "sync", "--stop-when", "150"}, ExitCommandError},
		{"demo without targets", []string{"--in-process", "demo", "Hello"}, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := isolate(t)
			args := append([]string{"--db", db}, tt.args...)
			_, _, err := execute(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.want, GetExitCode(err))
		})
	}
}

func TestUnknownFlagIsCommandError(t *testing.T) {
	isolate(t)

	_, errOut, err := execute(t, "status", "--bogus")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut, "unknown flag: --bogus")
}
