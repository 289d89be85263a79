package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/survos/lingua/internal/config"
	"github.com/survos/lingua/internal/push"
	"github.com/survos/lingua/internal/store"
	"github.com/survos/lingua/internal/syncer"
	"github.com/survos/lingua/internal/transport"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Success(map[string]int{"updated": 4}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"updated": float64(4)}, resp.Data)
	assert.Nil(t, resp.Error)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeStrict, "push failed", map[string]int{"errored": 1}))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeStrict, resp.Error.Code)
	assert.Equal(t, "push failed", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

func TestOutputFormatter_TextErrorGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: out, ErrWriter: errOut}

	require.NoError(t, formatter.Error(ErrCodeConfig, "no targets", "ignored"))
	assert.Empty(t, out.String())
	assert.Equal(t, "Error [E002]: no targets\n", errOut.String())
}

func TestOutputFormatter_TextErrorVerboseDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: true}

	require.NoError(t, formatter.Error(ErrCodeGeneric, "boom", "chunk 2"))
	assert.Contains(t, buf.String(), "Error [E001]: boom")
	assert.Contains(t, buf.String(), "Details: chunk 2")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	quiet := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}
	quiet.VerboseLog("pulled %d", 3)
	assert.Empty(t, errOut.String())

	loud := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}
	loud.VerboseLog("pulled %d", 3)
	assert.Equal(t, "pulled 3\n", errOut.String())
	assert.Empty(t, out.String(), "verbose logs never corrupt JSON output")
}

func TestGetErrWriter_FallsBackToWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Writer: buf}
	assert.Same(t, buf, formatter.GetErrWriter())
}

func TestExitError(t *testing.T) {
	base := errors.New("disk full")

	err := WrapExitError(ExitCommandError, "open database", base)
	assert.Equal(t, "open database: disk full", err.Error())
	assert.ErrorIs(t, err, base)

	plain := NewExitError(ExitFailure, "nothing accepted")
	assert.Equal(t, "nothing accepted", plain.Error())
	assert.Nil(t, plain.Unwrap())
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain error", errors.New("x"), ExitFailure},
		{"exit error", NewExitError(ExitCommandError, "bad flag"), ExitCommandError},
		{"wrapped exit error", fmt.Errorf("outer: %w", NewExitError(ExitCommandError, "x")), ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantExit int
		wantCode string
	}{
		{"no targets", fmt.Errorf("push all: %w", config.ErrNoTargets), ExitCommandError, ErrCodeConfig},
		{"invalid config", config.ErrInvalid, ExitCommandError, ErrCodeConfig},
		{"missing store", fmt.Errorf("pull: %w", store.ErrMissingCollaborator), ExitCommandError, ErrCodeStorage},
		{"strict", &push.StrictError{ErroredChunks: 1}, ExitFailure, ErrCodeStrict},
		{"strict inside sync", fmt.Errorf("push: %w", &push.StrictError{Texts: 3}), ExitFailure, ErrCodeStrict},
		{"hand-off", fmt.Errorf("%w: exit status 3", syncer.ErrHandoff), ExitFailure, ErrCodeHandoff},
		{"transport", &transport.Error{Op: "POST", Status: 502}, ExitFailure, ErrCodeTransport},
		{"other", errors.New("x"), ExitFailure, ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exit, code := classify(tt.err)
			assert.Equal(t, tt.wantExit, exit)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}

func TestErrorStrings(t *testing.T) {
	assert.Nil(t, errorStrings(nil))
	assert.Equal(t, []string{"a", "b"}, errorStrings([]error{errors.New("a"), errors.New("b")}))
}
