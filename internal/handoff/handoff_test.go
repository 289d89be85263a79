package handoff

import (
	"bytes"
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgs_AppendsThreshold(t *testing.T) {
	n := 80
	c := Command{Argv: Parse("bin/console  meili:populate"), Threshold: &n}
	assert.Equal(t, []string{"bin/console", "meili:populate", "--translation-threshold=80"}, c.Args())
	assert.Equal(t, "bin/console meili:populate --translation-threshold=80", c.String())

	c.Threshold = nil
	assert.Equal(t, []string{"bin/console", "meili:populate"}, c.Args())
}

func TestRun_Empty(t *testing.T) {
	assert.ErrorIs(t, Command{}.Run(context.Background()), ErrEmptyCommand)
}

func TestRun_Success(t *testing.T) {
	if _, err := exec.LookPath("echo"); err != nil {
		t.Skip("echo not available")
	}
	n := 90
	var out bytes.Buffer
	c := Command{Argv: []string{"echo", "populate"}, Threshold: &n, Stdout: &out}

	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, "populate --translation-threshold=90\n", out.String())
}

func TestRun_Failure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	err := Command{Argv: []string{"false"}}.Run(context.Background())
	require.Error(t, err)
	var exitErr *exec.ExitError
	assert.ErrorAs(t, err, &exitErr)
}
