// Package handoff runs the downstream step (typically a search index
// population) after a sync run converged.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// ErrEmptyCommand is returned by Run when no command is configured.
var ErrEmptyCommand = errors.New("empty hand-off command")

// Command is an external program invoked with a pass/fail exit code.
type Command struct {
	Argv []string
	Dir  string
	// Threshold, when set, is appended as --translation-threshold=N.
	Threshold *int
	Stdout    io.Writer
	Stderr    io.Writer
}

// Parse splits a whitespace-separated command line.
func Parse(line string) []string {
	return strings.Fields(line)
}

// Args returns the full argument vector including the threshold flag.
func (c Command) Args() []string {
	args := append([]string(nil), c.Argv...)
	if c.Threshold != nil {
		args = append(args, fmt.Sprintf("--translation-threshold=%d", *c.Threshold))
	}
	return args
}

// String renders the command line.
func (c Command) String() string {
	return strings.Join(c.Args(), " ")
}

// Run executes the command and fails on a non-zero exit.
func (c Command) Run(ctx context.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return ErrEmptyCommand
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = c.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	return nil
}
