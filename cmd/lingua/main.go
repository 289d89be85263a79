// Command lingua synchronizes local source strings with a remote translation
// server using content-addressed keys.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/survos/lingua/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err == nil {
		return
	}

	// Commands report their own ExitErrors; usage errors from cobra are not.
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
