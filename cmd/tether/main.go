// Command tether renders schema-bound prompts, validates generator replies
// and drives the retry, fallback and repair strategies from the command line.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tether/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
