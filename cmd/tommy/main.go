// Command tommy processes a tree of web assets incrementally.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/tommy/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
