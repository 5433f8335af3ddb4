// Command duoplan is a shared plan tracker for two people.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/duoplan/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
