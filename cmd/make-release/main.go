// Package main provides the make-release command, which turns a successful
// DIRACOS CI build into a published GitHub release.
package main

import (
	"fmt"
	"os"

	"github.com/diracgrid/diracos-release/internal/cli"
)

func main() {
	app := cli.NewApp()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "make-release:", err)
		os.Exit(cli.ExitCode(err))
	}
}
