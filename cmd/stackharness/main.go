// Package main provides the stackharness CLI application: it builds the
// inference-serving distribution container, runs the external integration
// suite against it, manages response recordings, and reports the outcome.
package main

import (
	"os"

	"stackharness/internal/cli"
)

func main() {
	app := cli.NewApp()
	rootCmd := app.CreateRootCommand()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
