// Package main is the entry point for the GenStudio server and CLI.
package main

import (
	"fmt"
	"os"

	_ "genstudio/cmd/genstudio/docs"
)

func main() {
	cli := &cliContext{out: os.Stdout, errOut: os.Stderr}
	if err := rootCommand(cli).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
