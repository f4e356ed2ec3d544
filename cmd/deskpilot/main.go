// Package main provides the entry point for the deskpilot CLI.
package main

import (
	"context"
	"os"

	"github.com/mrz1836/deskpilot/internal/cli"
)

// Set by goreleaser via -ldflags.
//
//nolint:gochecknoglobals // Build metadata
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := cli.Execute(context.Background(), cli.BuildInfo{Version: version, Commit: commit, Date: date})
	cli.CloseLogFile()
	os.Exit(cli.ExitCodeForError(err))
}
