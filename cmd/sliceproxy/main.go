package main

import (
	"fmt"
	"os"

	"github.com/marmos91/sliceproxy/cmd/sliceproxy/commands"

	// Import prometheus metrics implementations so their promauto
	// registrations are linked into the binary.
	_ "github.com/marmos91/sliceproxy/pkg/metrics/prometheus"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.Version = version
	commands.Commit = commit
	commands.Date = date

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
