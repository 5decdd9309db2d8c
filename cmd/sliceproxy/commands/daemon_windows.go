//go:build windows

package commands

import "fmt"

// startDaemon is not supported on Windows; run with --foreground instead,
// managed by a service wrapper (e.g. NSSM) if background operation is needed.
func startDaemon() error {
	return fmt.Errorf("daemon mode is not supported on Windows, use --foreground")
}
