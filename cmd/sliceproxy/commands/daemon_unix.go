//go:build !windows

package commands

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// isProcessRunning reports whether the PID recorded in pidPath is still
// alive, using signal 0 (no-op delivery, just existence/permission check).
func isProcessRunning(pidPath string) (int, bool) {
	data, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}

	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}

	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}

	return pid, true
}

// startDaemon re-execs the current binary in foreground mode, detached into
// its own session, and returns once the child has been launched.
func startDaemon() error {
	resolvedPidFile := pidFile
	if resolvedPidFile == "" {
		resolvedPidFile = GetDefaultPidFile()
	}
	resolvedLogFile := logFile
	if resolvedLogFile == "" {
		resolvedLogFile = GetDefaultLogFile()
	}

	stateDir := GetDefaultStateDir()
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if pid, running := isProcessRunning(resolvedPidFile); running {
		return fmt.Errorf("sliceproxy is already running (PID %d)\nUse 'sliceproxy stop' to stop the running instance", pid)
	}
	_ = os.Remove(resolvedPidFile)

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to resolve executable path: %w", err)
	}

	daemonArgs := []string{"start", "--foreground", "--pid-file", resolvedPidFile}
	if configFile := GetConfigFile(); configFile != "" {
		daemonArgs = append(daemonArgs, "--config", configFile)
	}

	logHandle, err := os.OpenFile(resolvedLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logHandle.Close()

	cmd := exec.Command(executable, daemonArgs...)
	cmd.Stdout = logHandle
	cmd.Stderr = logHandle
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("sliceproxy started in background (PID %d)\n", cmd.Process.Pid)
	fmt.Printf("  PID file: %s\n", resolvedPidFile)
	fmt.Printf("  Log file: %s\n", resolvedLogFile)
	fmt.Println("Use 'sliceproxy status' to check status or 'sliceproxy stop' to stop it.")

	return cmd.Process.Release()
}
