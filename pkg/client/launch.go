// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/colelawrence/right-now-daemon/internal/config"
	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

// dialOrLaunch dials the control socket, launching the daemon as a
// detached background process and waiting up to daemonStartupTimeout
// for it to come up if the first dial fails.
func dialOrLaunch(cfg config.Config) (net.Conn, error) {
	if conn, err := net.Dial("unix", cfg.SocketPath()); err == nil {
		return conn, nil
	}

	if err := launchDaemon(cfg); err != nil {
		return nil, &Error{Code: protocol.ErrDaemonUnavailable, Message: err.Error()}
	}

	deadline := time.Now().Add(daemonStartupTimeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.Dial("unix", cfg.SocketPath())
		if err == nil {
			return conn, nil
		}
		lastErr = err
		time.Sleep(100 * time.Millisecond)
	}
	return nil, &Error{Code: protocol.ErrDaemonUnavailable, Message: fmt.Sprintf("daemon did not come up within %s: %v", daemonStartupTimeout, lastErr)}
}

// launchDaemon starts right-now-daemon detached from the client's
// process group so it outlives this command, redirecting its own
// stdout/stderr to a log file rather than the client's terminal.
func launchDaemon(cfg config.Config) error {
	binPath, err := exec.LookPath("right-now-daemon")
	if err != nil {
		return fmt.Errorf("client: right-now-daemon not found in PATH: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("client: prepare daemon dirs: %w", err)
	}

	logPath := filepath.Join(cfg.StateDir, "daemon.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("client: open daemon log: %w", err)
	}
	defer logFile.Close()

	cmd := exec.Command(binPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.SysProcAttr = &unix.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("client: start daemon: %w", err)
	}
	return cmd.Process.Release()
}
