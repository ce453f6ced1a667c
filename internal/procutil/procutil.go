// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package procutil answers "is this pid still alive" questions used
// during daemon-restart reconciliation, without assuming the pid
// refers to one of our own child processes (it may be stale).
package procutil

import (
	"github.com/mitchellh/go-ps"
)

// IsAlive reports whether a process with the given pid currently
// exists. It does not distinguish a live unrelated process from a
// live right-now-daemon process; callers that care should also check
// process identity (e.g. command name) before trusting a PID file.
func IsAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := ps.FindProcess(pid)
	if err != nil || proc == nil {
		return false
	}
	return true
}

// Executable returns the process's executable name for a live pid, or
// "" if the process does not exist.
func Executable(pid int) string {
	proc, err := ps.FindProcess(pid)
	if err != nil || proc == nil {
		return ""
	}
	return proc.Executable()
}
