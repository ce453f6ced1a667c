// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package procutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAliveForCurrentProcess(t *testing.T) {
	assert.True(t, IsAlive(os.Getpid()))
}

func TestIsAliveFalseForInvalidPID(t *testing.T) {
	assert.False(t, IsAlive(0))
	assert.False(t, IsAlive(-1))
}

func TestExecutableNonEmptyForCurrentProcess(t *testing.T) {
	assert.NotEmpty(t, Executable(os.Getpid()))
}
