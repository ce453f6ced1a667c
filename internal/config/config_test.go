// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvOverrideCollapsesDirs(t *testing.T) {
	t.Setenv("RIGHT_NOW_DAEMON_DIR", "/tmp/rn-test-override")
	cfg := FromEnv()
	assert.Equal(t, "/tmp/rn-test-override", cfg.RuntimeDir)
	assert.Equal(t, "/tmp/rn-test-override", cfg.StateDir)
}

func TestCurrentProjectRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{RuntimeDir: dir, StateDir: dir}

	_, ok := cfg.ReadCurrentProject()
	assert.False(t, ok)

	project := filepath.Join(dir, "myproject")
	require.NoError(t, os.MkdirAll(project, 0o755))

	require.NoError(t, cfg.WriteCurrentProject(project))
	got, ok := cfg.ReadCurrentProject()
	require.True(t, ok)
	assert.Equal(t, project, got)

	require.NoError(t, cfg.ClearCurrentProject())
	_, ok = cfg.ReadCurrentProject()
	assert.False(t, ok)
}

func TestDefaultShellHonorsOverride(t *testing.T) {
	t.Setenv("RIGHT_NOW_SHELL", "/bin/zsh")
	assert.Equal(t, []string{"/bin/zsh"}, DefaultShell())
}

