// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverridesMissingFileReturnsZeroValue(t *testing.T) {
	overrides, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.hjson"))
	require.NoError(t, err)
	assert.Equal(t, Overrides{}, overrides)
}

func TestLoadOverridesParsesHJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.hjson")
	content := `{
  // override the login shell sessions are spawned under
  shell: ["/bin/zsh"]
  status_poll_interval_seconds: 2
  idle_capture_after_minutes: 15
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	overrides, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/bin/zsh"}, overrides.Shell)
	assert.Equal(t, 2*time.Second, overrides.StatusPollInterval)
	assert.Equal(t, 15*time.Minute, overrides.IdleCaptureAfter)
}

func TestLoadOverridesRejectsMalformedHJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.hjson")
	require.NoError(t, os.WriteFile(path, []byte(`{ shell: [`), 0o600))

	_, err := LoadOverrides(path)
	assert.Error(t, err)
}
