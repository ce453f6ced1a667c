// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package attention

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadOverlayMissingFileReturnsDefaults(t *testing.T) {
	profiles, err := LoadOverlay(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultProfiles, profiles)
}

func TestLoadOverlayAddsCustomProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attention-profiles.yaml")
	content := `
profiles:
  - name: pytest
    triggers:
      - regex: "(?i)(\\d+) failed"
        attention_type: error
        surround_before: 0
        surround_after: 40
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	profiles, err := LoadOverlay(path)
	require.NoError(t, err)
	require.Len(t, profiles, len(DefaultProfiles)+1)

	m, ok := Detect("2 failed, 3 passed", profiles)
	require.True(t, ok)
	assert.Equal(t, "pytest", m.Profile)
	assert.Equal(t, Error, m.AttentionType)
}

func TestLoadOverlayRejectsTriggerWithoutPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attention-profiles.yaml")
	content := `
profiles:
  - name: broken
    triggers:
      - attention_type: error
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := LoadOverlay(path)
	assert.Error(t, err)
}
