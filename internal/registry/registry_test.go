// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

func TestAllocateIDIsMonotonic(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "sessions.json"))
	a := r.AllocateID()
	b := r.AllocateID()
	assert.Equal(t, a+1, b)
}

func TestFindByTaskKeyIsCaseInsensitiveAndProjectScoped(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "sessions.json"))
	r.Insert(protocol.Session{
		ID:          1,
		TaskKey:     "Write Docs",
		ProjectPath: "/proj/a",
		Status:      protocol.StatusRunning,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	})

	_, ok := r.FindByTaskKey("write docs", "/proj/b")
	assert.False(t, ok, "must not match a different project")

	found, ok := r.FindByTaskKey("WRITE DOCS", "/proj/a")
	require.True(t, ok)
	assert.Equal(t, protocol.SessionID(1), found.ID)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	r := New(path)
	id := r.AllocateID()
	r.Insert(protocol.Session{
		ID:          id,
		TaskKey:     "k",
		ProjectPath: "/proj",
		Status:      protocol.StatusRunning,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	})
	require.NoError(t, r.Save())

	r2 := New(path)
	require.NoError(t, r2.Load())
	s, ok := r2.Get(id)
	require.True(t, ok)
	assert.Equal(t, "k", s.TaskKey)
	assert.Equal(t, id, r2.AllocateID()-1)
}

func TestLoadToleratesMissingFile(t *testing.T) {
	r := New(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, r.Load())
	assert.Empty(t, r.AllSessions())
}

func TestLoadToleratesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o600))

	r := New(path)
	require.NoError(t, r.Load())
	assert.Empty(t, r.AllSessions())
}
