// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

func TestProjectHashIsSixteenHexChars(t *testing.T) {
	h := ProjectHash("/home/dev/project")
	assert.Len(t, h, 16)
	assert.Equal(t, ProjectHash("/home/dev/project"), ProjectHash("/home/dev/project/"))
}

func TestWriteReadSnapshotRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	require.True(t, store.IsAvailable())

	snap := protocol.ContextSnapshotV1{
		ID:            "2026-07-30T00:00:00Z_task-1",
		Version:       1,
		ProjectPath:   "/proj",
		TaskID:        "task-1",
		CapturedAt:    "2026-07-30T00:00:00Z",
		CaptureReason: protocol.ReasonManual,
	}
	require.NoError(t, store.WriteSnapshot("/proj", "task-1", snap))

	got, err := store.ReadSnapshot("/proj", "task-1", snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.TaskID, got.TaskID)
	assert.Equal(t, snap.CaptureReason, got.CaptureReason)
}

func TestReadSnapshotClearsMissingTailPath(t *testing.T) {
	store := New(t.TempDir())
	snap := protocol.ContextSnapshotV1{
		ID:            "2026-07-30T00:00:01Z_task-1",
		Version:       1,
		ProjectPath:   "/proj",
		TaskID:        "task-1",
		CapturedAt:    "2026-07-30T00:00:01Z",
		CaptureReason: protocol.ReasonManual,
		Terminal: &protocol.TerminalContext{
			SessionID: 1,
			Status:    protocol.StatusStopped,
			TailPath:  "/does/not/exist.txt",
		},
	}
	require.NoError(t, store.WriteSnapshot("/proj", "task-1", snap))

	got, err := store.ReadSnapshot("/proj", "task-1", snap.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Terminal)
	assert.Empty(t, got.Terminal.TailPath)
}

func TestListSnapshotsSortedDescendingAndIgnoresNonJSON(t *testing.T) {
	store := New(t.TempDir())
	for i := 0; i < 3; i++ {
		snap := protocol.ContextSnapshotV1{
			ID:            fmt.Sprintf("2026-07-30T00:0%d:00Z_task-1", i),
			Version:       1,
			ProjectPath:   "/proj",
			TaskID:        "task-1",
			CapturedAt:    fmt.Sprintf("2026-07-30T00:0%d:00Z", i),
			CaptureReason: protocol.ReasonManual,
		}
		require.NoError(t, store.WriteSnapshot("/proj", "task-1", snap))
	}
	dir := store.taskDir("/proj", "task-1")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))

	snaps, err := store.ListSnapshots("/proj", "task-1", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.True(t, snaps[0].CapturedAt > snaps[1].CapturedAt)
	assert.True(t, snaps[1].CapturedAt > snaps[2].CapturedAt)
}

func TestPruneSnapshotsRetainsNewestN(t *testing.T) {
	store := New(t.TempDir())
	for i := 0; i < 7; i++ {
		snap := protocol.ContextSnapshotV1{
			ID:            fmt.Sprintf("2026-07-30T00:%02d:00Z_task-1", i),
			Version:       1,
			ProjectPath:   "/proj",
			TaskID:        "task-1",
			CapturedAt:    fmt.Sprintf("2026-07-30T00:%02d:00Z", i),
			CaptureReason: protocol.ReasonManual,
		}
		require.NoError(t, store.WriteSnapshot("/proj", "task-1", snap))
	}

	deleted, err := store.PruneSnapshots("/proj", "task-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := store.ListSnapshots("/proj", "task-1", 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 5)
}

func TestDeleteTaskRemovesDirectory(t *testing.T) {
	store := New(t.TempDir())
	snap := protocol.ContextSnapshotV1{
		ID:            "2026-07-30T00:00:00Z_task-1",
		Version:       1,
		ProjectPath:   "/proj",
		TaskID:        "task-1",
		CapturedAt:    "2026-07-30T00:00:00Z",
		CaptureReason: protocol.ReasonManual,
	}
	require.NoError(t, store.WriteSnapshot("/proj", "task-1", snap))
	require.NoError(t, store.DeleteTask("/proj", "task-1"))

	_, err := os.Stat(store.taskDir("/proj", "task-1"))
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupStaleTempsRemovesOldTempFilesOnly(t *testing.T) {
	store := New(t.TempDir())
	dir := store.taskDir("/proj", "task-1")
	require.NoError(t, os.MkdirAll(dir, 0o700))

	oldTemp := filepath.Join(dir, ".snap.json.tmp.123")
	require.NoError(t, os.WriteFile(oldTemp, []byte("x"), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(oldTemp, old, old))

	freshTemp := filepath.Join(dir, ".snap2.json.tmp.456")
	require.NoError(t, os.WriteFile(freshTemp, []byte("x"), 0o600))

	require.NoError(t, store.CleanupStaleTemps("/proj"))

	_, err := os.Stat(oldTemp)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshTemp)
	assert.NoError(t, err)
}
