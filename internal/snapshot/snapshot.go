// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package snapshot is the durable context-resurrection store: one JSON
// file per captured moment, laid out under a per-project-hash,
// per-task directory tree and guarded by per-task advisory locks.
package snapshot

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/colelawrence/right-now-daemon/internal/atomicfile"
	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

const (
	lockTimeout  = 500 * time.Millisecond
	lockBackoff  = 10 * time.Millisecond
	defaultRetain = 5
	staleTempAge = time.Hour
	maxWalkDepth = 3
	maxWalkFiles = 1000
)

// Store is the on-disk snapshot tree rooted at baseDir.
type Store struct {
	baseDir string
	ok      bool
}

// New creates (or verifies) baseDir and returns a Store. IsAvailable
// reports false if baseDir could not be created.
func New(baseDir string) *Store {
	s := &Store{baseDir: baseDir}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		log.Printf("snapshot: base dir %s unavailable: %v", baseDir, err)
		s.ok = false
		return s
	}
	s.ok = true
	return s
}

// IsAvailable reports whether mutating operations may proceed.
func (s *Store) IsAvailable() bool {
	return s.ok
}

// ProjectHash returns the first 16 hex characters of SHA-256 over the
// canonicalized project path.
func ProjectHash(path string) string {
	clean := filepath.Clean(path)
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *Store) taskDir(projectPath, taskID string) string {
	return filepath.Join(s.baseDir, ProjectHash(projectPath), taskID)
}

func (s *Store) lockPath(projectPath, taskID string) string {
	return filepath.Join(s.taskDir(projectPath, taskID), ".lock")
}

func (s *Store) withTaskLock(projectPath, taskID string, fn func() error) error {
	dir := s.taskDir(projectPath, taskID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("snapshot: create task dir: %w", err)
	}
	lock := flock.New(s.lockPath(projectPath, taskID))
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, lockBackoff)
	if err != nil {
		return fmt.Errorf("snapshot: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("snapshot: timed out acquiring task lock")
	}
	defer lock.Unlock()
	return fn()
}

// WriteSnapshot persists snap under project/task_id, guarded by the
// per-task advisory lock.
func (s *Store) WriteSnapshot(projectPath, taskID string, snap protocol.ContextSnapshotV1) error {
	if !s.ok {
		return fmt.Errorf("snapshot: store unavailable")
	}
	return s.withTaskLock(projectPath, taskID, func() error {
		data, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("snapshot: marshal: %w", err)
		}
		path := filepath.Join(s.taskDir(projectPath, taskID), snap.ID+".json")
		if err := atomicfile.Write(path, data, 0o600); err != nil {
			return fmt.Errorf("snapshot: write: %w", err)
		}
		return nil
	})
}

// ReadSnapshot loads one snapshot by id. If the referenced tail file is
// missing, terminal.tail_path is cleared silently.
func (s *Store) ReadSnapshot(projectPath, taskID, id string) (protocol.ContextSnapshotV1, error) {
	path := filepath.Join(s.taskDir(projectPath, taskID), id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return protocol.ContextSnapshotV1{}, fmt.Errorf("snapshot: read: %w", err)
	}
	var snap protocol.ContextSnapshotV1
	if err := json.Unmarshal(data, &snap); err != nil {
		return protocol.ContextSnapshotV1{}, fmt.Errorf("snapshot: decode: %w", err)
	}
	if snap.Terminal != nil && snap.Terminal.TailPath != "" {
		if _, err := os.Stat(snap.Terminal.TailPath); err != nil {
			snap.Terminal.TailPath = ""
		}
	}
	return snap, nil
}

// ListSnapshots returns snapshots for project/task_id sorted by
// captured_at descending. Non-.json entries are ignored; unreadable
// entries are logged and skipped. limit<=0 means unbounded.
func (s *Store) ListSnapshots(projectPath, taskID string, limit int) ([]protocol.ContextSnapshotV1, error) {
	dir := s.taskDir(projectPath, taskID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: list dir: %w", err)
	}

	var out []protocol.ContextSnapshotV1
	for _, ent := range entries {
		if ent.IsDir() || !strings.HasSuffix(ent.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(ent.Name(), ".json")
		snap, err := s.ReadSnapshot(projectPath, taskID, id)
		if err != nil {
			log.Printf("snapshot: skipping unreadable entry %s: %v", ent.Name(), err)
			continue
		}
		out = append(out, snap)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CapturedAt > out[j].CapturedAt
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LatestSnapshot returns the most recent snapshot, if any.
func (s *Store) LatestSnapshot(projectPath, taskID string) (protocol.ContextSnapshotV1, bool, error) {
	snaps, err := s.ListSnapshots(projectPath, taskID, 1)
	if err != nil {
		return protocol.ContextSnapshotV1{}, false, err
	}
	if len(snaps) == 0 {
		return protocol.ContextSnapshotV1{}, false, nil
	}
	return snaps[0], true, nil
}

// PruneSnapshots keeps the retain newest snapshots for a task and
// deletes the rest. retain<=0 uses the default of 5.
func (s *Store) PruneSnapshots(projectPath, taskID string, retain int) (int, error) {
	if retain <= 0 {
		retain = defaultRetain
	}
	deleted := 0
	err := s.withTaskLock(projectPath, taskID, func() error {
		snaps, err := s.ListSnapshots(projectPath, taskID, 0)
		if err != nil {
			return err
		}
		if len(snaps) <= retain {
			return nil
		}
		for _, snap := range snaps[retain:] {
			path := filepath.Join(s.taskDir(projectPath, taskID), snap.ID+".json")
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("snapshot: prune remove: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// DeleteTask removes every snapshot for a task and the task directory
// itself, including its lock file.
func (s *Store) DeleteTask(projectPath, taskID string) error {
	dir := s.taskDir(projectPath, taskID)
	err := s.withTaskLock(projectPath, taskID, func() error {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("snapshot: read task dir: %w", err)
		}
		for _, ent := range entries {
			if strings.HasSuffix(ent.Name(), ".json") {
				if err := os.Remove(filepath.Join(dir, ent.Name())); err != nil {
					return fmt.Errorf("snapshot: delete: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("snapshot: remove task dir: %w", err)
	}
	return nil
}

// DeleteProject removes every task directory under a project's hash
// directory, then the project directory itself.
func (s *Store) DeleteProject(projectPath string) error {
	dir := filepath.Join(s.baseDir, ProjectHash(projectPath))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("snapshot: read project dir: %w", err)
	}
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		if err := s.DeleteTask(projectPath, ent.Name()); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("snapshot: remove project dir: %w", err)
	}
	return nil
}

// CleanupStaleTemps walks a project's directory (bounded to depth 3 and
// 1000 files) removing leftover ".tmp." files older than one hour.
func (s *Store) CleanupStaleTemps(projectPath string) error {
	root := filepath.Join(s.baseDir, ProjectHash(projectPath))
	visited := 0
	now := time.Now()

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		if depth > maxWalkDepth {
			return nil
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		for _, ent := range entries {
			if visited >= maxWalkFiles {
				return nil
			}
			visited++
			path := filepath.Join(dir, ent.Name())
			if ent.IsDir() {
				if err := walk(path, depth+1); err != nil {
					return err
				}
				continue
			}
			if !strings.Contains(ent.Name(), ".tmp.") {
				continue
			}
			info, err := ent.Info()
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > staleTempAge {
				if err := os.Remove(path); err != nil {
					log.Printf("snapshot: failed removing stale temp %s: %v", path, err)
				}
			}
		}
		return nil
	}
	return walk(root, 0)
}
