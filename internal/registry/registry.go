// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the in-memory table of live sessions and
// persists it to disk so a restarted daemon can reconcile state left
// behind by a previous run.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/colelawrence/right-now-daemon/internal/atomicfile"
	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

// Registry is the authoritative, process-wide table of sessions. It is
// safe for concurrent use.
type Registry struct {
	path string

	mu      sync.RWMutex
	nextID  protocol.SessionID
	byID    map[protocol.SessionID]*protocol.Session
}

// New returns an empty registry that persists to path.
func New(path string) *Registry {
	return &Registry{
		path: path,
		byID: make(map[protocol.SessionID]*protocol.Session),
	}
}

// AllocateID returns the next unused session id.
func (r *Registry) AllocateID() protocol.SessionID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	return r.nextID
}

// Insert adds or replaces a session.
func (r *Registry) Insert(s protocol.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := s
	r.byID[s.ID] = &cp
	if s.ID > r.nextID {
		r.nextID = s.ID
	}
}

// Get returns a copy of the session with the given id.
func (r *Registry) Get(id protocol.SessionID) (protocol.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	if !ok {
		return protocol.Session{}, false
	}
	return *s, true
}

// Update applies fn to the stored session under the write lock. It
// returns false if the session does not exist.
func (r *Registry) Update(id protocol.SessionID, fn func(*protocol.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return false
	}
	fn(s)
	return true
}

// Remove deletes a session from the table.
func (r *Registry) Remove(id protocol.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, id)
}

// FindByTaskKey returns the session bound to taskKey within projectPath,
// matching case-insensitively. At most one session is expected to match;
// the first found is returned.
func (r *Registry) FindByTaskKey(taskKey, projectPath string) (protocol.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byID {
		if s.ProjectPath == projectPath && strings.EqualFold(s.TaskKey, taskKey) {
			return *s, true
		}
	}
	return protocol.Session{}, false
}

// SessionsForProject returns all sessions bound to projectPath.
func (r *Registry) SessionsForProject(projectPath string) []protocol.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []protocol.Session
	for _, s := range r.byID {
		if s.ProjectPath == projectPath {
			out = append(out, *s)
		}
	}
	return out
}

// AllSessions returns every known session.
func (r *Registry) AllSessions() []protocol.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]protocol.Session, 0, len(r.byID))
	for _, s := range r.byID {
		out = append(out, *s)
	}
	return out
}

type onDisk struct {
	NextID   protocol.SessionID  `json:"next_id"`
	Sessions []protocol.Session `json:"sessions"`
}

// Save writes the registry to disk atomically, guarded by an exclusive
// file lock so two daemon instances never interleave writes.
func (r *Registry) Save() error {
	lock := flock.New(r.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("registry: acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("registry: timed out acquiring lock")
	}
	defer lock.Unlock()

	r.mu.RLock()
	snap := onDisk{NextID: r.nextID}
	for _, s := range r.byID {
		snap.Sessions = append(snap.Sessions, *s)
	}
	r.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("registry: marshal: %w", err)
	}
	if err := atomicfile.Write(r.path, data, 0o600); err != nil {
		return fmt.Errorf("registry: write: %w", err)
	}
	return nil
}

// Load replaces the in-memory table with the contents of path. A
// missing or empty file is treated as an empty registry, not an error.
func (r *Registry) Load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("registry: read: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}

	var snap onDisk
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("registry: decode: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID = make(map[protocol.SessionID]*protocol.Session, len(snap.Sessions))
	for i := range snap.Sessions {
		s := snap.Sessions[i]
		r.byID[s.ID] = &s
	}
	r.nextID = snap.NextID
	for id := range r.byID {
		if id > r.nextID {
			r.nextID = id
		}
	}
	return nil
}
