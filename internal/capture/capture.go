// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package capture wraps the snapshot store with dedup, rate-limit and
// secret-redaction coordination so callers can fire capture requests
// freely without flooding disk or leaking terminal secrets.
package capture

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/colelawrence/right-now-daemon/internal/protocol"
	"github.com/colelawrence/right-now-daemon/internal/snapshot"
)

const (
	dedupWindow     = 5 * time.Second
	rateLimitWindow = 2 * time.Second
	staleEntryAge   = 10 * time.Second
)

// SessionSnapshot is the session-module-provided view of live terminal
// state needed to populate a capture.
type SessionSnapshot struct {
	Status        protocol.SessionStatus
	ExitCode      *int
	LastAttention *protocol.AttentionSummary
	Tail          string
}

// SessionProvider resolves a session id to its current snapshot. It
// inverts the dependency so this package never imports ptyrun/daemon.
type SessionProvider func(sessionID protocol.SessionID) (SessionSnapshot, bool)

// Clock abstracts time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type dedupKey struct {
	taskID string
	reason protocol.CaptureReason
}

type coordinationState struct {
	mu        sync.Mutex
	dedup     map[dedupKey]time.Time
	rateLimit map[string]time.Time
}

func newCoordinationState() *coordinationState {
	return &coordinationState{
		dedup:     make(map[dedupKey]time.Time),
		rateLimit: make(map[string]time.Time),
	}
}

func (s *coordinationState) isDuplicate(taskID string, reason protocol.CaptureReason, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.dedup[dedupKey{taskID, reason}]
	return ok && now.Sub(last) < dedupWindow
}

func (s *coordinationState) isRateLimited(taskID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.rateLimit[taskID]
	return ok && now.Sub(last) < rateLimitWindow
}

func (s *coordinationState) recordCapture(taskID string, reason protocol.CaptureReason, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dedup[dedupKey{taskID, reason}] = now
	s.rateLimit[taskID] = now
}

func (s *coordinationState) cleanup(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, t := range s.dedup {
		if now.Sub(t) >= staleEntryAge {
			delete(s.dedup, k)
		}
	}
	for k, t := range s.rateLimit {
		if now.Sub(t) >= staleEntryAge {
			delete(s.rateLimit, k)
		}
	}
}

// Service coordinates captures against a snapshot store: dedup per
// (task, reason), rate-limit per task, and redaction of terminal tails.
type Service struct {
	store           *snapshot.Store
	sessionProvider SessionProvider
	state           *coordinationState
	clock           Clock
}

// New returns a capture service backed by store. sessionProvider may be
// nil if no session state should be folded into captures.
func New(store *snapshot.Store, sessionProvider SessionProvider) *Service {
	return &Service{store: store, sessionProvider: sessionProvider, state: newCoordinationState(), clock: systemClock{}}
}

// NewWithClock is New with an injectable clock, for tests.
func NewWithClock(store *snapshot.Store, sessionProvider SessionProvider, clock Clock) *Service {
	return &Service{store: store, sessionProvider: sessionProvider, state: newCoordinationState(), clock: clock}
}

// CaptureNow builds and persists a ContextSnapshotV1 for taskID,
// subject to the dedup window (5s per task+reason), rate limit (2s per
// task) and the snapshot store's per-task lock (500ms timeout). It
// returns (snapshot, true) on success, (zero, false) if the capture was
// skipped — never an error for expected coordination skips.
func (s *Service) CaptureNow(
	projectPath, taskID, taskTitle string,
	sessionID *protocol.SessionID,
	reason protocol.CaptureReason,
	userNote string,
) (protocol.ContextSnapshotV1, bool, error) {
	now := s.clock.Now()

	if s.state.isDuplicate(taskID, reason, now) {
		log.Printf("capture: skipping task %s reason %s: duplicate within dedup window", taskID, reason)
		return protocol.ContextSnapshotV1{}, false, nil
	}
	if s.state.isRateLimited(taskID, now) {
		log.Printf("capture: skipping task %s: rate limited", taskID)
		return protocol.ContextSnapshotV1{}, false, nil
	}

	timestamp := now.UTC().Format("2006-01-02T15:04:05Z")
	snap := protocol.ContextSnapshotV1{
		ID:                 timestamp + "_" + taskID,
		Version:            1,
		ProjectPath:        projectPath,
		TaskID:             taskID,
		TaskTitleAtCapture: taskTitle,
		CapturedAt:         timestamp,
		CaptureReason:      reason,
		UserNote:           userNote,
	}

	if sessionID != nil && s.sessionProvider != nil {
		if live, ok := s.sessionProvider(*sessionID); ok {
			sanitized := SanitizeTerminalOutput(live.Tail)
			terminal := &protocol.TerminalContext{
				SessionID:     *sessionID,
				Status:        live.Status,
				ExitCode:      live.ExitCode,
				LastAttention: live.LastAttention,
			}
			if sanitized != "" {
				terminal.TailInline = sanitized
			}
			snap.Terminal = terminal
		}
	}

	if err := s.store.WriteSnapshot(projectPath, taskID, snap); err != nil {
		if isLockTimeout(err) {
			log.Printf("capture: lock timeout for task %s, dropping capture", taskID)
			return protocol.ContextSnapshotV1{}, false, nil
		}
		return protocol.ContextSnapshotV1{}, false, err
	}

	s.state.recordCapture(taskID, reason, now)
	s.state.cleanup(now)

	log.Printf("capture: captured snapshot %s for task %s (reason %s)", snap.ID, taskID, reason)
	return snap, true, nil
}

func isLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "timed out acquiring") || strings.Contains(msg, "acquire lock")
}
