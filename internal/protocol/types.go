// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the wire types exchanged between the daemon
// and its clients: session/snapshot domain types, request/response
// frames and the error taxonomy, plus the newline-delimited JSON framing
// those are carried over.
package protocol

import (
	"strconv"
	"time"
)

// SessionID is a process-wide monotonic session identifier.
type SessionID uint64

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusRunning SessionStatus = "Running"
	StatusWaiting SessionStatus = "Waiting"
	StatusStopped SessionStatus = "Stopped"
)

// AttentionType classifies a detected attention event.
type AttentionType string

const (
	AttentionInputRequired AttentionType = "input_required"
	AttentionDecisionPoint AttentionType = "decision_point"
	AttentionCompleted     AttentionType = "completed"
	AttentionError         AttentionType = "error"
)

// AttentionSummary is the last attention event observed on a session.
type AttentionSummary struct {
	Profile       string        `json:"profile"`
	AttentionType AttentionType `json:"attention_type"`
	Preview       string        `json:"preview"`
	TriggeredAt   time.Time     `json:"triggered_at"`
}

// Session is the persisted and wire representation of one terminal
// session bound to a task.
type Session struct {
	ID            SessionID         `json:"id"`
	TaskKey       string            `json:"task_key"`
	TaskID        string            `json:"task_id,omitempty"`
	ProjectPath   string            `json:"project_path"`
	Status        SessionStatus     `json:"status"`
	PTYPid        int               `json:"pty_pid,omitempty"`
	ShellCommand  []string          `json:"shell_command,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ExitCode      *int              `json:"exit_code,omitempty"`
	LastAttention *AttentionSummary `json:"last_attention,omitempty"`
}

// DeepLink renders the canonical todos://session/<id> deep link.
func (s Session) DeepLink() string {
	return "todos://session/" + strconv.FormatUint(uint64(s.ID), 10)
}

// CaptureReason explains why a context snapshot was taken.
type CaptureReason string

const (
	ReasonSessionStopped CaptureReason = "session_stopped"
	ReasonSessionWaiting CaptureReason = "session_waiting"
	ReasonSessionRunning CaptureReason = "session_running"
	ReasonIdleTimeout    CaptureReason = "idle_timeout"
	ReasonManual         CaptureReason = "manual"
)

// TerminalContext is the best-effort terminal state folded into a
// snapshot.
type TerminalContext struct {
	SessionID     SessionID         `json:"session_id"`
	Status        SessionStatus     `json:"status"`
	ExitCode      *int              `json:"exit_code,omitempty"`
	LastAttention *AttentionSummary `json:"last_attention,omitempty"`
	TailInline    string            `json:"tail_inline,omitempty"`
	TailPath      string            `json:"tail_path,omitempty"`
}

// ContextSnapshotV1 is the durable context-resurrection record.
type ContextSnapshotV1 struct {
	ID                 string           `json:"id"`
	Version            int              `json:"version"`
	ProjectPath        string           `json:"project_path"`
	TaskID             string           `json:"task_id"`
	TaskTitleAtCapture string           `json:"task_title_at_capture"`
	CapturedAt         string           `json:"captured_at"`
	CaptureReason      CaptureReason    `json:"capture_reason"`
	Terminal           *TerminalContext `json:"terminal,omitempty"`
	UserNote           string           `json:"user_note,omitempty"`
	Editor             map[string]any   `json:"editor,omitempty"`
}
