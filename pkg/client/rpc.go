// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

// Ping round-trips a Ping/Pong against the daemon.
func (c *Client) Ping() error {
	_, err := c.call(&protocol.Frame{Type: protocol.ReqPing})
	return err
}

// Shutdown asks the daemon to stop after replying.
func (c *Client) Shutdown() error {
	_, err := c.call(&protocol.Frame{Type: protocol.ReqShutdown})
	return err
}

// Start creates a new session for the task matching taskKey, spawning
// shell (or the daemon's default) under a PTY.
func (c *Client) Start(taskKey, projectPath, shell string) (*protocol.Session, error) {
	resp, err := c.call(&protocol.Frame{
		Type:        protocol.ReqStart,
		TaskKey:     taskKey,
		ProjectPath: projectPath,
		Shell:       shell,
	})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// Continue returns a session and its most recent tail, live or stopped.
func (c *Client) Continue(id protocol.SessionID, tailBytes int) (*protocol.Session, []byte, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqContinue, SessionID: id, TailBytes: tailBytes})
	if err != nil {
		return nil, nil, err
	}
	sess, err := c.Status(id)
	if err != nil {
		return nil, resp.Tail, err
	}
	return sess, resp.Tail, nil
}

// Tail returns the last n bytes of a session's output.
func (c *Client) Tail(id protocol.SessionID, n int) ([]byte, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqTail, SessionID: id, Bytes: n})
	if err != nil {
		return nil, err
	}
	return resp.Tail, nil
}

// attachReady is the resolved result of an Attach RPC.
type attachReady struct {
	Session    *protocol.Session
	Tail       []byte
	SocketPath string
}

func (c *Client) attach(id protocol.SessionID, tailBytes int) (*attachReady, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqAttach, SessionID: id, TailBytes: tailBytes})
	if err != nil {
		return nil, err
	}
	return &attachReady{Session: resp.Session, Tail: resp.Tail, SocketPath: resp.SocketPath}, nil
}

// Resize forwards a terminal size change to the session's PTY.
func (c *Client) Resize(id protocol.SessionID, cols, rows int) error {
	_, err := c.call(&protocol.Frame{Type: protocol.ReqResize, SessionID: id, Cols: cols, Rows: rows})
	return err
}

// List returns every session, optionally filtered by project.
func (c *Client) List(projectPath string) ([]protocol.Session, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqList, ProjectPath: projectPath})
	if err != nil {
		return nil, err
	}
	return resp.Sessions, nil
}

// Stop tears down a session's PTY and marks it Stopped.
func (c *Client) Stop(id protocol.SessionID) (*protocol.Session, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqStop, SessionID: id})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// Status returns the current registry view of a session.
func (c *Client) Status(id protocol.SessionID) (*protocol.Session, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqStatus, SessionID: id})
	if err != nil {
		return nil, err
	}
	return resp.Session, nil
}

// CrLatest returns the most recent snapshot for a task, or the most
// recent across the whole project if taskID is empty.
func (c *Client) CrLatest(projectPath, taskID string) (*protocol.ContextSnapshotV1, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqCrLatest, ProjectPath: projectPath, TaskID: taskID})
	if err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

// CrList returns up to limit snapshots for a task, newest first. A nil
// limit defaults to 100 per the protocol's clamp semantics.
func (c *Client) CrList(projectPath, taskID string, limit *int) ([]protocol.ContextSnapshotV1, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqCrList, ProjectPath: projectPath, TaskID: taskID, Limit: limit})
	if err != nil {
		return nil, err
	}
	return resp.Snapshots, nil
}

// CrGet reads one snapshot by id.
func (c *Client) CrGet(projectPath, taskID, snapshotID string) (*protocol.ContextSnapshotV1, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqCrGet, ProjectPath: projectPath, TaskID: taskID, SnapshotID: snapshotID})
	if err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

// CrCaptureNow forces an out-of-band snapshot capture, subject to the
// daemon's dedup/rate-limit rules.
func (c *Client) CrCaptureNow(projectPath, taskID, userNote string) (*protocol.ContextSnapshotV1, error) {
	resp, err := c.call(&protocol.Frame{
		Type:        protocol.ReqCrCaptureNow,
		ProjectPath: projectPath,
		TaskID:      taskID,
		UserNote:    userNote,
	})
	if err != nil {
		return nil, err
	}
	return resp.Snapshot, nil
}

// CrDeleteTask deletes every snapshot for a task, returning the count
// removed.
func (c *Client) CrDeleteTask(projectPath, taskID string) (int, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqCrDeleteTask, ProjectPath: projectPath, TaskID: taskID})
	if err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// CrDeleteProject deletes every snapshot for every task under a
// project, returning the count removed.
func (c *Client) CrDeleteProject(projectPath string) (int, error) {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqCrDeleteProject, ProjectPath: projectPath})
	if err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}
