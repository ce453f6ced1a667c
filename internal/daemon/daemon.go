// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package daemon wires together the registry, snapshot store, capture
// service, PTY runtime and markdown badge writer behind the control
// socket's request/response loop.
package daemon

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/colelawrence/right-now-daemon/internal/attention"
	"github.com/colelawrence/right-now-daemon/internal/atomicfile"
	"github.com/colelawrence/right-now-daemon/internal/capture"
	"github.com/colelawrence/right-now-daemon/internal/config"
	"github.com/colelawrence/right-now-daemon/internal/eventbus"
	"github.com/colelawrence/right-now-daemon/internal/markdown"
	"github.com/colelawrence/right-now-daemon/internal/protocol"
	"github.com/colelawrence/right-now-daemon/internal/ptyrun"
	"github.com/colelawrence/right-now-daemon/internal/registry"
	"github.com/colelawrence/right-now-daemon/internal/snapshot"
	"github.com/colelawrence/right-now-daemon/internal/watcher"
)

const (
	statusPollInterval   = 5 * time.Second
	idleCaptureAfter     = 10 * time.Minute
	notificationDebounce = 5 * time.Second
	attachReadChunk      = 4096
	defaultTailBytes     = 4096
)

// sessionRuntime is the in-process state for one live session, kept
// alongside its registry.Session record.
type sessionRuntime struct {
	pty            *ptyrun.PTY
	attachListener net.Listener

	mu           sync.Mutex
	idleSince    time.Time
	idleCaptured bool
	lastNotifyAt time.Time

	stop chan struct{}
}

// Daemon is the running right-now-daemon: registry, snapshot store,
// capture service and the live PTYs bound to sessions.
type Daemon struct {
	cfg        config.Config
	reg        *registry.Registry
	store      *snapshot.Store
	captureSvc *capture.Service
	profiles   []attention.Profile
	notify     *eventbus.Bus[protocol.Notification]
	projects   *watcher.ProjectWatcher

	shell              []string
	statusPollInterval time.Duration
	idleCaptureAfter   time.Duration

	mu           sync.Mutex
	runtimes     map[protocol.SessionID]*sessionRuntime
	stoppedTails map[protocol.SessionID][]byte

	listener net.Listener
	shutdown chan struct{}
}

// New constructs a Daemon from cfg, with overrides layered over the
// built-in tuning defaults. It does not yet bind sockets or load
// state; call Start for that.
func New(cfg config.Config, overrides config.Overrides) *Daemon {
	store := snapshot.New(cfg.SnapshotsDir())

	d := &Daemon{
		cfg:                cfg,
		reg:                registry.New(cfg.SessionsFile()),
		store:              store,
		notify:             eventbus.New[protocol.Notification](),
		runtimes:           make(map[protocol.SessionID]*sessionRuntime),
		stoppedTails:       make(map[protocol.SessionID][]byte),
		shutdown:           make(chan struct{}),
		shell:              overrides.Shell,
		statusPollInterval: statusPollInterval,
		idleCaptureAfter:   idleCaptureAfter,
	}
	if overrides.StatusPollInterval > 0 {
		d.statusPollInterval = overrides.StatusPollInterval
	}
	if overrides.IdleCaptureAfter > 0 {
		d.idleCaptureAfter = overrides.IdleCaptureAfter
	}
	d.captureSvc = capture.New(store, d.sessionProvider)

	profiles, err := attention.LoadOverlay(cfg.AttentionProfilesFile())
	if err != nil {
		log.Printf("daemon: attention overlay failed to load, using built-ins: %v", err)
		profiles = attention.DefaultProfiles
	}
	d.profiles = profiles

	projects, err := watcher.New(d.onProjectFileChanged)
	if err != nil {
		log.Printf("daemon: project file watcher unavailable: %v", err)
	}
	d.projects = projects

	return d
}

// onProjectFileChanged logs an external edit to a TODO file a live
// session is bound to. The daemon's own badge writes land here too;
// that is expected, since fsnotify cannot distinguish the writer.
func (d *Daemon) onProjectFileChanged(projectPath string) {
	log.Printf("daemon: project file changed: %s", projectPath)
}

func (d *Daemon) sessionProvider(id protocol.SessionID) (capture.SessionSnapshot, bool) {
	sess, ok := d.reg.Get(id)
	if !ok {
		return capture.SessionSnapshot{}, false
	}

	d.mu.Lock()
	rt, live := d.runtimes[id]
	tail := d.stoppedTails[id]
	d.mu.Unlock()

	var tailText string
	if live {
		tailText = string(rt.pty.GetRecentOutput(0))
	} else {
		tailText = string(tail)
	}

	return capture.SessionSnapshot{
		Status:        sess.Status,
		ExitCode:      sess.ExitCode,
		LastAttention: sess.LastAttention,
		Tail:          tailText,
	}, true
}

// Start loads persisted state, reconciles orphaned sessions, binds the
// control socket and serves connections until Stop is called or a
// Shutdown request arrives.
func (d *Daemon) Start() error {
	if err := d.cfg.EnsureDirs(); err != nil {
		return fmt.Errorf("daemon: ensure dirs: %w", err)
	}
	if err := d.reg.Load(); err != nil {
		return fmt.Errorf("daemon: load registry: %w", err)
	}

	d.reconcile()

	sockPath := d.cfg.SocketPath()
	_ = os.Remove(sockPath)
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return fmt.Errorf("daemon: listen on %s: %w", sockPath, err)
	}
	if err := os.Chmod(sockPath, 0o600); err != nil {
		log.Printf("daemon: chmod control socket: %v", err)
	}
	d.listener = listener

	if err := os.WriteFile(d.cfg.PIDFile(), []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		log.Printf("daemon: write pid file: %v", err)
	}

	log.Printf("daemon: listening on %s", sockPath)
	return d.acceptLoop()
}

// Stop closes the listener, causing acceptLoop to return, and tears
// down every live PTY.
func (d *Daemon) Stop() {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}
	if d.listener != nil {
		d.listener.Close()
	}
	d.mu.Lock()
	runtimes := make([]*sessionRuntime, 0, len(d.runtimes))
	for _, rt := range d.runtimes {
		runtimes = append(runtimes, rt)
	}
	d.mu.Unlock()
	for _, rt := range runtimes {
		close(rt.stop)
		rt.pty.Stop()
		if rt.attachListener != nil {
			rt.attachListener.Close()
		}
	}
	if d.projects != nil {
		d.projects.Close()
	}
	_ = os.Remove(d.cfg.PIDFile())
	_ = os.Remove(d.cfg.SocketPath())
}

func (d *Daemon) acceptLoop() error {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-d.shutdown:
				return nil
			default:
				return fmt.Errorf("daemon: accept: %w", err)
			}
		}
		go d.handleConn(conn)
	}
}

func (d *Daemon) attachSocketPath(id protocol.SessionID) string {
	return d.cfg.AttachSocketPath(uint64(id))
}

// reconcile marks every session left Running or Waiting by a previous
// daemon instance as Stopped, since no PTY survives a daemon restart.
func (d *Daemon) reconcile() {
	var orphans []protocol.Session
	for _, s := range d.reg.AllSessions() {
		if s.Status == protocol.StatusRunning || s.Status == protocol.StatusWaiting {
			orphans = append(orphans, s)
		}
	}
	if len(orphans) == 0 {
		return
	}

	for _, s := range orphans {
		d.reg.Update(s.ID, func(sess *protocol.Session) {
			sess.Status = protocol.StatusStopped
			sess.ExitCode = nil
			sess.UpdatedAt = time.Now()
		})
	}
	if err := d.reg.Save(); err != nil {
		log.Printf("daemon: reconcile: save registry: %v", err)
	}

	for _, s := range orphans {
		if err := d.updateBadge(s.ProjectPath, s.TaskKey, markdown.StatusStopped, s.ID); err != nil {
			log.Printf("daemon: reconcile: badge update for session %d: %v", s.ID, err)
		}
	}
}

// updateBadge rewrites the session badge on the task matching taskName
// within the TODO file at projectPath.
func (d *Daemon) updateBadge(projectPath, taskName string, status markdown.Status, id protocol.SessionID) error {
	content, err := os.ReadFile(projectPath)
	if err != nil {
		return fmt.Errorf("daemon: read project file: %w", err)
	}
	result := markdown.UpdateTaskSessionInContent(string(content), taskName, &markdown.BadgeStatus{
		Status:    status,
		SessionID: uint64(id),
	})
	if !result.TaskFound {
		return fmt.Errorf("daemon: no task named %q in %s", taskName, projectPath)
	}
	if err := atomicfile.Write(projectPath, []byte(result.Content), 0o644); err != nil {
		return fmt.Errorf("daemon: write project file: %w", err)
	}
	return nil
}

// writeFrame guards concurrent writers (the request/response loop and
// the notification forwarder) to one connection with a single mutex.
type frameWriter struct {
	mu sync.Mutex
	w  *protocol.Writer
}

func (fw *frameWriter) write(f *protocol.Frame) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.w.WriteFrame(f)
}

func (d *Daemon) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := protocol.NewReader(conn, protocol.MaxRequestFrameBytes)
	fw := &frameWriter{w: protocol.NewWriter(conn)}

	first, err := reader.ReadFrame()
	if err != nil {
		return
	}
	if first.Type != protocol.ReqHandshake {
		_ = fw.write(&protocol.Frame{Type: protocol.RespError, Code: protocol.ErrInvalidRequest, Message: "first frame must be a handshake"})
		return
	}
	if first.ClientVersion != protocol.ProtocolVersion {
		_ = fw.write(&protocol.Frame{
			Type:    protocol.RespError,
			Code:    protocol.ErrVersionMismatch,
			Message: fmt.Sprintf("daemon speaks protocol version %d, client sent %d", protocol.ProtocolVersion, first.ClientVersion),
		})
		return
	}
	if err := fw.write(&protocol.Frame{Type: protocol.RespHandshake, ProtocolVersion: protocol.ProtocolVersion}); err != nil {
		return
	}

	notifyCh, unsubscribe := d.notify.Subscribe(16)
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case n, ok := <-notifyCh:
				if !ok {
					return
				}
				if err := fw.write(&protocol.Frame{Type: protocol.RespNotification, Notification: &n}); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	for {
		req, err := reader.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				_ = fw.write(&protocol.Frame{Type: protocol.RespError, Code: protocol.ErrInvalidRequest, Message: "request frame too large"})
				return
			}
			_ = fw.write(&protocol.Frame{Type: protocol.RespError, Code: protocol.ErrInvalidRequest, Message: err.Error()})
			return
		}

		resp := d.dispatch(req)
		if err := fw.write(resp); err != nil {
			return
		}
		if req.Type == protocol.ReqShutdown {
			go d.Stop()
			return
		}
	}
}

func errFrame(code protocol.ErrorCode, message string) *protocol.Frame {
	return &protocol.Frame{Type: protocol.RespError, Code: code, Message: message}
}

func (d *Daemon) dispatch(req *protocol.Frame) *protocol.Frame {
	switch req.Type {
	case protocol.ReqPing:
		return &protocol.Frame{Type: protocol.RespPong}
	case protocol.ReqShutdown:
		return &protocol.Frame{Type: protocol.RespShuttingDown}
	case protocol.ReqStart:
		return d.handleStart(req)
	case protocol.ReqContinue:
		return d.handleTailLookup(req, true)
	case protocol.ReqTail:
		return d.handleTailLookup(req, false)
	case protocol.ReqAttach:
		return d.handleAttach(req)
	case protocol.ReqResize:
		return d.handleResize(req)
	case protocol.ReqList:
		return d.handleList(req)
	case protocol.ReqStop:
		return d.handleStop(req)
	case protocol.ReqStatus:
		return d.handleStatus(req)
	case protocol.ReqCrLatest:
		return d.handleCrLatest(req)
	case protocol.ReqCrList:
		return d.handleCrList(req)
	case protocol.ReqCrGet:
		return d.handleCrGet(req)
	case protocol.ReqCrCaptureNow:
		return d.handleCrCaptureNow(req)
	case protocol.ReqCrDeleteTask:
		return d.handleCrDeleteTask(req)
	case protocol.ReqCrDeleteProject:
		return d.handleCrDeleteProject(req)
	default:
		return errFrame(protocol.ErrInvalidRequest, fmt.Sprintf("unknown request type %q", req.Type))
	}
}

func (d *Daemon) handleStart(req *protocol.Frame) *protocol.Frame {
	content, err := os.ReadFile(req.ProjectPath)
	if err != nil {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("read project file: %v", err))
	}
	blocks := markdown.ParseBody(string(content))
	task := markdown.FindTaskByKey(blocks, req.TaskKey)
	if task == nil {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("no task matching %q found", req.TaskKey))
	}

	if existing, ok := d.reg.FindByTaskKey(task.Name, req.ProjectPath); ok {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("session already exists for task %q (id: %d)", task.Name, existing.ID))
	}

	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	id := d.reg.AllocateID()
	defaultShell := d.shell
	if len(defaultShell) == 0 {
		defaultShell = config.DefaultShell()
	}

	var shellArgv []string
	if strings.TrimSpace(req.Shell) != "" {
		shellArgv = []string{defaultShell[0], "-c", req.Shell}
	}

	pty, err := ptyrun.Spawn(ptyrun.SpawnOptions{
		SessionID:    uint64(id),
		Shell:        shellArgv,
		DefaultShell: defaultShell,
		TaskKey:      task.Name,
		ProjectPath:  req.ProjectPath,
		TaskDisplay:  task.Name,
	})
	if err != nil {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("spawn session: %v", err))
	}

	now := time.Now()
	session := protocol.Session{
		ID:           id,
		TaskKey:      task.Name,
		TaskID:       taskID,
		ProjectPath:  req.ProjectPath,
		Status:       protocol.StatusRunning,
		PTYPid:       pty.Pid(),
		ShellCommand: shellArgv,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := d.updateBadge(req.ProjectPath, task.Name, markdown.StatusRunning, id); err != nil {
		pty.Stop()
		return errFrame(protocol.ErrInternal, fmt.Sprintf("write session badge: %v", err))
	}

	d.reg.Insert(session)
	rt := &sessionRuntime{pty: pty, stop: make(chan struct{})}
	d.mu.Lock()
	d.runtimes[id] = rt
	d.mu.Unlock()

	if d.projects != nil {
		d.projects.Watch(req.ProjectPath)
	}

	if err := d.reg.Save(); err != nil {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("save registry: %v", err))
	}

	go d.statusWatcher(id, rt)
	go d.attentionMonitor(id, rt)

	d.notify.Publish(protocol.Notification{Kind: protocol.NotifySessionUpdated, SessionID: id, Session: &session})

	return &protocol.Frame{Type: protocol.RespSession, Session: &session}
}

func (d *Daemon) handleTailLookup(req *protocol.Frame, isContinue bool) *protocol.Frame {
	tailBytes := req.TailBytes
	if !isContinue {
		tailBytes = req.Bytes
	}
	if tailBytes <= 0 {
		tailBytes = defaultTailBytes
	}

	d.mu.Lock()
	rt, live := d.runtimes[req.SessionID]
	stored, hasStored := d.stoppedTails[req.SessionID]
	d.mu.Unlock()

	var tail []byte
	switch {
	case live:
		tail = rt.pty.GetRecentOutput(tailBytes)
	case hasStored:
		tail = truncateTail(stored, tailBytes)
	default:
		return errFrame(protocol.ErrInternal, fmt.Sprintf("session %d is not running or has no stored tail", req.SessionID))
	}

	return &protocol.Frame{Type: protocol.RespSessionTail, SessionID: req.SessionID, Tail: tail}
}

func truncateTail(b []byte, n int) []byte {
	if n <= 0 || n >= len(b) {
		return b
	}
	return b[len(b)-n:]
}

func (d *Daemon) handleAttach(req *protocol.Frame) *protocol.Frame {
	sess, ok := d.reg.Get(req.SessionID)
	if !ok {
		return errFrame(protocol.ErrNotFound, fmt.Sprintf("session %d not found", req.SessionID))
	}

	d.mu.Lock()
	rt, live := d.runtimes[req.SessionID]
	d.mu.Unlock()
	if !live {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("session %d is not running", req.SessionID))
	}

	tailBytes := req.TailBytes
	if tailBytes <= 0 {
		tailBytes = defaultTailBytes
	}
	tail := rt.pty.GetRecentOutput(tailBytes)

	if rt.attachListener != nil {
		rt.attachListener.Close()
	}
	sockPath := d.attachSocketPath(req.SessionID)
	_ = os.Remove(sockPath)
	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("bind attach socket: %v", err))
	}
	if err := os.Chmod(sockPath, 0o600); err != nil {
		log.Printf("daemon: chmod attach socket: %v", err)
	}
	rt.attachListener = listener

	go d.attachAcceptLoop(req.SessionID, rt, listener)

	return &protocol.Frame{
		Type:       protocol.RespAttachReady,
		Session:    &sess,
		Tail:       tail,
		SocketPath: sockPath,
	}
}

func (d *Daemon) attachAcceptLoop(id protocol.SessionID, rt *sessionRuntime, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		go d.attachConn(id, rt, conn)
	}
}

func (d *Daemon) attachConn(id protocol.SessionID, rt *sessionRuntime, conn net.Conn) {
	defer conn.Close()

	events, unsubscribe := rt.pty.SubscribeEvents(64)
	defer unsubscribe()

	inputDone := make(chan struct{})
	go func() {
		defer close(inputDone)
		buf := make([]byte, attachReadChunk)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				chunk := append([]byte(nil), buf[:n]...)
				select {
				case rt.pty.InputSender() <- chunk:
				case <-rt.stop:
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case ptyrun.EventOutput:
				if _, err := conn.Write(ev.Data); err != nil {
					return
				}
			case ptyrun.EventExited:
				var msg string
				if ev.ExitCode != nil {
					msg = fmt.Sprintf("\r\n[process exited with code %d]\r\n", *ev.ExitCode)
				} else {
					msg = "\r\n[process exited]\r\n"
				}
				_, _ = conn.Write([]byte(msg))
				return
			}
		case <-inputDone:
			return
		case <-rt.stop:
			return
		}
	}
}

func (d *Daemon) handleResize(req *protocol.Frame) *protocol.Frame {
	d.mu.Lock()
	rt, live := d.runtimes[req.SessionID]
	d.mu.Unlock()
	if !live {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("session %d is not running", req.SessionID))
	}
	if err := rt.pty.Resize(req.Cols, req.Rows); err != nil {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("resize: %v", err))
	}
	return &protocol.Frame{Type: protocol.RespSessionResized, SessionID: req.SessionID, Cols: req.Cols, Rows: req.Rows}
}

func (d *Daemon) handleList(req *protocol.Frame) *protocol.Frame {
	var sessions []protocol.Session
	if req.ProjectPath != "" {
		sessions = d.reg.SessionsForProject(req.ProjectPath)
	} else {
		sessions = d.reg.AllSessions()
	}
	return &protocol.Frame{Type: protocol.RespSessionList, Sessions: sessions}
}

func (d *Daemon) handleStop(req *protocol.Frame) *protocol.Frame {
	sess, ok := d.reg.Get(req.SessionID)
	if !ok {
		return errFrame(protocol.ErrNotFound, fmt.Sprintf("session %d not found", req.SessionID))
	}

	d.mu.Lock()
	rt, live := d.runtimes[req.SessionID]
	if live {
		delete(d.runtimes, req.SessionID)
	}
	d.mu.Unlock()

	if live {
		close(rt.stop)
		rt.pty.Stop()
		tail := rt.pty.GetRecentOutput(defaultTailBytes)
		d.mu.Lock()
		d.stoppedTails[req.SessionID] = tail
		d.mu.Unlock()
		if rt.attachListener != nil {
			rt.attachListener.Close()
			_ = os.Remove(d.attachSocketPath(req.SessionID))
		}
		if d.projects != nil {
			d.projects.Unwatch(sess.ProjectPath)
		}
	}

	d.reg.Update(req.SessionID, func(s *protocol.Session) {
		s.Status = protocol.StatusStopped
		s.ExitCode = nil
		s.UpdatedAt = time.Now()
	})
	if err := d.reg.Save(); err != nil {
		return errFrame(protocol.ErrInternal, fmt.Sprintf("save registry: %v", err))
	}

	if err := d.updateBadge(sess.ProjectPath, sess.TaskKey, markdown.StatusStopped, sess.ID); err != nil {
		log.Printf("daemon: stop: badge update for session %d: %v", sess.ID, err)
	}

	updated, _ := d.reg.Get(req.SessionID)
	d.notify.Publish(protocol.Notification{Kind: protocol.NotifySessionUpdated, SessionID: req.SessionID, Session: &updated})

	return &protocol.Frame{Type: protocol.RespSession, Session: &updated}
}

func (d *Daemon) handleStatus(req *protocol.Frame) *protocol.Frame {
	sess, ok := d.reg.Get(req.SessionID)
	if !ok {
		return errFrame(protocol.ErrNotFound, fmt.Sprintf("session %d not found", req.SessionID))
	}
	return &protocol.Frame{Type: protocol.RespSession, Session: &sess}
}

func (d *Daemon) handleCrLatest(req *protocol.Frame) *protocol.Frame {
	if !d.store.IsAvailable() {
		return errFrame(protocol.ErrStoreUnavailable, "context resurrection store unavailable")
	}
	if req.TaskID != "" {
		snap, ok, err := d.store.LatestSnapshot(req.ProjectPath, req.TaskID)
		if err != nil {
			return errFrame(protocol.ErrInternal, err.Error())
		}
		if !ok {
			return errFrame(protocol.ErrNotFound, "no snapshots for task")
		}
		return &protocol.Frame{Type: protocol.RespSnapshot, Snapshot: &snap}
	}

	snaps, err := d.snapshotsForEveryTask(req.ProjectPath)
	if err != nil {
		return errFrame(protocol.ErrInternal, err.Error())
	}
	if len(snaps) == 0 {
		return errFrame(protocol.ErrNotFound, "no snapshots for project")
	}
	latest := snaps[0]
	for _, s := range snaps[1:] {
		if s.CapturedAt > latest.CapturedAt {
			latest = s
		}
	}
	return &protocol.Frame{Type: protocol.RespSnapshot, Snapshot: &latest}
}

// snapshotsForEveryTask lists the most recent snapshot across every task
// directory under a project's hash directory, used when CrLatest omits
// task_id.
func (d *Daemon) snapshotsForEveryTask(projectPath string) ([]protocol.ContextSnapshotV1, error) {
	hashDir := snapshot.ProjectHash(projectPath)
	base := d.cfg.SnapshotsDir()
	entries, err := os.ReadDir(fmtJoin(base, hashDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []protocol.ContextSnapshotV1
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		snap, ok, err := d.store.LatestSnapshot(projectPath, ent.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func fmtJoin(a, b string) string {
	if strings.HasSuffix(a, "/") {
		return a + b
	}
	return a + "/" + b
}

func (d *Daemon) handleCrList(req *protocol.Frame) *protocol.Frame {
	if !d.store.IsAvailable() {
		return errFrame(protocol.ErrStoreUnavailable, "context resurrection store unavailable")
	}
	limit, ok := protocol.ClampCrListLimit(req.Limit)
	if !ok {
		return errFrame(protocol.ErrInvalidRequest, "limit must be positive")
	}
	snaps, err := d.store.ListSnapshots(req.ProjectPath, req.TaskID, limit)
	if err != nil {
		return errFrame(protocol.ErrInternal, err.Error())
	}
	return &protocol.Frame{Type: protocol.RespSnapshots, Snapshots: snaps}
}

func (d *Daemon) handleCrGet(req *protocol.Frame) *protocol.Frame {
	if !d.store.IsAvailable() {
		return errFrame(protocol.ErrStoreUnavailable, "context resurrection store unavailable")
	}
	snap, err := d.store.ReadSnapshot(req.ProjectPath, req.TaskID, req.SnapshotID)
	if err != nil {
		if os.IsNotExist(errors.Unwrap(err)) {
			return errFrame(protocol.ErrNotFound, fmt.Sprintf("snapshot %s not found", req.SnapshotID))
		}
		return errFrame(protocol.ErrInternal, err.Error())
	}
	return &protocol.Frame{Type: protocol.RespSnapshot, Snapshot: &snap}
}

func (d *Daemon) handleCrCaptureNow(req *protocol.Frame) *protocol.Frame {
	if !d.store.IsAvailable() {
		return errFrame(protocol.ErrStoreUnavailable, "context resurrection store unavailable")
	}

	taskTitle := req.TaskID
	var sessionID *protocol.SessionID
	for _, s := range d.reg.SessionsForProject(req.ProjectPath) {
		if s.TaskID == req.TaskID {
			taskTitle = s.TaskKey
			id := s.ID
			sessionID = &id
			break
		}
	}

	snap, ok, err := d.captureSvc.CaptureNow(req.ProjectPath, req.TaskID, taskTitle, sessionID, protocol.ReasonManual, req.UserNote)
	if err != nil {
		return errFrame(protocol.ErrInternal, err.Error())
	}
	if !ok {
		return errFrame(protocol.ErrSkipped, "capture skipped (deduplicated or rate limited)")
	}
	return &protocol.Frame{Type: protocol.RespSnapshot, Snapshot: &snap}
}

func (d *Daemon) handleCrDeleteTask(req *protocol.Frame) *protocol.Frame {
	existing, err := d.store.ListSnapshots(req.ProjectPath, req.TaskID, 0)
	if err != nil {
		return errFrame(protocol.ErrInternal, err.Error())
	}
	if err := d.store.DeleteTask(req.ProjectPath, req.TaskID); err != nil {
		return errFrame(protocol.ErrInternal, err.Error())
	}
	return &protocol.Frame{Type: protocol.RespDeletedCount, DeletedCount: len(existing)}
}

func (d *Daemon) handleCrDeleteProject(req *protocol.Frame) *protocol.Frame {
	count := 0
	hashDir := snapshot.ProjectHash(req.ProjectPath)
	entries, err := os.ReadDir(fmtJoin(d.cfg.SnapshotsDir(), hashDir))
	if err == nil {
		for _, ent := range entries {
			if !ent.IsDir() {
				continue
			}
			all, lerr := d.store.ListSnapshots(req.ProjectPath, ent.Name(), 0)
			if lerr == nil {
				count += len(all)
			}
		}
	}

	if err := d.store.DeleteProject(req.ProjectPath); err != nil {
		return errFrame(protocol.ErrInternal, err.Error())
	}
	return &protocol.Frame{Type: protocol.RespDeletedCount, DeletedCount: count}
}

// statusWatcher polls a session's liveness and idleness every 5s,
// updating status, badge and triggering idle-timeout and exit
// captures until the PTY is gone.
func (d *Daemon) statusWatcher(id protocol.SessionID, rt *sessionRuntime) {
	ticker := time.NewTicker(d.statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rt.stop:
			return
		case <-ticker.C:
		}

		if !rt.pty.Alive() {
			code, _ := rt.pty.ExitCode()
			d.finishSession(id, rt, code)
			return
		}

		status := protocol.StatusRunning
		if rt.pty.IsIdle() {
			status = protocol.StatusWaiting
		}
		d.transitionStatus(id, status, nil)

		d.trackIdleCapture(id, rt, status)
	}
}

func (d *Daemon) trackIdleCapture(id protocol.SessionID, rt *sessionRuntime, status protocol.SessionStatus) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if status != protocol.StatusWaiting {
		rt.idleSince = time.Time{}
		rt.idleCaptured = false
		return
	}
	if rt.idleSince.IsZero() {
		rt.idleSince = time.Now()
		return
	}
	if rt.idleCaptured {
		return
	}
	if time.Since(rt.idleSince) < d.idleCaptureAfter {
		return
	}
	rt.idleCaptured = true
	d.maybeCapture(id, protocol.ReasonIdleTimeout)
}

// finishSession runs once a PTY's process has exited: records the
// final tail, removes the live runtime, clears the attach socket and
// transitions the session to Stopped with its real exit code.
func (d *Daemon) finishSession(id protocol.SessionID, rt *sessionRuntime, exitCode int) {
	tail := rt.pty.GetRecentOutput(defaultTailBytes)

	d.mu.Lock()
	delete(d.runtimes, id)
	d.stoppedTails[id] = tail
	d.mu.Unlock()

	if rt.attachListener != nil {
		rt.attachListener.Close()
		_ = os.Remove(d.attachSocketPath(id))
	}
	if sess, ok := d.reg.Get(id); ok && d.projects != nil {
		d.projects.Unwatch(sess.ProjectPath)
	}

	code := exitCode
	d.transitionStatus(id, protocol.StatusStopped, &code)
}

// transitionStatus is the shared status-update path used by both the
// status watcher and finishSession: it updates the registry, badge and
// fires a capture when the transition is one that warrants one.
func (d *Daemon) transitionStatus(id protocol.SessionID, status protocol.SessionStatus, exitCode *int) {
	sess, ok := d.reg.Get(id)
	if !ok {
		return
	}
	if sess.Status == status {
		return
	}
	prior := sess.Status

	d.reg.Update(id, func(s *protocol.Session) {
		s.Status = status
		s.ExitCode = exitCode
		s.UpdatedAt = time.Now()
	})
	if err := d.reg.Save(); err != nil {
		log.Printf("daemon: transition: save registry for session %d: %v", id, err)
	}

	if err := d.updateBadge(sess.ProjectPath, sess.TaskKey, markdown.Status(status), id); err != nil {
		log.Printf("daemon: transition: badge update for session %d: %v", id, err)
	}

	updated, _ := d.reg.Get(id)
	d.notify.Publish(protocol.Notification{Kind: protocol.NotifySessionUpdated, SessionID: id, Session: &updated})

	switch {
	case status == protocol.StatusStopped:
		d.maybeCapture(id, protocol.ReasonSessionStopped)
	case status == protocol.StatusWaiting && prior == protocol.StatusRunning:
		d.maybeCapture(id, protocol.ReasonSessionWaiting)
	case status == protocol.StatusRunning && prior == protocol.StatusWaiting:
		d.maybeCapture(id, protocol.ReasonSessionRunning)
	}
}

// maybeCapture fires a capture for a session transition. Sessions
// without a task_id skip capture silently, since there is nowhere
// durable to file the snapshot under.
func (d *Daemon) maybeCapture(id protocol.SessionID, reason protocol.CaptureReason) {
	sess, ok := d.reg.Get(id)
	if !ok || sess.TaskID == "" {
		return
	}
	go func() {
		sid := id
		_, _, err := d.captureSvc.CaptureNow(sess.ProjectPath, sess.TaskID, sess.TaskKey, &sid, reason, "")
		if err != nil {
			log.Printf("daemon: capture for session %d (%s) failed: %v", id, reason, err)
		}
	}()
}

// attentionMonitor scans a session's PTY output for attention triggers
// and records the most recent match on the registry, broadcasting an
// Attention notification once per distinct preview per debounce
// window.
func (d *Daemon) attentionMonitor(id protocol.SessionID, rt *sessionRuntime) {
	events, unsubscribe := rt.pty.SubscribeEvents(64)
	defer unsubscribe()

	acc := attention.NewAccumulatorWithProfiles(attention.AccumulatorWindowBytes, d.profiles)
	lastPreview := ""

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.Kind == ptyrun.EventExited {
				return
			}
			if ev.Kind != ptyrun.EventOutput {
				continue
			}
			for _, m := range acc.PushChunk(ev.Data) {
				if m.Preview == lastPreview {
					continue
				}
				lastPreview = m.Preview
				d.recordAttention(id, rt, m)
			}
		case <-rt.stop:
			return
		}
	}
}

func (d *Daemon) recordAttention(id protocol.SessionID, rt *sessionRuntime, m attention.Match) {
	summary := protocol.AttentionSummary{
		Profile:       m.Profile,
		AttentionType: protocol.AttentionType(m.AttentionType),
		Preview:       m.Preview,
		TriggeredAt:   time.Now(),
	}

	ok := d.reg.Update(id, func(s *protocol.Session) {
		s.LastAttention = &summary
		s.UpdatedAt = time.Now()
	})
	if !ok {
		return
	}
	if err := d.reg.Save(); err != nil {
		log.Printf("daemon: attention: save registry for session %d: %v", id, err)
	}

	sess, _ := d.reg.Get(id)
	d.notify.Publish(protocol.Notification{Kind: protocol.NotifyAttention, SessionID: id, Session: &sess})

	// The registry/broadcast update above always happens; only the
	// (client-side) bell/desktop notification a CLI attach loop might
	// ring off of Attention is debounced, mirroring the 5s per-session
	// cooldown the reference daemon applies before its own terminal
	// escape codes and OS sound.
	rt.mu.Lock()
	shouldNotify := time.Since(rt.lastNotifyAt) >= notificationDebounce
	if shouldNotify {
		rt.lastNotifyAt = time.Now()
	}
	rt.mu.Unlock()
	if shouldNotify {
		log.Printf("daemon: attention on session %d: profile=%s type=%s", id, m.Profile, m.AttentionType)
	}
}
