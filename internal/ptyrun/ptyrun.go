// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package ptyrun spawns and supervises a single PTY-backed shell
// session: a reader goroutine feeding a ring buffer and event bus, a
// writer goroutine draining an input channel, and a waiter goroutine
// that reaps the child and reports its exit.
package ptyrun

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/colelawrence/right-now-daemon/internal/eventbus"
)

const (
	ringBufferBytes   = 64 * 1024
	readChunkBytes    = 4096
	idleThreshold     = 30 * time.Second
	inputChanCapacity = 64
)

// Status mirrors the coarse lifecycle a session is inferred to be in.
type Status string

const (
	StatusRunning Status = "Running"
	StatusWaiting Status = "Waiting"
	StatusStopped Status = "Stopped"
)

// Event is broadcast over the PTY's event bus as output arrives and as
// the child's lifecycle changes.
type Event struct {
	Kind     EventKind
	Data     []byte
	ExitCode *int
}

// EventKind discriminates Event.
type EventKind int

const (
	EventOutput EventKind = iota
	EventActive
	EventExited
)

// SpawnOptions configures a new PTY-backed process.
type SpawnOptions struct {
	SessionID   uint64
	Shell       []string // argv[0] + args; empty uses DefaultShell with -l appended
	DefaultShell []string // e.g. config.DefaultShell(); argv[0] + args, no -l
	TaskKey     string
	ProjectPath string
	TaskDisplay string
	Cols, Rows  int
}

// PTY is a supervised PTY-backed process.
type PTY struct {
	master *os.File
	cmd    *exec.Cmd
	bus    *eventbus.Bus[Event]
	input  chan []byte

	mu           sync.Mutex
	ring         []byte
	alive        bool
	lastActivity time.Time
	exitCode     *int

	waitOnce sync.Once
	waitDone chan struct{}
}

// Spawn opens a PTY and launches the configured command within it.
func Spawn(opts SpawnOptions) (*PTY, error) {
	cols, rows := opts.Cols, opts.Rows
	if cols == 0 {
		cols = 80
	}
	if rows == 0 {
		rows = 24
	}

	argv := opts.Shell
	if len(argv) == 0 {
		argv = append(append([]string{}, opts.DefaultShell...), "-l")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("RIGHT_NOW_SESSION_ID=%d", opts.SessionID),
		"RIGHT_NOW_TASK_KEY="+opts.TaskKey,
		"RIGHT_NOW_PROJECT="+opts.ProjectPath,
		"RIGHT_NOW_TASK_DISPLAY="+sanitizeTaskDisplay(opts.TaskDisplay),
	)
	cmd.SysProcAttr = &unix.SysProcAttr{Setsid: true}

	master, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
	if err != nil {
		return nil, fmt.Errorf("ptyrun: spawn: %w", err)
	}

	p := &PTY{
		master:       master,
		cmd:          cmd,
		bus:          eventbus.New[Event](),
		input:        make(chan []byte, inputChanCapacity),
		ring:         make([]byte, 0, ringBufferBytes),
		alive:        true,
		lastActivity: time.Now(),
		waitDone:     make(chan struct{}),
	}

	go p.readLoop()
	go p.writeLoop()
	go p.waitLoop()

	return p, nil
}

// sanitizeTaskDisplay collapses control characters and newlines to
// single spaces, trims, and truncates to 160 bytes.
func sanitizeTaskDisplay(s string) string {
	var b strings.Builder
	lastWasSpace := false
	for _, r := range s {
		if r == '\n' || r == '\r' || r < 0x20 {
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastWasSpace = r == ' '
	}
	out := strings.TrimSpace(b.String())
	if len(out) > 160 {
		out = out[:160]
	}
	return out
}

func (p *PTY) readLoop() {
	buf := make([]byte, readChunkBytes)
	for {
		n, err := p.master.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			p.mu.Lock()
			wasIdle := p.isIdleLocked()
			p.appendRingLocked(chunk)
			p.lastActivity = time.Now()
			p.mu.Unlock()

			p.bus.Publish(Event{Kind: EventOutput, Data: chunk})
			if wasIdle {
				p.bus.Publish(Event{Kind: EventActive})
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Printf("ptyrun: read error: %v", err)
			}
			return
		}
	}
}

func (p *PTY) writeLoop() {
	for chunk := range p.input {
		p.mu.Lock()
		alive := p.alive
		p.mu.Unlock()
		if !alive {
			return
		}
		if _, err := p.master.Write(chunk); err != nil {
			log.Printf("ptyrun: write error: %v", err)
			return
		}
	}
}

func (p *PTY) waitLoop() {
	err := p.cmd.Wait()
	code := exitCodeFrom(err)

	p.mu.Lock()
	p.alive = false
	p.exitCode = code
	p.mu.Unlock()

	close(p.input)
	p.bus.Publish(Event{Kind: EventExited, ExitCode: code})
	p.waitOnce.Do(func() { close(p.waitDone) })
}

func exitCodeFrom(err error) *int {
	if err == nil {
		n := 0
		return &n
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		n := exitErr.ExitCode()
		return &n
	}
	return nil
}

func (p *PTY) appendRingLocked(chunk []byte) {
	p.ring = append(p.ring, chunk...)
	if len(p.ring) > ringBufferBytes {
		drop := len(p.ring) - ringBufferBytes
		p.ring = p.ring[drop:]
	}
}

func (p *PTY) isIdleLocked() bool {
	return p.alive && time.Since(p.lastActivity) > idleThreshold
}

// IsIdle reports whether the process is alive and has been silent for
// longer than the idle threshold.
func (p *PTY) IsIdle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isIdleLocked()
}

// InferredStatus derives Running/Waiting/Stopped from liveness and
// idleness.
func (p *PTY) InferredStatus() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.alive {
		return StatusStopped
	}
	if p.isIdleLocked() {
		return StatusWaiting
	}
	return StatusRunning
}

// ExitCode returns the cached exit code once the process has exited.
func (p *PTY) ExitCode() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exitCode == nil {
		return 0, false
	}
	return *p.exitCode, true
}

// GetRecentOutput returns up to the last n bytes of the ring buffer.
// It never blocks on I/O.
func (p *PTY) GetRecentOutput(n int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 || n >= len(p.ring) {
		return append([]byte(nil), p.ring...)
	}
	return append([]byte(nil), p.ring[len(p.ring)-n:]...)
}

// Resize updates the PTY master's window size.
func (p *PTY) Resize(cols, rows int) error {
	return pty.Setsize(p.master, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

// SubscribeEvents returns a receive channel of PTY events and an
// unsubscribe function.
func (p *PTY) SubscribeEvents(buffer int) (<-chan Event, func()) {
	return p.bus.Subscribe(buffer)
}

// InputSender returns the channel used to forward bytes into the PTY.
// Closing it is the writer goroutine's responsibility, not the
// caller's.
func (p *PTY) InputSender() chan<- []byte {
	return p.input
}

// Stop kills the child's process group and waits for the waiter
// goroutine to observe the exit.
func (p *PTY) Stop() {
	p.mu.Lock()
	alive := p.alive
	pid := 0
	if p.cmd.Process != nil {
		pid = p.cmd.Process.Pid
	}
	p.mu.Unlock()

	if alive && pid > 0 {
		_ = unix.Kill(-pid, unix.SIGKILL)
	}
	<-p.waitDone
	p.master.Close()
}

// Alive reports whether the child process is still running.
func (p *PTY) Alive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alive
}

// Pid returns the child process id.
func (p *PTY) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}
