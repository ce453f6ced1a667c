// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"errors"
	"io"
	"net"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

// detachByte is Ctrl-\, read from stdin to end the attach loop without
// stopping the remote session.
const detachByte = 0x1C

// Attach resolves the per-session attach socket, prints the tail
// already on screen, then runs the raw-mode TTY loop until the user
// detaches (Ctrl-\) or the remote session exits. Terminal mode is
// always restored before returning.
func (c *Client) Attach(id protocol.SessionID, tailBytes int, stdin *os.File, stdout io.Writer) error {
	ready, err := c.attach(id, tailBytes)
	if err != nil {
		return err
	}
	if len(ready.Tail) > 0 {
		stdout.Write(ready.Tail)
	}

	conn, err := net.Dial("unix", ready.SocketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	fd := int(stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return err
	}
	defer term.Restore(fd, oldState)

	resize := func() {
		if cols, rows, err := term.GetSize(fd); err == nil {
			c.Resize(id, cols, rows)
		}
	}
	resize()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGWINCH)
	defer signal.Stop(sigCh)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-sigCh:
				resize()
			}
		}
	}()

	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(stdout, conn)
		return err
	})
	g.Go(func() error {
		return copyUntilDetach(conn, stdin)
	})

	err = g.Wait()
	close(done)
	if errors.Is(err, errDetached) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// errDetached signals a clean Ctrl-\ detach, distinct from the remote
// session ending the connection.
var errDetached = errors.New("client: detached")

// copyUntilDetach forwards stdin to conn, returning errDetached as
// soon as the detach byte is read (without forwarding it) and closing
// conn so the other half of the pair unblocks.
func copyUntilDetach(conn net.Conn, stdin *os.File) error {
	buf := make([]byte, 4096)
	for {
		n, err := stdin.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			for i, b := range chunk {
				if b == detachByte {
					if i > 0 {
						conn.Write(chunk[:i])
					}
					conn.Close()
					return errDetached
				}
			}
			if _, werr := conn.Write(chunk); werr != nil {
				return werr
			}
		}
		if err != nil {
			conn.Close()
			if errors.Is(err, io.EOF) {
				return errDetached
			}
			return err
		}
	}
}
