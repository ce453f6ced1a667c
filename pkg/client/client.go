// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client is a typed Go client over the daemon's framed Unix
// socket protocol: it dials (launching the daemon if necessary),
// performs the version handshake, and exposes one method per request
// type.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/colelawrence/right-now-daemon/internal/config"
	"github.com/colelawrence/right-now-daemon/internal/protocol"
)

// Error is a protocol-level error reported by the daemon.
type Error struct {
	Code    protocol.ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client is a connection to a running daemon.
type Client struct {
	conn   net.Conn
	reader *protocol.Reader
	writer *protocol.Writer
	mu     sync.Mutex
}

// daemonStartupTimeout is how long Dial waits for a freshly launched
// daemon to accept connections on its control socket.
const daemonStartupTimeout = 5 * time.Second

// Dial connects to the daemon's control socket, launching it first if
// the socket does not exist or refuses connections, then performs the
// handshake.
func Dial(cfg config.Config) (*Client, error) {
	conn, err := dialOrLaunch(cfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:   conn,
		reader: protocol.NewReader(conn, protocol.MaxResponseFrameBytes),
		writer: protocol.NewWriter(conn),
	}
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	resp, err := c.call(&protocol.Frame{Type: protocol.ReqHandshake, ClientVersion: protocol.ProtocolVersion})
	if err != nil {
		return err
	}
	if resp.Type != protocol.RespHandshake {
		return fmt.Errorf("client: unexpected handshake response %q", resp.Type)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call writes req and returns the first non-notification response
// frame, discarding any Notification frames interleaved ahead of it
// per the protocol's client contract.
func (c *Client) call(req *protocol.Frame) (*protocol.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writer.WriteFrame(req); err != nil {
		return nil, fmt.Errorf("client: write request: %w", err)
	}
	for {
		resp, err := c.reader.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("client: read response: %w", err)
		}
		if resp.Type == protocol.RespNotification {
			continue
		}
		if resp.Type == protocol.RespError {
			return nil, &Error{Code: resp.Code, Message: resp.Message}
		}
		return resp, nil
	}
}
