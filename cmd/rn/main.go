// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Command rn is the companion CLI to right-now-daemon: it starts,
// attaches to, and inspects PTY-backed sessions bound to tasks in a
// TODO file, and manages their context-resurrection snapshots.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/colelawrence/right-now-daemon/internal/config"
	"github.com/colelawrence/right-now-daemon/internal/protocol"
	"github.com/colelawrence/right-now-daemon/pkg/client"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	cfg := config.FromEnv()
	cmd, rest := args[0], args[1:]

	var err error
	switch cmd {
	case "start":
		err = cmdStart(cfg, rest)
	case "continue":
		err = cmdContinue(cfg, rest)
	case "attach":
		err = cmdAttach(cfg, rest)
	case "list":
		err = cmdList(cfg, rest)
	case "stop":
		err = cmdStop(cfg, rest)
	case "status":
		err = cmdStatus(cfg, rest)
	case "tail":
		err = cmdTail(cfg, rest)
	case "cr":
		err = cmdCr(cfg, rest)
	case "ping":
		err = cmdPing(cfg)
	case "shutdown":
		err = cmdShutdown(cfg)
	case "-h", "-help", "--help", "help":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "rn: unknown command %q\n", cmd)
		printUsage()
		return 1
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "rn: %v\n", err)
		return 1
	}
	return 0
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: rn <command> [arguments]

Commands:
  start <task-key>        Start a session for the task matching task-key
  continue <session-id>   Print a session's recent output and status
  attach <session-id>     Attach to a live session's terminal
  list                    List sessions
  stop <session-id>       Stop a session
  status <session-id>     Show a session's status
  tail <session-id>       Print a session's recent output
  cr latest|list|get|capture|delete-task|delete-project
                          Manage context-resurrection snapshots
  ping                    Check that the daemon is reachable
  shutdown                Ask the daemon to exit`)
}

// resolveProjectPath returns explicit if non-empty, else the nearest
// TODO.md in the working directory, else the last-used project
// recorded by the daemon.
func resolveProjectPath(cfg config.Config, explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if _, err := os.Stat("TODO.md"); err == nil {
		return filepath.Abs("TODO.md")
	}
	if path, ok := cfg.ReadCurrentProject(); ok {
		return path, nil
	}
	return "", fmt.Errorf("no project specified, no ./TODO.md found, and no prior project recorded; pass -project")
}

func parseSessionID(s string) (protocol.SessionID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q: %w", s, err)
	}
	return protocol.SessionID(n), nil
}

func printSession(sess *protocol.Session) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(sess)
}

func cmdStart(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	project := fs.String("project", "", "Path to the TODO file (default: ./TODO.md or last used)")
	shell := fs.String("shell", "", "Shell command to run instead of the default login shell")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rn start [-project path] [-shell cmd] <task-key>")
	}

	projectPath, err := resolveProjectPath(cfg, *project)
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	sess, err := c.Start(fs.Arg(0), projectPath, *shell)
	if err != nil {
		return err
	}
	cfg.WriteCurrentProject(projectPath)
	printSession(sess)
	return nil
}

func cmdContinue(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("continue", flag.ContinueOnError)
	bytes := fs.Int("bytes", 0, "Tail size in bytes (default: daemon default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rn continue [-bytes n] <session-id>")
	}
	id, err := parseSessionID(fs.Arg(0))
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	sess, tail, err := c.Continue(id, *bytes)
	if err != nil {
		return err
	}
	os.Stdout.Write(tail)
	if sess != nil {
		printSession(sess)
	}
	return nil
}

func cmdAttach(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("attach", flag.ContinueOnError)
	bytes := fs.Int("bytes", 0, "Tail size in bytes to print before attaching")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rn attach [-bytes n] <session-id>")
	}
	id, err := parseSessionID(fs.Arg(0))
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Attach(id, *bytes, os.Stdin, os.Stdout)
}

func cmdList(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	project := fs.String("project", "", "Restrict to sessions bound to this project")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	sessions, err := c.List(*project)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sessions)
}

func cmdStop(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rn stop <session-id>")
	}
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	sess, err := c.Stop(id)
	if err != nil {
		return err
	}
	printSession(sess)
	return nil
}

func cmdStatus(cfg config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: rn status <session-id>")
	}
	id, err := parseSessionID(args[0])
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	sess, err := c.Status(id)
	if err != nil {
		return err
	}
	printSession(sess)
	return nil
}

func cmdTail(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("tail", flag.ContinueOnError)
	bytes := fs.Int("bytes", 0, "Tail size in bytes (default: daemon default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: rn tail [-bytes n] <session-id>")
	}
	id, err := parseSessionID(fs.Arg(0))
	if err != nil {
		return err
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	tail, err := c.Tail(id, *bytes)
	if err != nil {
		return err
	}
	os.Stdout.Write(tail)
	return nil
}

func cmdPing(cfg config.Config) error {
	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Ping(); err != nil {
		return err
	}
	fmt.Println("pong")
	return nil
}

func cmdShutdown(cfg config.Config) error {
	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Shutdown()
}
