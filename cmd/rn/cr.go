// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/colelawrence/right-now-daemon/internal/config"
	"github.com/colelawrence/right-now-daemon/pkg/client"
)

func cmdCr(cfg config.Config, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: rn cr <latest|list|get|capture|delete-task|delete-project> [arguments]")
	}
	sub, rest := args[0], args[1:]

	switch sub {
	case "latest":
		return crLatest(cfg, rest)
	case "list":
		return crList(cfg, rest)
	case "get":
		return crGet(cfg, rest)
	case "capture":
		return crCapture(cfg, rest)
	case "delete-task":
		return crDeleteTask(cfg, rest)
	case "delete-project":
		return crDeleteProject(cfg, rest)
	default:
		return fmt.Errorf("rn cr: unknown subcommand %q", sub)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func crLatest(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cr latest", flag.ContinueOnError)
	project := fs.String("project", "", "Path to the TODO file")
	taskID := fs.String("task", "", "Task id (default: most recent across the project)")
	if err := fs.Parse(args); err != nil {
		return err
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

	snap, err := c.CrLatest(projectPath, *taskID)
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func crList(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cr list", flag.ContinueOnError)
	project := fs.String("project", "", "Path to the TODO file")
	taskID := fs.String("task", "", "Task id")
	limit := fs.Int("limit", 0, "Maximum snapshots to return (0: daemon default of 100)")
	if err := fs.Parse(args); err != nil {
		return err
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

	var limitPtr *int
	if *limit > 0 {
		limitPtr = limit
	}
	snaps, err := c.CrList(projectPath, *taskID, limitPtr)
	if err != nil {
		return err
	}
	return printJSON(snaps)
}

func crGet(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cr get", flag.ContinueOnError)
	project := fs.String("project", "", "Path to the TODO file")
	taskID := fs.String("task", "", "Task id")
	snapshotID := fs.String("snapshot", "", "Snapshot id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectPath, err := resolveProjectPath(cfg, *project)
	if err != nil {
		return err
	}
	if *taskID == "" || *snapshotID == "" {
		return fmt.Errorf("usage: rn cr get -task <id> -snapshot <id> [-project path]")
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.CrGet(projectPath, *taskID, *snapshotID)
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func crCapture(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cr capture", flag.ContinueOnError)
	project := fs.String("project", "", "Path to the TODO file")
	taskID := fs.String("task", "", "Task id")
	note := fs.String("note", "", "User note to attach to the snapshot")
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectPath, err := resolveProjectPath(cfg, *project)
	if err != nil {
		return err
	}
	if *taskID == "" {
		return fmt.Errorf("usage: rn cr capture -task <id> [-project path] [-note text]")
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	snap, err := c.CrCaptureNow(projectPath, *taskID, *note)
	if err != nil {
		return err
	}
	return printJSON(snap)
}

func crDeleteTask(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cr delete-task", flag.ContinueOnError)
	project := fs.String("project", "", "Path to the TODO file")
	taskID := fs.String("task", "", "Task id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	projectPath, err := resolveProjectPath(cfg, *project)
	if err != nil {
		return err
	}
	if *taskID == "" {
		return fmt.Errorf("usage: rn cr delete-task -task <id> [-project path]")
	}

	c, err := client.Dial(cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	n, err := c.CrDeleteTask(projectPath, *taskID)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d snapshot(s)\n", n)
	return nil
}

func crDeleteProject(cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("cr delete-project", flag.ContinueOnError)
	project := fs.String("project", "", "Path to the TODO file")
	if err := fs.Parse(args); err != nil {
		return err
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

	n, err := c.CrDeleteProject(projectPath)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d snapshot(s)\n", n)
	return nil
}
