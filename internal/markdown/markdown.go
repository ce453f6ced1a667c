// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package markdown parses TODO-file task lines and round-trips the
// session badge ([Running|Waiting|Stopped](todos://session/<id>)) that
// the daemon appends to a task name to reflect live session state.
package markdown

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Status is a session status as encoded in a badge.
type Status string

const (
	StatusRunning Status = "Running"
	StatusWaiting Status = "Waiting"
	StatusStopped Status = "Stopped"
)

var taskLineRE = regexp.MustCompile(`^(\s*[-*]?\s*)\[([xX\s])\]\s+(.*)$`)
var headingLineRE = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
var sessionBadgeRE = regexp.MustCompile(`\s+\[(Running|Stopped|Waiting)\]\(todos://session/(\d+)\)$`)

// BadgeStatus is a parsed session badge.
type BadgeStatus struct {
	Status    Status
	SessionID uint64
}

// Task is a parsed task line.
type Task struct {
	// Prefix is the leading whitespace and bullet, preserved verbatim.
	Prefix string
	// Complete is the checkbox character ('x', 'X') or 0 if unchecked.
	Complete rune
	// Name is the task's human-authored name with any session badge
	// stripped out.
	Name string
	// Badge is the parsed session badge, if the line carried one.
	Badge *BadgeStatus
	// Line is the original source line, for round-tripping.
	Line string
}

// Heading is a parsed heading line.
type Heading struct {
	Level int
	Text  string
}

// BlockKind discriminates a parsed Block.
type BlockKind int

const (
	BlockTask BlockKind = iota
	BlockHeading
	BlockOther
)

// Block is one classified line (or run of unrecognized lines) in a
// parsed TODO body.
type Block struct {
	Kind    BlockKind
	Task    *Task
	Heading *Heading
	Text    string // raw text for BlockOther
}

// ParseTaskLine parses a single line as a task, returning nil if it does
// not match the task-line shape.
func ParseTaskLine(line string) *Task {
	m := taskLineRE.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	prefix := m[1]
	checkbox := m[2]
	var complete rune
	if checkbox != " " && checkbox != "" {
		complete = rune(checkbox[0])
	}
	fullName := m[3]

	name := fullName
	var badge *BadgeStatus
	if bm := sessionBadgeRE.FindStringSubmatch(fullName); bm != nil {
		id, err := strconv.ParseUint(bm[2], 10, 64)
		if err == nil {
			badge = &BadgeStatus{Status: Status(bm[1]), SessionID: id}
			name = sessionBadgeRE.ReplaceAllString(fullName, "")
		}
	}

	return &Task{
		Prefix:   prefix,
		Complete: complete,
		Name:     name,
		Badge:    badge,
		Line:     line,
	}
}

// ParseHeadingLine parses a single line as a heading, returning nil if
// it does not match.
func ParseHeadingLine(line string) *Heading {
	m := headingLineRE.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	return &Heading{Level: len(m[1]), Text: m[2]}
}

// IsTask reports whether line matches the task-line shape.
func IsTask(line string) bool { return taskLineRE.MatchString(line) }

// FormatBadge renders the session badge suffix for insertion into a task
// line: exactly one leading space before the bracketed status.
func FormatBadge(status Status, sessionID uint64) string {
	return fmt.Sprintf(" [%s](todos://session/%d)", status, sessionID)
}

// UpdateTaskLine rewrites line with the given badge, or strips any
// existing badge if badge is nil. Lines that do not parse as a task are
// returned unchanged.
func UpdateTaskLine(line string, badge *BadgeStatus) string {
	task := ParseTaskLine(line)
	if task == nil {
		return line
	}
	checkbox := " "
	if task.Complete != 0 {
		checkbox = string(task.Complete)
	}
	suffix := ""
	if badge != nil {
		suffix = FormatBadge(badge.Status, badge.SessionID)
	}
	return fmt.Sprintf("%s[%s] %s%s", task.Prefix, checkbox, task.Name, suffix)
}

// ParseBody classifies every line of content into Task, Heading or
// Other blocks, coalescing consecutive unrecognized lines into a single
// Other block.
func ParseBody(content string) []Block {
	lines := strings.Split(content, "\n")
	var blocks []Block
	var other []string

	flush := func() {
		if len(other) > 0 {
			blocks = append(blocks, Block{Kind: BlockOther, Text: strings.Join(other, "\n")})
			other = nil
		}
	}

	for _, line := range lines {
		if h := ParseHeadingLine(line); h != nil {
			flush()
			blocks = append(blocks, Block{Kind: BlockHeading, Heading: h})
			continue
		}
		if t := ParseTaskLine(line); t != nil {
			flush()
			blocks = append(blocks, Block{Kind: BlockTask, Task: t})
			continue
		}
		other = append(other, line)
	}
	flush()
	return blocks
}

// FindTaskByKey returns the first task whose name starts with prefix,
// case-insensitively.
func FindTaskByKey(blocks []Block, prefix string) *Task {
	needle := strings.ToLower(prefix)
	for _, b := range blocks {
		if b.Kind != BlockTask {
			continue
		}
		if strings.HasPrefix(strings.ToLower(b.Task.Name), needle) {
			return b.Task
		}
	}
	return nil
}

// UpdateResult is the outcome of UpdateTaskSessionInContent.
type UpdateResult struct {
	Content   string
	TaskFound bool
}

// UpdateTaskSessionInContent rewrites the badge of the task whose name is
// an exact case-insensitive match for taskName, leaving every other line
// — including tasks whose name merely has taskName as a prefix —
// untouched. If no task matches, TaskFound is false and Content is
// returned unmodified.
func UpdateTaskSessionInContent(content, taskName string, badge *BadgeStatus) UpdateResult {
	nameLower := strings.ToLower(taskName)
	lines := strings.Split(content, "\n")
	found := false

	for i, line := range lines {
		task := ParseTaskLine(line)
		if task == nil {
			continue
		}
		if strings.ToLower(task.Name) == nameLower {
			found = true
			lines[i] = UpdateTaskLine(line, badge)
		}
	}

	return UpdateResult{Content: strings.Join(lines, "\n"), TaskFound: found}
}
