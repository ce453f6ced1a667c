// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskWithoutBadge(t *testing.T) {
	task := ParseTaskLine("- [ ] Implement reports")
	require.NotNil(t, task)
	assert.Equal(t, "- ", task.Prefix)
	assert.Equal(t, rune(0), task.Complete)
	assert.Equal(t, "Implement reports", task.Name)
	assert.Nil(t, task.Badge)
}

func TestParseTaskWithBadge(t *testing.T) {
	task := ParseTaskLine("- [ ] Implement reports [Running](todos://session/42)")
	require.NotNil(t, task)
	assert.Equal(t, "Implement reports", task.Name)
	require.NotNil(t, task.Badge)
	assert.Equal(t, StatusRunning, task.Badge.Status)
	assert.EqualValues(t, 42, task.Badge.SessionID)
}

func TestParseTaskWithStoppedBadgeUppercaseCheckbox(t *testing.T) {
	task := ParseTaskLine("- [X] Done task [Stopped](todos://session/123)")
	require.NotNil(t, task)
	assert.Equal(t, 'X', task.Complete)
	assert.Equal(t, "Done task", task.Name)
	assert.Equal(t, StatusStopped, task.Badge.Status)
}

func TestParseHeading(t *testing.T) {
	h := ParseHeadingLine("## My Heading")
	require.NotNil(t, h)
	assert.Equal(t, 2, h.Level)
	assert.Equal(t, "My Heading", h.Text)
}

func TestFormatBadge(t *testing.T) {
	assert.Equal(t, " [Running](todos://session/42)", FormatBadge(StatusRunning, 42))
}

func TestUpdateTaskSessionAddBadge(t *testing.T) {
	ss := &BadgeStatus{Status: StatusRunning, SessionID: 42}
	updated := UpdateTaskLine("- [ ] Implement reports", ss)
	assert.Equal(t, "- [ ] Implement reports [Running](todos://session/42)", updated)
}

func TestUpdateTaskSessionChangeStatus(t *testing.T) {
	ss := &BadgeStatus{Status: StatusStopped, SessionID: 42}
	updated := UpdateTaskLine("- [ ] Implement reports [Running](todos://session/42)", ss)
	assert.Equal(t, "- [ ] Implement reports [Stopped](todos://session/42)", updated)
}

func TestUpdateTaskSessionRemoveBadge(t *testing.T) {
	updated := UpdateTaskLine("- [ ] Implement reports [Running](todos://session/42)", nil)
	assert.Equal(t, "- [ ] Implement reports", updated)
}

func TestParseBody(t *testing.T) {
	content := "# Main Heading\n\n- [ ] First Task\n- [ ] Second Task [Running](todos://session/1)\n\n## Sub Heading\n\nSome unrecognized text"
	blocks := ParseBody(content)
	require.Len(t, blocks, 7)

	require.Equal(t, BlockHeading, blocks[0].Kind)
	assert.Equal(t, 1, blocks[0].Heading.Level)

	require.Equal(t, BlockTask, blocks[2].Kind)
	assert.Equal(t, "First Task", blocks[2].Task.Name)
	assert.Nil(t, blocks[2].Task.Badge)

	require.Equal(t, BlockTask, blocks[3].Kind)
	assert.Equal(t, "Second Task", blocks[3].Task.Name)
	assert.NotNil(t, blocks[3].Task.Badge)
}

func TestFindTaskByKey(t *testing.T) {
	content := "# Tasks\n- [ ] Implement reports\n- [ ] Build pipeline\n"
	blocks := ParseBody(content)

	task := FindTaskByKey(blocks, "impl")
	require.NotNil(t, task)
	assert.Equal(t, "Implement reports", task.Name)

	task = FindTaskByKey(blocks, "BUILD")
	require.NotNil(t, task)
	assert.Equal(t, "Build pipeline", task.Name)

	assert.Nil(t, FindTaskByKey(blocks, "nonexistent"))
}

func TestUpdateTaskSessionInContent(t *testing.T) {
	content := "# Tasks\n- [ ] Implement reports\n- [ ] Build pipeline\n"
	ss := &BadgeStatus{Status: StatusRunning, SessionID: 42}

	result := UpdateTaskSessionInContent(content, "Implement reports", ss)
	assert.True(t, result.TaskFound)
	assert.Contains(t, result.Content, "Implement reports [Running](todos://session/42)")
	assert.Contains(t, result.Content, "- [ ] Build pipeline")
}

func TestUpdateTaskSessionExactMatchOnly(t *testing.T) {
	content := "# Tasks\n- [ ] Build feature\n- [ ] Build feature - backend\n- [ ] Build pipeline\n"
	ss := &BadgeStatus{Status: StatusRunning, SessionID: 1}

	result := UpdateTaskSessionInContent(content, "Build feature", ss)
	assert.True(t, result.TaskFound)
	assert.Contains(t, result.Content, "- [ ] Build feature [Running](todos://session/1)")
	assert.Contains(t, result.Content, "- [ ] Build feature - backend\n")
	assert.Contains(t, result.Content, "- [ ] Build pipeline")
}

func TestUpdateTaskSessionTaskNotFound(t *testing.T) {
	content := "# Tasks\n- [ ] Build feature\n"
	ss := &BadgeStatus{Status: StatusRunning, SessionID: 1}

	result := UpdateTaskSessionInContent(content, "Nonexistent task", ss)
	assert.False(t, result.TaskFound)
	assert.Equal(t, content, result.Content)
}

func TestAsteriskBullet(t *testing.T) {
	task := ParseTaskLine("* [ ] Task with asterisk")
	require.NotNil(t, task)
	assert.Equal(t, "Task with asterisk", task.Name)
	assert.Equal(t, "* ", task.Prefix)
}

func TestIndentedTasks(t *testing.T) {
	task := ParseTaskLine("  - [ ] Indented task")
	require.NotNil(t, task)
	assert.Equal(t, "Indented task", task.Name)
	assert.Equal(t, "  - ", task.Prefix)
}

func TestBareCheckbox(t *testing.T) {
	task := ParseTaskLine("[ ] Bare checkbox task")
	require.NotNil(t, task)
	assert.Equal(t, "Bare checkbox task", task.Name)
	assert.Equal(t, "", task.Prefix)
}

func TestEmojiWithSessionBadge(t *testing.T) {
	task := ParseTaskLine("- [ ] Deploy 🚀 [Running](todos://session/42)")
	require.NotNil(t, task)
	assert.Equal(t, "Deploy 🚀", task.Name)
	assert.EqualValues(t, 42, task.Badge.SessionID)
}

func TestBracketsNotConfusedWithBadge(t *testing.T) {
	task := ParseTaskLine("- [ ] Fix array[0] access")
	require.NotNil(t, task)
	assert.Equal(t, "Fix array[0] access", task.Name)
	assert.Nil(t, task.Badge)
}

func TestLinkBeforeSessionBadge(t *testing.T) {
	task := ParseTaskLine("- [ ] See [docs](https://example.com) for details [Running](todos://session/42)")
	require.NotNil(t, task)
	assert.Equal(t, "See [docs](https://example.com) for details", task.Name)
	assert.EqualValues(t, 42, task.Badge.SessionID)
}

func TestBadgeInMiddleNotMatched(t *testing.T) {
	task := ParseTaskLine("- [ ] Status is [Running](not-a-link) and continue")
	require.NotNil(t, task)
	assert.Equal(t, "Status is [Running](not-a-link) and continue", task.Name)
	assert.Nil(t, task.Badge)
}

func TestNoSpaceBeforeBadgeNotMatched(t *testing.T) {
	task := ParseTaskLine("- [ ] Task name[Running](todos://session/42)")
	require.NotNil(t, task)
	assert.Nil(t, task.Badge)
}

func TestWrongProtocolNotMatched(t *testing.T) {
	task := ParseTaskLine("- [ ] Task [Running](http://session/42)")
	require.NotNil(t, task)
	assert.Nil(t, task.Badge)
}

func TestInvalidStatusNotMatched(t *testing.T) {
	task := ParseTaskLine("- [ ] Task [Paused](todos://session/42)")
	require.NotNil(t, task)
	assert.Nil(t, task.Badge)
}

func TestLargeSessionID(t *testing.T) {
	task := ParseTaskLine("- [ ] Task [Running](todos://session/9999999999999)")
	require.NotNil(t, task)
	assert.EqualValues(t, 9999999999999, task.Badge.SessionID)
}

func TestPreservePrefixOnUpdate(t *testing.T) {
	ss := &BadgeStatus{Status: StatusRunning, SessionID: 1}
	updated := UpdateTaskLine("  * [ ] Indented asterisk task", ss)
	assert.Equal(t, "  * [ ] Indented asterisk task [Running](todos://session/1)", updated)
}
