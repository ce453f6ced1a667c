// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ptyrun

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTaskDisplayCollapsesControlCharsAndTruncates(t *testing.T) {
	in := "Fix\nbug\twith\x01control chars " + string(make([]byte, 200))
	out := sanitizeTaskDisplay(in)
	assert.LessOrEqual(t, len(out), 160)
	assert.NotContains(t, out, "\n")
	assert.NotContains(t, out, "\x01")
}

func TestSpawnEchoesInputAndExits(t *testing.T) {
	p, err := Spawn(SpawnOptions{
		SessionID: 1,
		Shell:     []string{"/bin/sh", "-c", "read line; echo got:$line; exit 7"},
	})
	require.NoError(t, err)
	defer p.Stop()

	events, unsub := p.SubscribeEvents(16)
	defer unsub()

	p.InputSender() <- []byte("hello\n")

	deadline := time.After(5 * time.Second)
	var sawExit bool
	var exitCode *int
	var output []byte
	for !sawExit {
		select {
		case ev := <-events:
			switch ev.Kind {
			case EventOutput:
				output = append(output, ev.Data...)
			case EventExited:
				sawExit = true
				exitCode = ev.ExitCode
			}
		case <-deadline:
			t.Fatal("timed out waiting for process exit")
		}
	}

	require.NotNil(t, exitCode)
	assert.Equal(t, 7, *exitCode)
	assert.Contains(t, string(output), "got:hello")
}

func TestInferredStatusTransitionsToStoppedOnExit(t *testing.T) {
	p, err := Spawn(SpawnOptions{SessionID: 2, Shell: []string{"/bin/sh", "-c", "exit 0"}})
	require.NoError(t, err)
	defer p.Stop()

	require.Eventually(t, func() bool {
		return p.InferredStatus() == StatusStopped
	}, 5*time.Second, 10*time.Millisecond)

	code, ok := p.ExitCode()
	require.True(t, ok)
	assert.Equal(t, 0, code)
}

func TestGetRecentOutputNeverBlocksAndCapsToRequestedLength(t *testing.T) {
	p, err := Spawn(SpawnOptions{SessionID: 3, Shell: []string{"/bin/sh", "-c", "printf 'abcdefghij'; sleep 5"}})
	require.NoError(t, err)
	defer p.Stop()

	require.Eventually(t, func() bool {
		return len(p.GetRecentOutput(0)) >= 10
	}, 5*time.Second, 10*time.Millisecond)

	tail := p.GetRecentOutput(4)
	assert.LessOrEqual(t, len(tail), 4)
}

func TestResizeDoesNotError(t *testing.T) {
	p, err := Spawn(SpawnOptions{SessionID: 4, Shell: []string{"/bin/sh", "-c", "sleep 5"}})
	require.NoError(t, err)
	defer p.Stop()

	assert.NoError(t, p.Resize(100, 40))
}
