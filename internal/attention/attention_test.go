// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package attention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectsLiteralTrigger(t *testing.T) {
	m, ok := DetectDefault("Build ready\n✔ Submit\n")
	require.True(t, ok)
	assert.Equal(t, "claude-code", m.Profile)
	assert.Equal(t, DecisionPoint, m.AttentionType)
	assert.Contains(t, m.Preview, "✔ Submit")
}

func TestDetectsRegexTrigger(t *testing.T) {
	m, ok := DetectDefault("error: failed to compile")
	require.True(t, ok)
	assert.Equal(t, "build-tools", m.Profile)
	assert.Equal(t, Error, m.AttentionType)
	assert.Contains(t, m.Preview, "failed to compile")
}

func TestReturnsNoneWhenNoProfilesMatch(t *testing.T) {
	_, ok := DetectDefault("all good")
	assert.False(t, ok)
}

func TestStripANSIRemovesColorAndCursorCodes(t *testing.T) {
	text := "\x1b[32m✔\x1b[0m Submit\n\x1b[2K\rNext line"
	assert.Equal(t, "✔ Submit\nNext line", StripANSI(text))
}

func TestStripANSIRemovesOSCSequences(t *testing.T) {
	text := "\x1b]0;#123: Demo task\x07Prompt ready"
	assert.Equal(t, "Prompt ready", StripANSI(text))
}

func TestStripANSIHandlesPartialSequencesGracefully(t *testing.T) {
	text := "partial \x1b[32mstring\x1b["
	assert.Equal(t, "partial string", StripANSI(text))
}

func TestDetectsLiteralTriggerWithANSICodes(t *testing.T) {
	m, ok := DetectDefault("\x1b[32m✔\x1b[0m Submit")
	require.True(t, ok)
	assert.Equal(t, "claude-code", m.Profile)
	assert.Contains(t, m.Preview, "✔ Submit")
}

func TestDetectsRegexTriggerWithANSICodes(t *testing.T) {
	m, ok := DetectDefault("compile output\n\x1b[31merror:\x1b[0m failed to build")
	require.True(t, ok)
	assert.Equal(t, "build-tools", m.Profile)
	assert.Equal(t, Error, m.AttentionType)
	assert.Contains(t, m.Preview, "failed to build")
}

func TestAccumulatorDetectsSplitLiteralTrigger(t *testing.T) {
	acc := NewAccumulator(64)
	assert.Empty(t, acc.PushChunk([]byte("Build succ")))
	matches := acc.PushChunk([]byte("eeded\n"))
	require.Len(t, matches, 1)
	assert.Equal(t, "build-tools", matches[0].Profile)
}

func TestAccumulatorHandlesMultibyteBoundaries(t *testing.T) {
	acc := NewAccumulator(64)
	check := []byte("✔")
	require.Len(t, check, 3)

	assert.Empty(t, acc.PushChunk(check[:1]))
	assert.Empty(t, acc.PushChunk(check[1:2]))

	tail := append([]byte{}, check[2:]...)
	tail = append(tail, []byte(" Submit")...)
	matches := acc.PushChunk(tail)
	require.Len(t, matches, 1)
	assert.Equal(t, "claude-code", matches[0].Profile)
}

func TestAccumulatorDetectsMultipleMatchesInOneChunk(t *testing.T) {
	acc := NewAccumulator(256)
	chunk := []byte("Build succeeded\nerror: failed to compile\n")
	matches := acc.PushChunk(chunk)
	require.Len(t, matches, 2)
	assert.Equal(t, "build-tools", matches[0].Profile)
	assert.Equal(t, Completed, matches[0].AttentionType)
	assert.Equal(t, Error, matches[1].AttentionType)
}
