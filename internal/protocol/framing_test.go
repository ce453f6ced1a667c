// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteFrame(&Frame{Type: ReqPing}))

	r := NewReader(&buf, MaxRequestFrameBytes)
	frame, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, ReqPing, frame.Type)
}

func TestReadFrameAcceptsExactlyMaxSize(t *testing.T) {
	padding := strings.Repeat("a", MaxRequestFrameBytes-40)
	line := `{"type":"ping","message":"` + padding + `"}`
	require.LessOrEqual(t, len(line), MaxRequestFrameBytes)

	r := NewReader(strings.NewReader(line+"\n"), MaxRequestFrameBytes)
	_, err := r.ReadFrame()
	require.NoError(t, err)
}

func TestReadFrameRejectsOversizedFrame(t *testing.T) {
	padding := strings.Repeat("a", MaxRequestFrameBytes+1)
	line := `{"type":"ping","message":"` + padding + `"}`

	r := NewReader(strings.NewReader(line+"\n"), MaxRequestFrameBytes)
	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestClampCrListLimit(t *testing.T) {
	limit, ok := ClampCrListLimit(nil)
	assert.True(t, ok)
	assert.Equal(t, 100, limit)

	over := 1000
	limit, ok = ClampCrListLimit(&over)
	assert.True(t, ok)
	assert.Equal(t, 500, limit)

	zero := 0
	_, ok = ClampCrListLimit(&zero)
	assert.False(t, ok)

	neg := -5
	_, ok = ClampCrListLimit(&neg)
	assert.False(t, ok)

	small := 10
	limit, ok = ClampCrListLimit(&small)
	assert.True(t, ok)
	assert.Equal(t, 10, limit)
}
