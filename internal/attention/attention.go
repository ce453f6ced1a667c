// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package attention scans PTY output for prompts, errors and
// completion messages that mean a session wants the user's attention,
// and extracts a short preview around the match.
package attention

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// AttentionType classifies a detected attention event.
type AttentionType string

const (
	InputRequired AttentionType = "input_required"
	DecisionPoint AttentionType = "decision_point"
	Completed     AttentionType = "completed"
	Error         AttentionType = "error"
)

// PreviewStrategy selects how much context to capture around a match.
type PreviewStrategy struct {
	LastLines      int
	Surround       bool
	Before, After  int
}

func lastLines(n int) PreviewStrategy   { return PreviewStrategy{LastLines: n} }
func surround(before, after int) PreviewStrategy {
	return PreviewStrategy{Surround: true, Before: before, After: after}
}

func (p PreviewStrategy) render(text string, start, end int) string {
	if p.Surround {
		lo := start - p.Before
		if lo < 0 {
			lo = 0
		}
		hi := end + p.After
		if hi > len(text) {
			hi = len(text)
		}
		return strings.TrimSpace(text[lo:hi])
	}
	if p.LastLines == 0 {
		return ""
	}
	lines := strings.Split(text, "\n")
	if len(lines) > p.LastLines {
		lines = lines[len(lines)-p.LastLines:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Trigger is one pattern within a Profile.
type Trigger struct {
	matcher       *regexp.Regexp
	AttentionType AttentionType
	Preview       PreviewStrategy
}

func literalTrigger(pattern string, caseInsensitive bool, at AttentionType, preview PreviewStrategy) Trigger {
	escaped := regexp.QuoteMeta(pattern)
	if caseInsensitive {
		escaped = "(?i)" + escaped
	}
	return Trigger{matcher: regexp.MustCompile(escaped), AttentionType: at, Preview: preview}
}

func regexTrigger(pattern string, at AttentionType, preview PreviewStrategy) Trigger {
	return Trigger{matcher: regexp.MustCompile(pattern), AttentionType: at, Preview: preview}
}

// Profile is a named set of triggers for a related family of tools.
type Profile struct {
	Name     string
	Triggers []Trigger
}

// DefaultProfiles are the built-in profiles (spec §4.F). Additional
// profiles may be appended via LoadOverlay.
var DefaultProfiles = []Profile{
	{
		Name: "claude-code",
		Triggers: []Trigger{
			literalTrigger("✔ Submit", true, DecisionPoint, lastLines(3)),
			literalTrigger("Enter to select", true, InputRequired, lastLines(3)),
			literalTrigger("❯", false, InputRequired, surround(40, 0)),
		},
	},
	{
		Name: "build-tools",
		Triggers: []Trigger{
			regexTrigger(`(?i)build (succeeded|complete|passed)`, Completed, lastLines(5)),
			regexTrigger(`(?i)(error|failed|failure):`, Error, surround(0, 80)),
		},
	},
}

// Match is the result of detecting an attention event.
type Match struct {
	Profile       string
	AttentionType AttentionType
	Preview       string
}

// Detect scans text (already ANSI-stripped or not) against profiles,
// in order, returning the first match whose rendered preview is
// non-empty.
func Detect(text string, profiles []Profile) (Match, bool) {
	haystack := sanitize(text)
	for _, profile := range profiles {
		for _, trigger := range profile.Triggers {
			loc := trigger.matcher.FindStringIndex(haystack)
			if loc == nil {
				continue
			}
			preview := strings.TrimSpace(trigger.Preview.render(haystack, loc[0], loc[1]))
			if preview == "" {
				continue
			}
			return Match{Profile: profile.Name, AttentionType: trigger.AttentionType, Preview: preview}, true
		}
	}
	return Match{}, false
}

// DetectDefault runs Detect against DefaultProfiles.
func DetectDefault(text string) (Match, bool) {
	return Detect(text, DefaultProfiles)
}

func sanitize(text string) string {
	if !containsEscapeSequences(text) {
		return text
	}
	return StripANSI(text)
}

func containsEscapeSequences(text string) bool {
	for i := 0; i < len(text); i++ {
		b := text[i]
		if b == 0x1b || (b >= 0x90 && b <= 0x9d) {
			return true
		}
	}
	return false
}

// ATTENTION_WINDOW_BYTES (exported as AccumulatorWindowBytes) is the
// default sliding-window size for chunked attention detection.
const AccumulatorWindowBytes = 8 * 1024

// Accumulator accumulates PTY output across arbitrary chunk boundaries
// and surfaces attention matches as they appear, clearing its window on
// every match so the same text cannot re-fire.
type Accumulator struct {
	buf      []byte
	maxBytes int
	profiles []Profile
}

// NewAccumulator returns an accumulator bounded to maxBytes using the
// built-in default profiles.
func NewAccumulator(maxBytes int) *Accumulator {
	return &Accumulator{buf: make([]byte, 0, maxBytes), maxBytes: maxBytes, profiles: DefaultProfiles}
}

// NewAccumulatorWithProfiles is like NewAccumulator but scans against a
// caller-supplied profile set (e.g. built-ins plus a YAML overlay).
func NewAccumulatorWithProfiles(maxBytes int, profiles []Profile) *Accumulator {
	return &Accumulator{buf: make([]byte, 0, maxBytes), maxBytes: maxBytes, profiles: profiles}
}

// PushChunk appends chunk byte-by-byte, trimming the window and
// attempting detection after every byte; any matches cause the window
// to clear so the same bytes never match twice.
func (a *Accumulator) PushChunk(chunk []byte) []Match {
	var matches []Match
	for _, b := range chunk {
		a.buf = append(a.buf, b)
		a.trim()
		if m, ok := a.detectCurrent(); ok {
			matches = append(matches, m)
			a.buf = a.buf[:0]
		}
	}
	return matches
}

func (a *Accumulator) trim() {
	if len(a.buf) > a.maxBytes {
		drop := len(a.buf) - a.maxBytes
		a.buf = a.buf[drop:]
	}
}

func (a *Accumulator) detectCurrent() (Match, bool) {
	if len(a.buf) == 0 {
		return Match{}, false
	}
	// Mirrors from_utf8_lossy: an in-progress multibyte sequence at the
	// tail is treated as absent text rather than replaced with U+FFFD,
	// so a split rune doesn't spuriously break or create a match.
	text := string(validUTF8Prefix(a.buf))
	return Detect(text, a.profiles)
}

// validUTF8Prefix trims a trailing in-progress multibyte sequence so it
// reads as absent rather than as the replacement character, matching
// from_utf8_lossy's treatment of a not-yet-complete tail.
func validUTF8Prefix(b []byte) []byte {
	for cut := 0; cut < 4 && cut < len(b); cut++ {
		tail := b[len(b)-1-cut:]
		if utf8.FullRune(tail) {
			break
		}
		if !isLeadByte(tail[0]) {
			continue
		}
		return b[:len(b)-1-cut]
	}
	return b
}

func isLeadByte(b byte) bool {
	return b >= 0xc0 && b <= 0xf7
}

// StripANSI removes ANSI escape sequences (ESC/CSI/OSC, charset
// selection, bare CR, and C1 control codes) from text, preserving
// everything else.
func StripANSI(text string) string {
	if !containsEscapeSequences(text) {
		return text
	}

	runes := []rune(text)
	var out strings.Builder
	out.Grow(len(text))

	i := 0
	for i < len(runes) {
		ch := runes[i]
		switch ch {
		case '\x1b':
			i = handleEscapeSequence(runes, i+1)
		case '\u009b':
			i = skipCSI(runes, i+1)
		case '\u009d':
			i = skipOSC(runes, i+1)
		case '\u0090', '\u0098':
			i = skipSTTerminated(runes, i+1)
		case '\r':
			i++
		default:
			out.WriteRune(ch)
			i++
		}
	}
	return out.String()
}

func handleEscapeSequence(runes []rune, i int) int {
	if i >= len(runes) {
		return i
	}
	switch runes[i] {
	case '[':
		return skipCSI(runes, i+1)
	case ']':
		return skipOSC(runes, i+1)
	case 'P', 'X', '^', '_':
		return skipSTTerminated(runes, i+1)
	case '%', '(', ')', '*', '+', '-', '.', '/':
		if i+1 < len(runes) {
			return i + 2
		}
		return i + 1
	default:
		return i + 1
	}
}

func skipCSI(runes []rune, i int) int {
	for i < len(runes) {
		ch := runes[i]
		i++
		if ch >= '@' && ch <= '~' {
			break
		}
	}
	return i
}

func skipOSC(runes []rune, i int) int {
	for i < len(runes) {
		ch := runes[i]
		i++
		if ch == '\x07' {
			break
		}
		if ch == '\x1b' && i < len(runes) && runes[i] == '\\' {
			i++
			break
		}
	}
	return i
}

func skipSTTerminated(runes []rune, i int) int {
	for i < len(runes) {
		ch := runes[i]
		i++
		if ch == '\x1b' && i < len(runes) && runes[i] == '\\' {
			i++
			break
		}
	}
	return i
}
