// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package capture

import "regexp"

var redactionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b\w*(API_?KEY|TOKEN|SECRET|PASSWORD|AUTH_?KEY)\s*=\s*\S+`),
	regexp.MustCompile(`(?i)password\s*:\s*\S+`),
	regexp.MustCompile(`(?i)authorization\s*:\s*bearer\s+\S+`),
	regexp.MustCompile(`-----BEGIN[^\n]*PRIVATE KEY-----[\s\S]*?-----END[^\n]*PRIVATE KEY-----`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
}

// SanitizeTerminalOutput best-effort redacts common secret shapes
// (API key/token/secret/password assignments, bearer tokens, PEM
// private key blocks, AWS access keys) from terminal output before it
// is persisted in a snapshot.
func SanitizeTerminalOutput(input string) string {
	sanitized := input
	for _, pattern := range redactionPatterns {
		sanitized = pattern.ReplaceAllString(sanitized, "[REDACTED]")
	}
	return sanitized
}
