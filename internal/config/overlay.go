// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hjson/hjson-go/v4"
)

// Overrides holds optional daemon tuning parameters read from an
// optional daemon.hjson file in StateDir, layered over the built-in
// defaults. A zero Overrides means "use the built-ins".
type Overrides struct {
	Shell              []string
	StatusPollInterval time.Duration
	IdleCaptureAfter   time.Duration
}

// overrideFile is the on-disk shape of daemon.hjson.
type overrideFile struct {
	Shell                  []string `json:"shell"`
	StatusPollIntervalSecs int      `json:"status_poll_interval_seconds"`
	IdleCaptureAfterMins   int      `json:"idle_capture_after_minutes"`
}

// DaemonOverridesFile returns the optional HJSON overrides path.
func (c Config) DaemonOverridesFile() string {
	return filepath.Join(c.StateDir, "daemon.hjson")
}

// LoadOverrides reads path as HJSON and returns the tuning overrides it
// contains. A missing file returns a zero Overrides; malformed HJSON is
// an error.
func LoadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Overrides{}, nil
		}
		return Overrides{}, fmt.Errorf("config: read overrides: %w", err)
	}

	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return Overrides{}, fmt.Errorf("config: parse overrides hjson: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return Overrides{}, fmt.Errorf("config: convert overrides to json: %w", err)
	}

	var file overrideFile
	if err := json.Unmarshal(jsonData, &file); err != nil {
		return Overrides{}, fmt.Errorf("config: unmarshal overrides: %w", err)
	}

	var out Overrides
	if len(file.Shell) > 0 {
		out.Shell = file.Shell
	}
	if file.StatusPollIntervalSecs > 0 {
		out.StatusPollInterval = time.Duration(file.StatusPollIntervalSecs) * time.Second
	}
	if file.IdleCaptureAfterMins > 0 {
		out.IdleCaptureAfter = time.Duration(file.IdleCaptureAfterMins) * time.Minute
	}
	return out, nil
}
