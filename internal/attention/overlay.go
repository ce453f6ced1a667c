// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package attention

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the on-disk shape of an attention-profiles.yaml
// overlay: additional profiles layered on top of DefaultProfiles.
type overlayFile struct {
	Profiles []overlayProfile `yaml:"profiles"`
}

type overlayProfile struct {
	Name     string          `yaml:"name"`
	Triggers []overlayTrigger `yaml:"triggers"`
}

type overlayTrigger struct {
	Literal         string `yaml:"literal"`
	Regex           string `yaml:"regex"`
	CaseInsensitive bool   `yaml:"case_insensitive"`
	AttentionType   string `yaml:"attention_type"`
	LastLines       int    `yaml:"last_lines"`
	SurroundBefore  int    `yaml:"surround_before"`
	SurroundAfter   int    `yaml:"surround_after"`
}

// LoadOverlay reads an attention-profiles.yaml file and returns
// DefaultProfiles extended with its profiles. A missing file returns
// DefaultProfiles unchanged; malformed YAML is an error.
func LoadOverlay(path string) ([]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultProfiles, nil
		}
		return nil, fmt.Errorf("attention: read overlay: %w", err)
	}

	var file overlayFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("attention: parse overlay: %w", err)
	}

	profiles := make([]Profile, len(DefaultProfiles), len(DefaultProfiles)+len(file.Profiles))
	copy(profiles, DefaultProfiles)

	for _, p := range file.Profiles {
		profile := Profile{Name: p.Name}
		for _, trig := range p.Triggers {
			at := AttentionType(trig.AttentionType)
			var preview PreviewStrategy
			if trig.SurroundBefore != 0 || trig.SurroundAfter != 0 {
				preview = surround(trig.SurroundBefore, trig.SurroundAfter)
			} else {
				n := trig.LastLines
				if n == 0 {
					n = 3
				}
				preview = lastLines(n)
			}

			switch {
			case trig.Regex != "":
				profile.Triggers = append(profile.Triggers, regexTrigger(trig.Regex, at, preview))
			case trig.Literal != "":
				profile.Triggers = append(profile.Triggers, literalTrigger(trig.Literal, trig.CaseInsensitive, at, preview))
			default:
				return nil, fmt.Errorf("attention: overlay trigger in profile %q has neither literal nor regex", p.Name)
			}
		}
		profiles = append(profiles, profile)
	}

	return profiles, nil
}
