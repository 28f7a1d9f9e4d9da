package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Summary describes a conda environment manifest.
type Summary struct {
	Name        string
	Channels    []string
	Packages    int
	PipPackages int
}

type environment struct {
	Name         string      `yaml:"name"`
	Channels     []string    `yaml:"channels"`
	Dependencies []yaml.Node `yaml:"dependencies"`
}

// Summarize parses an environment.yaml and counts its dependencies. Nested
// "pip:" lists are counted separately.
func Summarize(text string) (Summary, error) {
	var env environment
	if err := yaml.Unmarshal([]byte(text), &env); err != nil {
		return Summary{}, fmt.Errorf("failed to parse manifest: %w", err)
	}

	s := Summary{
		Name:     env.Name,
		Channels: env.Channels,
	}
	for _, dep := range env.Dependencies {
		switch dep.Kind {
		case yaml.ScalarNode:
			s.Packages++
		case yaml.MappingNode:
			var nested map[string][]string
			if err := dep.Decode(&nested); err != nil {
				return Summary{}, fmt.Errorf("failed to parse nested dependencies at line %d: %w", dep.Line, err)
			}
			s.PipPackages += len(nested["pip"])
		}
	}
	return s, nil
}

// String renders the summary on one line for logs and release notes.
func (s Summary) String() string {
	out := fmt.Sprintf("%d conda packages", s.Packages)
	if s.PipPackages > 0 {
		out += fmt.Sprintf(", %d pip packages", s.PipPackages)
	}
	if len(s.Channels) > 0 {
		out += fmt.Sprintf(" from %v", s.Channels)
	}
	return out
}
