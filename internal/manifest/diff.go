// Package manifest compares conda environment manifests between releases.
package manifest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// buildPin matches dependency pins carrying a build string,
// e.g. "  - python=3.11.4=hab00c5b_0_cpython".
var buildPin = regexp.MustCompile(`^(\s*- [^=]+=[^=]+)=[^=]+$`)

// Diff returns a zero-context unified diff of previous against current, and
// the same diff computed after NormalizeBuilds was applied to both sides.
// Identical inputs produce empty strings.
func Diff(previous, current string) (raw, ignoringBuild string, err error) {
	raw, err = unifiedDiff(previous, current)
	if err != nil {
		return "", "", err
	}
	ignoringBuild, err = unifiedDiff(NormalizeBuilds(previous), NormalizeBuilds(current))
	if err != nil {
		return "", "", err
	}
	return raw, ignoringBuild, nil
}

// NormalizeBuilds drops the trailing "=<build>" field from every dependency pin
// of the form "- name=version=build". Other lines are left untouched and line
// order is preserved.
func NormalizeBuilds(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = buildPin.ReplaceAllString(line, "$1")
	}
	return strings.Join(lines, "\n")
}

func unifiedDiff(a, b string) (string, error) {
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:       difflib.SplitLines(a),
		B:       difflib.SplitLines(b),
		Context: 0,
		Eol:     "\n",
	})
	if err != nil {
		return "", fmt.Errorf("failed to compute manifest diff: %w", err)
	}
	return strings.TrimSuffix(out, "\n"), nil
}
