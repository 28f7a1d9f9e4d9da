// Package version implements the PEP-440-like version scheme used for DIRACOS
// releases and the policy that derives the next development version.
package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// String constants for operations (used in ParseError)
const (
	OpParseRequested = "parse_requested"
	OpParseEmbedded  = "parse_embedded"
	OpParse          = "parse"
)

// Custom error types for better error handling and comparison
var (
	ErrInvalidVersionFormat = errors.New("invalid version format")
	ErrNilVersion           = errors.New("version cannot be nil")
)

// ParseError represents a version parsing error
type ParseError struct {
	Version string
	Op      string
	Reason  string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("failed to parse version %q in operation %s: %s", e.Version, e.Op, e.Reason)
}

func (e ParseError) Unwrap() error {
	return ErrInvalidVersionFormat
}

var versionRegex = regexp.MustCompile(`^(\d+(?:\.\d+)+)(?:[._-]?([a-z]+)[._-]?(\d+))?$`)

// preReleaseSpellings normalizes the alternative pre-release spellings PEP 440 accepts.
var preReleaseSpellings = map[string]string{
	"alpha":   "a",
	"beta":    "b",
	"c":       "rc",
	"pre":     "rc",
	"preview": "rc",
}

// Version is an immutable release version: two or more release components and
// an optional pre-release tag such as "a1".
type Version struct {
	release []int
	preTag  string
	preNum  int
}

// Parse parses s into a Version.
func Parse(s string) (Version, error) {
	return parse(s, OpParse)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func parse(s, op string) (Version, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return Version{}, ParseError{Version: s, Op: op, Reason: "empty string"}
	}
	if strings.HasPrefix(raw, "v") {
		return Version{}, ParseError{Version: s, Op: op, Reason: `versions must not start with "v"`}
	}

	m := versionRegex.FindStringSubmatch(raw)
	if m == nil {
		return Version{}, ParseError{Version: s, Op: op, Reason: "does not match <release>[<tag><number>]"}
	}

	parts := strings.Split(m[1], ".")
	release := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, ParseError{Version: s, Op: op, Reason: fmt.Sprintf("release component %q: %v", p, err)}
		}
		release = append(release, n)
	}

	v := Version{release: release}
	if m[2] != "" {
		tag := m[2]
		if norm, ok := preReleaseSpellings[tag]; ok {
			tag = norm
		}
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return Version{}, ParseError{Version: s, Op: op, Reason: fmt.Sprintf("pre-release number %q: %v", m[3], err)}
		}
		v.preTag = tag
		v.preNum = n
	}
	return v, nil
}

// String returns the normalized form, e.g. "2.0a1".
func (v Version) String() string {
	parts := make([]string, len(v.release))
	for i, n := range v.release {
		parts[i] = strconv.Itoa(n)
	}
	s := strings.Join(parts, ".")
	if v.preTag != "" {
		s += v.preTag + strconv.Itoa(v.preNum)
	}
	return s
}

// IsZero reports whether v is the zero Version (never produced by Parse).
func (v Version) IsZero() bool {
	return len(v.release) == 0
}

// Release returns a copy of the release components.
func (v Version) Release() []int {
	out := make([]int, len(v.release))
	copy(out, v.release)
	return out
}

// IsPrerelease reports whether v carries a pre-release tag.
func (v Version) IsPrerelease() bool {
	return v.preTag != ""
}

// ReleaseOnly returns v with the pre-release tag stripped.
func (v Version) ReleaseOnly() Version {
	return Version{release: v.Release()}
}

// Compare returns -1, 0 or 1. Release components compare as integers with
// missing trailing components treated as zero; a final release orders after
// every pre-release of the same release.
func Compare(a, b Version) int {
	n := len(a.release)
	if len(b.release) > n {
		n = len(b.release)
	}
	for i := 0; i < n; i++ {
		x, y := component(a.release, i), component(b.release, i)
		if x != y {
			return sign(x - y)
		}
	}

	switch {
	case a.preTag == "" && b.preTag == "":
		return 0
	case a.preTag == "":
		return 1
	case b.preTag == "":
		return -1
	}
	if c := strings.Compare(a.preTag, b.preTag); c != 0 {
		return c
	}
	return sign(a.preNum - b.preNum)
}

// Less reports whether a orders before b.
func Less(a, b Version) bool {
	return Compare(a, b) < 0
}

// Semver projects the release components onto a semantic version. Components
// after the third are dropped; the pre-release tag becomes the semver
// pre-release field.
func (v Version) Semver() (*semver.Version, error) {
	if v.IsZero() {
		return nil, ErrNilVersion
	}
	pre := ""
	if v.preTag != "" {
		pre = v.preTag + strconv.Itoa(v.preNum)
	}
	return semver.New(
		uint64(component(v.release, 0)),
		uint64(component(v.release, 1)),
		uint64(component(v.release, 2)),
		pre, ""), nil
}

func component(release []int, i int) int {
	if i < len(release) {
		return release[i]
	}
	return 0
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}
