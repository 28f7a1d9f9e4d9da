// Package installer reads and rewrites the metadata header of a
// self-extracting DIRACOS installer.
//
// The installer is a shell header followed by an opaque payload. The header ends
// at the first occurrence of EndHeaderMarker and carries "# KEY: value" lines
// written by the installer builder.
package installer

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// EndHeaderMarker separates the text header from the payload.
const EndHeaderMarker = "@@END_HEADER@@"

// VersionKey is the metadata key holding the build version.
const VersionKey = "VER"

// QualifiedPrefix precedes every occurrence of the version that names the
// product rather than the patch target.
const QualifiedPrefix = "DIRACOS "

// Sentinel errors for header operations.
var (
	ErrMalformedArtifact      = errors.New("installer header marker not found")
	ErrMissingVersionMetadata = errors.New("installer metadata has no VER entry")
	ErrAmbiguousVersionPatch  = errors.New("installer version occurrences are ambiguous")
	ErrEmptyTargetVersion     = errors.New("target version cannot be empty")
)

// AmbiguousPatchError reports the occurrence counts that violated the
// one-unqualified-occurrence rule.
type AmbiguousPatchError struct {
	Version   string
	Bare      int
	Qualified int
}

func (e *AmbiguousPatchError) Error() string {
	return fmt.Sprintf("%v: %q appears %d times, %d of them as %q (want exactly one unqualified occurrence)",
		ErrAmbiguousVersionPatch, e.Version, e.Bare, e.Qualified, QualifiedPrefix+e.Version)
}

func (e *AmbiguousPatchError) Unwrap() error {
	return ErrAmbiguousVersionPatch
}

var metadataLine = regexp.MustCompile(`(?m)^# ([A-Z]+): +(.+)$`)

// Metadata maps uppercase header keys to their values.
type Metadata map[string]string

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Artifact is an installer split into its header and payload.
type Artifact struct {
	Header string
	Body   []byte
}

// Split separates raw installer bytes at the first EndHeaderMarker.
func Split(raw []byte) (*Artifact, error) {
	idx := bytes.Index(raw, []byte(EndHeaderMarker))
	if idx < 0 {
		return nil, ErrMalformedArtifact
	}

	body := make([]byte, len(raw)-idx-len(EndHeaderMarker))
	copy(body, raw[idx+len(EndHeaderMarker):])

	return &Artifact{
		Header: string(raw[:idx]),
		Body:   body,
	}, nil
}

// Bytes reassembles header, marker and payload.
func (a *Artifact) Bytes() []byte {
	out := make([]byte, 0, len(a.Header)+len(EndHeaderMarker)+len(a.Body))
	out = append(out, a.Header...)
	out = append(out, EndHeaderMarker...)
	out = append(out, a.Body...)
	return out
}

// Metadata parses the "# KEY: value" lines of the header. When a key repeats,
// the last value wins.
func (a *Artifact) Metadata() Metadata {
	md := make(Metadata)
	for _, m := range metadataLine.FindAllStringSubmatch(a.Header, -1) {
		md[m[1]] = strings.TrimRight(m[2], " \r")
	}
	return md
}

// Version returns the VER metadata value.
func (a *Artifact) Version() (string, error) {
	v, ok := a.Metadata()[VersionKey]
	if !ok || v == "" {
		return "", ErrMissingVersionMetadata
	}
	return v, nil
}

// Validate checks that the header contains the version exactly once more than
// it contains the qualified "DIRACOS <VER>" form.
func (a *Artifact) Validate() error {
	ver, err := a.Version()
	if err != nil {
		return err
	}

	bare := strings.Count(a.Header, ver)
	qualified := strings.Count(a.Header, QualifiedPrefix+ver)
	if bare != qualified+1 {
		return &AmbiguousPatchError{Version: ver, Bare: bare, Qualified: qualified}
	}
	return nil
}

// WithVersion returns a copy of the artifact whose header has every occurrence
// of the embedded version replaced by target. The receiver is not modified.
func (a *Artifact) WithVersion(target string) (*Artifact, error) {
	if target == "" {
		return nil, ErrEmptyTargetVersion
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}

	ver, _ := a.Version()
	return &Artifact{
		Header: strings.ReplaceAll(a.Header, ver, target),
		Body:   a.Body,
	}, nil
}

// Patch splits raw, validates its header and rewrites the embedded version to target.
func Patch(raw []byte, target string) ([]byte, error) {
	art, err := Split(raw)
	if err != nil {
		return nil, err
	}
	patched, err := art.WithVersion(target)
	if err != nil {
		return nil, err
	}
	return patched.Bytes(), nil
}
