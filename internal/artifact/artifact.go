// Package artifact fetches the per-platform installer builds a release is made
// from, either from a GitHub Actions run or from a local directory.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/diracgrid/diracos-release/internal/platform"
)

// Sentinel errors for artifact sources.
var (
	ErrSourceUnavailable = errors.New("artifact source unavailable")
	ErrNoSuccessfulRun   = errors.New("no successful workflow run")
	ErrArtifactNotFound  = errors.New("artifact not found")
)

// SourceError identifies the run and artifact a fetch failed on. It matches
// ErrSourceUnavailable as well as its wrapped cause.
type SourceError struct {
	RunID    int64
	Artifact string
	Err      error
}

func (e *SourceError) Error() string {
	msg := ErrSourceUnavailable.Error()
	if e.RunID != 0 {
		msg += fmt.Sprintf(": run %d", e.RunID)
	}
	if e.Artifact != "" {
		msg += fmt.Sprintf(": artifact %q", e.Artifact)
	}
	return msg + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// Origin identifies the build a Source fetches from.
type Origin struct {
	RunID  int64  // CI run, zero for local sources
	Commit string // commit the run built
	Dir    string // local directory, empty for CI sources

	artifacts map[string]int64
}

// String describes the origin for logs and the dry-run plan.
func (o Origin) String() string {
	if o.Dir != "" {
		return "directory " + o.Dir
	}
	return fmt.Sprintf("run %d", o.RunID)
}

// Bundle is everything fetched for one platform.
type Bundle struct {
	Platform      platform.Platform
	Installer     []byte
	InstallerName string // file name inside the archive or directory
	Manifest      string // environment.yaml, designated platform only
	HasManifest   bool
	Commit        string // designated platform only
}

// Source provides installer builds. Locate is called once per run, then Fetch
// once per platform in upload order.
type Source interface {
	Locate(ctx context.Context) (Origin, error)
	Fetch(ctx context.Context, origin Origin, p platform.Platform) (*Bundle, error)
	// Local reports whether the source reads the filesystem; local builds may
	// only be used for dry runs.
	Local() bool
}
