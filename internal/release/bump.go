package release

import (
	"context"
	"fmt"
	"regexp"

	"github.com/diracgrid/diracos-release/internal/version"
)

// BumpOutcome is the result of the version-file step.
type BumpOutcome string

const (
	BumpUpdated BumpOutcome = "updated"
	BumpStale   BumpOutcome = "stale"   // file already at or past the next version
	BumpSkipped BumpOutcome = "skipped" // dry run
)

// versionDeclaration matches the version line of construct.yaml.
var versionDeclaration = regexp.MustCompile(`(?m)^(version: *)(\d+\.\d\S*) *$`)

// BumpVersionFile sets the version declared in the version file on the main
// branch to next, unless the file already declares next or a later version.
// The write is conditioned on the blob sha that was read.
func (o *Orchestrator) BumpVersionFile(ctx context.Context, next version.Version) (BumpOutcome, string, error) {
	path, branch := o.opts.VersionFile, o.opts.MainBranch

	content, sha, err := o.deps.VersionFile.GetFile(ctx, path, branch)
	if err != nil {
		return "", "", fmt.Errorf("failed to read %s on %s: %w", path, branch, err)
	}

	stored, err := storedVersion(content)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", path, err)
	}
	if !version.Less(stored, next) {
		o.logger.Info("Version file is already up to date",
			"path", path, "stored", stored.String(), "next", next.String())
		return BumpStale, "", nil
	}

	updated, err := replaceVersion(content, next)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", path, err)
	}

	message := fmt.Sprintf("Bump version to %s", next)
	commitURL, err := o.deps.VersionFile.UpdateFile(ctx, path, branch, message, updated, sha)
	if err != nil {
		return "", "", &MutationError{Op: "bump", Target: path, Err: err}
	}
	o.logger.Info("Bumped version file", "path", path, "from", stored.String(), "to", next.String(), "commit", commitURL)
	return BumpUpdated, commitURL, nil
}

// storedVersion returns the version of the first declaration in content.
func storedVersion(content string) (version.Version, error) {
	m := versionDeclaration.FindStringSubmatch(content)
	if m == nil {
		return version.Version{}, ErrVersionNotFound
	}
	return version.Parse(m[2])
}

// replaceVersion requires exactly one version declaration in content and
// returns content with it set to next.
func replaceVersion(content string, next version.Version) (string, error) {
	matches := versionDeclaration.FindAllStringSubmatchIndex(content, -1)
	switch len(matches) {
	case 0:
		return "", ErrVersionNotFound
	case 1:
	default:
		return "", fmt.Errorf("%w: %d declarations", ErrAmbiguousVersionFile, len(matches))
	}

	m := matches[0]
	return content[:m[4]] + next.String() + content[m[5]:], nil
}
