package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/diracgrid/diracos-release/internal/platform"
)

// LocalSource reads installers from <dir>/<platform>/<glob> and the manifest
// from <dir>/<platform>/<manifest file>.
type LocalSource struct {
	dir          string
	glob         string
	manifestFile string
}

// NewLocalSource creates a source over dir.
func NewLocalSource(dir, glob, manifestFile string) *LocalSource {
	return &LocalSource{dir: dir, glob: glob, manifestFile: manifestFile}
}

// Local reports true.
func (s *LocalSource) Local() bool { return true }

// Locate checks that the directory exists.
func (s *LocalSource) Locate(_ context.Context) (Origin, error) {
	info, err := os.Stat(s.dir)
	if err != nil {
		return Origin{}, &SourceError{Err: fmt.Errorf("%w: %v", ErrArtifactNotFound, err)}
	}
	if !info.IsDir() {
		return Origin{}, &SourceError{Err: fmt.Errorf("%w: %s is not a directory", ErrArtifactNotFound, s.dir)}
	}
	return Origin{Dir: s.dir}, nil
}

// Fetch reads the single installer matching the glob in the platform's
// directory.
func (s *LocalSource) Fetch(_ context.Context, origin Origin, p platform.Platform) (*Bundle, error) {
	if origin.Dir == "" {
		return nil, errors.New("origin was not produced by Locate")
	}
	platformDir := filepath.Join(origin.Dir, p.Name)

	matches, err := filepath.Glob(filepath.Join(platformDir, s.glob))
	if err != nil {
		return nil, fmt.Errorf("invalid installer glob %q: %w", s.glob, err)
	}
	if len(matches) != 1 {
		return nil, &SourceError{
			Artifact: filepath.Join(p.Name, s.glob),
			Err:      fmt.Errorf("%w: %d files match, want exactly 1", ErrArtifactNotFound, len(matches)),
		}
	}

	installer, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, &SourceError{Artifact: matches[0], Err: err}
	}

	bundle := &Bundle{
		Platform:      p,
		Installer:     installer,
		InstallerName: filepath.Base(matches[0]),
	}
	if !p.Designated {
		return bundle, nil
	}

	manifestPath := filepath.Join(platformDir, s.manifestFile)
	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = ErrArtifactNotFound
		}
		return nil, &SourceError{Artifact: manifestPath, Err: err}
	}
	bundle.Manifest = string(manifest)
	bundle.HasManifest = true

	return bundle, nil
}
