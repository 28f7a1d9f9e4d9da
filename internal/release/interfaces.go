package release

import (
	"context"

	"github.com/google/go-github/v57/github"

	gh "github.com/diracgrid/diracos-release/internal/github"
	"github.com/diracgrid/diracos-release/internal/storage"
)

// ReleaseStore abstracts GitHub release operations for testing.
type ReleaseStore interface {
	// CreateRelease creates a release; the orchestrator always asks for a draft.
	CreateRelease(ctx context.Context, opts gh.ReleaseOptions) (*github.RepositoryRelease, error)

	// ListReleases returns every release including drafts, with their assets.
	ListReleases(ctx context.Context) ([]*github.RepositoryRelease, error)

	// UploadAsset uploads a staged file under name.
	UploadAsset(ctx context.Context, releaseID int64, filePath, name, mediaType string) (*github.ReleaseAsset, error)

	// DownloadAsset returns the content of a release asset.
	DownloadAsset(ctx context.Context, assetID int64) ([]byte, error)

	// DeleteAsset removes an asset, used for uploads that never completed.
	DeleteAsset(ctx context.Context, assetID int64) error

	// PublishRelease flips the draft flag to false.
	PublishRelease(ctx context.Context, releaseID int64) (*github.RepositoryRelease, error)
}

// ChangelogSource produces the free-form changes section of the notes.
// The first two lines of its output are a preamble and are discarded.
type ChangelogSource interface {
	Changelog(ctx context.Context, tag, commitish string) (string, error)
}

// VersionFileStore reads and conditionally writes a file on a branch.
type VersionFileStore interface {
	GetFile(ctx context.Context, path, ref string) (content, sha string, err error)
	UpdateFile(ctx context.Context, path, branch, message, content, sha string) (string, error)
}

// Journal records release attempts so an interrupted run can resume.
// *storage.DB implements it.
type Journal interface {
	GetReleaseByTag(tag string) (*storage.Release, error)
	RecordDraft(release *storage.Release) error
	RecordAsset(releaseID uint, asset *storage.UploadedAsset) error
	UploadedAssetNames(releaseID uint) (map[string]bool, error)
	MarkPublished(tag, htmlURL string) error
	MarkBumped(tag, outcome string) error
}

// Signer signs the checksum file. *signing.Signer implements it.
type Signer interface {
	Sign(data []byte) (string, error)
	Fingerprint() string
}

var _ Journal = (*storage.DB)(nil)
