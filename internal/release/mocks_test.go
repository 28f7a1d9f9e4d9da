package release

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/google/go-github/v57/github"

	"github.com/diracgrid/diracos-release/internal/artifact"
	gh "github.com/diracgrid/diracos-release/internal/github"
	"github.com/diracgrid/diracos-release/internal/platform"
)

// uploadCall records one UploadAsset invocation.
type uploadCall struct {
	ReleaseID int64
	Name      string
	MediaType string
	Content   string
}

// mockReleaseStore implements ReleaseStore for testing.
type mockReleaseStore struct {
	CreateReleaseFunc  func(ctx context.Context, opts gh.ReleaseOptions) (*github.RepositoryRelease, error)
	ListReleasesFunc   func(ctx context.Context) ([]*github.RepositoryRelease, error)
	UploadAssetFunc    func(ctx context.Context, releaseID int64, filePath, name, mediaType string) (*github.ReleaseAsset, error)
	DownloadAssetFunc  func(ctx context.Context, assetID int64) ([]byte, error)
	DeleteAssetFunc    func(ctx context.Context, assetID int64) error
	PublishReleaseFunc func(ctx context.Context, releaseID int64) (*github.RepositoryRelease, error)

	created   []gh.ReleaseOptions
	uploads   []uploadCall
	deleted   []int64
	published []int64
}

func (m *mockReleaseStore) CreateRelease(ctx context.Context, opts gh.ReleaseOptions) (*github.RepositoryRelease, error) {
	m.created = append(m.created, opts)
	if m.CreateReleaseFunc != nil {
		return m.CreateReleaseFunc(ctx, opts)
	}
	return &github.RepositoryRelease{
		ID:      github.Int64(1000),
		TagName: github.String(opts.Tag),
		Draft:   github.Bool(opts.Draft),
		HTMLURL: github.String("https://github.com/DIRACGrid/DIRACOS2/releases/tag/untagged-1000"),
	}, nil
}

func (m *mockReleaseStore) ListReleases(ctx context.Context) ([]*github.RepositoryRelease, error) {
	if m.ListReleasesFunc != nil {
		return m.ListReleasesFunc(ctx)
	}
	return nil, nil
}

func (m *mockReleaseStore) UploadAsset(ctx context.Context, releaseID int64, filePath, name, mediaType string) (*github.ReleaseAsset, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	m.uploads = append(m.uploads, uploadCall{ReleaseID: releaseID, Name: name, MediaType: mediaType, Content: string(content)})
	if m.UploadAssetFunc != nil {
		return m.UploadAssetFunc(ctx, releaseID, filePath, name, mediaType)
	}
	return &github.ReleaseAsset{
		Name:               github.String(name),
		BrowserDownloadURL: github.String("https://github.com/DIRACGrid/DIRACOS2/releases/download/x/" + name),
	}, nil
}

func (m *mockReleaseStore) DownloadAsset(ctx context.Context, assetID int64) ([]byte, error) {
	if m.DownloadAssetFunc != nil {
		return m.DownloadAssetFunc(ctx, assetID)
	}
	return nil, errors.New("DownloadAsset not implemented")
}

func (m *mockReleaseStore) DeleteAsset(ctx context.Context, assetID int64) error {
	m.deleted = append(m.deleted, assetID)
	if m.DeleteAssetFunc != nil {
		return m.DeleteAssetFunc(ctx, assetID)
	}
	return nil
}

func (m *mockReleaseStore) PublishRelease(ctx context.Context, releaseID int64) (*github.RepositoryRelease, error) {
	m.published = append(m.published, releaseID)
	if m.PublishReleaseFunc != nil {
		return m.PublishReleaseFunc(ctx, releaseID)
	}
	return &github.RepositoryRelease{
		ID:      github.Int64(releaseID),
		Draft:   github.Bool(false),
		HTMLURL: github.String("https://github.com/DIRACGrid/DIRACOS2/releases/tag/published"),
	}, nil
}

// uploadedNames returns the asset names in upload order.
func (m *mockReleaseStore) uploadedNames() []string {
	names := make([]string, len(m.uploads))
	for i, u := range m.uploads {
		names[i] = u.Name
	}
	return names
}

// mockChangelog implements ChangelogSource for testing.
type mockChangelog struct {
	ChangelogFunc func(ctx context.Context, tag, commitish string) (string, error)
}

func (m *mockChangelog) Changelog(ctx context.Context, tag, commitish string) (string, error) {
	if m.ChangelogFunc != nil {
		return m.ChangelogFunc(ctx, tag, commitish)
	}
	return "DIRACOS\n\n* Add fts3 by @someone", nil
}

type updateCall struct {
	Path, Branch, Message, Content, SHA string
}

// mockVersionFile implements VersionFileStore for testing.
type mockVersionFile struct {
	Content string
	SHA     string

	GetFileFunc    func(ctx context.Context, path, ref string) (string, string, error)
	UpdateFileFunc func(ctx context.Context, path, branch, message, content, sha string) (string, error)

	updates []updateCall
}

func (m *mockVersionFile) GetFile(ctx context.Context, path, ref string) (string, string, error) {
	if m.GetFileFunc != nil {
		return m.GetFileFunc(ctx, path, ref)
	}
	return m.Content, m.SHA, nil
}

func (m *mockVersionFile) UpdateFile(ctx context.Context, path, branch, message, content, sha string) (string, error) {
	m.updates = append(m.updates, updateCall{Path: path, Branch: branch, Message: message, Content: content, SHA: sha})
	if m.UpdateFileFunc != nil {
		return m.UpdateFileFunc(ctx, path, branch, message, content, sha)
	}
	return "https://github.com/DIRACGrid/DIRACOS2/commit/bump", nil
}

// mockSigner implements Signer for testing.
type mockSigner struct {
	signed []string
}

func (m *mockSigner) Sign(data []byte) (string, error) {
	m.signed = append(m.signed, string(data))
	return "-----BEGIN PGP SIGNATURE-----\nfake\n-----END PGP SIGNATURE-----\n", nil
}

func (m *mockSigner) Fingerprint() string {
	return "0123456789ABCDEF0123456789ABCDEF01234567"
}

// fakeSource implements artifact.Source over in-memory bundles keyed by
// platform name.
type fakeSource struct {
	local   bool
	origin  artifact.Origin
	bundles map[string]*artifact.Bundle

	LocateErr error
	fetched   []string
}

func (f *fakeSource) Locate(ctx context.Context) (artifact.Origin, error) {
	if f.LocateErr != nil {
		return artifact.Origin{}, f.LocateErr
	}
	return f.origin, nil
}

func (f *fakeSource) Fetch(ctx context.Context, origin artifact.Origin, p platform.Platform) (*artifact.Bundle, error) {
	f.fetched = append(f.fetched, p.Name)
	b, ok := f.bundles[p.Name]
	if !ok {
		return nil, &artifact.SourceError{RunID: origin.RunID, Artifact: p.InstallerArtifact, Err: artifact.ErrArtifactNotFound}
	}
	b.Platform = p
	return b, nil
}

func (f *fakeSource) Local() bool {
	return f.local
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
