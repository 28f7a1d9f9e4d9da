// Package cli provides command-line interface components with testable abstractions.
package cli

import (
	"context"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/diracgrid/diracos-release/internal/artifact"
	gh "github.com/diracgrid/diracos-release/internal/github"
	"github.com/diracgrid/diracos-release/internal/release"
)

// GitHubAPI is everything make-release needs from GitHub.
// *gh.Client implements it.
type GitHubAPI interface {
	artifact.ActionsClient
	release.ReleaseStore
	release.VersionFileStore

	// LatestRelease returns the latest published release.
	LatestRelease(ctx context.Context) (*github.RepositoryRelease, error)

	// GenerateNotes asks GitHub to generate release notes for tag.
	GenerateNotes(ctx context.Context, tag, previousTag, commitish string) (*github.RepositoryReleaseNotes, error)

	// Repository returns "owner/repo".
	Repository() string
}

var _ GitHubAPI = (*gh.Client)(nil)

// ClientFactory creates the GitHub client for a repository. Tests replace it.
type ClientFactory func(token, repository string, timeout time.Duration) (GitHubAPI, error)

func defaultClientFactory(token, repository string, timeout time.Duration) (GitHubAPI, error) {
	client, err := gh.NewClient(token, repository, timeout)
	if err != nil {
		return nil, err
	}
	return client, nil
}
