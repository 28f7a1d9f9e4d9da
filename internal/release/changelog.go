package release

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v57/github"

	gh "github.com/diracgrid/diracos-release/internal/github"
)

// NotesClient is the part of the GitHub client GitHubChangelog needs.
type NotesClient interface {
	LatestRelease(ctx context.Context) (*github.RepositoryRelease, error)
	GenerateNotes(ctx context.Context, tag, previousTag, commitish string) (*github.RepositoryReleaseNotes, error)
}

// GitHubChangelog builds the changelog from GitHub's generated release notes
// since the latest published release.
type GitHubChangelog struct {
	client NotesClient
}

// NewGitHubChangelog creates a changelog source over client.
func NewGitHubChangelog(client NotesClient) *GitHubChangelog {
	return &GitHubChangelog{client: client}
}

// Changelog returns the generated notes as a document whose first two lines
// are the title and a blank line.
func (c *GitHubChangelog) Changelog(ctx context.Context, tag, commitish string) (string, error) {
	var since string
	latest, err := c.client.LatestRelease(ctx)
	switch {
	case err == nil:
		since = latest.GetTagName()
	case errors.Is(err, gh.ErrReleaseNotFound):
		// first release: GitHub summarizes the whole history
	default:
		return "", err
	}

	notes, err := c.client.GenerateNotes(ctx, tag, since, commitish)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s\n\n%s", notes.Name, notes.Body), nil
}
