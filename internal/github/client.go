// Package github provides a client for the GitHub Actions, Releases and
// Contents APIs used to publish DIRACOS.
package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
)

// Sentinel errors for GitHub operations.
var (
	ErrEmptyToken      = errors.New("github token cannot be empty")
	ErrInvalidRepo     = errors.New("repository must be in format 'owner/repo'")
	ErrReleaseNotFound = errors.New("release not found")
	ErrRunNotFound     = errors.New("workflow run not found")
	ErrNoWorkflowRuns  = errors.New("no workflow runs found")
	ErrFileNotFound    = errors.New("file not found")
	errNotInitialized  = errors.New("client not initialized: use NewClient to create instances")
)

// perPage is the page size used for paginated listings.
const perPage = 100

// Client wraps the GitHub API client for one repository.
type Client struct {
	client *github.Client
	// download fetches pre-signed artifact and asset URLs; it carries no token
	download *http.Client
	owner    string
	repo     string
}

// ReleaseOptions describes a release to create.
type ReleaseOptions struct {
	Tag        string
	Name       string
	Body       string
	Commitish  string
	Draft      bool
	Prerelease bool
}

// NewClient creates a new GitHub API client for the specified repository.
// Token should be a personal access token or GitHub Actions token with repo permissions.
// Repository must be in the format "owner/repo". A zero timeout disables the
// HTTP client timeout.
func NewClient(token, repository string, timeout time.Duration) (*Client, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	owner, repo, err := parseRepository(repository)
	if err != nil {
		return nil, err
	}

	client := github.NewClient(&http.Client{Timeout: timeout}).WithAuthToken(token)

	return &Client{
		client:   client,
		download: &http.Client{Timeout: timeout},
		owner:    owner,
		repo:     repo,
	}, nil
}

// Repository returns "owner/repo".
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

func (c *Client) ready() error {
	if c.client == nil || c.owner == "" || c.repo == "" {
		return errNotInitialized
	}
	return nil
}

// LatestWorkflowRun returns the most recent run of a workflow file on a branch,
// whatever its conclusion.
func (c *Client) LatestWorkflowRun(ctx context.Context, workflowFile, branch string) (*github.WorkflowRun, error) {
	if workflowFile == "" {
		return nil, fmt.Errorf("workflow file cannot be empty")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	runs, _, err := c.client.Actions.ListWorkflowRunsByFileName(ctx, c.owner, c.repo, workflowFile,
		&github.ListWorkflowRunsOptions{
			Branch:      branch,
			ListOptions: github.ListOptions{PerPage: 1},
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs of %s on %s: %w", workflowFile, branch, err)
	}
	if len(runs.WorkflowRuns) == 0 {
		return nil, fmt.Errorf("%w: %s on %s", ErrNoWorkflowRuns, workflowFile, branch)
	}
	return runs.WorkflowRuns[0], nil
}

// GetWorkflowRun retrieves a workflow run by ID.
// Returns ErrRunNotFound if the run doesn't exist.
func (c *Client) GetWorkflowRun(ctx context.Context, runID int64) (*github.WorkflowRun, error) {
	if runID == 0 {
		return nil, fmt.Errorf("run ID cannot be zero")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	run, resp, err := c.client.Actions.GetWorkflowRunByID(ctx, c.owner, c.repo, runID)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %d", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to get run %d: %w", runID, err)
	}
	return run, nil
}

// ListRunArtifacts returns every artifact of a workflow run.
func (c *Client) ListRunArtifacts(ctx context.Context, runID int64) ([]*github.Artifact, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var all []*github.Artifact
	opts := &github.ListOptions{PerPage: perPage}
	for {
		list, resp, err := c.client.Actions.ListWorkflowRunArtifacts(ctx, c.owner, c.repo, runID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts of run %d: %w", runID, err)
		}
		all = append(all, list.Artifacts...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// DownloadArtifact downloads the zip archive of an artifact.
func (c *Client) DownloadArtifact(ctx context.Context, artifactID int64) ([]byte, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	u, _, err := c.client.Actions.DownloadArtifact(ctx, c.owner, c.repo, artifactID, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve artifact %d: %w", artifactID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build artifact request: %w", err)
	}
	resp, err := c.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact %d: %w", artifactID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download artifact %d: unexpected status %s", artifactID, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %d: %w", artifactID, err)
	}
	return data, nil
}

// CreateRelease creates a new GitHub release.
// Returns the created release metadata including the HTML URL and upload URL.
func (c *Client) CreateRelease(ctx context.Context, opts ReleaseOptions) (*github.RepositoryRelease, error) {
	if opts.Tag == "" {
		return nil, fmt.Errorf("release tag cannot be empty")
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("release name cannot be empty")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	release := &github.RepositoryRelease{
		TagName:    github.String(opts.Tag),
		Name:       github.String(opts.Name),
		Body:       github.String(opts.Body),
		Draft:      github.Bool(opts.Draft),
		Prerelease: github.Bool(opts.Prerelease),
	}
	if opts.Commitish != "" {
		release.TargetCommitish = github.String(opts.Commitish)
	}

	created, _, err := c.client.Repositories.CreateRelease(ctx, c.owner, c.repo, release)
	if err != nil {
		return nil, fmt.Errorf("failed to create release %s: %w", opts.Tag, err)
	}

	return created, nil
}

// LatestRelease returns the latest published, non-prerelease release.
// Returns ErrReleaseNotFound if the repository has none.
func (c *Client) LatestRelease(ctx context.Context) (*github.RepositoryRelease, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	release, resp, err := c.client.Repositories.GetLatestRelease(ctx, c.owner, c.repo)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrReleaseNotFound
		}
		return nil, fmt.Errorf("failed to get latest release: %w", err)
	}
	return release, nil
}

// ListReleases returns every release of the repository, drafts included.
func (c *Client) ListReleases(ctx context.Context) ([]*github.RepositoryRelease, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	var all []*github.RepositoryRelease
	opts := &github.ListOptions{PerPage: perPage}
	for {
		page, resp, err := c.client.Repositories.ListReleases(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list releases: %w", err)
		}
		all = append(all, page...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// UploadAsset uploads a file as a release asset under the given name.
// An empty name uses the file's base name; an empty media type lets the
// API client infer one from the extension.
func (c *Client) UploadAsset(ctx context.Context, releaseID int64, filePath, name, mediaType string) (*github.ReleaseAsset, error) {
	if releaseID == 0 {
		return nil, fmt.Errorf("release ID cannot be zero")
	}
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer func() { _ = file.Close() }()

	if name == "" {
		name = filepath.Base(filePath)
	}

	opts := &github.UploadOptions{
		Name:      name,
		MediaType: mediaType,
	}

	asset, _, err := c.client.Repositories.UploadReleaseAsset(ctx, c.owner, c.repo, releaseID, opts, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload asset %s: %w", name, err)
	}

	return asset, nil
}

// DownloadAsset returns the content of a release asset.
func (c *Client) DownloadAsset(ctx context.Context, assetID int64) ([]byte, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	rc, _, err := c.client.Repositories.DownloadReleaseAsset(ctx, c.owner, c.repo, assetID, c.download)
	if err != nil {
		return nil, fmt.Errorf("failed to download asset %d: %w", assetID, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset %d: %w", assetID, err)
	}
	return data, nil
}

// DeleteAsset removes a release asset.
func (c *Client) DeleteAsset(ctx context.Context, assetID int64) error {
	if assetID == 0 {
		return fmt.Errorf("asset ID cannot be zero")
	}
	if err := c.ready(); err != nil {
		return err
	}

	if _, err := c.client.Repositories.DeleteReleaseAsset(ctx, c.owner, c.repo, assetID); err != nil {
		return fmt.Errorf("failed to delete asset %d: %w", assetID, err)
	}
	return nil
}

// PublishRelease flips a draft release to published.
func (c *Client) PublishRelease(ctx context.Context, releaseID int64) (*github.RepositoryRelease, error) {
	if releaseID == 0 {
		return nil, fmt.Errorf("release ID cannot be zero")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	release, _, err := c.client.Repositories.EditRelease(ctx, c.owner, c.repo, releaseID,
		&github.RepositoryRelease{Draft: github.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("failed to publish release %d: %w", releaseID, err)
	}
	return release, nil
}

// GenerateNotes asks GitHub to generate release notes for tag. An empty
// previousTag lets GitHub pick the previous release.
func (c *Client) GenerateNotes(ctx context.Context, tag, previousTag, commitish string) (*github.RepositoryReleaseNotes, error) {
	if tag == "" {
		return nil, fmt.Errorf("release tag cannot be empty")
	}
	if err := c.ready(); err != nil {
		return nil, err
	}

	opts := &github.GenerateNotesOptions{TagName: tag}
	if previousTag != "" {
		opts.PreviousTagName = github.String(previousTag)
	}
	if commitish != "" {
		opts.TargetCommitish = github.String(commitish)
	}

	notes, _, err := c.client.Repositories.GenerateReleaseNotes(ctx, c.owner, c.repo, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate notes for %s: %w", tag, err)
	}
	return notes, nil
}

// GetFile returns the decoded content and blob sha of a file at ref.
// Returns ErrFileNotFound if the path doesn't exist.
func (c *Client) GetFile(ctx context.Context, path, ref string) (content, sha string, err error) {
	if path == "" {
		return "", "", fmt.Errorf("file path cannot be empty")
	}
	if err := c.ready(); err != nil {
		return "", "", err
	}

	var opts *github.RepositoryContentGetOptions
	if ref != "" {
		opts = &github.RepositoryContentGetOptions{Ref: ref}
	}

	file, _, resp, err := c.client.Repositories.GetContents(ctx, c.owner, c.repo, path, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", "", fmt.Errorf("failed to get %s: %w", path, err)
	}
	if file == nil {
		return "", "", fmt.Errorf("%s is a directory", path)
	}

	content, err = file.GetContent()
	if err != nil {
		return "", "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return content, file.GetSHA(), nil
}

// UpdateFile commits new content for path on branch. sha must be the blob sha
// the content was read at; GitHub rejects the write when the file changed since.
// Returns the HTML URL of the created commit.
func (c *Client) UpdateFile(ctx context.Context, path, branch, message, content, sha string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}
	if sha == "" {
		return "", fmt.Errorf("blob sha cannot be empty")
	}
	if err := c.ready(); err != nil {
		return "", err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: []byte(content),
		SHA:     github.String(sha),
	}
	if branch != "" {
		opts.Branch = github.String(branch)
	}

	res, _, err := c.client.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("failed to update %s: %w", path, err)
	}
	return res.Commit.GetHTMLURL(), nil
}

// parseRepository splits a repository string into owner and repo.
// Returns an error if the format is invalid.
func parseRepository(repository string) (owner, repo string, err error) {
	if repository == "" {
		return "", "", ErrInvalidRepo
	}

	parts := strings.Split(repository, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: got %s", ErrInvalidRepo, repository)
	}

	owner = strings.TrimSpace(parts[0])
	repo = strings.TrimSpace(parts[1])

	if owner == "" || repo == "" {
		return "", "", fmt.Errorf("%w: owner or repo is empty", ErrInvalidRepo)
	}

	return owner, repo, nil
}
