package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v57/github"

	"github.com/diracgrid/diracos-release/internal/platform"
)

// successConclusion is the only run conclusion a release may be built from.
const successConclusion = "success"

// ActionsClient is the part of the GitHub client the CI source needs.
type ActionsClient interface {
	LatestWorkflowRun(ctx context.Context, workflowFile, branch string) (*github.WorkflowRun, error)
	GetWorkflowRun(ctx context.Context, runID int64) (*github.WorkflowRun, error)
	ListRunArtifacts(ctx context.Context, runID int64) ([]*github.Artifact, error)
	DownloadArtifact(ctx context.Context, artifactID int64) ([]byte, error)
}

// CIOptions selects the run to release from.
type CIOptions struct {
	Workflow     string // workflow file name, e.g. build-and-test.yml
	Branch       string
	RunID        int64  // zero selects the latest run on Branch
	ManifestFile string // file inside the manifest artifact
}

// CISource fetches installers from the artifacts of a GitHub Actions run.
type CISource struct {
	client ActionsClient
	opts   CIOptions
	logger *slog.Logger
}

// NewCISource creates a source over client.
func NewCISource(client ActionsClient, opts CIOptions, logger *slog.Logger) *CISource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CISource{client: client, opts: opts, logger: logger}
}

// Local reports false.
func (s *CISource) Local() bool { return false }

// Locate resolves the run, requires it to have succeeded and indexes its
// artifacts by name.
func (s *CISource) Locate(ctx context.Context) (Origin, error) {
	run, err := s.run(ctx)
	if err != nil {
		return Origin{}, err
	}

	if run.GetConclusion() != successConclusion {
		return Origin{}, &SourceError{
			RunID: run.GetID(),
			Err:   fmt.Errorf("%w: conclusion is %q", ErrNoSuccessfulRun, run.GetConclusion()),
		}
	}

	artifacts, err := s.client.ListRunArtifacts(ctx, run.GetID())
	if err != nil {
		return Origin{}, &SourceError{RunID: run.GetID(), Err: err}
	}

	origin := Origin{
		RunID:     run.GetID(),
		Commit:    run.GetHeadSHA(),
		artifacts: make(map[string]int64, len(artifacts)),
	}
	for _, a := range artifacts {
		if a.GetExpired() {
			s.logger.Warn("Skipping expired artifact", "run_id", origin.RunID, "artifact", a.GetName())
			continue
		}
		origin.artifacts[a.GetName()] = a.GetID()
	}

	s.logger.Info("Located workflow run",
		"run_id", origin.RunID,
		"commit", origin.Commit,
		"artifacts", len(origin.artifacts))
	return origin, nil
}

func (s *CISource) run(ctx context.Context) (*github.WorkflowRun, error) {
	if s.opts.RunID != 0 {
		run, err := s.client.GetWorkflowRun(ctx, s.opts.RunID)
		if err != nil {
			return nil, &SourceError{RunID: s.opts.RunID, Err: err}
		}
		return run, nil
	}

	run, err := s.client.LatestWorkflowRun(ctx, s.opts.Workflow, s.opts.Branch)
	if err != nil {
		return nil, &SourceError{Err: fmt.Errorf("%w: %v", ErrNoSuccessfulRun, err)}
	}
	return run, nil
}

// Fetch downloads the installer archive of p and, for the designated
// platform, the manifest archive.
func (s *CISource) Fetch(ctx context.Context, origin Origin, p platform.Platform) (*Bundle, error) {
	if origin.artifacts == nil {
		return nil, errors.New("origin was not produced by Locate")
	}

	data, err := s.download(ctx, origin, p.InstallerArtifact)
	if err != nil {
		return nil, err
	}
	name, installer, err := singleEntry(data)
	if err != nil {
		return nil, &SourceError{RunID: origin.RunID, Artifact: p.InstallerArtifact, Err: err}
	}

	bundle := &Bundle{
		Platform:      p,
		Installer:     installer,
		InstallerName: name,
	}
	s.logger.Debug("Fetched installer", "platform", p.Name, "artifact", p.InstallerArtifact, "file", name, "size", len(installer))

	if !p.Designated {
		return bundle, nil
	}

	data, err = s.download(ctx, origin, p.ManifestArtifact)
	if err != nil {
		return nil, err
	}
	manifest, err := namedEntry(data, s.opts.ManifestFile)
	if err != nil {
		return nil, &SourceError{RunID: origin.RunID, Artifact: p.ManifestArtifact, Err: err}
	}
	bundle.Manifest = string(manifest)
	bundle.HasManifest = true
	bundle.Commit = origin.Commit

	return bundle, nil
}

func (s *CISource) download(ctx context.Context, origin Origin, name string) ([]byte, error) {
	id, ok := origin.artifacts[name]
	if !ok {
		return nil, &SourceError{RunID: origin.RunID, Artifact: name, Err: ErrArtifactNotFound}
	}
	data, err := s.client.DownloadArtifact(ctx, id)
	if err != nil {
		return nil, &SourceError{RunID: origin.RunID, Artifact: name, Err: err}
	}
	return data, nil
}
