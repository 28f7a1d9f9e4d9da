// Package release drives a DIRACOS release from CI artifacts to a published
// GitHub release and the version bump on the main branch.
package release

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/diracgrid/diracos-release/internal/artifact"
	"github.com/diracgrid/diracos-release/internal/config"
	"github.com/diracgrid/diracos-release/internal/installer"
	"github.com/diracgrid/diracos-release/internal/manifest"
	"github.com/diracgrid/diracos-release/internal/platform"
	"github.com/diracgrid/diracos-release/internal/version"
)

// State names a step of a release run. Every transition is logged.
type State string

const (
	StateLocateRun       State = "LOCATE_RUN"
	StateFetchArtifacts  State = "FETCH_ARTIFACTS"
	StatePatchHeaders    State = "PATCH_HEADERS"
	StateDeriveVersion   State = "DERIVE_VERSION"
	StateComputeNotes    State = "COMPUTE_NOTES"
	StateDryRun          State = "DRY_RUN"
	StateCreateDraft     State = "CREATE_DRAFT"
	StateUploadAssets    State = "UPLOAD_ASSETS"
	StatePublish         State = "PUBLISH"
	StateBumpVersionFile State = "BUMP_VERSION_FILE"
)

// Options configures one release run.
type Options struct {
	Product          string
	Platforms        []platform.Platform
	RequestedVersion string // empty derives the version from the designated build
	DryRun           bool
	MainBranch       string
	VersionFile      string
	Ignore           config.IgnoreList // tags never used as the previous release
}

// Dependencies are the collaborators of the orchestrator. Journal and
// VersionFile are only needed for live runs; Signer is optional.
type Dependencies struct {
	Source      artifact.Source
	Releases    ReleaseStore
	Changelog   ChangelogSource
	VersionFile VersionFileStore
	Journal     Journal
	Signer      Signer
}

// Orchestrator runs the release state machine.
type Orchestrator struct {
	opts Options
	deps Dependencies

	designated platform.Platform
	logger     *slog.Logger
}

// Result summarizes a run for the CLI.
type Result struct {
	DryRun     bool
	Origin     artifact.Origin
	Commit     string
	Embedded   string
	Current    version.Version
	Next       version.Version
	Previous   string
	Manifest   *manifest.Summary
	Notes      string
	Assets     []Asset
	ReleaseURL string
	Bump       BumpOutcome
	CommitURL  string
}

// build is one platform's fetched and parsed installer.
type build struct {
	bundle   *artifact.Bundle
	header   *installer.Artifact
	embedded string
	patched  []byte
}

// New validates the options and collaborators.
func New(opts Options, deps Dependencies, logger *slog.Logger) (*Orchestrator, error) {
	if opts.Product == "" {
		return nil, errors.New("product cannot be empty")
	}
	if err := platform.Validate(opts.Platforms); err != nil {
		return nil, fmt.Errorf("invalid platforms: %w", err)
	}
	designated, err := platform.Designated(opts.Platforms)
	if err != nil {
		return nil, err
	}

	if deps.Source == nil {
		return nil, errors.New("artifact source is required")
	}
	if deps.Releases == nil {
		return nil, errors.New("release store is required")
	}
	if deps.Changelog == nil {
		return nil, errors.New("changelog source is required")
	}
	if !opts.DryRun {
		if deps.Journal == nil {
			return nil, errors.New("journal is required for a live release")
		}
		if deps.VersionFile == nil {
			return nil, errors.New("version file store is required for a live release")
		}
		if opts.VersionFile == "" || opts.MainBranch == "" {
			return nil, errors.New("version file and main branch are required for a live release")
		}
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		opts:       opts,
		deps:       deps,
		designated: designated,
		logger:     logger,
	}, nil
}

func (o *Orchestrator) enter(s State, args ...any) {
	o.logger.Info("Entering state", append([]any{"state", string(s)}, args...)...)
}

// Run executes the release. A dry run stops after the notes are computed and
// never mutates anything remote.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.opts.DryRun && o.deps.Source.Local() {
		return nil, ErrLocalSourceLive
	}

	res := &Result{DryRun: o.opts.DryRun}

	o.enter(StateLocateRun)
	origin, err := o.deps.Source.Locate(ctx)
	if err != nil {
		return nil, err
	}
	res.Origin = origin

	o.enter(StateFetchArtifacts, "origin", origin.String())
	builds, err := o.fetch(ctx, origin)
	if err != nil {
		return nil, err
	}
	main := builds[o.designated.Name]
	res.Commit = main.bundle.Commit
	res.Embedded = main.embedded

	o.enter(StateDeriveVersion, "embedded", main.embedded, "requested", o.opts.RequestedVersion)
	current, next, err := version.DeriveStrings(o.opts.RequestedVersion, main.embedded)
	if err != nil {
		return nil, err
	}
	res.Current, res.Next = current, next
	o.logger.Info("Derived version", "current", current.String(), "next", next.String())

	o.enter(StatePatchHeaders, "version", current.String())
	for _, p := range o.opts.Platforms {
		b := builds[p.Name]
		patched, err := b.header.WithVersion(current.String())
		if err != nil {
			return nil, fmt.Errorf("failed to patch %s installer: %w", p.Name, err)
		}
		b.patched = patched.Bytes()
		o.logger.Info("Patched installer header", "platform", p.Name, "from", b.embedded, "to", current.String())
	}

	o.enter(StateComputeNotes)
	notes, err := o.computeNotes(ctx, current, main)
	if err != nil {
		return nil, err
	}
	res.Notes = notes.text
	res.Previous = notes.previousTag
	res.Manifest = notes.summary

	assets, err := o.plan(current, builds)
	if err != nil {
		return nil, err
	}
	res.Assets = assets

	if o.opts.DryRun {
		o.enter(StateDryRun, "assets", len(assets))
		res.Bump = BumpSkipped
		return res, nil
	}

	o.enter(StateCreateDraft, "tag", current.String())
	draft, err := o.createDraft(ctx, current, next, origin, main.bundle.Commit, notes)
	if err != nil {
		return nil, err
	}

	if draft.published {
		o.logger.Info("Skipping upload and publish of published release", "tag", current.String(), "url", draft.url)
		for i := range res.Assets {
			res.Assets[i].Skipped = true
		}
		res.ReleaseURL = draft.url
	} else {
		o.enter(StateUploadAssets, "release_id", draft.remoteID, "assets", len(assets))
		if err := o.upload(ctx, draft, current, res.Assets); err != nil {
			return nil, err
		}

		o.enter(StatePublish, "release_id", draft.remoteID)
		url, err := o.publish(ctx, draft)
		if err != nil {
			return nil, err
		}
		res.ReleaseURL = url
	}

	o.enter(StateBumpVersionFile, "next", next.String())
	outcome, commitURL, err := o.BumpVersionFile(ctx, next)
	if err != nil {
		return nil, err
	}
	res.Bump, res.CommitURL = outcome, commitURL
	if err := o.deps.Journal.MarkBumped(current.String(), string(outcome)); err != nil {
		return nil, fmt.Errorf("failed to journal bump: %w", err)
	}

	return res, nil
}

// fetch downloads every platform's build and validates its header before any
// of them is patched.
func (o *Orchestrator) fetch(ctx context.Context, origin artifact.Origin) (map[string]*build, error) {
	builds := make(map[string]*build, len(o.opts.Platforms))

	for _, p := range o.opts.Platforms {
		bundle, err := o.deps.Source.Fetch(ctx, origin, p)
		if err != nil {
			return nil, err
		}

		header, err := installer.Split(bundle.Installer)
		if err != nil {
			return nil, fmt.Errorf("%s installer %s: %w", p.Name, bundle.InstallerName, err)
		}
		embedded, err := header.Version()
		if err != nil {
			return nil, fmt.Errorf("%s installer %s: %w", p.Name, bundle.InstallerName, err)
		}
		if err := header.Validate(); err != nil {
			return nil, fmt.Errorf("%s installer %s: %w", p.Name, bundle.InstallerName, err)
		}

		o.logger.Info("Found installer",
			"platform", p.Name,
			"file", bundle.InstallerName,
			"embedded_version", embedded,
			"size", len(bundle.Installer))
		o.logger.Debug("Installer header", "platform", p.Name, "keys", header.Metadata().Keys())
		builds[p.Name] = &build{bundle: bundle, header: header, embedded: embedded}
	}

	if !builds[o.designated.Name].bundle.HasManifest {
		return nil, &artifact.SourceError{
			RunID:    origin.RunID,
			Artifact: o.designated.ManifestArtifact,
			Err:      artifact.ErrArtifactNotFound,
		}
	}
	return builds, nil
}
