package release

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/go-github/v57/github"

	"github.com/diracgrid/diracos-release/internal/artifact"
	gh "github.com/diracgrid/diracos-release/internal/github"
	"github.com/diracgrid/diracos-release/internal/platform"
	"github.com/diracgrid/diracos-release/internal/signing"
	"github.com/diracgrid/diracos-release/internal/storage"
	"github.com/diracgrid/diracos-release/internal/version"
)

// Media types of uploaded assets.
const (
	MediaTypeInstaller = "application/x-sh"
	MediaTypeManifest  = "application/x-yaml"
	MediaTypeText      = "text/plain"
	MediaTypeSignature = "application/pgp-signature"
)

// Asset is one release asset, planned or uploaded.
type Asset struct {
	Platform  string // empty for release-wide assets
	Name      string
	MediaType string
	Size      int
	URL       string // set once uploaded
	Skipped   bool   // already present from an earlier attempt

	data []byte
}

// assetUploaded is the state GitHub reports for a completed upload. Anything
// else (usually "starter") is an upload that was cut short.
const assetUploaded = "uploaded"

// draft is the release being filled.
type draft struct {
	entry    *storage.Release
	remoteID int64
	done     map[string]bool
	partial  map[string]int64 // asset name to ID of an incomplete upload

	published bool // an earlier attempt got past PUBLISH
	url       string
}

// plan lists the assets in upload order: platform-major, then versioned
// installer, stable installer, versioned manifest, stable manifest. Checksums
// and their signature come last.
func (o *Orchestrator) plan(current version.Version, builds map[string]*build) ([]Asset, error) {
	var (
		assets []Asset
		sums   signing.Checksums
	)
	product, tag := o.opts.Product, current.String()

	for _, p := range o.opts.Platforms {
		b := builds[p.Name]
		assets = append(assets,
			Asset{Platform: p.Name, Name: p.InstallerAsset(product, tag), MediaType: MediaTypeInstaller, data: b.patched},
			Asset{Platform: p.Name, Name: p.InstallerAsset(product, ""), MediaType: MediaTypeInstaller, data: b.patched},
		)
		sums.Add(p.InstallerAsset(product, tag), b.patched)

		if !b.bundle.HasManifest {
			o.logger.Warn("Skipping manifest upload for platform without manifest", "platform", p.Name)
			continue
		}
		manifest := []byte(b.bundle.Manifest)
		assets = append(assets,
			Asset{Platform: p.Name, Name: platform.ManifestAsset(product, tag), MediaType: MediaTypeManifest, data: manifest},
			Asset{Platform: p.Name, Name: platform.ManifestAsset(product, ""), MediaType: MediaTypeManifest, data: manifest},
		)
	}

	if o.deps.Signer != nil {
		data := sums.Bytes()
		signature, err := o.deps.Signer.Sign(data)
		if err != nil {
			return nil, fmt.Errorf("failed to sign checksums: %w", err)
		}
		o.logger.Info("Signed checksums", "fingerprint", o.deps.Signer.Fingerprint(), "files", sums.Len())
		assets = append(assets,
			Asset{Name: signing.ChecksumsName, MediaType: MediaTypeText, data: data},
			Asset{Name: signing.SignatureName, MediaType: MediaTypeSignature, data: []byte(signature)},
		)
	}

	for i := range assets {
		assets[i].Size = len(assets[i].data)
	}
	return assets, nil
}

// createDraft creates the draft release, or resumes the release an earlier
// attempt left behind. Assets fully uploaded to a resumed draft, or journaled
// for it, are marked done. A release the journal recorded as published is
// returned as is so the run can finish the version bump.
func (o *Orchestrator) createDraft(ctx context.Context, current, next version.Version, origin artifact.Origin, commit string, n *notes) (*draft, error) {
	tag := current.String()

	entry, err := o.deps.Journal.GetReleaseByTag(tag)
	if err != nil && !errors.Is(err, storage.ErrReleaseNotFound) {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if entry != nil && entry.State != storage.StateDraft && entry.State != storage.StatePublished {
		return nil, fmt.Errorf("%w: %s is %s in the journal", ErrAlreadyReleased, tag, entry.State)
	}

	existing := findRelease(n.remote, tag)
	if entry != nil && (existing == nil || existing.GetID() != entry.RemoteID) {
		return nil, fmt.Errorf("%w: %s (release id %d)", ErrJournalMismatch, tag, entry.RemoteID)
	}
	if existing != nil && !existing.GetDraft() {
		if entry == nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyReleased, tag)
		}
		return o.resumePublished(entry, existing)
	}
	if entry != nil && entry.State == storage.StatePublished {
		return nil, fmt.Errorf("%w: %s is published in the journal but a draft on GitHub", ErrJournalMismatch, tag)
	}

	d := &draft{entry: entry, done: make(map[string]bool), partial: make(map[string]int64)}

	if existing != nil {
		d.remoteID = existing.GetID()
		for _, a := range existing.Assets {
			if a.GetState() == assetUploaded {
				d.done[a.GetName()] = true
			} else {
				d.partial[a.GetName()] = a.GetID()
			}
		}
		o.logger.Info("Resuming draft release", "tag", tag, "release_id", d.remoteID, "assets", len(d.done), "incomplete", len(d.partial))
	} else {
		created, err := o.deps.Releases.CreateRelease(ctx, gh.ReleaseOptions{
			Tag:        tag,
			Name:       tag,
			Body:       n.text,
			Commitish:  commit,
			Draft:      true,
			Prerelease: current.IsPrerelease(),
		})
		if err != nil {
			return nil, &MutationError{Op: "create", Target: tag, Err: err}
		}
		d.remoteID = created.GetID()
		o.logger.Info("Created draft release", "tag", tag, "release_id", d.remoteID, "url", created.GetHTMLURL())
	}

	if d.entry == nil {
		d.entry = &storage.Release{
			Tag:         tag,
			Product:     o.opts.Product,
			Prerelease:  current.IsPrerelease(),
			NextVersion: next.String(),
			RunID:       origin.RunID,
			Commit:      commit,
			RemoteID:    d.remoteID,
			State:       storage.StateDraft,
		}
		if sv, err := current.Semver(); err == nil {
			d.entry.SemverMajor = int(sv.Major())
			d.entry.SemverMinor = int(sv.Minor())
			d.entry.SemverPatch = int(sv.Patch())
		}
		if err := o.deps.Journal.RecordDraft(d.entry); err != nil {
			return nil, fmt.Errorf("failed to journal draft: %w", err)
		}
	} else {
		names, err := o.deps.Journal.UploadedAssetNames(d.entry.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read journal: %w", err)
		}
		for name := range names {
			d.done[name] = true
		}
	}

	return d, nil
}

// resumePublished picks up a release this journal created that is already
// published on GitHub. A journal still at draft is caught up first.
func (o *Orchestrator) resumePublished(entry *storage.Release, existing *github.RepositoryRelease) (*draft, error) {
	url := existing.GetHTMLURL()
	if entry.State == storage.StateDraft {
		if err := o.deps.Journal.MarkPublished(entry.Tag, url); err != nil {
			return nil, fmt.Errorf("failed to journal publish: %w", err)
		}
	}
	o.logger.Info("Release already published", "tag", entry.Tag, "release_id", existing.GetID(), "url", url)
	return &draft{entry: entry, remoteID: existing.GetID(), published: true, url: url}, nil
}

// upload stages and uploads every asset not already done, in order. The first
// failure aborts and leaves the draft in place.
func (o *Orchestrator) upload(ctx context.Context, d *draft, current version.Version, assets []Asset) error {
	staging, err := storage.NewTempDir(o.opts.Product, current.String())
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := staging.Remove(); err != nil {
			o.logger.Warn("Failed to remove staging directory", "path", staging.Root(), "error", err)
		}
	}()

	for i := range assets {
		a := &assets[i]
		if d.done[a.Name] {
			a.Skipped = true
			o.logger.Info("Asset already uploaded", "asset", a.Name)
			continue
		}

		if id, ok := d.partial[a.Name]; ok {
			if err := o.deps.Releases.DeleteAsset(ctx, id); err != nil {
				return &MutationError{Op: "delete", Target: a.Name, Err: err}
			}
			o.logger.Info("Removed incomplete asset", "asset", a.Name, "asset_id", id)
		}

		path, err := staging.Stage(a.Name, a.data)
		if err != nil {
			return fmt.Errorf("failed to stage %s: %w", a.Name, err)
		}

		uploaded, err := o.deps.Releases.UploadAsset(ctx, d.remoteID, path, a.Name, a.MediaType)
		if err != nil {
			return &MutationError{Op: "upload", Target: a.Name, Err: err}
		}
		a.URL = uploaded.GetBrowserDownloadURL()
		o.logger.Info("Uploaded asset", "platform", a.Platform, "asset", a.Name, "size", a.Size)

		if err := o.deps.Journal.RecordAsset(d.entry.ID, &storage.UploadedAsset{
			Name:      a.Name,
			MediaType: a.MediaType,
			Size:      int64(a.Size),
			SHA256:    signing.Sum(a.data),
			URL:       a.URL,
		}); err != nil {
			return fmt.Errorf("failed to journal asset %s: %w", a.Name, err)
		}
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, d *draft) (string, error) {
	published, err := o.deps.Releases.PublishRelease(ctx, d.remoteID)
	if err != nil {
		return "", &MutationError{Op: "publish", Target: d.entry.Tag, Err: err}
	}
	url := published.GetHTMLURL()
	o.logger.Info("Published release", "tag", d.entry.Tag, "url", url)

	if err := o.deps.Journal.MarkPublished(d.entry.Tag, url); err != nil {
		return "", fmt.Errorf("failed to journal publish: %w", err)
	}
	return url, nil
}

func findRelease(releases []*github.RepositoryRelease, tag string) *github.RepositoryRelease {
	for _, r := range releases {
		if r.GetTagName() == tag {
			return r
		}
	}
	return nil
}
