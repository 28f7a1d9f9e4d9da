package release

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/diracgrid/diracos-release/internal/config"
	"github.com/diracgrid/diracos-release/internal/manifest"
	"github.com/diracgrid/diracos-release/internal/platform"
	"github.com/diracgrid/diracos-release/internal/version"
)

// changelogPreamble is the number of leading changelog lines discarded.
const changelogPreamble = 2

// notes is the composed release body plus what went into it.
type notes struct {
	text        string
	previousTag string
	summary     *manifest.Summary
	remote      []*github.RepositoryRelease
}

func (o *Orchestrator) computeNotes(ctx context.Context, current version.Version, main *build) (*notes, error) {
	changelog, err := o.deps.Changelog.Changelog(ctx, current.String(), main.bundle.Commit)
	if err != nil {
		return nil, fmt.Errorf("failed to get changelog: %w", err)
	}

	releases, err := o.deps.Releases.ListReleases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}

	n := &notes{remote: releases}
	doc := notesDocument{
		Product:   o.opts.Product,
		Version:   current.String(),
		Changelog: dropPreamble(changelog),
		Manifest:  main.bundle.Manifest,
	}

	summary, err := manifest.Summarize(main.bundle.Manifest)
	if err != nil {
		o.logger.Warn("Could not summarize manifest", "error", err)
	} else {
		n.summary = &summary
		doc.Summary = summary.String()
	}

	prev := previousRelease(releases, current, o.opts.Ignore, o.logger)
	if prev == nil {
		o.logger.Warn("No previous release found", "version", current.String())
		doc.Missing = "No earlier release to compare the package list against."
		n.text = doc.String()
		return n, nil
	}
	n.previousTag = prev.GetTagName()
	doc.Previous = n.previousTag

	previousManifest, ok, err := o.previousManifest(ctx, prev)
	if err != nil {
		return nil, err
	}
	if !ok {
		o.logger.Warn("Previous release has no manifest asset", "tag", n.previousTag)
		doc.Missing = fmt.Sprintf("Release %s has no package list to compare against.", n.previousTag)
		n.text = doc.String()
		return n, nil
	}

	doc.Diff, doc.DiffIgnoringBuild, err = manifest.Diff(previousManifest, main.bundle.Manifest)
	if err != nil {
		return nil, err
	}
	o.logger.Info("Compared manifest",
		"previous", n.previousTag,
		"versions_changed", doc.DiffIgnoringBuild != "",
		"builds_changed", doc.Diff != "")

	n.text = doc.String()
	return n, nil
}

// previousRelease returns the published release with the greatest version
// strictly below current. Drafts, ignored tags and tags that are not versions
// are skipped.
func previousRelease(releases []*github.RepositoryRelease, current version.Version, ignore config.IgnoreList, logger *slog.Logger) *github.RepositoryRelease {
	var (
		best    *github.RepositoryRelease
		bestVer version.Version
	)
	for _, r := range releases {
		tag := r.GetTagName()
		if r.GetDraft() || ignore.IsTagIgnored(tag) {
			continue
		}
		v, err := version.Parse(tag)
		if err != nil {
			logger.Warn("Skipping release with unparseable tag", "tag", tag, "error", err)
			continue
		}
		if !version.Less(v, current) {
			continue
		}
		if best == nil || version.Less(bestVer, v) {
			best, bestVer = r, v
		}
	}
	return best
}

// previousManifest downloads the manifest attached to a release, preferring
// the versioned asset name over the stable one.
func (o *Orchestrator) previousManifest(ctx context.Context, r *github.RepositoryRelease) (string, bool, error) {
	names := []string{
		platform.ManifestAsset(o.opts.Product, r.GetTagName()),
		platform.ManifestAsset(o.opts.Product, ""),
	}
	for _, name := range names {
		for _, a := range r.Assets {
			if a.GetName() != name {
				continue
			}
			data, err := o.deps.Releases.DownloadAsset(ctx, a.GetID())
			if err != nil {
				return "", false, fmt.Errorf("failed to download %s from %s: %w", name, r.GetTagName(), err)
			}
			return string(data), true, nil
		}
	}
	return "", false, nil
}

// dropPreamble discards the first changelogPreamble lines and returns the
// rest unchanged.
func dropPreamble(text string) string {
	lines := strings.SplitN(text, "\n", changelogPreamble+1)
	if len(lines) <= changelogPreamble {
		return ""
	}
	return lines[changelogPreamble]
}

type notesDocument struct {
	Product           string
	Version           string
	Changelog         string
	Summary           string
	Manifest          string
	Previous          string
	Diff              string
	DiffIgnoringBuild string
	Missing           string // replaces the diff sections
}

func (d notesDocument) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s\n\n", d.Product, d.Version)

	b.WriteString("## Changes\n\n")
	if strings.TrimSpace(d.Changelog) == "" {
		b.WriteString("* No changes recorded\n\n")
	} else {
		b.WriteString(strings.TrimRight(d.Changelog, "\n") + "\n\n")
	}

	b.WriteString("## Package list\n\n")
	if d.Summary != "" {
		b.WriteString(d.Summary + "\n\n")
	}
	writeFence(&b, "yaml", d.Manifest)

	if d.Missing != "" {
		b.WriteString("## Package changes\n\n" + d.Missing + "\n")
		return b.String()
	}

	fmt.Fprintf(&b, "## Package changes since %s\n\n", d.Previous)
	if d.DiffIgnoringBuild == "" {
		b.WriteString("No package versions changed.\n\n")
	} else {
		writeFence(&b, "diff", d.DiffIgnoringBuild)
	}

	fmt.Fprintf(&b, "## Full diff since %s\n\n", d.Previous)
	if d.Diff == "" {
		b.WriteString("The package list is identical.\n")
	} else {
		writeFence(&b, "diff", d.Diff)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func writeFence(b *strings.Builder, lang, body string) {
	b.WriteString("```" + lang + "\n")
	b.WriteString(strings.TrimRight(body, "\n"))
	b.WriteString("\n```\n\n")
}
