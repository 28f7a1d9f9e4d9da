package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/diracgrid/diracos-release/internal/release"
	"github.com/diracgrid/diracos-release/internal/storage"
)

var (
	colorBorder = lipgloss.Color("240")
	colorHeader = lipgloss.Color("12")

	styleTitle  = lipgloss.NewStyle().Bold(true)
	styleLabel  = lipgloss.NewStyle().Faint(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(colorHeader)
	styleCell   = lipgloss.NewStyle().PaddingRight(1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		})
}

// renderPlan describes what a run did, or would do when dry.
func renderPlan(res *release.Result) string {
	var b strings.Builder

	title := fmt.Sprintf("Release %s", res.Current)
	if res.DryRun {
		title = fmt.Sprintf("Dry run for release %s", res.Current)
	}
	b.WriteString(styleTitle.Render(title) + "\n")

	field := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(styleLabel.Render(fmt.Sprintf("%-18s", label)) + value + "\n")
	}
	field("Source", res.Origin.String())
	field("Commit", res.Commit)
	field("Built as", res.Embedded)
	field("Next version", res.Next.String())
	field("Previous release", res.Previous)
	if res.Manifest != nil {
		field("Package list", res.Manifest.String())
	}
	field("Release URL", res.ReleaseURL)
	field("Version file", bumpText(res))

	t := newTable("PLATFORM", "ASSET", "TYPE", "SIZE", "STATUS")
	for _, a := range res.Assets {
		t.Row(a.Platform, a.Name, a.MediaType, byteSize(a.Size), assetStatus(res, a))
	}
	b.WriteString(t.String())
	return b.String()
}

func assetStatus(res *release.Result, a release.Asset) string {
	switch {
	case res.DryRun:
		return "planned"
	case a.Skipped:
		return "already uploaded"
	default:
		return "uploaded"
	}
}

func bumpText(res *release.Result) string {
	switch res.Bump {
	case release.BumpUpdated:
		return fmt.Sprintf("bumped to %s (%s)", res.Next, res.CommitURL)
	case release.BumpStale:
		return fmt.Sprintf("already at or past %s, left unchanged", res.Next)
	default:
		return "not changed"
	}
}

func byteSize(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := int64(n) / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// renderHistory tabulates journaled releases.
func renderHistory(releases []storage.Release) string {
	if len(releases) == 0 {
		return "No releases recorded."
	}
	t := newTable("TAG", "STATE", "RUN", "COMMIT", "ASSETS", "NEXT", "BUMP", "CREATED")
	for _, r := range releases {
		commit := r.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		t.Row(
			r.Tag,
			r.State,
			fmt.Sprintf("%d", r.RunID),
			commit,
			fmt.Sprintf("%d", len(r.Assets)),
			r.NextVersion,
			r.BumpOutcome,
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	return t.String()
}
