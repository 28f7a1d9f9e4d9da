package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-github/v57/github"
)

// mockActions implements ActionsClient for testing.
type mockActions struct {
	LatestWorkflowRunFunc func(ctx context.Context, workflowFile, branch string) (*github.WorkflowRun, error)
	GetWorkflowRunFunc    func(ctx context.Context, runID int64) (*github.WorkflowRun, error)
	ListRunArtifactsFunc  func(ctx context.Context, runID int64) ([]*github.Artifact, error)
	DownloadArtifactFunc  func(ctx context.Context, artifactID int64) ([]byte, error)

	downloads []int64
}

func (m *mockActions) LatestWorkflowRun(ctx context.Context, workflowFile, branch string) (*github.WorkflowRun, error) {
	if m.LatestWorkflowRunFunc != nil {
		return m.LatestWorkflowRunFunc(ctx, workflowFile, branch)
	}
	return nil, errors.New("LatestWorkflowRun not implemented")
}

func (m *mockActions) GetWorkflowRun(ctx context.Context, runID int64) (*github.WorkflowRun, error) {
	if m.GetWorkflowRunFunc != nil {
		return m.GetWorkflowRunFunc(ctx, runID)
	}
	return nil, errors.New("GetWorkflowRun not implemented")
}

func (m *mockActions) ListRunArtifacts(ctx context.Context, runID int64) ([]*github.Artifact, error) {
	if m.ListRunArtifactsFunc != nil {
		return m.ListRunArtifactsFunc(ctx, runID)
	}
	return nil, errors.New("ListRunArtifacts not implemented")
}

func (m *mockActions) DownloadArtifact(ctx context.Context, artifactID int64) ([]byte, error) {
	m.downloads = append(m.downloads, artifactID)
	if m.DownloadArtifactFunc != nil {
		return m.DownloadArtifactFunc(ctx, artifactID)
	}
	return nil, errors.New("DownloadArtifact not implemented")
}

// zipOf builds an in-memory archive; a name ending in "/" adds a directory.
func zipOf(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip Create(%q) error: %v", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip Write(%q) error: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip Close() error: %v", err)
	}
	return buf.Bytes()
}

func successfulRun(id int64, sha string) *github.WorkflowRun {
	return &github.WorkflowRun{
		ID:         github.Int64(id),
		HeadSHA:    github.String(sha),
		Conclusion: github.String("success"),
	}
}

func artifactList(names map[string]int64) []*github.Artifact {
	var list []*github.Artifact
	for name, id := range names {
		list = append(list, &github.Artifact{ID: github.Int64(id), Name: github.String(name)})
	}
	return list
}
