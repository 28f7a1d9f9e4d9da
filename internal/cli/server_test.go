package cli

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-github/v57/github"

	gh "github.com/diracgrid/diracos-release/internal/github"
	"github.com/diracgrid/diracos-release/internal/platform"
)

const testManifest = `name: diracos
channels:
  - conda-forge
dependencies:
  - python=3.11.4=hab00c5b_0_cpython
  - gfal2=2.21.5=h1234_0
`

const previousManifest = `name: diracos
channels:
  - conda-forge
dependencies:
  - python=3.11.4=hab00c5b_0_cpython
  - gfal2=2.21.4=h1234_0
`

func testInstaller(platformName, ver string) string {
	return fmt.Sprintf("#!/bin/sh\n# NAME: DIRACOS\n# VER: %s\n# PLAT: %s\necho \"DIRACOS %s installer\"\n@@END_HEADER@@\npayload", ver, platformName, ver)
}

// uploaded is one asset received by the fake server.
type uploaded struct {
	Name        string
	ContentType string
	Body        string
}

// fakeGitHub serves the slice of the GitHub REST API make-release uses for
// repository o/r, with one successful run of the build workflow.
type fakeGitHub struct {
	t      *testing.T
	server *httptest.Server

	embedded    string
	versionFile string
	previous    []*github.RepositoryRelease

	mu        sync.Mutex
	calls     []string
	created   []github.RepositoryRelease
	uploads   []uploaded
	published bool
	committed string
	notesReq  github.GenerateNotesOptions
	archives  map[int64][]byte
}

func newFakeGitHub(t *testing.T, embedded string) *fakeGitHub {
	f := &fakeGitHub{
		t:           t,
		embedded:    embedded,
		versionFile: "name: DIRACOS\nversion: " + embedded + "\n",
		previous: []*github.RepositoryRelease{{
			ID:      github.Int64(10),
			TagName: github.String("1.2"),
			Draft:   github.Bool(false),
			Assets: []*github.ReleaseAsset{
				{ID: github.Int64(501), Name: github.String("DIRACOS-1.2-environment.yaml")},
			},
		}},
		archives: make(map[int64][]byte),
	}

	id := int64(900)
	for _, p := range platform.Defaults() {
		id++
		f.archives[id] = zipOf(t, p.InstallerAsset("DIRACOS", embedded), testInstaller(p.Name, embedded))
		if p.Designated {
			f.archives[800] = zipOf(t, "environment.yaml", testManifest)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/o/r/actions/workflows/{file}/runs", f.listRuns)
	mux.HandleFunc("GET /repos/o/r/actions/runs/{id}", f.getRun)
	mux.HandleFunc("GET /repos/o/r/actions/runs/{id}/artifacts", f.listArtifacts)
	mux.HandleFunc("GET /repos/o/r/actions/artifacts/{id}/zip", f.artifactRedirect)
	mux.HandleFunc("GET /blob/{id}", f.blob)
	mux.HandleFunc("GET /repos/o/r/releases/latest", f.latestRelease)
	mux.HandleFunc("POST /repos/o/r/releases/generate-notes", f.generateNotes)
	mux.HandleFunc("GET /repos/o/r/releases", f.listReleases)
	mux.HandleFunc("POST /repos/o/r/releases", f.createRelease)
	mux.HandleFunc("POST /repos/o/r/releases/{id}/assets", f.uploadAsset)
	mux.HandleFunc("GET /repos/o/r/releases/assets/{id}", f.downloadAsset)
	mux.HandleFunc("PATCH /repos/o/r/releases/{id}", f.editRelease)
	mux.HandleFunc("GET /repos/o/r/contents/{path}", f.getContents)
	mux.HandleFunc("PUT /repos/o/r/contents/{path}", f.updateContents)

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.server.Close)
	return f
}

// factory returns a ClientFactory pointing at the fake server.
func (f *fakeGitHub) factory() ClientFactory {
	return func(token, repository string, timeout time.Duration) (GitHubAPI, error) {
		if token != "secret" {
			f.t.Errorf("token = %q, want %q", token, "secret")
		}
		if timeout <= 0 {
			f.t.Errorf("timeout = %v, want a positive timeout", timeout)
		}
		return gh.NewTestClient(f.server.Client(), f.server.URL, repository)
	}
}

// mutations returns the non-GET calls received.
func (f *fakeGitHub) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if !strings.HasPrefix(c, "GET ") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGitHub) called(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func (f *fakeGitHub) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		f.t.Errorf("failed to encode response: %v", err)
	}
}

func (f *fakeGitHub) run() *github.WorkflowRun {
	return &github.WorkflowRun{
		ID:         github.Int64(4242),
		HeadSHA:    github.String("abc123def"),
		Status:     github.String("completed"),
		Conclusion: github.String("success"),
	}
}

func (f *fakeGitHub) listRuns(w http.ResponseWriter, r *http.Request) {
	if got := r.PathValue("file"); got != "build-and-test.yml" {
		f.t.Errorf("workflow = %q", got)
	}
	if got := r.URL.Query().Get("branch"); got != "main" {
		f.t.Errorf("branch = %q", got)
	}
	f.writeJSON(w, http.StatusOK, github.WorkflowRuns{
		TotalCount:   github.Int(1),
		WorkflowRuns: []*github.WorkflowRun{f.run()},
	})
}

func (f *fakeGitHub) getRun(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != "4242" {
		f.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	f.writeJSON(w, http.StatusOK, f.run())
}

func (f *fakeGitHub) listArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts := []*github.Artifact{
		{ID: github.Int64(800), Name: github.String("environment-yaml")},
	}
	id := int64(900)
	for _, p := range platform.Defaults() {
		id++
		artifacts = append(artifacts, &github.Artifact{ID: github.Int64(id), Name: github.String(p.InstallerArtifact)})
	}
	f.writeJSON(w, http.StatusOK, github.ArtifactList{
		TotalCount: github.Int64(int64(len(artifacts))),
		Artifacts:  artifacts,
	})
}

func (f *fakeGitHub) artifactRedirect(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Location", f.server.URL+"/blob/"+r.PathValue("id"))
	w.WriteHeader(http.StatusFound)
}

func (f *fakeGitHub) blob(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)
	data, ok := f.archives[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write(data)
}

func (f *fakeGitHub) latestRelease(w http.ResponseWriter, r *http.Request) {
	f.writeJSON(w, http.StatusOK, f.previous[0])
}

func (f *fakeGitHub) generateNotes(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	if err := json.NewDecoder(r.Body).Decode(&f.notesReq); err != nil {
		f.t.Errorf("failed to decode notes request: %v", err)
	}
	f.mu.Unlock()
	f.writeJSON(w, http.StatusOK, github.RepositoryReleaseNotes{
		Name: "2.0",
		Body: "## What's Changed\n* Add fts3 by @someone in #12",
	})
}

func (f *fakeGitHub) listReleases(w http.ResponseWriter, r *http.Request) {
	f.writeJSON(w, http.StatusOK, f.previous)
}

func (f *fakeGitHub) createRelease(w http.ResponseWriter, r *http.Request) {
	var req github.RepositoryRelease
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("failed to decode release: %v", err)
	}
	f.mu.Lock()
	f.created = append(f.created, req)
	f.mu.Unlock()

	req.ID = github.Int64(77)
	req.HTMLURL = github.String("https://github.com/o/r/releases/tag/untagged-77")
	f.writeJSON(w, http.StatusCreated, req)
}

func (f *fakeGitHub) uploadAsset(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != "77" {
		f.t.Errorf("upload to release %s", r.PathValue("id"))
	}
	body, _ := io.ReadAll(r.Body)
	name := r.URL.Query().Get("name")

	f.mu.Lock()
	f.uploads = append(f.uploads, uploaded{Name: name, ContentType: r.Header.Get("Content-Type"), Body: string(body)})
	id := int64(1000 + len(f.uploads))
	f.mu.Unlock()

	f.writeJSON(w, http.StatusCreated, github.ReleaseAsset{
		ID:                 github.Int64(id),
		Name:               github.String(name),
		BrowserDownloadURL: github.String("https://github.com/o/r/releases/download/2.0/" + name),
	})
}

func (f *fakeGitHub) downloadAsset(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("id") != "501" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = io.WriteString(w, previousManifest)
}

func (f *fakeGitHub) editRelease(w http.ResponseWriter, r *http.Request) {
	var req github.RepositoryRelease
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("failed to decode edit: %v", err)
	}
	if req.GetDraft() {
		f.t.Errorf("edit kept draft=true")
	}
	f.mu.Lock()
	f.published = true
	f.mu.Unlock()
	f.writeJSON(w, http.StatusOK, github.RepositoryRelease{
		ID:      github.Int64(77),
		TagName: github.String("2.0"),
		Draft:   github.Bool(false),
		HTMLURL: github.String("https://github.com/o/r/releases/tag/2.0"),
	})
}

func (f *fakeGitHub) getContents(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("path") != "construct.yaml" || r.URL.Query().Get("ref") != "main" {
		f.writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	f.writeJSON(w, http.StatusOK, map[string]any{
		"type":     "file",
		"encoding": "base64",
		"name":     "construct.yaml",
		"path":     "construct.yaml",
		"sha":      "blob-sha",
		"content":  base64.StdEncoding.EncodeToString([]byte(f.versionFile)),
	})
}

func (f *fakeGitHub) updateContents(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Content []byte `json:"content"`
		SHA     string `json:"sha"`
		Branch  string `json:"branch"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.t.Errorf("failed to decode update: %v", err)
	}
	if req.SHA != "blob-sha" || req.Branch != "main" {
		f.t.Errorf("update sha=%q branch=%q", req.SHA, req.Branch)
	}
	f.mu.Lock()
	f.committed = string(req.Content)
	f.mu.Unlock()
	f.writeJSON(w, http.StatusOK, map[string]any{
		"commit": map[string]any{"sha": "c0ffee", "html_url": "https://github.com/o/r/commit/c0ffee"},
	})
}

func zipOf(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	fw, err := w.Create(name)
	if err != nil {
		t.Fatalf("zip create: %v", err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("zip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}
