// Package storage provides temporary directory management for release operations.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TempDir manages a temporary directory holding release assets before upload.
type TempDir struct {
	root   string
	assets string
}

// NewTempDir creates a new temporary directory structure for release operations.
// The directory structure is:
//
//	{base}/{product}-{version}-{timestamp}-*/
//	  assets/    - Patched installers, manifests and checksum files
//
// The caller is responsible for cleaning up by calling Remove().
func NewTempDir(product, version string) (*TempDir, error) {
	if product == "" {
		return nil, fmt.Errorf("product cannot be empty")
	}
	if version == "" {
		return nil, fmt.Errorf("version cannot be empty")
	}

	timestamp := time.Now().Format("20060102T150405")
	root, err := os.MkdirTemp("", fmt.Sprintf("%s-%s-%s-", strings.ToLower(product), version, timestamp))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	assets := filepath.Join(root, "assets")
	if err := os.MkdirAll(assets, 0755); err != nil {
		// Ignore cleanup error as we're already returning an error
		_ = os.RemoveAll(root)
		return nil, fmt.Errorf("failed to create assets directory: %w", err)
	}

	return &TempDir{root: root, assets: assets}, nil
}

// Root returns the root temporary directory path.
// Returns empty string if TempDir was not initialized.
func (t *TempDir) Root() string {
	return t.root
}

// Stage writes data under the asset name and returns its path. Staging the
// same name again overwrites the earlier file.
func (t *TempDir) Stage(name string, data []byte) (string, error) {
	if t.root == "" {
		return "", fmt.Errorf("temp directory not initialized: use NewTempDir to create instances")
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid asset name %q", name)
	}

	path := filepath.Join(t.assets, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to stage %s: %w", name, err)
	}
	return path, nil
}

// Remove deletes the temporary directory and all its contents.
// It returns an error if deletion fails, but does not fail if the directory
// doesn't exist (idempotent).
func (t *TempDir) Remove() error {
	if t.root == "" {
		return nil
	}

	if _, err := os.Stat(t.root); os.IsNotExist(err) {
		return nil
	}

	if err := os.RemoveAll(t.root); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", t.root, err)
	}

	return nil
}
