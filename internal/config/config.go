// Package config provides configuration management for the DIRACOS release tool.
// It handles the YAML release configuration: target repository, CI workflow,
// platform variants, storage and signing.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/diracgrid/diracos-release/internal/platform"
	"gopkg.in/yaml.v3"
)

// Sentinel errors for configuration validation
var (
	ErrVersionRequired     = errors.New("version is required")
	ErrOwnerRequired       = errors.New("release.owner is required")
	ErrRepositoryRequired  = errors.New("release.repository is required")
	ErrProductRequired     = errors.New("release.product is required")
	ErrWorkflowRequired    = errors.New("release.workflow is required")
	ErrMainBranchRequired  = errors.New("release.main_branch is required")
	ErrVersionFileRequired = errors.New("release.version_file is required")
	ErrManifestRequired    = errors.New("release.manifest_file is required")
)

const defaultHTTPTimeout = 60 * time.Second

// Config represents the top-level configuration structure.
type Config struct {
	Version   string              `yaml:"version"`
	Metadata  Metadata            `yaml:"metadata"`
	Release   ReleaseConfig       `yaml:"release"`
	Config    GlobalConfig        `yaml:"config"`
	Platforms []platform.Platform `yaml:"platforms"`
}

// Metadata represents metadata about the configuration.
type Metadata struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ReleaseConfig describes what is released and where.
type ReleaseConfig struct {
	Owner         string `yaml:"owner"`
	Repository    string `yaml:"repository"`
	Product       string `yaml:"product"`        // asset name prefix, e.g. DIRACOS
	Workflow      string `yaml:"workflow"`       // CI workflow file name
	MainBranch    string `yaml:"main_branch"`    // branch searched for runs and bumped after release
	VersionFile   string `yaml:"version_file"`   // file holding "version: <v>" on the main branch
	InstallerGlob string `yaml:"installer_glob"` // installer pattern inside a local platform directory
	ManifestFile  string `yaml:"manifest_file"`  // manifest name inside archives and local directories
}

// StorageConfig represents storage configuration for the release journal.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// SigningConfig represents the optional checksum signing key.
type SigningConfig struct {
	KeyPath string `yaml:"key_path"`
}

// GlobalConfig represents global configuration settings.
type GlobalConfig struct {
	HTTPTimeout string        `yaml:"http_timeout"`
	Storage     StorageConfig `yaml:"storage"`
	Signing     SigningConfig `yaml:"signing"`
	IgnoreFile  string        `yaml:"ignore_file"` // Path to a JSON or YAML list of release tags never used as a diff base
}

// GetHTTPTimeout parses and returns the HTTP client timeout
func (g *GlobalConfig) GetHTTPTimeout() time.Duration {
	if g.HTTPTimeout == "" {
		return defaultHTTPTimeout
	}
	timeout, err := time.ParseDuration(g.HTTPTimeout)
	if err != nil || timeout <= 0 {
		return defaultHTTPTimeout
	}
	return timeout
}

// LoadConfig loads a YAML configuration file on top of DefaultConfig.
// Keys absent from the file keep their default values; a platforms list
// replaces the default list as a whole.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Load returns DefaultConfig when filePath is empty and LoadConfig otherwise.
func Load(filePath string) (*Config, error) {
	if filePath == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(filePath)
}

// Validate validates the configuration structure and required fields.
func (c *Config) Validate() error {
	if c.Version == "" {
		return ErrVersionRequired
	}
	if err := c.Release.Validate(); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	if err := platform.Validate(c.Platforms); err != nil {
		return fmt.Errorf("platforms: %w", err)
	}
	return nil
}

// Validate validates the release section.
func (r *ReleaseConfig) Validate() error {
	switch {
	case r.Owner == "":
		return ErrOwnerRequired
	case r.Repository == "":
		return ErrRepositoryRequired
	case r.Product == "":
		return ErrProductRequired
	case r.Workflow == "":
		return ErrWorkflowRequired
	case r.MainBranch == "":
		return ErrMainBranchRequired
	case r.VersionFile == "":
		return ErrVersionFileRequired
	case r.ManifestFile == "":
		return ErrManifestRequired
	}
	return nil
}

// DefaultConfig returns the configuration used to release DIRACOS2.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Metadata: Metadata{
			Name:        "diracos",
			Description: "DIRACOS installer releases",
		},
		Release: ReleaseConfig{
			Owner:         "DIRACGrid",
			Repository:    "DIRACOS2",
			Product:       "DIRACOS",
			Workflow:      "build-and-test.yml",
			MainBranch:    "main",
			VersionFile:   "construct.yaml",
			InstallerGlob: "DIRACOS-*.sh",
			ManifestFile:  "environment.yaml",
		},
		Config: GlobalConfig{
			HTTPTimeout: defaultHTTPTimeout.String(),
		},
		Platforms: platform.Defaults(),
	}
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}
