package platform

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Platform represents one installer variant built by CI
type Platform struct {
	Name              string `yaml:"name"`                        // conda subdir, e.g. linux-64
	OS                string `yaml:"os"`                          // linux
	Arch              string `yaml:"arch"`                        // x86_64, aarch64, ppc64le
	InstallerArtifact string `yaml:"installer_artifact"`          // CI artifact holding the installer
	ManifestArtifact  string `yaml:"manifest_artifact,omitempty"` // CI artifact holding environment.yaml
	Designated        bool   `yaml:"designated,omitempty"`        // carries the manifest and commit
}

var (
	ErrNoDesignatedPlatform       = errors.New("no designated platform configured")
	ErrMultipleDesignatedPlatform = errors.New("more than one designated platform configured")
	ErrDuplicatePlatform          = errors.New("duplicate platform name")
)

// Defaults returns the platform set released for DIRACOS, in upload order
func Defaults() []Platform {
	return []Platform{
		{Name: "linux-64", OS: "linux", Arch: "x86_64", InstallerArtifact: "installer-linux-64", ManifestArtifact: "environment-yaml", Designated: true},
		{Name: "linux-aarch64", OS: "linux", Arch: "aarch64", InstallerArtifact: "installer-linux-aarch64"},
		{Name: "linux-ppc64le", OS: "linux", Arch: "ppc64le", InstallerArtifact: "installer-linux-ppc64le"},
	}
}

// Classifier returns the asset name suffix, e.g. "Linux-x86_64"
func (p Platform) Classifier() string {
	return fmt.Sprintf("%s-%s", cases.Title(language.English).String(p.OS), p.Arch)
}

// InstallerAsset returns the release asset name of the installer. An empty
// version gives the stable name that every release overwrites.
func (p Platform) InstallerAsset(product, version string) string {
	if version == "" {
		return fmt.Sprintf("%s-%s.sh", product, p.Classifier())
	}
	return fmt.Sprintf("%s-%s-%s.sh", product, version, p.Classifier())
}

// ManifestAsset returns the release asset name of the environment manifest.
func ManifestAsset(product, version string) string {
	if version == "" {
		return product + "-environment.yaml"
	}
	return fmt.Sprintf("%s-%s-environment.yaml", product, version)
}

// Designated returns the platform carrying the authoritative manifest
func Designated(platforms []Platform) (Platform, error) {
	var found []Platform
	for _, p := range platforms {
		if p.Designated {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 0:
		return Platform{}, ErrNoDesignatedPlatform
	case 1:
		return found[0], nil
	default:
		return Platform{}, ErrMultipleDesignatedPlatform
	}
}

// Validate checks a configured platform list
func Validate(platforms []Platform) error {
	if len(platforms) == 0 {
		return errors.New("at least one platform is required")
	}

	seen := make(map[string]bool, len(platforms))
	for i, p := range platforms {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("platform[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicatePlatform, p.Name)
		}
		seen[p.Name] = true

		if p.OS == "" || p.Arch == "" {
			return fmt.Errorf("platform %s: os and arch are required", p.Name)
		}
		if p.InstallerArtifact == "" {
			return fmt.Errorf("platform %s: installer_artifact is required", p.Name)
		}
		if p.Designated && p.ManifestArtifact == "" {
			return fmt.Errorf("platform %s: designated platform requires manifest_artifact", p.Name)
		}
	}

	_, err := Designated(platforms)
	return err
}
