// Package storage provides database models and operations for release tracking.
package storage

import "time"

// Release states recorded in the journal.
const (
	StateDraft     = "draft"
	StatePublished = "published"
	StateBumped    = "bumped"
)

// Release is the journal entry for one release attempt, keyed by tag.
type Release struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Tag         string          `gorm:"not null;uniqueIndex" json:"tag"`
	Product     string          `gorm:"not null" json:"product"`
	SemverMajor int             `gorm:"not null;index:idx_release_semver" json:"semver_major"`
	SemverMinor int             `gorm:"not null;index:idx_release_semver" json:"semver_minor"`
	SemverPatch int             `gorm:"not null;index:idx_release_semver" json:"semver_patch"`
	Prerelease  bool            `gorm:"not null;default:false" json:"prerelease"`
	NextVersion string          `json:"next_version"`
	RunID       int64           `json:"run_id"`
	Commit      string          `json:"commit"`
	RemoteID    int64           `gorm:"not null;index" json:"remote_id"` // GitHub release id
	HTMLURL     string          `json:"html_url"`
	State       string          `gorm:"not null;index" json:"state"`
	BumpOutcome string          `json:"bump_outcome,omitempty"`
	Assets      []UploadedAsset `gorm:"foreignKey:ReleaseID" json:"assets"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName overrides the table name for GORM.
func (Release) TableName() string {
	return "releases"
}

// UploadedAsset records one asset attached to a release.
type UploadedAsset struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReleaseID  uint      `gorm:"not null;uniqueIndex:idx_release_asset" json:"release_id"`
	Name       string    `gorm:"not null;uniqueIndex:idx_release_asset" json:"name"`
	MediaType  string    `json:"media_type"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256"`
	URL        string    `json:"url"`
	UploadedAt time.Time `gorm:"not null" json:"uploaded_at"`
}

// TableName overrides the table name for GORM.
func (UploadedAsset) TableName() string {
	return "uploaded_assets"
}
