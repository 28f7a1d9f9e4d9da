// Package storage provides database operations for release tracking.
package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordDraft stores a newly created draft release.
// The Tag must not already be journaled.
func (d *DB) RecordDraft(release *Release) error {
	if release == nil {
		return ErrNilRelease
	}
	if release.Tag == "" {
		return ErrEmptyTag
	}
	if release.State == "" {
		release.State = StateDraft
	}
	if release.CreatedAt.IsZero() {
		release.CreatedAt = time.Now()
	}

	if err := d.db.Create(release).Error; err != nil {
		return fmt.Errorf("failed to record draft %s: %w", release.Tag, err)
	}
	return nil
}

// GetReleaseByTag retrieves a release by its unique tag, with its assets.
// Returns ErrReleaseNotFound if no matching release exists.
func (d *DB) GetReleaseByTag(tag string) (*Release, error) {
	if tag == "" {
		return nil, ErrEmptyTag
	}

	var release Release
	err := d.db.Preload("Assets", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("tag = ?", tag).First(&release).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReleaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get release by tag: %w", err)
	}
	return &release, nil
}

// RecordAsset records an uploaded asset. Recording the same name twice for a
// release keeps the first row.
func (d *DB) RecordAsset(releaseID uint, asset *UploadedAsset) error {
	if asset == nil {
		return ErrNilAsset
	}
	if releaseID == 0 {
		return fmt.Errorf("release ID cannot be zero")
	}
	asset.ReleaseID = releaseID
	if asset.UploadedAt.IsZero() {
		asset.UploadedAt = time.Now()
	}

	if err := d.db.Clauses(clause.OnConflict{DoNothing: true}).Create(asset).Error; err != nil {
		return fmt.Errorf("failed to record asset %s: %w", asset.Name, err)
	}
	return nil
}

// UploadedAssetNames returns the set of asset names recorded for a release.
func (d *DB) UploadedAssetNames(releaseID uint) (map[string]bool, error) {
	var names []string
	if err := d.db.Model(&UploadedAsset{}).Where("release_id = ?", releaseID).
		Pluck("name", &names).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets for release %d: %w", releaseID, err)
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

// MarkPublished moves a release to StatePublished.
func (d *DB) MarkPublished(tag, htmlURL string) error {
	return d.updateState(tag, map[string]interface{}{
		"state":    StatePublished,
		"html_url": htmlURL,
	})
}

// MarkBumped moves a release to StateBumped and stores the bump outcome.
func (d *DB) MarkBumped(tag, outcome string) error {
	return d.updateState(tag, map[string]interface{}{
		"state":        StateBumped,
		"bump_outcome": outcome,
	})
}

func (d *DB) updateState(tag string, updates map[string]interface{}) error {
	if tag == "" {
		return ErrEmptyTag
	}
	res := d.db.Model(&Release{}).Where("tag = ?", tag).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update release %s: %w", tag, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrReleaseNotFound, tag)
	}
	return nil
}

// ListReleases returns all journaled releases with their assets, newest
// version first.
func (d *DB) ListReleases() ([]Release, error) {
	var releases []Release
	if err := d.db.Preload("Assets").Order("semver_major DESC, semver_minor DESC, semver_patch DESC, created_at DESC").
		Find(&releases).Error; err != nil {
		return nil, fmt.Errorf("failed to list releases: %w", err)
	}
	return releases, nil
}
