package store

import (
	"context"
	"time"

	"gorm.io/gorm/clause"

	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// ============================================
// PENDING UPLOAD TRACKING
// ============================================
//
// A pending row is written when a blob upload begins and removed when the
// associated document record commits. Rows that outlive the pending age with
// no committed record are partial uploads the purger reclaims.

// CreatePendingFile records an in-flight upload. Idempotent on the
// (vault_id, hash) unique constraint: a re-upload of the same content keeps
// the original row.
func (s *GORMStore) CreatePendingFile(ctx context.Context, vaultID int64, hash string) error {
	pending := &models.PendingFile{
		VaultID: vaultID,
		Hash:    hash,
		Type:    models.PendingFileTypeUpload,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(pending).Error
}

// DeletePendingFile removes the bookkeeping row after the record commit.
// Missing rows are not an error.
func (s *GORMStore) DeletePendingFile(ctx context.Context, vaultID int64, hash string) error {
	return s.db.WithContext(ctx).
		Where("vault_id = ? AND hash = ?", vaultID, hash).
		Delete(&models.PendingFile{}).Error
}

// ListStalePendingUploads returns upload rows created at or before the cutoff.
func (s *GORMStore) ListStalePendingUploads(ctx context.Context, cutoff time.Time) ([]*models.PendingFile, error) {
	var pending []*models.PendingFile
	err := s.db.WithContext(ctx).
		Where("created_at <= ? AND type = ?", cutoff, models.PendingFileTypeUpload).
		Order("id ASC").
		Find(&pending).Error
	if err != nil {
		return nil, err
	}
	return pending, nil
}
