package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// ============================================
// PURGER SUPPORT
// ============================================

// ListSoftDeletedVaults returns every vault marked deleted.
func (s *GORMStore) ListSoftDeletedVaults(ctx context.Context) ([]*models.Vault, error) {
	var vaults []*models.Vault
	err := s.db.WithContext(ctx).
		Where("deleted").
		Order("id ASC").
		Find(&vaults).Error
	if err != nil {
		return nil, err
	}
	return vaults, nil
}

// PurgeVault hard-deletes a soft-deleted vault: its pending uploads, share
// grants, document records and finally the vault row, in one transaction.
// Committing per vault bounds how long the writer lock is held.
//
// Blob directory removal is the caller's concern; the row deletes here must
// not fail when the filesystem cleanup already happened.
func (s *GORMStore) PurgeVault(ctx context.Context, vaultID int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var vault models.Vault
		if err := tx.Where("id = ?", vaultID).First(&vault).Error; err != nil {
			return convertNotFoundError(err, models.ErrVaultNotFound)
		}
		if !vault.Deleted {
			return models.ErrVaultNotDeleted
		}

		if err := tx.Where("vault_id = ?", vaultID).Delete(&models.PendingFile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vault_id = ?", vaultID).Delete(&models.VaultShare{}).Error; err != nil {
			return err
		}
		if err := tx.Where("vault_id = ?", vaultID).Delete(&models.DocumentRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&vault).Error
	})
}

// DeletePendingFileByID removes one pending row by primary key.
func (s *GORMStore) DeletePendingFileByID(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Delete(&models.PendingFile{}, id).Error
}

// Vacuum reclaims database storage after a purge pass. Only meaningful on
// SQLite; a no-op elsewhere.
func (s *GORMStore) Vacuum(ctx context.Context) error {
	if !s.IsSQLite() {
		return nil
	}
	return s.db.WithContext(ctx).Exec("VACUUM").Error
}
