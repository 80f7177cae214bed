package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// ============================================
// VAULT OPERATIONS AND ACCESS CHECKS
// ============================================

// vaultQuery builds the access query shared by GetVault and CheckAccess.
//
// The vault must exist and not be soft-deleted. When userID is nil the query
// is an existence check only. With includeShared the user may be the owner or
// hold a vault_shares row; otherwise ownership is required.
func (s *GORMStore) vaultQuery(ctx context.Context, vaultID int64, userID *int64, includeShared bool) *gorm.DB {
	q := s.db.WithContext(ctx).
		Model(&models.Vault{}).
		Where("vaults.id = ? AND NOT vaults.deleted", vaultID)

	if userID == nil {
		return q
	}

	if includeShared {
		q = q.
			Joins("LEFT JOIN vault_shares ON vault_shares.vault_id = vaults.id").
			Where("vaults.owner_id = ? OR vault_shares.user_id = ?", *userID, *userID).
			Distinct("vaults.*")
	} else {
		q = q.Where("vaults.owner_id = ?", *userID)
	}

	return q
}

// GetVault returns the vault if it exists, is not deleted, and the given user
// (when non-nil) may access it under the sharing rule.
func (s *GORMStore) GetVault(ctx context.Context, vaultID int64, userID *int64, includeShared bool) (*models.Vault, error) {
	var vault models.Vault
	if err := s.vaultQuery(ctx, vaultID, userID, includeShared).First(&vault).Error; err != nil {
		return nil, convertNotFoundError(err, models.ErrVaultNotFound)
	}
	return &vault, nil
}

// CheckAccess reports whether the user may read/write the vault.
func (s *GORMStore) CheckAccess(ctx context.Context, vaultID int64, userID *int64, includeShared bool) (bool, error) {
	var count int64
	if err := s.vaultQuery(ctx, vaultID, userID, includeShared).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// CreateVault inserts a vault row.
func (s *GORMStore) CreateVault(ctx context.Context, vault *models.Vault) error {
	return s.db.WithContext(ctx).Create(vault).Error
}

// ListVaultsByOwner returns all live vaults owned by the user.
func (s *GORMStore) ListVaultsByOwner(ctx context.Context, ownerID int64) ([]*models.Vault, error) {
	var vaults []*models.Vault
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND NOT deleted", ownerID).
		Order("id ASC").
		Find(&vaults).Error
	if err != nil {
		return nil, err
	}
	return vaults, nil
}

// SoftDeleteVault marks an owned vault deleted. The purger hard-deletes it on
// a later pass; live sync connections are never notified synchronously.
func (s *GORMStore) SoftDeleteVault(ctx context.Context, vaultID, ownerID int64) error {
	result := s.db.WithContext(ctx).
		Model(&models.Vault{}).
		Where("id = ? AND owner_id = ? AND NOT deleted", vaultID, ownerID).
		Update("deleted", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return models.ErrVaultNotFound
	}
	return nil
}

// CreateVaultShare grants a non-owner user access to a vault.
// Duplicate grants are idempotent.
func (s *GORMStore) CreateVaultShare(ctx context.Context, vaultID, userID int64) error {
	share := &models.VaultShare{VaultID: vaultID, UserID: userID}
	if err := s.db.WithContext(ctx).Create(share).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil
		}
		return err
	}
	return nil
}

// DeleteVaultShare revokes a share grant.
func (s *GORMStore) DeleteVaultShare(ctx context.Context, vaultID, userID int64) error {
	return s.db.WithContext(ctx).
		Where("vault_id = ? AND user_id = ?", vaultID, userID).
		Delete(&models.VaultShare{}).Error
}
