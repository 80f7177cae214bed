package store

import (
	"context"

	"gorm.io/gorm"

	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// ============================================
// DOCUMENT RECORD OPERATIONS (REVISION LOG)
// ============================================
//
// The revision log is append-only. Record ids are assigned by the database
// and are strictly monotonic across all vaults; the id doubles as the
// client's version cursor. "Latest per path" always means max(id) per path,
// never a clock comparison.

// InsertRecord appends a record to the log. The database assigns the
// monotonic id and the server wall-clock created_at; the populated record is
// returned through the argument.
func (s *GORMStore) InsertRecord(ctx context.Context, record *models.DocumentRecord) error {
	record.ID = 0
	return s.db.WithContext(ctx).Create(record).Error
}

// GetRecord loads one record of a vault by id.
func (s *GORMStore) GetRecord(ctx context.Context, vaultID, recordID int64) (*models.DocumentRecord, error) {
	var record models.DocumentRecord
	err := s.db.WithContext(ctx).
		Where("vault_id = ? AND id = ?", vaultID, recordID).
		First(&record).Error
	if err != nil {
		return nil, convertNotFoundError(err, models.ErrRecordNotFound)
	}
	return &record, nil
}

// GetVaultSize returns the sum of record sizes over the whole log, including
// historical revisions. This is the number reported to clients against the
// sync size limit.
func (s *GORMStore) GetVaultSize(ctx context.Context, vaultID int64) (int64, error) {
	var size *int64
	err := s.db.WithContext(ctx).
		Model(&models.DocumentRecord{}).
		Select("SUM(size)").
		Where("vault_id = ?", vaultID).
		Scan(&size).Error
	if err != nil {
		return 0, err
	}
	if size == nil {
		return 0, nil
	}
	return *size, nil
}

// HashCount returns how many records of the vault reference the given blob
// hash. Zero means the blob is not stored and must be uploaded.
func (s *GORMStore) HashCount(ctx context.Context, vaultID int64, hash string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.DocumentRecord{}).
		Where("vault_id = ? AND hash = ?", vaultID, hash).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// latestPerPath is the subquery selecting max(id) per path for a vault,
// optionally restricted to records newer than a cursor.
func (s *GORMStore) latestPerPath(ctx context.Context, vaultID int64, after int64) *gorm.DB {
	q := s.db.WithContext(ctx).
		Model(&models.DocumentRecord{}).
		Select("MAX(id)").
		Where("vault_id = ?", vaultID)
	if after > 0 {
		q = q.Where("id > ?", after)
	}
	return q.Group("path")
}

// GetDeleted returns, ordered by id ascending, the latest record of every
// path whose current state is deleted.
func (s *GORMStore) GetDeleted(ctx context.Context, vaultID int64) ([]*models.DocumentRecord, error) {
	var records []*models.DocumentRecord
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.latestPerPath(ctx, vaultID, 0)).
		Where("deleted").
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// GetHistory returns the revision history of a path, newest first. When last
// is non-zero only records with id < last are returned.
func (s *GORMStore) GetHistory(ctx context.Context, vaultID int64, path string, last int64) ([]*models.DocumentRecord, error) {
	q := s.db.WithContext(ctx).
		Where("vault_id = ? AND path = ?", vaultID, path)
	if last > 0 {
		q = q.Where("id < ?", last)
	}

	var records []*models.DocumentRecord
	if err := q.Order("id DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetUpdates implements the catch-up query.
//
// It computes maxID = max(id) in the vault (0 for an empty log). When the
// client cursor equals maxID there is nothing to send. A cursor ahead of
// maxID violates the protocol precondition and returns ErrCursorAhead.
// Otherwise the result is the latest record per path among records with
// id > last, ordered ascending so the client applies them in causal order.
// With initial set, paths whose latest state is deleted are filtered out.
//
// The returned maxID is the cursor the client must store after draining.
func (s *GORMStore) GetUpdates(ctx context.Context, vaultID, last int64, initial bool) (int64, []*models.DocumentRecord, error) {
	var maxID *int64
	err := s.db.WithContext(ctx).
		Model(&models.DocumentRecord{}).
		Select("MAX(id)").
		Where("vault_id = ?", vaultID).
		Scan(&maxID).Error
	if err != nil {
		return 0, nil, err
	}

	latest := int64(0)
	if maxID != nil {
		latest = *maxID
	}

	if last == latest {
		return latest, nil, nil
	}
	if last > latest {
		return 0, nil, models.ErrCursorAhead
	}

	q := s.db.WithContext(ctx).
		Where("id IN (?)", s.latestPerPath(ctx, vaultID, last))
	if initial {
		q = q.Where("NOT deleted")
	}

	var records []*models.DocumentRecord
	if err := q.Order("id ASC").Find(&records).Error; err != nil {
		return 0, nil, err
	}

	return latest, records, nil
}
