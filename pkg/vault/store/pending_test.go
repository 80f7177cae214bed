package store

import (
	"context"
	"testing"
	"time"
)

func TestPendingFiles(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)

	t.Run("insert is idempotent", func(t *testing.T) {
		if err := s.CreatePendingFile(ctx, vault.ID, "deadbeef"); err != nil {
			t.Fatalf("CreatePendingFile: %v", err)
		}
		if err := s.CreatePendingFile(ctx, vault.ID, "deadbeef"); err != nil {
			t.Errorf("duplicate (vault, hash) must be ignored, got %v", err)
		}

		var count int64
		s.DB().Table("pending_files").Count(&count)
		if count != 1 {
			t.Errorf("expected 1 row, got %d", count)
		}
	})

	t.Run("delete on commit", func(t *testing.T) {
		if err := s.DeletePendingFile(ctx, vault.ID, "deadbeef"); err != nil {
			t.Fatalf("DeletePendingFile: %v", err)
		}
		var count int64
		s.DB().Table("pending_files").Count(&count)
		if count != 0 {
			t.Errorf("expected 0 rows, got %d", count)
		}
		// Missing row is fine.
		if err := s.DeletePendingFile(ctx, vault.ID, "deadbeef"); err != nil {
			t.Errorf("deleting a missing row must not fail, got %v", err)
		}
	})
}

func TestListStalePendingUploads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)

	if err := s.CreatePendingFile(ctx, vault.ID, "old-hash"); err != nil {
		t.Fatalf("CreatePendingFile: %v", err)
	}
	if err := s.CreatePendingFile(ctx, vault.ID, "new-hash"); err != nil {
		t.Fatalf("CreatePendingFile: %v", err)
	}

	// Age the first row artificially.
	aged := time.Now().Add(-8 * 24 * time.Hour)
	if err := s.DB().Table("pending_files").
		Where("hash = ?", "old-hash").
		Update("created_at", aged).Error; err != nil {
		t.Fatalf("failed to age pending row: %v", err)
	}

	cutoff := time.Now().Add(-7 * 24 * time.Hour)
	stale, err := s.ListStalePendingUploads(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListStalePendingUploads: %v", err)
	}
	if len(stale) != 1 || stale[0].Hash != "old-hash" {
		t.Errorf("expected only the aged row, got %+v", stale)
	}
}
