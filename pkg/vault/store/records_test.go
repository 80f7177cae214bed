package store

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// push appends a record and fails the test on error.
func push(t *testing.T, s *GORMStore, vaultID int64, path, hash string, deleted bool, size int64) *models.DocumentRecord {
	t.Helper()
	record := &models.DocumentRecord{
		VaultID: vaultID,
		Path:    path,
		Hash:    hash,
		Deleted: deleted,
		Size:    size,
		Device:  "test-device",
		CTime:   1,
		MTime:   2,
	}
	if err := s.InsertRecord(context.Background(), record); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}
	return record
}

func TestInsertRecordMonotonicIDs(t *testing.T) {
	s := createTestStore(t)
	user := seedUser(t, s, "a@example.com")
	v1 := seedVault(t, s, user.ID)
	v2 := seedVault(t, s, user.ID)

	var lastID int64
	for i := 0; i < 5; i++ {
		// Interleave vaults: ids are monotonic across all vaults, not per vault.
		r1 := push(t, s, v1.ID, "a.md", "aa", false, 5)
		r2 := push(t, s, v2.ID, "b.md", "bb", false, 5)

		for _, r := range []*models.DocumentRecord{r1, r2} {
			if r.ID <= lastID {
				t.Fatalf("id %d is not greater than previous %d", r.ID, lastID)
			}
			lastID = r.ID
		}
	}
}

func TestGetRecord(t *testing.T) {
	s := createTestStore(t)
	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)
	other := seedVault(t, s, user.ID)
	ctx := context.Background()

	record := push(t, s, vault.ID, "a.md", "deadbeef", false, 5)

	t.Run("found", func(t *testing.T) {
		got, err := s.GetRecord(ctx, vault.ID, record.ID)
		if err != nil {
			t.Fatalf("GetRecord: %v", err)
		}
		if got.Path != "a.md" || got.Hash != "deadbeef" {
			t.Errorf("unexpected record: %+v", got)
		}
	})

	t.Run("wrong vault", func(t *testing.T) {
		_, err := s.GetRecord(ctx, other.ID, record.ID)
		if !errors.Is(err, models.ErrRecordNotFound) {
			t.Errorf("expected ErrRecordNotFound, got %v", err)
		}
	})
}

func TestGetVaultSize(t *testing.T) {
	s := createTestStore(t)
	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)
	ctx := context.Background()

	t.Run("empty vault", func(t *testing.T) {
		size, err := s.GetVaultSize(ctx, vault.ID)
		if err != nil {
			t.Fatalf("GetVaultSize: %v", err)
		}
		if size != 0 {
			t.Errorf("expected 0, got %d", size)
		}
	})

	t.Run("sums historical revisions", func(t *testing.T) {
		push(t, s, vault.ID, "a.md", "aa", false, 100)
		push(t, s, vault.ID, "a.md", "bb", false, 200)

		size, err := s.GetVaultSize(ctx, vault.ID)
		if err != nil {
			t.Fatalf("GetVaultSize: %v", err)
		}
		if size != 300 {
			t.Errorf("expected 300 (both revisions), got %d", size)
		}
	})
}

func TestHashCount(t *testing.T) {
	s := createTestStore(t)
	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)
	other := seedVault(t, s, user.ID)
	ctx := context.Background()

	push(t, s, vault.ID, "a.md", "deadbeef", false, 5)
	push(t, s, vault.ID, "b.md", "deadbeef", false, 5)

	count, err := s.HashCount(ctx, vault.ID, "deadbeef")
	if err != nil {
		t.Fatalf("HashCount: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2, got %d", count)
	}

	count, err = s.HashCount(ctx, other.ID, "deadbeef")
	if err != nil {
		t.Fatalf("HashCount: %v", err)
	}
	if count != 0 {
		t.Errorf("hashes are scoped per vault, expected 0, got %d", count)
	}
}

func TestGetDeleted(t *testing.T) {
	s := createTestStore(t)
	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)
	ctx := context.Background()

	push(t, s, vault.ID, "kept.md", "aa", false, 5)
	push(t, s, vault.ID, "gone.md", "bb", false, 5)
	push(t, s, vault.ID, "gone.md", "bb", true, 0)
	// Deleted then re-created: current state is live, must not show up.
	push(t, s, vault.ID, "revived.md", "cc", true, 0)
	push(t, s, vault.ID, "revived.md", "cc", false, 5)

	deleted, err := s.GetDeleted(ctx, vault.ID)
	if err != nil {
		t.Fatalf("GetDeleted: %v", err)
	}
	if len(deleted) != 1 {
		t.Fatalf("expected 1 deleted path, got %d", len(deleted))
	}
	if deleted[0].Path != "gone.md" || !deleted[0].Deleted {
		t.Errorf("unexpected record: %+v", deleted[0])
	}
}

func TestGetHistory(t *testing.T) {
	s := createTestStore(t)
	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)
	ctx := context.Background()

	r1 := push(t, s, vault.ID, "a.md", "v1", false, 5)
	r2 := push(t, s, vault.ID, "a.md", "v2", false, 6)
	r3 := push(t, s, vault.ID, "a.md", "v3", false, 7)
	push(t, s, vault.ID, "other.md", "xx", false, 1)

	t.Run("no upper bound", func(t *testing.T) {
		records, err := s.GetHistory(ctx, vault.ID, "a.md", 0)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 revisions, got %d", len(records))
		}
		// Newest first.
		if records[0].ID != r3.ID || records[1].ID != r2.ID || records[2].ID != r1.ID {
			t.Errorf("history not ordered by id descending: %v %v %v",
				records[0].ID, records[1].ID, records[2].ID)
		}
	})

	t.Run("bounded by last", func(t *testing.T) {
		records, err := s.GetHistory(ctx, vault.ID, "a.md", r3.ID)
		if err != nil {
			t.Fatalf("GetHistory: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 revisions below %d, got %d", r3.ID, len(records))
		}
		if records[0].ID != r2.ID {
			t.Errorf("expected newest below bound first, got %d", records[0].ID)
		}
	})
}

func TestGetUpdates(t *testing.T) {
	s := createTestStore(t)
	user := seedUser(t, s, "a@example.com")
	vault := seedVault(t, s, user.ID)
	ctx := context.Background()

	t.Run("empty log", func(t *testing.T) {
		maxID, records, err := s.GetUpdates(ctx, vault.ID, 0, true)
		if err != nil {
			t.Fatalf("GetUpdates: %v", err)
		}
		if maxID != 0 || len(records) != 0 {
			t.Errorf("expected (0, empty), got (%d, %d records)", maxID, len(records))
		}
	})

	r1 := push(t, s, vault.ID, "a.md", "v1", false, 5)
	r2 := push(t, s, vault.ID, "a.md", "v2", false, 6)
	r3 := push(t, s, vault.ID, "b.md", "bb", true, 0)

	t.Run("latest per path, ascending", func(t *testing.T) {
		maxID, records, err := s.GetUpdates(ctx, vault.ID, 0, false)
		if err != nil {
			t.Fatalf("GetUpdates: %v", err)
		}
		if maxID != r3.ID {
			t.Errorf("expected maxID %d, got %d", r3.ID, maxID)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 paths, got %d", len(records))
		}
		if records[0].ID != r2.ID || records[1].ID != r3.ID {
			t.Errorf("expected [%d %d] ascending, got [%d %d]",
				r2.ID, r3.ID, records[0].ID, records[1].ID)
		}
		_ = r1
	})

	t.Run("initial filters deleted paths", func(t *testing.T) {
		_, records, err := s.GetUpdates(ctx, vault.ID, 0, true)
		if err != nil {
			t.Fatalf("GetUpdates: %v", err)
		}
		if len(records) != 1 || records[0].Path != "a.md" {
			t.Errorf("expected only a.md, got %+v", records)
		}
	})

	t.Run("cursor at head is empty", func(t *testing.T) {
		maxID, records, err := s.GetUpdates(ctx, vault.ID, r3.ID, false)
		if err != nil {
			t.Fatalf("GetUpdates: %v", err)
		}
		if maxID != r3.ID || len(records) != 0 {
			t.Errorf("expected (%d, empty), got (%d, %d records)", r3.ID, maxID, len(records))
		}
	})

	t.Run("cursor ahead fails", func(t *testing.T) {
		_, _, err := s.GetUpdates(ctx, vault.ID, r3.ID+100, false)
		if !errors.Is(err, models.ErrCursorAhead) {
			t.Errorf("expected ErrCursorAhead, got %v", err)
		}
	})

	t.Run("partial cursor sees only newer records", func(t *testing.T) {
		maxID, records, err := s.GetUpdates(ctx, vault.ID, r1.ID, false)
		if err != nil {
			t.Fatalf("GetUpdates: %v", err)
		}
		if maxID != r3.ID {
			t.Errorf("expected maxID %d, got %d", r3.ID, maxID)
		}
		if len(records) != 2 {
			t.Errorf("expected a.md@v2 and b.md, got %d records", len(records))
		}
	})
}
