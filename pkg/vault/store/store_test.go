package store

import (
	"context"
	"testing"

	"github.com/marmos91/vaultsync/pkg/vault/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	s, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedUser inserts a user with a pre-hashed password and returns it.
func seedUser(t *testing.T, s *GORMStore, email string) *models.User {
	t.Helper()
	user := &models.User{
		Email:    email,
		Password: "irrelevant-hash",
		Salt:     "irrelevant-salt",
		Name:     "Test User",
	}
	if err := s.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return user
}

// seedVault inserts a live vault owned by the user.
func seedVault(t *testing.T, s *GORMStore, ownerID int64) *models.Vault {
	t.Helper()
	vault := &models.Vault{
		OwnerID: ownerID,
		Name:    "notes",
		KeyHash: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
		Salt:    "vault-salt",
	}
	if err := s.CreateVault(context.Background(), vault); err != nil {
		t.Fatalf("failed to seed vault: %v", err)
	}
	return vault
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected sqlite, got %s", config.Type)
		}
		if config.SQLite.Path == "" {
			t.Error("expected default sqlite path")
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		_, err := New(&Config{Type: "invalid"})
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("stamps schema version", func(t *testing.T) {
		s := createTestStore(t)

		var version int
		if err := s.DB().Raw("SELECT version FROM db_version").Scan(&version).Error; err != nil {
			t.Fatalf("failed to read db_version: %v", err)
		}
		if version != schemaVersion {
			t.Errorf("expected schema version %d, got %d", schemaVersion, version)
		}
	})
}

func TestSchemaVersionForwardOnly(t *testing.T) {
	s := createTestStore(t)

	if err := s.DB().Exec("UPDATE db_version SET version = ?", schemaVersion+10).Error; err != nil {
		t.Fatalf("failed to bump db_version: %v", err)
	}
	if err := stampSchemaVersion(s.DB()); err == nil {
		t.Error("expected error for database newer than binary")
	}
}
