// Package models defines the persistent entities of the sync server and the
// domain errors the store layer maps database failures onto.
package models

import (
	"time"
)

// User is an account identity. Users are created by the admin CLI and are
// immutable afterwards except through admin tooling.
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null;size:255" json:"email"`
	Password  string    `gorm:"not null" json:"-"` // hex(scrypt(password, salt))
	Salt      string    `gorm:"not null" json:"-"`
	Name      string    `gorm:"size:255" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// UserToken is an opaque bearer credential issued on sign-in and destroyed on
// sign-out. A user may hold many tokens, one per signed-in device.
type UserToken struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	UserID    int64     `gorm:"index;not null" json:"user_id"`
	Token     string    `gorm:"index;not null;size:64" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName returns the table name for UserToken.
func (UserToken) TableName() string {
	return "user_tokens"
}

// Vault is a sync namespace owned by exactly one user. The server never sees
// vault plaintext: Password is a client-supplied opaque blob and KeyHash is an
// opaque equality token checked in constant time on join.
//
// Vaults are soft-deleted by setting Deleted; the purger hard-deletes them.
type Vault struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OwnerID   int64     `gorm:"index;not null" json:"owner_id"`
	Name      string    `gorm:"size:255" json:"name"`
	Password  string    `json:"-"`
	KeyHash   string    `gorm:"not null;size:64" json:"-"`
	Salt      string    `gorm:"not null" json:"-"`
	Deleted   bool      `gorm:"default:false;index" json:"deleted"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	Owner User `gorm:"foreignKey:OwnerID" json:"-"`
}

// TableName returns the table name for Vault.
func (Vault) TableName() string {
	return "vaults"
}

// VaultShare grants a non-owner user read/write access to a vault.
// The pair is the composite primary key.
type VaultShare struct {
	VaultID   int64     `gorm:"primaryKey;autoIncrement:false" json:"vault_id"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for VaultShare.
func (VaultShare) TableName() string {
	return "vault_shares"
}

// DocumentRecord is one entry in a vault's append-only revision log.
//
// ID is globally monotonic across all vaults and doubles as the client's
// version cursor. Records are never mutated after insert; the latest record
// per (vault_id, path) is the current state of that path. When Folder or
// Deleted is set, Size may be zero and Hash references no blob; otherwise
// Hash addresses a blob in the vault's blob store.
type DocumentRecord struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	VaultID     int64     `gorm:"index;not null" json:"vault_id"`
	Path        string    `gorm:"index;not null" json:"path"`
	RelatedPath string    `gorm:"column:relatedpath;index;default:''" json:"relatedpath"`
	Hash        string    `gorm:"index;size:64" json:"hash"`
	Folder      bool      `gorm:"not null" json:"folder"`
	Deleted     bool      `gorm:"default:false" json:"deleted"`
	Size        int64     `gorm:"default:0" json:"size"`
	Device      string    `gorm:"size:255" json:"device"`
	CTime       int64     `gorm:"column:ctime" json:"ctime"`
	MTime       int64     `gorm:"column:mtime" json:"mtime"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for DocumentRecord.
func (DocumentRecord) TableName() string {
	return "document_records"
}

// HasBlob reports whether the record references a blob in the blob store.
func (r *DocumentRecord) HasBlob() bool {
	return !r.Folder && !r.Deleted
}

// PendingFileType discriminates pending bookkeeping rows.
type PendingFileType string

// PendingFileTypeUpload marks a blob upload not yet confirmed by a record insert.
const PendingFileTypeUpload PendingFileType = "upload"

// PendingFile records an in-flight blob upload so the purger can distinguish
// abandoned partial files from blobs referenced by committed records.
type PendingFile struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	VaultID   int64           `gorm:"not null;uniqueIndex:idx_pending_vault_hash" json:"vault_id"`
	Hash      string          `gorm:"not null;size:64;uniqueIndex:idx_pending_vault_hash" json:"hash"`
	Type      PendingFileType `gorm:"default:upload;size:20" json:"type"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for PendingFile.
func (PendingFile) TableName() string {
	return "pending_files"
}

// AllModels returns every model for schema auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&UserToken{},
		&Vault{},
		&VaultShare{},
		&DocumentRecord{},
		&PendingFile{},
	}
}
