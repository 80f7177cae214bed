// Package blob provides content-addressed blob storage for vault file
// payloads. Blobs are keyed by (vault, content hash); the same content
// uploaded twice lands on the same key. Two backends exist: a local
// filesystem store and an S3-compatible object store.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrBlobNotFound is returned when the requested blob does not exist.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrInvalidHash is returned for hashes too short to shard into
	// the fan-out directory layout.
	ErrInvalidHash = errors.New("invalid blob hash")
)

// Store is the backend-agnostic interface for blob storage.
//
// Writers returned by Create stage data and publish it on Close; a blob
// is never observable half-written. Open and Remove address published
// blobs only.
type Store interface {
	// Open returns a reader for the blob. The caller closes it.
	Open(ctx context.Context, vaultID int64, hash string) (io.ReadCloser, error)

	// Create returns a writer for the blob. The blob becomes visible
	// when the writer is closed without error.
	Create(ctx context.Context, vaultID int64, hash string) (io.WriteCloser, error)

	// Size reports the stored size of a blob in bytes.
	Size(ctx context.Context, vaultID int64, hash string) (int64, error)

	// Remove deletes a single blob. Removing a missing blob is not an error.
	Remove(ctx context.Context, vaultID int64, hash string) error

	// RemoveVault deletes every blob belonging to a vault.
	RemoveVault(ctx context.Context, vaultID int64) error
}

// BackendType selects the blob storage backend.
type BackendType string

const (
	BackendFS BackendType = "fs"
	BackendS3 BackendType = "s3"
)

// Config holds blob store configuration for all backends.
type Config struct {
	Backend BackendType `mapstructure:"backend" yaml:"backend"`
	Prefix  string      `mapstructure:"prefix" yaml:"prefix"`
	S3      S3Config    `mapstructure:"s3" yaml:"s3"`
}

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFS
	}
	if c.Prefix == "" {
		c.Prefix = "data/blobs"
	}
}

// Validate checks the configuration for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFS:
		if c.Prefix == "" {
			return errors.New("blob: prefix is required for the fs backend")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return errors.New("blob: s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("blob: unsupported backend %q", c.Backend)
	}
	return nil
}

// New builds the blob store selected by the configuration.
func New(ctx context.Context, cfg Config) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return NewFSStore(cfg.Prefix)
	}
}

// shardHash splits a content hash into the fan-out path components
// <hash[0:2]>/<hash[2:4]>/<hash[4:]>. Hashes are hex digests, so two
// levels of 256 directories keep listings small even for large vaults.
func shardHash(hash string) (string, string, string, error) {
	if len(hash) < 5 {
		return "", "", "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	return hash[0:2], hash[2:4], hash[4:], nil
}
