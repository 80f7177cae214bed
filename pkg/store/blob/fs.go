package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// FSStore stores blobs as plain files under a root prefix, laid out as
// <prefix>/<vault_id>/<h[0:2]>/<h[2:4]>/<h[4:]>.
type FSStore struct {
	prefix string
}

// NewFSStore creates a filesystem blob store rooted at prefix. The root
// directory is created if missing.
func NewFSStore(prefix string) (*FSStore, error) {
	if prefix == "" {
		return nil, errors.New("blob: prefix is required")
	}
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return nil, fmt.Errorf("blob: creating prefix directory: %w", err)
	}
	return &FSStore{prefix: prefix}, nil
}

// pathOf returns the filesystem path for a blob.
func (s *FSStore) pathOf(vaultID int64, hash string) (string, error) {
	a, b, rest, err := shardHash(hash)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.prefix, strconv.FormatInt(vaultID, 10), a, b, rest), nil
}

func (s *FSStore) Open(ctx context.Context, vaultID int64, hash string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathOf(vaultID, hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FSStore) Create(ctx context.Context, vaultID int64, hash string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.pathOf(vaultID, hash)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	// Stage into a sibling temp file and rename on close so readers
	// never observe a partially written blob.
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return nil, err
	}
	return &fsWriter{file: tmp, path: path}, nil
}

func (s *FSStore) Size(ctx context.Context, vaultID int64, hash string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	path, err := s.pathOf(vaultID, hash)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, ErrBlobNotFound
		}
		return 0, err
	}
	return info.Size(), nil
}

func (s *FSStore) Remove(ctx context.Context, vaultID int64, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.pathOf(vaultID, hash)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *FSStore) RemoveVault(ctx context.Context, vaultID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.prefix, strconv.FormatInt(vaultID, 10)))
}

// fsWriter writes to a temp file and renames it into place on Close.
type fsWriter struct {
	file   *os.File
	path   string
	closed bool
}

func (w *fsWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *fsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.file.Sync(); err != nil {
		w.file.Close()
		os.Remove(w.file.Name())
		return err
	}
	if err := w.file.Close(); err != nil {
		os.Remove(w.file.Name())
		return err
	}
	if err := os.Rename(w.file.Name(), w.path); err != nil {
		os.Remove(w.file.Name())
		return err
	}
	return nil
}
