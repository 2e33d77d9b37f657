package datastore

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/rs/zerolog"
)

var contentHashRegex = regexp.MustCompile(`^[a-f0-9]{40}$`)

// IsContentHash reports whether s is a lowercase sha1 hex digest.
func IsContentHash(s string) bool {
	return contentHashRegex.MatchString(s)
}

// BlobStore keeps script bodies as <dir>/<hash>.js files.
type BlobStore struct {
	dir    string
	logger zerolog.Logger
}

// NewBlobStore creates the blob directory if needed.
func NewBlobStore(dir string, logger zerolog.Logger) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, common.WrapError(err, "failed to create scripts directory")
	}
	return &BlobStore{
		dir:    dir,
		logger: logger.With().Str("component", "BlobStore").Logger(),
	}, nil
}

func (b *BlobStore) path(hash string) (string, error) {
	if !IsContentHash(hash) {
		return "", common.NewValidationError("hash", hash, "must be 40 lowercase hex characters")
	}
	return filepath.Join(b.dir, hash+".js"), nil
}

// Put writes body under hash. The file appears atomically.
func (b *BlobStore) Put(hash string, body []byte) error {
	target, err := b.path(hash)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, "."+hash+".*.tmp")
	if err != nil {
		return common.NewStorageError("create temp blob", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		cleanup()
		return common.NewStorageError("write blob", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return common.NewStorageError("close blob", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		cleanup()
		return common.NewStorageError("rename blob", err)
	}
	b.logger.Debug().Str("hash", hash).Int("bytes", len(body)).Msg("Stored script body")
	return nil
}

// Get reads the body stored under hash.
func (b *BlobStore) Get(hash string) ([]byte, error) {
	target, err := b.path(hash)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, common.NewNotFoundError("content", hash)
	}
	if err != nil {
		return nil, common.NewStorageError("read blob", err)
	}
	return data, nil
}

