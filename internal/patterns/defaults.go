package patterns

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/holmes-py/JS-DeepLens/internal/common"
)

//go:embed defaults/*
var defaultSets embed.FS

// SeedDefaults copies the bundled pattern sets into the directory when it
// holds no pattern files yet. It returns the names written.
func (s *Store) SeedDefaults() ([]string, error) {
	existing, err := s.ListAvailable()
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, nil
	}

	entries, err := fs.ReadDir(defaultSets, "defaults")
	if err != nil {
		return nil, common.WrapError(err, "read bundled pattern sets")
	}

	var written []string
	for _, entry := range entries {
		data, err := defaultSets.ReadFile("defaults/" + entry.Name())
		if err != nil {
			return written, common.WrapError(err, "read bundled pattern set")
		}
		if err := os.WriteFile(filepath.Join(s.dir, entry.Name()), data, 0644); err != nil {
			return written, common.NewStorageError("seed pattern set", err)
		}
		written = append(written, entry.Name())
	}

	s.logger.Info().Strs("files", written).Str("dir", s.dir).Msg("Seeded default pattern sets")
	return written, nil
}
