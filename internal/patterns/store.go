// Package patterns loads named regex pattern sets from a directory and keeps
// the active selection.
package patterns

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var supportedExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// Store reads pattern-set files from a single directory
type Store struct {
	dir    string
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir
func NewStore(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir:    dir,
		logger: logger.With().Str("component", "PatternStore").Logger(),
	}
}

// Dir returns the pattern directory
func (s *Store) Dir() string {
	return s.dir
}

// ListAvailable returns the sorted names of pattern files. A missing
// directory is created and reported as empty.
func (s *Store) ListAvailable() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(s.dir, 0755); mkErr != nil {
				s.logger.Warn().Err(mkErr).Str("dir", s.dir).Msg("Failed to create pattern directory")
			}
			return []string{}, nil
		}
		return nil, common.WrapError(err, "list pattern directory")
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !supportedExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load parses the selected files (all files when selected is nil). Unknown
// names are ignored and malformed files are skipped with a warning.
func (s *Store) Load(selected []string) (map[string]models.PatternSet, error) {
	available, err := s.ListAvailable()
	if err != nil {
		return nil, err
	}

	files := available
	if selected != nil {
		want := make(map[string]bool, len(selected))
		for _, name := range selected {
			want[name] = true
		}
		files = files[:0:0]
		for _, name := range available {
			if want[name] {
				files = append(files, name)
			}
		}
	}

	sets := make(map[string]models.PatternSet, len(files))
	for _, name := range files {
		set, ok, err := s.loadFile(name)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", name).Msg("Skipping malformed pattern file")
			continue
		}
		if ok {
			sets[name] = set
		}
	}

	s.logger.Debug().Int("files", len(files)).Int("sets", len(sets)).Msg("Pattern sets loaded")
	return sets, nil
}

// loadFile returns ok=false for a well-formed file without any usable pattern.
func (s *Store) loadFile(name string) (models.PatternSet, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return models.PatternSet{}, false, err
	}

	raw := map[string]interface{}{}
	if strings.EqualFold(filepath.Ext(name), ".json") {
		err = json.Unmarshal(data, &raw)
	} else {
		err = yaml.Unmarshal(data, &raw)
	}
	if err != nil {
		return models.PatternSet{}, false, err
	}

	return parsePatternSet(name, raw)
}

func parsePatternSet(name string, raw map[string]interface{}) (models.PatternSet, bool, error) {
	set := models.PatternSet{Name: name}
	if flags, ok := raw["flags"].(string); ok {
		set.Flags = flags
	}

	if list, ok := raw["patterns"].([]interface{}); ok {
		for _, item := range list {
			if p, ok := item.(string); ok && p != "" {
				set.Patterns = append(set.Patterns, p)
			}
		}
		return set, len(set.Patterns) > 0, nil
	}

	if p, ok := raw["pattern"].(string); ok && p != "" {
		set.Patterns = []string{p}
		return set, true, nil
	}
	return set, false, nil
}
