package service

import (
	"context"

	"github.com/holmes-py/JS-DeepLens/internal/datastore"
	"github.com/holmes-py/JS-DeepLens/internal/models"
)

// Scope returns the active include and exclude lists.
func (s *Service) Scope() models.ScopeConfig {
	return s.scope.Config()
}

// UpdateScope validates cfg, persists both lists atomically and swaps them
// in. On any error the previous scope stays active.
func (s *Service) UpdateScope(ctx context.Context, cfg models.ScopeConfig) error {
	if cfg.IncludePatterns == nil {
		cfg.IncludePatterns = []string{}
	}
	if cfg.ExcludePatterns == nil {
		cfg.ExcludePatterns = []string{}
	}
	if err := s.scope.Validate(cfg); err != nil {
		return err
	}

	include, err := datastore.EncodeStringList(cfg.IncludePatterns)
	if err != nil {
		return err
	}
	exclude, err := datastore.EncodeStringList(cfg.ExcludePatterns)
	if err != nil {
		return err
	}
	if err := s.settings.SetMany(ctx, map[string]string{
		datastore.KeyScopeIncludeList: include,
		datastore.KeyScopeExcludeList: exclude,
	}); err != nil {
		return err
	}
	if err := s.scope.Update(cfg); err != nil {
		return err
	}

	s.logger.Info().Int("include", len(cfg.IncludePatterns)).Int("exclude", len(cfg.ExcludePatterns)).Msg("Scope updated")
	s.stats.Refresh(ctx)
	return nil
}

// AvailablePatterns lists the pattern-set files on disk.
func (s *Service) AvailablePatterns() ([]string, error) {
	return s.patternStore.ListAvailable()
}

// SelectedPatterns returns the active pattern-set file names.
func (s *Service) SelectedPatterns() []string {
	return s.registry.Snapshot().Selected
}

// SelectPatterns persists names as the selection and reloads the active sets.
func (s *Service) SelectPatterns(ctx context.Context, names []string) ([]string, error) {
	if names == nil {
		names = []string{}
	}
	encoded, err := datastore.EncodeStringList(names)
	if err != nil {
		return nil, err
	}
	if err := s.settings.Set(ctx, datastore.KeySelectedPatternFiles, encoded); err != nil {
		return nil, err
	}
	snap, err := s.registry.Select(names)
	if err != nil {
		return nil, err
	}
	return snap.Selected, nil
}
