package datastore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/rs/zerolog"
)

// Keys persisted in project_config
const (
	KeyScopeIncludeList     = "scope_include_list"
	KeyScopeExcludeList     = "scope_exclude_list"
	KeySelectedPatternFiles = "selected_patterns"
)

// ConfigStore is a string key/value table for per-project settings.
type ConfigStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Get returns the value stored under key, or def when the key is absent.
func (s *ConfigStore) Get(ctx context.Context, key, def string) (string, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM project_config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !value.Valid) {
		return def, nil
	}
	if err != nil {
		return def, common.NewStorageError("read setting "+key, err)
	}
	return value.String, nil
}

// Set upserts a single key.
func (s *ConfigStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// SetMany upserts all pairs in one transaction; either all land or none do.
func (s *ConfigStore) SetMany(ctx context.Context, values map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return common.NewStorageError("begin settings transaction", err)
	}
	for key, value := range values {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO project_config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value)
		if err != nil {
			_ = tx.Rollback()
			s.logger.Error().Err(err).Str("key", key).Msg("Failed to write setting")
			return common.NewStorageError("write setting "+key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return common.NewStorageError("commit settings", err)
	}
	return nil
}

// GetStringList decodes a JSON string array stored under key. Absent or
// undecodable values yield nil.
func (s *ConfigStore) GetStringList(ctx context.Context, key string) ([]string, error) {
	raw, err := s.Get(ctx, key, "")
	if err != nil || raw == "" {
		return nil, err
	}
	var list []string
	if err := json.UnmarshalFromString(raw, &list); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Stored setting is not a JSON string array, ignoring")
		return nil, nil
	}
	return list, nil
}

// EncodeStringList renders list as the JSON array stored by GetStringList.
func EncodeStringList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	return json.MarshalToString(list)
}
