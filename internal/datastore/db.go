package datastore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DB wraps the project's sqlite database holding script records and settings.
type DB struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open initializes the sqlite connection and ensures the schema is set up.
func Open(dataSourceName string, busyTimeoutMs int, logger zerolog.Logger) (*DB, error) {
	logger = logger.With().Str("component", "DB").Logger()
	logger.Info().Str("db_path", dataSourceName).Msg("Initializing database connection")

	dbDir := filepath.Dir(dataSourceName)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		logger.Error().Err(err).Str("directory", dbDir).Msg("Failed to create database directory")
		return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
	}

	dbInstance, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		logger.Error().Err(err).Str("db_path", dataSourceName).Msg("Failed to open database")
		return nil, fmt.Errorf("sql.Open failed for %s: %w", dataSourceName, err)
	}
	// One connection keeps pragmas applied and serializes writers.
	dbInstance.SetMaxOpenConns(1)

	db := &DB{
		db:     dbInstance,
		logger: logger,
	}

	if err := db.applyPragmas(busyTimeoutMs); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.InitSchema(); err != nil {
		db.Close()
		logger.Error().Err(err).Msg("Failed to initialize database schema")
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Info().Str("path", dataSourceName).Msg("Database initialized and schema verified.")
	return db, nil
}

func (d *DB) applyPragmas(busyTimeoutMs int) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeoutMs),
	}
	for _, p := range pragmas {
		if _, err := d.db.Exec(p); err != nil {
			d.logger.Error().Err(err).Str("pragma", p).Msg("Failed to apply pragma")
			return fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// InitSchema creates the record and settings tables if they don't already exist.
func (d *DB) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS analyzed_scripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		content_hash TEXT NOT NULL UNIQUE,
		findings TEXT NOT NULL DEFAULT '[]',
		has_sourcemap INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_scanned_at INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS project_config (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`
	_, err := d.db.Exec(query)
	if err != nil {
		d.logger.Error().Err(err).Msg("DB: Failed to initialize schema")
		return err
	}
	d.logger.Debug().Msg("DB: Schema initialized (analyzed_scripts, project_config).")
	return nil
}

// Records returns the script record store backed by this database.
func (d *DB) Records() *RecordStore {
	return &RecordStore{db: d.db, logger: d.logger.With().Str("store", "records").Logger()}
}

// Settings returns the key/value configuration store backed by this database.
func (d *DB) Settings() *ConfigStore {
	return &ConfigStore{db: d.db, logger: d.logger.With().Str("store", "settings").Logger()}
}
