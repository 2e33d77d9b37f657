package config

import "path/filepath"

// StorageConfig defines where records, blobs and exports live inside the project root
type StorageConfig struct {
	DatabaseFile  string `json:"database_file,omitempty" yaml:"database_file,omitempty" validate:"required"`
	ScriptsDir    string `json:"scripts_dir,omitempty" yaml:"scripts_dir,omitempty" validate:"required"`
	ExportDir     string `json:"export_dir,omitempty" yaml:"export_dir,omitempty"`
	BusyTimeoutMs int    `json:"busy_timeout_ms,omitempty" yaml:"busy_timeout_ms,omitempty" validate:"min=0"`
}

// NewDefaultStorageConfig creates default storage configuration
func NewDefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DatabaseFile:  DefaultStorageDatabaseFile,
		ScriptsDir:    DefaultStorageScriptsDir,
		ExportDir:     DefaultStorageExportDir,
		BusyTimeoutMs: DefaultStorageBusyTimeoutMs,
	}
}

// resolve joins p onto root unless p is already absolute
func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// DatabasePath returns the sqlite file path for the project
func (c *GlobalConfig) DatabasePath() string {
	return resolve(c.ProjectConfig.RootDir(), c.StorageConfig.DatabaseFile)
}

// ScriptsPath returns the blob directory for the project
func (c *GlobalConfig) ScriptsPath() string {
	return resolve(c.ProjectConfig.RootDir(), c.StorageConfig.ScriptsDir)
}

// ExportPath returns the export directory for the project
func (c *GlobalConfig) ExportPath() string {
	return resolve(c.ProjectConfig.RootDir(), c.StorageConfig.ExportDir)
}
