package config

import (
	"path/filepath"
	"regexp"
)

var unsafeProjectChars = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

// SanitizeProjectName replaces every character outside [A-Za-z0-9_-.] with '_'
func SanitizeProjectName(name string) string {
	return unsafeProjectChars.ReplaceAllString(name, "_")
}

// ProjectConfig selects the workspace all state lives in
type ProjectConfig struct {
	Name    string `json:"name,omitempty" yaml:"name,omitempty" validate:"required,projectname"`
	BaseDir string `json:"base_dir,omitempty" yaml:"base_dir,omitempty" validate:"required"`
}

// NewDefaultProjectConfig creates default project configuration
func NewDefaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Name:    DefaultProjectName,
		BaseDir: DefaultProjectsBaseDir,
	}
}

// RootDir is <base_dir>/<name>
func (p ProjectConfig) RootDir() string {
	return filepath.Join(p.BaseDir, p.Name)
}

// ServerConfig defines the HTTP listener
type ServerConfig struct {
	ListenAddress string `json:"listen_address,omitempty" yaml:"listen_address,omitempty" validate:"required,hostname_port"`
	MaxBodyMB     int    `json:"max_body_mb,omitempty" yaml:"max_body_mb,omitempty" validate:"min=1"`
}

// NewDefaultServerConfig creates default server configuration
func NewDefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddress: DefaultServerListenAddress,
		MaxBodyMB:     DefaultServerMaxBodyMB,
	}
}

// PatternsConfig locates the pattern-set files
type PatternsConfig struct {
	Directory string `json:"directory,omitempty" yaml:"directory,omitempty" validate:"required"`
}

// NewDefaultPatternsConfig creates default patterns configuration
func NewDefaultPatternsConfig() PatternsConfig {
	return PatternsConfig{Directory: DefaultPatternsDirectory}
}

// RescanConfig tunes the rescan job pacing
type RescanConfig struct {
	ProgressEvery int `json:"progress_every,omitempty" yaml:"progress_every,omitempty" validate:"min=1"`
	YieldDelayMs  int `json:"yield_delay_ms" yaml:"yield_delay_ms" validate:"min=0"`
}

// NewDefaultRescanConfig creates default rescan configuration
func NewDefaultRescanConfig() RescanConfig {
	return RescanConfig{
		ProgressEvery: DefaultRescanProgressEvery,
		YieldDelayMs:  DefaultRescanYieldDelayMs,
	}
}
