package config

import (
	"os"
	"path/filepath"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxConfigFileSize bounds how much of a config file is read
const maxConfigFileSize = 10 * 1024 * 1024

// GlobalConfig contains all configuration sections for the application
type GlobalConfig struct {
	ProjectConfig      ProjectConfig      `json:"project,omitempty" yaml:"project,omitempty"`
	ServerConfig       ServerConfig       `json:"server,omitempty" yaml:"server,omitempty"`
	StorageConfig      StorageConfig      `json:"storage,omitempty" yaml:"storage,omitempty"`
	PatternsConfig     PatternsConfig     `json:"patterns,omitempty" yaml:"patterns,omitempty"`
	RescanConfig       RescanConfig       `json:"rescan,omitempty" yaml:"rescan,omitempty"`
	LLMConfig          LLMConfig          `json:"llm,omitempty" yaml:"llm,omitempty"`
	NotificationConfig NotificationConfig `json:"notification,omitempty" yaml:"notification,omitempty"`
	LogConfig          LogConfig          `json:"log_config,omitempty" yaml:"log_config,omitempty"`
}

// NewDefaultGlobalConfig creates a new GlobalConfig with default values
func NewDefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		ProjectConfig:      NewDefaultProjectConfig(),
		ServerConfig:       NewDefaultServerConfig(),
		StorageConfig:      NewDefaultStorageConfig(),
		PatternsConfig:     NewDefaultPatternsConfig(),
		RescanConfig:       NewDefaultRescanConfig(),
		LLMConfig:          NewDefaultLLMConfig(),
		NotificationConfig: NewDefaultNotificationConfig(),
		LogConfig:          NewDefaultLogConfig(),
	}
}

// LoadGlobalConfig loads the configuration from a file or default locations.
// An explicitly provided path that does not exist is an error; when no file
// is found anywhere the defaults are returned.
// YAML is used for .yaml/.yml files, JSON otherwise.
func LoadGlobalConfig(providedPath string, logger zerolog.Logger) (*GlobalConfig, error) {
	cfg := NewDefaultGlobalConfig()

	if providedPath != "" && !fileExists(providedPath) {
		return nil, common.NewValidationError("config_file", providedPath, "config file does not exist")
	}

	filePath := GetConfigPath(providedPath)
	if filePath == "" {
		logger.Debug().Msg("No config file found, using defaults")
		return cfg, nil
	}

	data, err := readConfigFile(filePath)
	if err != nil {
		return nil, common.WrapError(err, "failed to load config file content")
	}

	if err := parseConfigContent(data, filePath, cfg); err != nil {
		return nil, common.WrapError(err, "failed to parse config content")
	}

	logger.Info().Str("path", filePath).Msg("Configuration loaded")
	return cfg, nil
}

func readConfigFile(filePath string) ([]byte, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxConfigFileSize {
		return nil, common.NewValidationError("config_file", filePath, "config file too large")
	}
	return os.ReadFile(filePath)
}

// parseConfigContent parses the config content based on file extension
func parseConfigContent(data []byte, filePath string, cfg *GlobalConfig) error {
	if isYAMLFile(filepath.Ext(filePath)) {
		return parseYAMLConfig(data, filePath, cfg)
	}
	return parseJSONConfig(data, filePath, cfg)
}

// isYAMLFile checks if the file extension indicates a YAML file
func isYAMLFile(ext string) bool {
	return ext == ".yaml" || ext == ".yml"
}

func parseYAMLConfig(data []byte, filePath string, cfg *GlobalConfig) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return common.NewError("failed to unmarshal YAML from '%s': %w", filePath, err)
	}
	return nil
}

func parseJSONConfig(data []byte, filePath string, cfg *GlobalConfig) error {
	if err := json.Unmarshal(data, cfg); err != nil {
		return common.NewError("failed to unmarshal JSON from '%s': %w", filePath, err)
	}
	return nil
}
