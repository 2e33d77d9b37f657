package logger

import (
	"strings"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/config"
	"github.com/rs/zerolog"
)

const (
	fallbackMaxSizeMB  = 100
	fallbackMaxBackups = 3
)

// ConfigConverter turns the log_config section into a LoggerConfig.
type ConfigConverter struct{}

// NewConfigConverter creates a new config converter
func NewConfigConverter() *ConfigConverter {
	return &ConfigConverter{}
}

// ConvertConfig converts application config to logger config.
// An unparsable level falls back to info and is reported alongside the result.
func (cc *ConfigConverter) ConvertConfig(cfg config.LogConfig) (LoggerConfig, error) {
	level, err := parseLevel(cfg.LogLevel)

	return LoggerConfig{
		Level:         level,
		Format:        parseFormat(cfg.LogFormat),
		EnableConsole: true,
		EnableFile:    cfg.LogFile != "",
		FilePath:      cfg.LogFile,
		MaxSizeMB:     positiveOr(cfg.MaxLogSizeMB, fallbackMaxSizeMB),
		MaxBackups:    positiveOr(cfg.MaxLogBackups, fallbackMaxBackups),
	}, err
}

func parseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel, common.NewValidationError("log_level", s, "unknown level")
	}
	return level, nil
}

func parseFormat(s string) LogFormat {
	for f, name := range formatNames {
		if strings.EqualFold(s, name) {
			return LogFormat(f)
		}
	}
	return FormatConsole
}

func positiveOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
