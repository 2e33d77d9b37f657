package logger

import (
	"io"

	"github.com/rs/zerolog"
)

// LoggerConfig is the resolved logger setup after parsing config.LogConfig.
type LoggerConfig struct {
	Level         zerolog.Level
	Format        LogFormat
	EnableConsole bool
	EnableFile    bool
	FilePath      string
	MaxSizeMB     int
	MaxBackups    int
	// Console overrides the console destination (stderr when nil).
	Console io.Writer
}

// LogFormat selects how log lines are rendered.
type LogFormat int

const (
	FormatJSON LogFormat = iota
	FormatConsole
	FormatText
)

var formatNames = [...]string{"json", "console", "text"}

func (lf LogFormat) String() string {
	if lf < 0 || int(lf) >= len(formatNames) {
		return formatNames[FormatConsole]
	}
	return formatNames[lf]
}

// DefaultLoggerConfig logs info and above to a colored console.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		Level:         zerolog.InfoLevel,
		Format:        FormatConsole,
		EnableConsole: true,
		MaxSizeMB:     fallbackMaxSizeMB,
		MaxBackups:    fallbackMaxBackups,
	}
}
