package config

const (
	// Project Defaults
	DefaultProjectName     = "default"
	DefaultProjectsBaseDir = "projects"

	// Server Defaults
	DefaultServerListenAddress = "127.0.0.1:3000"
	DefaultServerMaxBodyMB     = 50

	// Storage Defaults
	DefaultStorageDatabaseFile  = "database.db"
	DefaultStorageScriptsDir    = "js_files"
	DefaultStorageExportDir     = "exports"
	DefaultStorageBusyTimeoutMs = 5000

	// Patterns Defaults
	DefaultPatternsDirectory = "patterns"

	// Rescan Defaults
	DefaultRescanProgressEvery = 10
	DefaultRescanYieldDelayMs  = 5

	// LLM Defaults
	DefaultLLMModel            = "gemini-1.5-flash-latest"
	DefaultLLMAPIKeyEnv        = "GEMINI_API_KEY"
	DefaultLLMTimeoutSecs      = 60
	DefaultLLMMaxBatchSize     = 10
	DefaultLLMBatchConcurrency = 3

	// Notification Defaults
	DefaultNotificationEventBuffer = 64

	// Log Defaults
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultLogFile       = ""
	DefaultMaxLogSizeMB  = 100
	DefaultMaxLogBackups = 3

	// ConfigPathEnv names the environment variable consulted by GetConfigPath
	ConfigPathEnv = "JSDEEPLENS_CONFIG_PATH"
)
