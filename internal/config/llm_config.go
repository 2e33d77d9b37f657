package config

import "os"

// LLMConfig configures the optional Gemini collaborator
type LLMConfig struct {
	APIKey           string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	APIKeyEnv        string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	Model            string `json:"model,omitempty" yaml:"model,omitempty" validate:"required"`
	TimeoutSecs      int    `json:"timeout_secs,omitempty" yaml:"timeout_secs,omitempty" validate:"min=1"`
	MaxBatchSize     int    `json:"max_batch_size,omitempty" yaml:"max_batch_size,omitempty" validate:"min=1"`
	BatchConcurrency int    `json:"batch_concurrency,omitempty" yaml:"batch_concurrency,omitempty" validate:"min=1"`
}

// NewDefaultLLMConfig creates default LLM configuration
func NewDefaultLLMConfig() LLMConfig {
	return LLMConfig{
		APIKeyEnv:        DefaultLLMAPIKeyEnv,
		Model:            DefaultLLMModel,
		TimeoutSecs:      DefaultLLMTimeoutSecs,
		MaxBatchSize:     DefaultLLMMaxBatchSize,
		BatchConcurrency: DefaultLLMBatchConcurrency,
	}
}

// ResolveAPIKey returns the configured key, falling back to the api_key_env variable
func (c LLMConfig) ResolveAPIKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}
