package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/config"
	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// contentGenerator is the part of the genai client used here; *genai.Models satisfies it.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiOption adjusts the genai client configuration.
type GeminiOption func(*genai.ClientConfig)

// WithBaseURL points the client at an alternative endpoint.
func WithBaseURL(baseURL string) GeminiOption {
	return func(cc *genai.ClientConfig) { cc.HTTPOptions.BaseURL = baseURL }
}

// WithHTTPClient sets the transport used by the client.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(cc *genai.ClientConfig) { cc.HTTPClient = c }
}

// GeminiAnalyzer sends prompts to a Gemini model through google.golang.org/genai.
type GeminiAnalyzer struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewGeminiAnalyzer builds the analyzer. Without an API key it is returned
// disabled and every Analyze call yields ErrDisabled.
func NewGeminiAnalyzer(ctx context.Context, cfg config.LLMConfig, logger zerolog.Logger, opts ...GeminiOption) (*GeminiAnalyzer, error) {
	a := &GeminiAnalyzer{
		model:   cfg.Model,
		timeout: time.Duration(cfg.TimeoutSecs) * time.Second,
		logger:  logger.With().Str("component", "GeminiAnalyzer").Logger(),
	}
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		a.logger.Warn().Str("env", cfg.APIKeyEnv).Msg("No Gemini API key configured, LLM analysis disabled")
		return a, nil
	}

	cc := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	for _, opt := range opts {
		opt(cc)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, err
	}
	a.models = client.Models
	a.logger.Info().Str("model", a.model).Msg("Gemini client initialized")
	return a, nil
}

func (a *GeminiAnalyzer) Enabled() bool {
	return a.models != nil
}

// Analyze sends the prompt for req and returns the model's text.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, req Request) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return "", err
	}

	a.logger.Debug().Int("prompt_length", len(prompt)).Str("url", req.SourceURL).Msg("Sending prompt to Gemini")
	start := time.Now()
	var resp *genai.GenerateContentResponse
	err = common.ExecuteWithTimeout(ctx, a.timeout, func(ctx context.Context) error {
		var genErr error
		resp, genErr = a.models.GenerateContent(ctx, a.model, genai.Text(prompt), generationConfig())
		if genErr != nil {
			cerr := classifyError(ctx, genErr)
			a.logger.Error().Err(genErr).Str("reason", string(cerr.Reason)).Msg("Gemini request failed")
			return cerr
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	a.logger.Debug().Dur("duration", time.Since(start)).Msg("Gemini request complete")
	return interpretResponse(resp)
}

func generationConfig() *genai.GenerateContentConfig {
	threshold := genai.HarmBlockThresholdBlockMediumAndAbove
	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0.3),
		TopK:            genai.Ptr[float32](1),
		TopP:            genai.Ptr[float32](1),
		MaxOutputTokens: 2048,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: threshold},
			{Category: genai.HarmCategoryHateSpeech, Threshold: threshold},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: threshold},
			{Category: genai.HarmCategoryDangerousContent, Threshold: threshold},
		},
	}
}

func interpretResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", newCollaboratorError(ReasonFailed, nil, "LLM analysis failed: empty response.")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", newCollaboratorError(ReasonBlocked, nil, "LLM analysis blocked. Reason: %s.", resp.PromptFeedback.BlockReason)
	}
	text := resp.Text()
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		finish := resp.Candidates[0].FinishReason
		if finish != "" && finish != genai.FinishReasonStop {
			if text == "" {
				return "", newCollaboratorError(ReasonBlocked, nil, "LLM analysis blocked or finished unexpectedly. Reason: %s.", finish)
			}
			return "LLM analysis returned partial text. Reason: " + string(finish) + ".\nPartial Response:\n" + text, nil
		}
	}
	if text == "" {
		return "LLM analysis returned no text.", nil
	}
	return text, nil
}

func classifyError(ctx context.Context, err error) *CollaboratorError {
	if common.IsContextError(err) || common.IsContextError(ctx.Err()) {
		return newCollaboratorError(ReasonFailed, err, "LLM analysis failed: request timed out or was cancelled.")
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		msg := strings.ToLower(apiErr.Message)
		switch {
		case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden ||
			strings.Contains(msg, "api key not valid"):
			return newCollaboratorError(ReasonInvalidCredentials, err, "LLM analysis failed: Invalid or missing API Key.")
		case apiErr.Code == http.StatusTooManyRequests || strings.Contains(msg, "quota"):
			return newCollaboratorError(ReasonRateLimited, err, "LLM analysis failed: Rate limit or quota exceeded.")
		case apiErr.Code == http.StatusRequestEntityTooLarge ||
			strings.Contains(msg, "longer than the supported maximum") || strings.Contains(msg, "token limit"):
			return newCollaboratorError(ReasonPayloadTooLarge, err, "LLM analysis failed: Input content exceeded model's token limit.")
		}
		return newCollaboratorError(ReasonFailed, err, "LLM analysis failed: %s", apiErr.Message)
	}
	return newCollaboratorError(ReasonFailed, err, "LLM analysis failed: %s", err.Error())
}
