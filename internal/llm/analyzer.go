package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDisabled means no API key is configured; it is not a failure of the collaborator.
	ErrDisabled = errors.New("llm disabled")
	// ErrInvalidPrompt rejects prompts too short to be meaningful.
	ErrInvalidPrompt = errors.New("invalid prompt generated or provided")
)

// MinPromptLength is the shortest prompt sent to the model.
const MinPromptLength = 20

// Reason classifies a collaborator failure.
type Reason string

const (
	ReasonInvalidCredentials Reason = "invalid-credentials"
	ReasonRateLimited        Reason = "rate-limited"
	ReasonPayloadTooLarge    Reason = "payload-too-large"
	ReasonBlocked            Reason = "blocked"
	ReasonFailed             Reason = "failed"
)

// CollaboratorError is a classified model failure with a user-facing message.
type CollaboratorError struct {
	Reason  Reason
	Message string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return e.Message
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func newCollaboratorError(reason Reason, err error, format string, args ...any) *CollaboratorError {
	return &CollaboratorError{Reason: reason, Message: fmt.Sprintf(format, args...), Err: err}
}

// Request describes one analysis. CustomPrompt, when set, replaces the default prompt.
type Request struct {
	ScriptText       string
	SourceURL        string
	FindingType      string
	Pattern          string
	CustomPrompt     string
	HeuristicSummary string
}

// Analyzer is the opaque text-in/text-out model collaborator.
type Analyzer interface {
	Enabled() bool
	Analyze(ctx context.Context, req Request) (string, error)
}

// BuildPrompt returns the prompt that Analyze would send for req.
func BuildPrompt(req Request) (string, error) {
	if req.CustomPrompt == "" && req.ScriptText == "" {
		return "", ErrInvalidPrompt
	}
	prompt := req.CustomPrompt
	if prompt == "" {
		var err error
		if prompt, err = DefaultPrompt(req); err != nil {
			return "", err
		}
	}
	if len(prompt) < MinPromptLength {
		return "", ErrInvalidPrompt
	}
	return prompt, nil
}
