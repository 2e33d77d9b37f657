package service

import (
	"context"
	"errors"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/llm"
	"golang.org/x/sync/errgroup"
)

// Finding types reported to the model for each entry point.
const (
	findingTypeFullScript = "Full Script"
	findingTypeWithAST    = "Full Script + AST"
	findingTypeBatch      = "Full Script Batch"
)

// BatchItem is the per-record outcome of AnalyzeLLMBatch.
type BatchItem struct {
	FindingID int64  `json:"findingId"`
	Success   bool   `json:"success"`
	Analysis  string `json:"analysis"`
}

// LLMEnabled reports whether a model collaborator is configured.
func (s *Service) LLMEnabled() bool {
	return s.llmEnabled()
}

// LLMBatchLimit is the largest batch AnalyzeLLMBatch accepts.
func (s *Service) LLMBatchLimit() int {
	return s.cfg.LLMConfig.MaxBatchSize
}

// DefaultLLMPrompt renders the prompt that AnalyzeLLM would send for id
// when no custom prompt is given.
func (s *Service) DefaultLLMPrompt(ctx context.Context, id int64) (string, error) {
	if !s.llmEnabled() {
		return "", llm.ErrDisabled
	}
	rec, body, err := s.loadScript(ctx, id)
	if err != nil {
		return "", err
	}
	return llm.DefaultPrompt(llm.Request{ScriptText: string(body), SourceURL: rec.URL})
}

// AnalyzeLLM sends a stored script, or customPrompt when set, to the model.
func (s *Service) AnalyzeLLM(ctx context.Context, id int64, customPrompt string) (string, error) {
	if !s.llmEnabled() {
		return "", llm.ErrDisabled
	}
	rec, body, err := s.loadScript(ctx, id)
	if err != nil {
		return "", err
	}
	return s.llm.Analyze(ctx, llm.Request{
		ScriptText:   string(body),
		SourceURL:    rec.URL,
		FindingType:  findingTypeFullScript,
		CustomPrompt: customPrompt,
	})
}

// AnalyzeLLMWithAST enriches the prompt with the syntax heuristic summary.
func (s *Service) AnalyzeLLMWithAST(ctx context.Context, id int64) (string, error) {
	if !s.llmEnabled() {
		return "", llm.ErrDisabled
	}
	rec, body, err := s.loadScript(ctx, id)
	if err != nil {
		return "", err
	}
	ast := s.analyzeSyntax(ctx, rec, body)
	return s.llm.Analyze(ctx, llm.Request{
		ScriptText:       string(body),
		SourceURL:        rec.URL,
		FindingType:      findingTypeWithAST,
		HeuristicSummary: llm.BuildHeuristicSummary(ast.Findings, ast.Endpoints),
	})
}

// AnalyzeLLMBatch analyzes up to the configured batch size of records.
// Results keep the order of ids; a failing item never fails the batch.
func (s *Service) AnalyzeLLMBatch(ctx context.Context, ids []int64) ([]BatchItem, error) {
	if !s.llmEnabled() {
		return nil, llm.ErrDisabled
	}
	if len(ids) > s.LLMBatchLimit() {
		return nil, common.NewValidationError("findingIds", len(ids), "batch too large")
	}
	results := make([]BatchItem, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	var g errgroup.Group
	g.SetLimit(max(s.cfg.LLMConfig.BatchConcurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.analyzeBatchItem(ctx, id)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (s *Service) analyzeBatchItem(ctx context.Context, id int64) BatchItem {
	item := BatchItem{FindingID: id}
	rec, body, err := s.loadScript(ctx, id)
	if err == nil {
		item.Analysis, err = s.llm.Analyze(ctx, llm.Request{
			ScriptText:  string(body),
			SourceURL:   rec.URL,
			FindingType: findingTypeBatch,
		})
	}
	if err != nil {
		s.logger.Warn().Err(err).Int64("id", id).Msg("Batch item analysis failed")
		item.Analysis = "LLM/Fetch Err: " + batchFailureMessage(err)
		return item
	}
	item.Success = true
	return item
}

// batchFailureMessage is the client-facing reason for a failed batch item.
// Storage errors are reduced to a generic message so paths stay in the log.
func batchFailureMessage(err error) string {
	var cerr *llm.CollaboratorError
	switch {
	case errors.As(err, &cerr):
		return cerr.Message
	case common.IsNotFound(err):
		return "Not found."
	case common.IsValidation(err):
		return "Invalid ID."
	default:
		return "Fetch failed."
	}
}
