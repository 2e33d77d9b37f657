package service

import (
	"context"
	"strings"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/datastore"
	"github.com/holmes-py/JS-DeepLens/internal/models"
)

const (
	// DefaultPageSize is used when a caller passes no limit.
	DefaultPageSize = 50
	// pageOverfetch compensates for records dropped by the scope filter.
	pageOverfetch = 50
	exportBatch   = 500
)

// FindingsPage is one scope-filtered page of records. NextOffset is the
// offset to pass for the following page.
type FindingsPage struct {
	Findings   []models.ScriptRecord `json:"findings"`
	HasMore    bool                  `json:"hasMore"`
	NextOffset int                   `json:"nextOffset"`
}

// ASTResult is the output of AnalyzeAST.
type ASTResult struct {
	Findings  []models.ASTFinding        `json:"astFindings"`
	Endpoints []models.ExtractedEndpoint `json:"endpoints"`
}

// ListFindings returns in-scope records newest first. offset indexes the
// unfiltered record order.
func (s *Service) ListFindings(ctx context.Context, offset, limit int) (FindingsPage, error) {
	if offset < 0 {
		return FindingsPage{}, common.NewValidationError("offset", offset, "must not be negative")
	}
	if limit < 0 {
		return FindingsPage{}, common.NewValidationError("limit", limit, "must not be negative")
	}
	if limit == 0 {
		limit = DefaultPageSize
	}

	fetch := limit + pageOverfetch
	batch, err := s.records.ListPage(ctx, offset, fetch)
	if err != nil {
		return FindingsPage{}, err
	}

	page := FindingsPage{Findings: make([]models.ScriptRecord, 0, limit)}
	consumed := 0
	for _, rec := range batch {
		if len(page.Findings) == limit {
			break
		}
		consumed++
		if s.scope.IsInScope(rec.URL) {
			page.Findings = append(page.Findings, rec)
		}
	}
	page.NextOffset = offset + consumed

	if len(page.Findings) < limit {
		return page, nil
	}
	for _, rec := range batch[consumed:] {
		if s.scope.IsInScope(rec.URL) {
			page.HasMore = true
			return page, nil
		}
	}
	if len(batch) == fetch {
		next, err := s.records.ListPage(ctx, offset+fetch, 1)
		if err != nil {
			return FindingsPage{}, err
		}
		page.HasMore = len(next) > 0
	}
	return page, nil
}

// ScriptContent returns the stored body for a content hash. Hex case is ignored.
func (s *Service) ScriptContent(ctx context.Context, hash string) ([]byte, error) {
	hash = strings.ToLower(hash)
	if !datastore.IsContentHash(hash) {
		return nil, common.NewValidationError("hash", hash, "invalid hash")
	}
	if _, err := s.records.GetByHash(ctx, hash); err != nil {
		return nil, err
	}
	return s.blobs.Get(hash)
}

// loadScript fetches a record and its body.
func (s *Service) loadScript(ctx context.Context, id int64) (models.ScriptRecord, []byte, error) {
	if id <= 0 {
		return models.ScriptRecord{}, nil, common.NewValidationError("id", id, "invalid id")
	}
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return rec, nil, err
	}
	body, err := s.blobs.Get(rec.ContentHash)
	if err != nil {
		s.logger.Error().Err(err).Int64("id", id).Msg("Record has no readable script body")
		return rec, nil, err
	}
	return rec, body, nil
}

// AnalyzeAST runs the syntax heuristics and endpoint extraction on a stored script.
func (s *Service) AnalyzeAST(ctx context.Context, id int64) (ASTResult, error) {
	rec, body, err := s.loadScript(ctx, id)
	if err != nil {
		return ASTResult{}, err
	}
	return s.analyzeSyntax(ctx, rec, body), nil
}

func (s *Service) analyzeSyntax(ctx context.Context, rec models.ScriptRecord, body []byte) ASTResult {
	res := ASTResult{
		Findings:  s.syntax.Scan(ctx, body, rec.URL),
		Endpoints: s.syntax.ExtractEndpoints(body, rec.URL),
	}
	if res.Findings == nil {
		res.Findings = []models.ASTFinding{}
	}
	if res.Endpoints == nil {
		res.Endpoints = []models.ExtractedEndpoint{}
	}
	return res
}

// ExportFindings writes every regex finding to a parquet file in the
// project's export directory. An empty fileName picks a timestamped one.
func (s *Service) ExportFindings(ctx context.Context, fileName string) (*datastore.WriteResult, error) {
	var all []models.ScriptRecord
	for offset := 0; ; offset += exportBatch {
		if result := common.CheckCancellationWithLog(ctx, s.logger, "findings export"); result.Cancelled {
			return nil, result.Error
		}
		batch, err := s.records.ListPage(ctx, offset, exportBatch)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < exportBatch {
			break
		}
	}

	result, err := s.exporter.Write(ctx, fileName, datastore.FlattenFindings(all))
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("file", result.FilePath).Int("rows", result.RecordsWritten).Int("records", len(all)).Msg("Findings exported")
	return result, nil
}
