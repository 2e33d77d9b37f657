package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/models"
	"github.com/holmes-py/JS-DeepLens/internal/service"
)

type analyzeResponse struct {
	Success       bool   `json:"success"`
	FindingsCount int    `json:"findings_count"`
	Message       string `json:"message,omitempty"`
}

type scopeResponse struct {
	IncludeList []string `json:"includeList"`
	ExcludeList []string `json:"excludeList"`
}

type rescanStatusResponse struct {
	Running bool                  `json:"running"`
	Last    *models.RescanSummary `json:"last,omitempty"`
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	s.svc.RecordRequest(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL     any `json:"url"`
		Content any `json:"content"`
	}
	if status, _ := s.decodeBody(w, r, &req); status == http.StatusRequestEntityTooLarge {
		s.writeMessage(w, status, "Payload too large.")
		return
	}

	url, _ := req.URL.(string)
	var content *string
	if c, ok := req.Content.(string); ok {
		content = &c
	}

	res, err := s.svc.Ingest(r.Context(), url, content)
	if common.IsValidation(err) {
		s.writeMessage(w, http.StatusBadRequest, "Missing URL/content.")
		return
	}
	if err != nil {
		s.writeError(w, r, err, "Analyze")
		return
	}
	if !res.IsNew {
		s.writeJSON(w, http.StatusOK, analyzeResponse{Success: true, Message: "Content processed."})
		return
	}
	s.writeJSON(w, http.StatusOK, analyzeResponse{Success: true, FindingsCount: res.FindingCount})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Stats(r.Context()))
}

func (s *Server) handleGetScope(w http.ResponseWriter, _ *http.Request) {
	cfg := s.svc.Scope()
	s.writeJSON(w, http.StatusOK, scopeResponse{
		IncludeList: nonNil(cfg.IncludePatterns),
		ExcludeList: nonNil(cfg.ExcludePatterns),
	})
}

func (s *Server) handleSetScope(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IncludeList any `json:"includeList"`
		ExcludeList any `json:"excludeList"`
	}
	if status, err := s.decodeBody(w, r, &req); err != nil {
		s.writeMessage(w, status, "Invalid format.")
		return
	}
	include, okInclude := stringList(req.IncludeList)
	exclude, okExclude := stringList(req.ExcludeList)
	if !okInclude || !okExclude {
		s.writeMessage(w, http.StatusBadRequest, "Invalid format.")
		return
	}

	if err := s.svc.UpdateScope(r.Context(), models.ScopeConfig{IncludePatterns: include, ExcludePatterns: exclude}); err != nil {
		s.writeError(w, r, err, "Save scope")
		return
	}
	s.writeMessage(w, http.StatusOK, "Scope saved.")
}

func (s *Server) handleAvailablePatterns(w http.ResponseWriter, r *http.Request) {
	files, err := s.svc.AvailablePatterns()
	if err != nil {
		s.writeError(w, r, err, "List patterns")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"availableFiles": nonNil(files)})
}

func (s *Server) handleSelectedPatterns(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{"selectedFiles": nonNil(s.svc.SelectedPatterns())})
}

func (s *Server) handleSelectPatterns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SelectedFiles any `json:"selectedFiles"`
	}
	if status, err := s.decodeBody(w, r, &req); err != nil {
		s.writeMessage(w, status, "Invalid format.")
		return
	}
	files, ok := stringList(req.SelectedFiles)
	if !ok {
		s.writeMessage(w, http.StatusBadRequest, "Invalid format.")
		return
	}
	if _, err := s.svc.SelectPatterns(r.Context(), files); err != nil {
		s.writeError(w, r, err, "Save patterns")
		return
	}
	s.writeMessage(w, http.StatusOK, "Saved.")
}

func (s *Server) handleStartRescan(w http.ResponseWriter, r *http.Request) {
	jobID, err := s.svc.StartRescan()
	if err != nil {
		s.writeError(w, r, err, "Re-scan")
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"success": true,
		"message": "Re-scan process initiated.",
		"jobId":   jobID,
	})
}

func (s *Server) handleRescanStatus(w http.ResponseWriter, _ *http.Request) {
	running, last := s.svc.RescanStatus()
	s.writeJSON(w, http.StatusOK, rescanStatusResponse{Running: running, Last: last})
}

func (s *Server) handleFindings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), service.DefaultPageSize)
	offset := queryInt(q.Get("offset"), 0)

	page, err := s.svc.ListFindings(r.Context(), offset, limit)
	if common.IsValidation(err) {
		s.writeMessage(w, http.StatusBadRequest, "Invalid limit/offset.")
		return
	}
	if err != nil {
		s.writeError(w, r, err, "Fetch findings")
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName string `json:"fileName"`
	}
	if status, err := s.decodeBody(w, r, &req); err != nil {
		s.writeMessage(w, status, "Invalid format.")
		return
	}
	result, err := s.svc.ExportFindings(r.Context(), req.FileName)
	if err != nil {
		s.writeError(w, r, err, "Export")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"fileName":    filepath.Base(result.FilePath),
		"rowsWritten": result.RecordsWritten,
	})
}

func (s *Server) handleScript(w http.ResponseWriter, r *http.Request) {
	body, err := s.svc.ScriptContent(r.Context(), chi.URLParam(r, "hash"))
	switch {
	case common.IsValidation(err):
		writeText(w, http.StatusBadRequest, "Invalid hash.")
	case common.IsNotFound(err):
		writeText(w, http.StatusNotFound, "/* Not found. */")
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to read script body")
		writeText(w, http.StatusInternalServerError, "/* Error. */")
	default:
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}

func (s *Server) handleAnalyzeAST(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	res, err := s.svc.AnalyzeAST(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "AST analysis")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"astFindings": res.Findings,
		"endpoints":   res.Endpoints,
	})
}

func (s *Server) handleLLMPrompt(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	prompt, err := s.svc.DefaultLLMPrompt(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "Prompt generation")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "defaultPrompt": prompt})
}

func (s *Server) handleAnalyzeLLM(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		CustomPrompt any `json:"customPrompt"`
	}
	if status, err := s.decodeBody(w, r, &req); err != nil {
		s.writeMessage(w, status, "Invalid format.")
		return
	}
	custom, _ := req.CustomPrompt.(string)

	analysis, err := s.svc.AnalyzeLLM(r.Context(), id, custom)
	if err != nil {
		s.writeError(w, r, err, "LLM analysis")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "analysis": analysis})
}

func (s *Server) handleAnalyzeLLMWithAST(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	analysis, err := s.svc.AnalyzeLLMWithAST(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err, "LLM+AST analysis")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "analysis": analysis})
}

func (s *Server) handleAnalyzeLLMBatch(w http.ResponseWriter, r *http.Request) {
	if !s.requireLLM(w) {
		return
	}
	var req struct {
		FindingIDs any `json:"findingIds"`
	}
	if status, err := s.decodeBody(w, r, &req); err != nil {
		s.writeMessage(w, status, "Invalid payload")
		return
	}
	ids, ok := idList(req.FindingIDs)
	if !ok {
		s.writeMessage(w, http.StatusBadRequest, "Invalid payload")
		return
	}
	if limit := s.svc.LLMBatchLimit(); len(ids) > limit {
		s.writeMessage(w, http.StatusBadRequest, fmt.Sprintf("Batch max %d.", limit))
		return
	}

	results, err := s.svc.AnalyzeLLMBatch(r.Context(), ids)
	if err != nil {
		s.writeError(w, r, err, "Batch")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"success": true, "results": results})
}

func (s *Server) requireLLM(w http.ResponseWriter) bool {
	if s.svc.LLMEnabled() {
		return true
	}
	s.writeMessage(w, http.StatusServiceUnavailable, "LLM disabled.")
	return false
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeMessage(w, http.StatusBadRequest, "Invalid ID.")
		return 0, false
	}
	return id, true
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

// stringList accepts only a JSON array whose items are all strings.
func stringList(v any) ([]string, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

// idList accepts integer ids given as JSON numbers or numeric strings.
func idList(v any) ([]int64, bool) {
	items, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int64, 0, len(items))
	for _, item := range items {
		switch id := item.(type) {
		case float64:
			if id != float64(int64(id)) {
				return nil, false
			}
			out = append(out, int64(id))
		case string:
			n, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return nil, false
			}
			out = append(out, n)
		default:
			return nil, false
		}
	}
	return out, true
}

func queryInt(raw string, def int) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
