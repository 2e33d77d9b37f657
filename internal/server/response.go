package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/holmes-py/JS-DeepLens/internal/common"
	"github.com/holmes-py/JS-DeepLens/internal/llm"
	"github.com/holmes-py/JS-DeepLens/internal/rescan"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write response")
	}
}

func (s *Server) writeMessage(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, messageResponse{Success: status < 400, Message: msg})
}

// writeError maps err onto a status code. Server-side failures are logged
// and reported as "<action> failed." so storage details never leak.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, action string) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError && msg == "" {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg(action + " failed")
		msg = action + " failed."
	}
	s.writeMessage(w, status, msg)
}

func classify(err error) (int, string) {
	var (
		verr *common.ValidationError
		cerr *llm.CollaboratorError
	)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		return http.StatusServiceUnavailable, "LLM disabled."
	case errors.Is(err, rescan.ErrAlreadyRunning):
		return http.StatusConflict, "Re-scan already in progress."
	case errors.Is(err, llm.ErrInvalidPrompt):
		return http.StatusBadRequest, "Invalid prompt generated or provided."
	case errors.As(err, &verr):
		return http.StatusBadRequest, fmt.Sprintf("Invalid %s: %s", verr.Field, verr.Message)
	case common.IsNotFound(err):
		return http.StatusNotFound, "Not found."
	case errors.As(err, &cerr):
		return http.StatusInternalServerError, cerr.Message
	default:
		return http.StatusInternalServerError, ""
	}
}

// decodeBody reads a JSON request body capped at the configured size.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) (int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodyMB)<<20)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, err
		}
		return http.StatusBadRequest, err
	}
	if len(data) == 0 {
		return 0, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return http.StatusBadRequest, err
	}
	return 0, nil
}
