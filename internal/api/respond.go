package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/assessment"
)

type apiResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []assessment.FieldError `json:"fields,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	s.write(w, status, apiResponse{Success: status >= 200 && status < 300, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.write(w, status, apiResponse{Error: &apiError{Code: code, Message: message}})
}

func (s *Server) write(w http.ResponseWriter, status int, resp apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// classify maps an engine error to a status and error body.
func classify(err error) (int, *apiError) {
	var (
		verr     *assessment.ValidationError
		mismatch *assessment.StageMismatchError
		ended    *assessment.SessionTerminatedError
		grading  *assessment.GradingFailure
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, &apiError{Code: "validation_error", Message: verr.Error(), Fields: verr.Fields}
	case errors.Is(err, assessment.ErrSessionNotFound):
		return http.StatusNotFound, &apiError{Code: "session_not_found", Message: "session not found"}
	case errors.As(err, &mismatch):
		return http.StatusConflict, &apiError{Code: "stage_mismatch", Message: mismatch.Error()}
	case errors.As(err, &ended):
		return http.StatusConflict, &apiError{Code: "session_terminated", Message: ended.Error()}
	case errors.As(err, &grading):
		return http.StatusServiceUnavailable, &apiError{Code: "grading_failed", Message: "grading is temporarily unavailable, please retry"}
	}
	return http.StatusInternalServerError, &apiError{Code: "internal_error", Message: "internal error"}
}

func (s *Server) respondEngineError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}
	s.write(w, status, apiResponse{Error: body})
}
