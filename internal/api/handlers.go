package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/notify"
	"github.com/abhisek/gatekeep/internal/proctor"
	"github.com/abhisek/gatekeep/internal/resume"
)

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.ready {
		if err := p.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			s.respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
			return
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Session handlers

type intakeRequest struct {
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone"`
	Location          string   `json:"location"`
	Skills            []string `json:"skills"`
	PreferredLanguage string   `json:"preferred_language"`
	ResumeText        string   `json:"resume_text"`
}

// handleIntake accepts either a JSON body with the resume as text or a
// multipart form with the resume uploaded as the "resume" file.
func (s *Server) handleIntake(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)

	var req assessment.IntakeRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart form")
			return
		}
		req = assessment.IntakeRequest{
			Name:              r.FormValue("name"),
			Email:             r.FormValue("email"),
			Phone:             r.FormValue("phone"),
			Location:          r.FormValue("location"),
			Skills:            splitSkills(r.FormValue("skills")),
			PreferredLanguage: r.FormValue("preferred_language"),
		}
		f, hdr, err := r.FormFile("resume")
		if err != nil && !errors.Is(err, http.ErrMissingFile) {
			s.respondError(w, http.StatusBadRequest, "invalid_request", "unreadable resume upload")
			return
		}
		if err == nil {
			defer f.Close()
			data, err := io.ReadAll(f)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "invalid_request", "unreadable resume upload")
				return
			}
			req.Resume = resume.File{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: data}
		}
	} else {
		var body intakeRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
			return
		}
		req = assessment.IntakeRequest{
			Name:              body.Name,
			Email:             body.Email,
			Phone:             body.Phone,
			Location:          body.Location,
			Skills:            body.Skills,
			PreferredLanguage: body.PreferredLanguage,
		}
		if body.ResumeText != "" {
			req.Resume = resume.File{Name: "resume.txt", ContentType: "text/plain", Data: []byte(body.ResumeText)}
		}
	}

	sess, err := s.engine.SubmitIntake(r.Context(), req)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, map[string]any{
		"session":   toView(sess),
		"materials": sess.ViewFor(sess.CurrentStage),
	})
}

func splitSkills(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := assessment.ListFilter{CandidateID: q.Get("candidate_id")}

	if v := q.Get("stage"); v != "" {
		st, err := assessment.ParseStage(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		f.Stage = st
	}
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "validation_error", "active must be a boolean")
			return
		}
		f.Active = active
	}
	f.Limit = 50
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			s.respondError(w, http.StatusBadRequest, "validation_error", "limit must be between 1 and 500")
			return
		}
		f.Limit = n
	}

	sessions, err := s.engine.List(r.Context(), f)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}

	out := make([]sessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, toView(sess))
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"sessions": out,
		"total":    len(out),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toView(sess))
}

func (s *Server) handleMaterials(w http.ResponseWriter, r *http.Request) {
	m, err := s.engine.Materials(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, m)
}

func (s *Server) handleVerdict(w http.ResponseWriter, r *http.Request) {
	sess, err := s.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	if sess.Verdict == nil {
		s.respondError(w, http.StatusConflict, "verdict_pending", "the assessment is still in progress")
		return
	}

	sum := notify.Summarize(*sess)
	s.respondJSON(w, http.StatusOK, map[string]any{
		"summary": sum,
		"message": sum.CandidateText(),
	})
}

// stageParam reads the {stage} path segment.
func (s *Server) stageParam(w http.ResponseWriter, r *http.Request) (assessment.Stage, bool) {
	st, err := assessment.ParseStage(chi.URLParam(r, "stage"))
	if err != nil || !st.Graded() {
		s.respondError(w, http.StatusBadRequest, "validation_error", "stage must be objective_test, communication_test or coding_test")
		return "", false
	}
	return st, true
}

func (s *Server) decodeSubmission(w http.ResponseWriter, r *http.Request) (assessment.Submission, bool) {
	var sub assessment.Submission
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return sub, false
	}
	return sub, true
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	stage, ok := s.stageParam(w, r)
	if !ok {
		return
	}
	sub, ok := s.decodeSubmission(w, r)
	if !ok {
		return
	}

	sess, err := s.engine.SaveDraft(r.Context(), chi.URLParam(r, "id"), stage, sub)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toView(sess))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	stage, ok := s.stageParam(w, r)
	if !ok {
		return
	}
	sub, ok := s.decodeSubmission(w, r)
	if !ok {
		return
	}

	step, err := s.engine.SubmitStageAnswers(r.Context(), chi.URLParam(r, "id"), stage, sub)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toStepView(step))
}

type signalRequest struct {
	Kind   proctor.Kind `json:"kind" validate:"required"`
	Active *bool        `json:"active"`
	At     time.Time    `json:"at"`
	Detail string       `json:"detail" validate:"max=500"`
}

func (r signalRequest) signal() proctor.Signal {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return proctor.Signal{Kind: r.Kind, Active: active, At: r.At, Detail: r.Detail}
}

func (s *Server) handleViolation(w http.ResponseWriter, r *http.Request) {
	var req signalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", "kind is required")
		return
	}

	out, err := s.engine.ReportViolation(r.Context(), chi.URLParam(r, "id"), req.signal())
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, out)
}

type abortRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	var req abortRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, http.StatusBadRequest, "validation_error", "reason is required")
		return
	}

	sess, err := s.engine.Abort(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.respondEngineError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, toView(sess))
}
