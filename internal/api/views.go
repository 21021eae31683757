package api

import (
	"time"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/proctor"
)

// sessionView is a session without its answer keys.
type sessionView struct {
	ID           string                                      `json:"id"`
	CandidateID  string                                      `json:"candidate_id"`
	Profile      assessment.CandidateProfile                 `json:"profile"`
	CurrentStage assessment.Stage                            `json:"current_stage"`
	Deadline     *time.Time                                  `json:"deadline,omitempty"`
	Results      map[assessment.Stage]assessment.StageResult `json:"results"`
	Violations   []proctor.Violation                         `json:"violations"`
	History      []assessment.Transition                     `json:"history"`
	StartedAt    time.Time                                   `json:"started_at"`
	UpdatedAt    time.Time                                   `json:"updated_at"`
	Verdict      *assessment.Verdict                         `json:"verdict,omitempty"`
	Cause        assessment.Cause                            `json:"cause,omitempty"`
}

func toView(s *assessment.Session) sessionView {
	v := sessionView{
		ID:           s.ID,
		CandidateID:  s.CandidateID,
		Profile:      s.Profile,
		CurrentStage: s.CurrentStage,
		Results:      s.Results,
		Violations:   s.Violations(),
		History:      s.History,
		StartedAt:    s.StartedAt,
		UpdatedAt:    s.UpdatedAt,
		Verdict:      s.Verdict,
		Cause:        s.Cause,
	}
	if d, ok := s.Deadline(); ok && !s.Final() {
		v.Deadline = &d
	}
	if v.Results == nil {
		v.Results = map[assessment.Stage]assessment.StageResult{}
	}
	if v.Violations == nil {
		v.Violations = []proctor.Violation{}
	}
	return v
}

type stepView struct {
	Session   sessionView                `json:"session"`
	Result    assessment.StageResult     `json:"result"`
	Next      assessment.Stage           `json:"next"`
	Materials *assessment.StageMaterials `json:"materials,omitempty"`
	Verdict   *assessment.Verdict        `json:"verdict,omitempty"`
}

func toStepView(r *assessment.StepResult) stepView {
	return stepView{
		Session:   toView(r.Session),
		Result:    r.Result,
		Next:      r.Next,
		Materials: r.Materials,
		Verdict:   r.Verdict,
	}
}
