// Package notify delivers the verdict of a finished assessment.
package notify

import (
	"fmt"
	"strings"

	"github.com/abhisek/gatekeep/internal/assessment"
)

// StageLine is one stage's outcome in a Summary.
type StageLine struct {
	Stage    assessment.Stage `json:"stage"`
	Label    string           `json:"label"`
	Score    int              `json:"score"`
	MaxScore int              `json:"max_score"`
	Percent  int              `json:"percent"`
	Passed   bool             `json:"passed"`
	TimedOut bool             `json:"timed_out,omitempty"`
}

// Summary is the notification view of a finished session.
type Summary struct {
	SessionID            string            `json:"session_id"`
	CandidateName        string            `json:"candidate_name"`
	CandidateEmail       string            `json:"candidate_email"`
	Status               assessment.Status `json:"status"`
	EligibleForInterview bool              `json:"eligible_for_interview"`
	SponsorshipApproved  bool              `json:"sponsorship_approved"`
	Cause                assessment.Cause  `json:"cause"`
	EndedAt              assessment.Stage  `json:"ended_at"`
	Stages               []StageLine       `json:"stages"`
	Violations           int               `json:"violations"`
	Reasons              []string          `json:"reasons"`
}

// Summarize builds the notification view of s.
func Summarize(s assessment.Session) Summary {
	sum := Summary{
		SessionID:      s.ID,
		CandidateName:  s.Profile.Name,
		CandidateEmail: s.Profile.Email,
		Cause:          s.Cause,
		EndedAt:        s.CurrentStage,
		Violations:     len(s.Violations()),
	}
	if v := s.Verdict; v != nil {
		sum.Status = v.FinalStatus
		sum.EligibleForInterview = v.EligibleForInterview
		sum.SponsorshipApproved = v.SponsorshipApproved
		sum.Reasons = v.Reasons
	}
	for _, st := range assessment.GradedStages() {
		r, ok := s.Results[st]
		if !ok {
			continue
		}
		sum.Stages = append(sum.Stages, StageLine{
			Stage:    st,
			Label:    st.Label(),
			Score:    r.Score,
			MaxScore: r.MaxScore,
			Percent:  percent(r),
			Passed:   r.Passed,
			TimedOut: r.TimedOut,
		})
	}
	return sum
}

// percent normalises a result to 0..100. Communication and coding are
// already percentages.
func percent(r assessment.StageResult) int {
	if r.Stage == assessment.StageObjective {
		if r.MaxScore == 0 {
			return 0
		}
		return r.Score * 100 / r.MaxScore
	}
	return r.Score
}

// Headline is a one-line description of the outcome.
func (s Summary) Headline() string {
	if s.Status == assessment.StatusPassed {
		return fmt.Sprintf("%s passed the assessment", s.CandidateName)
	}
	return fmt.Sprintf("%s did not pass the assessment (%s)", s.CandidateName, strings.ReplaceAll(string(s.Cause), "_", " "))
}

// CandidateText is the plain-text message sent to the candidate.
func (s Summary) CandidateText() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", s.CandidateName)
	if s.Status == assessment.StatusPassed {
		b.WriteString("Congratulations! You have passed the assessment and are eligible for an interview.\n")
	} else {
		b.WriteString("Thank you for completing the assessment. You did not pass this time.\n")
	}
	if len(s.Stages) > 0 {
		b.WriteString("\nYour results:\n")
		for _, l := range s.Stages {
			fmt.Fprintf(&b, "- %s: %d%%\n", l.Label, l.Percent)
		}
	}
	if s.Status != assessment.StatusPassed && len(s.Reasons) > 0 {
		b.WriteString("\nReasons:\n")
		for _, r := range s.Reasons {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}
