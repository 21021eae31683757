// Package assessment runs the candidate assessment pipeline: resume intake,
// an objective quiz, a communication test and a coding test, each gated by
// a pass mark, with proctoring able to end the session at any point.
package assessment

import (
	"encoding/json"
	"time"

	"github.com/abhisek/gatekeep/internal/proctor"
	"github.com/abhisek/gatekeep/internal/questions"
	"github.com/abhisek/gatekeep/internal/scoring"
)

// CandidateProfile identifies the candidate. It is fixed at intake.
type CandidateProfile struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Phone             string   `json:"phone,omitempty"`
	Location          string   `json:"location,omitempty"`
	Skills            []string `json:"skills"`
	Experience        []string `json:"experience,omitempty"`
	PreferredLanguage string   `json:"preferred_language"`
}

// Submission holds a candidate's answers for one stage. Only the fields of
// the stage being submitted are read.
type Submission struct {
	// Objective maps question id to answer.
	Objective map[string]string `json:"objective,omitempty"`

	WrittenResponse string `json:"written_response,omitempty"`
	AudioTranscript string `json:"audio_transcript,omitempty"`

	// Solutions maps problem id to source code.
	Solutions map[string]string `json:"solutions,omitempty"`
}

// Sub-score keys for the communication stage.
const (
	SubScoreWritten = "written"
	SubScoreSpoken  = "spoken"
)

// StageResult is written once when a graded stage concludes and never
// changes afterwards.
type StageResult struct {
	Stage            Stage `json:"stage"`
	Score            int   `json:"score"`
	MaxScore         int   `json:"max_score"`
	Passed           bool  `json:"passed"`
	TimeTakenSeconds int   `json:"time_taken_seconds"`
	AnsweredCount    int   `json:"answered_count"`

	SubScores map[string]int          `json:"sub_scores,omitempty"`
	Reasons   []string                `json:"reasons,omitempty"`
	TimedOut  bool                    `json:"timed_out,omitempty"`
	Answers   Submission              `json:"answers"`
	Details   []scoring.ProblemResult `json:"details,omitempty"`

	CompletedAt time.Time `json:"completed_at"`
}

// Status is the final decision.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

// Verdict is the outcome of a finished session.
type Verdict struct {
	FinalStatus          Status    `json:"final_status"`
	EligibleForInterview bool      `json:"eligible_for_interview"`
	SponsorshipApproved  bool      `json:"sponsorship_approved"`
	Reasons              []string  `json:"reasons"`
	DecidedAt            time.Time `json:"decided_at"`
}

// Cause records why a session ended.
type Cause string

const (
	CauseCompleted   Cause = "completed"
	CauseStageFailed Cause = "stage_failed"
	CauseProctoring  Cause = "proctoring"
	CauseAborted     Cause = "aborted"
)

// Materials are the generated questions, prompts and problems of a
// session. They include answer keys and must be redacted before they are
// shown to the candidate.
type Materials struct {
	Objective     []questions.ObjectiveQuestion `json:"objective,omitempty"`
	Communication *questions.CommunicationTest  `json:"communication,omitempty"`
	Coding        []questions.CodingProblem     `json:"coding,omitempty"`
}

// Transition is one audited stage change.
type Transition struct {
	From   Stage     `json:"from"`
	To     Stage     `json:"to"`
	At     time.Time `json:"at"`
	Reason string    `json:"reason,omitempty"`
}

// Session is the assessment aggregate. It is persisted whole.
type Session struct {
	ID           string           `json:"id"`
	CandidateID  string           `json:"candidate_id"`
	Profile      CandidateProfile `json:"profile"`
	CurrentStage Stage            `json:"current_stage"`

	Results map[Stage]StageResult `json:"results"`

	// Proctor holds the monitor state, including the append-only
	// violation list.
	Proctor proctor.State `json:"proctor"`

	StartedAt      time.Time           `json:"started_at"`
	StageStartedAt time.Time           `json:"stage_started_at"`
	Deadlines      map[Stage]time.Time `json:"deadlines"`
	UpdatedAt      time.Time           `json:"updated_at"`

	Materials Materials    `json:"materials"`
	Draft     Submission   `json:"draft"`
	History   []Transition `json:"history"`

	Verdict    *Verdict   `json:"verdict,omitempty"`
	Cause      Cause      `json:"cause,omitempty"`
	ReportedAt *time.Time `json:"reported_at,omitempty"`
}

// Violations returns the recorded proctoring violations in order.
func (s *Session) Violations() []proctor.Violation {
	return s.Proctor.Violations
}

// Final reports whether the session has a verdict.
func (s *Session) Final() bool {
	return s.Verdict != nil || s.CurrentStage.Final()
}

// Deadline returns the deadline of the current stage, if any.
func (s *Session) Deadline() (time.Time, bool) {
	d, ok := s.Deadlines[s.CurrentStage]
	return d, ok && !d.IsZero()
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	raw, err := json.Marshal(s)
	if err != nil {
		panic("assessment: session is not serialisable: " + err.Error())
	}
	var out Session
	if err := json.Unmarshal(raw, &out); err != nil {
		panic("assessment: session is not serialisable: " + err.Error())
	}
	return &out
}

// StageMaterials is the candidate's view of one stage: no answer keys, no
// expected outputs.
type StageMaterials struct {
	Stage         Stage                         `json:"stage"`
	Deadline      time.Time                     `json:"deadline"`
	Objective     []questions.ObjectiveQuestion `json:"objective,omitempty"`
	Communication *CommunicationView            `json:"communication,omitempty"`
	Coding        []questions.CodingProblem     `json:"coding,omitempty"`
}

// CommunicationView hides the rubric's classifier hints.
type CommunicationView struct {
	WritingPrompt  string   `json:"writing_prompt"`
	SpeakingPrompt string   `json:"speaking_prompt"`
	Criteria       []string `json:"criteria"`
}

// ViewFor returns the redacted materials of stage, or nil when the stage
// has none.
func (s *Session) ViewFor(stage Stage) *StageMaterials {
	if !stage.Graded() {
		return nil
	}
	v := &StageMaterials{Stage: stage, Deadline: s.Deadlines[stage]}
	switch stage {
	case StageObjective:
		for _, q := range s.Materials.Objective {
			v.Objective = append(v.Objective, q.Redacted())
		}
	case StageCommunication:
		if c := s.Materials.Communication; c != nil {
			cv := &CommunicationView{WritingPrompt: c.WritingPrompt, SpeakingPrompt: c.SpeakingPrompt}
			for _, cr := range c.Rubric.Written {
				cv.Criteria = append(cv.Criteria, cr.Name)
			}
			for _, cr := range c.Rubric.Spoken {
				cv.Criteria = append(cv.Criteria, cr.Name)
			}
			v.Communication = cv
		}
	case StageCoding:
		for _, p := range s.Materials.Coding {
			v.Coding = append(v.Coding, p.Redacted())
		}
	}
	return v
}

// StepResult is returned by SubmitStageAnswers and by deadline expiry.
type StepResult struct {
	Session *Session    `json:"session"`
	Result  StageResult `json:"result"`
	Next    Stage       `json:"next"`

	// Materials are the next stage's candidate view, nil when the session
	// ended.
	Materials *StageMaterials `json:"materials,omitempty"`
	Verdict   *Verdict        `json:"verdict,omitempty"`
}

// ProctorOutcome is the result of a proctoring signal. A critical
// violation is reported here rather than as an error.
type ProctorOutcome struct {
	Violation  *proctor.Violation `json:"violation,omitempty"`
	Violations int                `json:"violations"`
	Terminated bool               `json:"terminated"`
	Critical   bool               `json:"critical"`
	Reason     string             `json:"reason,omitempty"`
	Stage      Stage              `json:"stage"`
	Verdict    *Verdict           `json:"verdict,omitempty"`
}
