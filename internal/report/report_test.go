package report

import (
	"strings"
	"testing"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/evaluator"
	"github.com/abhisek/gatekeep/internal/proctor"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func passedSession(id string) *assessment.Session {
	return &assessment.Session{
		ID:           id,
		Profile:      assessment.CandidateProfile{Name: "Jane Roe", Email: "jane@example.com", PreferredLanguage: "python"},
		CurrentStage: assessment.StageCompleted,
		StartedAt:    t0,
		Results: map[assessment.Stage]assessment.StageResult{
			assessment.StageObjective:     {Stage: assessment.StageObjective, Score: 28, MaxScore: 30, Passed: true, AnsweredCount: 30},
			assessment.StageCommunication: {Stage: assessment.StageCommunication, Score: 92, MaxScore: 100, Passed: true, SubScores: map[string]int{"written": 95, "spoken": 92}},
			assessment.StageCoding:        {Stage: assessment.StageCoding, Score: 100, MaxScore: 100, Passed: true},
		},
		History: []assessment.Transition{
			{From: assessment.StageResumeIntake, To: assessment.StageObjective},
			{From: assessment.StageObjective, To: assessment.StageCommunication},
			{From: assessment.StageCommunication, To: assessment.StageCoding},
			{From: assessment.StageCoding, To: assessment.StageCompleted},
		},
		Verdict: &assessment.Verdict{FinalStatus: assessment.StatusPassed, EligibleForInterview: true, Reasons: []string{"all stages passed"}},
		Cause:   assessment.CauseCompleted,
	}
}

func failedAtObjective(id string) *assessment.Session {
	return &assessment.Session{
		ID:           id,
		Profile:      assessment.CandidateProfile{Name: "John Doe", Email: "john@example.com"},
		CurrentStage: assessment.StageTerminated,
		StartedAt:    t0,
		Results: map[assessment.Stage]assessment.StageResult{
			assessment.StageObjective: {Stage: assessment.StageObjective, Score: 15, MaxScore: 30, TimedOut: true},
		},
		History: []assessment.Transition{
			{From: assessment.StageResumeIntake, To: assessment.StageObjective},
			{From: assessment.StageObjective, To: assessment.StageTerminated},
		},
		Proctor: proctor.State{Violations: []proctor.Violation{
			{Kind: proctor.KindCameraOff, Severity: proctor.SeverityWarning, Timestamp: t0, Description: "Camera turned off"},
		}},
		Verdict: &assessment.Verdict{FinalStatus: assessment.StatusFailed, Reasons: []string{"objective score 15/30 is below the required 27"}},
		Cause:   assessment.CauseStageFailed,
	}
}

func activeInCommunication(id string) *assessment.Session {
	return &assessment.Session{
		ID:           id,
		Profile:      assessment.CandidateProfile{Name: "Ann Lee"},
		CurrentStage: assessment.StageCommunication,
		StartedAt:    t0,
		Results: map[assessment.Stage]assessment.StageResult{
			assessment.StageObjective: {Stage: assessment.StageObjective, Score: 30, MaxScore: 30, Passed: true},
		},
		Proctor: proctor.State{Violations: []proctor.Violation{
			{Kind: proctor.KindCameraOff, Severity: proctor.SeverityWarning, Timestamp: t0},
			{Kind: proctor.KindHeadMovement, Severity: proctor.SeverityWarning, Timestamp: t0},
		}},
	}
}

func TestSummarize(t *testing.T) {
	st := Summarize([]*assessment.Session{
		passedSession("a"), failedAtObjective("b"), activeInCommunication("c"),
	})

	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.Active)
	assert.Equal(t, 1, st.Passed)
	assert.Equal(t, 1, st.Failed)
	assert.InDelta(t, 50.0, st.PassRate(), 0.001)

	require.Len(t, st.Stages, 3)
	obj, comm, coding := st.Stages[0], st.Stages[1], st.Stages[2]

	assert.Equal(t, 3, obj.Reached)
	assert.Equal(t, 3, obj.Graded)
	assert.Equal(t, 2, obj.Passed)
	assert.Equal(t, 1, obj.DropOff())
	assert.Equal(t, 1, obj.TimedOut)
	// 93, 50 and 100 percent.
	assert.InDelta(t, 81.0, obj.AvgPercent, 0.001)

	assert.Equal(t, 2, comm.Reached)
	assert.Equal(t, 1, comm.Graded)
	assert.Equal(t, 1, comm.DropOff(), "the active session is still in the stage")

	assert.Equal(t, 1, coding.Reached)
	assert.Equal(t, 0, coding.DropOff())

	assert.Equal(t, map[assessment.Cause]int{assessment.CauseCompleted: 1, assessment.CauseStageFailed: 1}, st.Causes)
	assert.Equal(t, map[proctor.Kind]int{proctor.KindCameraOff: 2, proctor.KindHeadMovement: 1}, st.Violations)
}

func TestSummarizeEmpty(t *testing.T) {
	st := Summarize(nil)
	assert.Zero(t, st.PassRate())
	assert.Contains(t, RenderStats(st), "No sessions")
}

func TestRenderSession(t *testing.T) {
	out := RenderSession(failedAtObjective("b"), evaluator.DefaultThresholds())
	for _, want := range []string{"John Doe", "Terminated", "Objective", "50%", "time limit expired", "Camera turned off", "FAILED", "below the required 27"} {
		assert.Contains(t, out, want)
	}

	out = RenderSession(passedSession("a"), evaluator.DefaultThresholds())
	for _, want := range []string{"PASSED", "Written", "95%", "Spoken", "Coding", "100%"} {
		assert.Contains(t, out, want)
	}
}

func TestRenderStats(t *testing.T) {
	out := RenderStats(Summarize([]*assessment.Session{passedSession("a"), failedAtObjective("b")}))
	for _, want := range []string{"Pass rate", "50.0%", "Objective test", "Coding test", "stage_failed", "camera_off"} {
		assert.Contains(t, out, want)
	}
}

func TestScoreBarWidth(t *testing.T) {
	for _, pct := range []int{-5, 0, 42, 100, 130} {
		bar := ScoreBar{Label: "Coding", Percent: pct, Mark: 90, Width: 40}.View()
		assert.Equal(t, 40, lipgloss.Width(bar), "percent %d", pct)
	}
	assert.True(t, strings.Contains(ScoreBar{Percent: 130, Width: 20}.View(), "100%"))
}
