package assessment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gatekeep/internal/proctor"
	"github.com/abhisek/gatekeep/internal/questions"
	"github.com/abhisek/gatekeep/internal/resume"
)

const (
	numObjective = 30
	numCriteria  = 100
	numProblems  = 20
)

const sampleResume = `Jane Roe
jane.roe@example.com
Pune, India

SKILLS
Python, SQL, Docker
`

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeGenerator struct {
	mu    sync.Mutex
	calls map[string]int
	fail  error
}

func (g *fakeGenerator) count(kind string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[kind]++
}

func (g *fakeGenerator) GenerateObjective(_ context.Context, _ []string) ([]questions.ObjectiveQuestion, error) {
	g.count("objective")
	qs := make([]questions.ObjectiveQuestion, numObjective)
	for i := range qs {
		qs[i] = questions.ObjectiveQuestion{
			ID:            fmt.Sprintf("q%02d", i),
			Text:          fmt.Sprintf("Question %d", i),
			Format:        questions.FormatShortAnswer,
			CorrectAnswer: fmt.Sprintf("a%02d", i),
		}
	}
	return qs, nil
}

func (g *fakeGenerator) GenerateCommunication(_ context.Context, _ []string) (*questions.CommunicationTest, error) {
	g.count("communication")
	ct := &questions.CommunicationTest{WritingPrompt: "Write an email", SpeakingPrompt: "Describe a project"}
	for i := range numCriteria {
		ct.Rubric.Written = append(ct.Rubric.Written, questions.Criterion{ID: fmt.Sprintf("w-%d", i), Name: fmt.Sprintf("W%d", i)})
		ct.Rubric.Spoken = append(ct.Rubric.Spoken, questions.Criterion{ID: fmt.Sprintf("s-%d", i), Name: fmt.Sprintf("S%d", i)})
	}
	return ct, nil
}

func (g *fakeGenerator) GenerateCoding(_ context.Context, language string, _ []string) ([]questions.CodingProblem, error) {
	g.count("coding")
	g.mu.Lock()
	err := g.fail
	g.mu.Unlock()
	if err != nil {
		return nil, err
	}
	ps := make([]questions.CodingProblem, numProblems)
	for i := range ps {
		ps[i] = questions.CodingProblem{
			ID:             fmt.Sprintf("p%02d", i),
			Prompt:         "print it",
			Language:       language,
			ExpectedOutput: fmt.Sprintf("out-%02d", i),
		}
	}
	return ps, nil
}

// scoreClassifier reads "score:N" from the text and satisfies the first N
// criteria, so N criteria out of 100 score exactly N.
type scoreClassifier struct{}

func (scoreClassifier) EvaluateCriterion(_ context.Context, text string, c questions.Criterion) (bool, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(text, "score:"))
	if err != nil {
		return false, nil
	}
	idx, _ := strconv.Atoi(c.ID[strings.LastIndex(c.ID, "-")+1:])
	return idx < n, nil
}

// echoRunner prints the submitted code.
type echoRunner struct {
	mu    sync.Mutex
	fail  error
	calls int
}

func (r *echoRunner) Execute(_ context.Context, code, _, _ string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.fail != nil {
		return "", r.fail
	}
	return code, nil
}

func (r *echoRunner) setFail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail = err
}

type fakeReporter struct {
	mu   sync.Mutex
	sent []Session
}

func (r *fakeReporter) Send(_ context.Context, s Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, s)
	return nil
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type fakeTransitions struct {
	mu  sync.Mutex
	log []Transition
}

func (f *fakeTransitions) AppendTransition(_ context.Context, _ string, t Transition) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, t)
	return nil
}

type harness struct {
	engine      *Engine
	repo        *MemoryRepo
	clock       *testClock
	gen         *fakeGenerator
	runner      *echoRunner
	reporter    *fakeReporter
	transitions *fakeTransitions
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:        NewMemoryRepo(),
		clock:       &testClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)},
		gen:         &fakeGenerator{},
		runner:      &echoRunner{},
		reporter:    &fakeReporter{},
		transitions: &fakeTransitions{},
	}

	var idMu sync.Mutex
	next := 0
	eng, err := New(Options{
		Repo:        h.repo,
		Generator:   h.gen,
		Extractor:   resume.NewTextExtractor(nil),
		Classifier:  scoreClassifier{},
		Runner:      h.runner,
		Reporter:    h.reporter,
		Transitions: h.transitions,
		Clock:       h.clock.Now,
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			next++
			return fmt.Sprintf("id-%d", next)
		},
	})
	require.NoError(t, err)
	h.engine = eng
	return h
}

func (h *harness) start(t *testing.T) *Session {
	t.Helper()
	s, err := h.engine.SubmitIntake(context.Background(), IntakeRequest{
		PreferredLanguage: "py",
		Resume:            resume.File{Name: "cv.txt", Data: []byte(sampleResume)},
	})
	require.NoError(t, err)
	return s
}

func objectiveAnswers(correct int) Submission {
	sub := Submission{Objective: make(map[string]string)}
	for i := range numObjective {
		if i < correct {
			sub.Objective[fmt.Sprintf("q%02d", i)] = fmt.Sprintf("a%02d", i)
		} else {
			sub.Objective[fmt.Sprintf("q%02d", i)] = "wrong"
		}
	}
	return sub
}

func communicationAnswers(written, spoken int) Submission {
	return Submission{
		WrittenResponse: fmt.Sprintf("score:%d", written),
		AudioTranscript: fmt.Sprintf("score:%d", spoken),
	}
}

func codingAnswers(correct int) Submission {
	sub := Submission{Solutions: make(map[string]string)}
	for i := range numProblems {
		if i < correct {
			sub.Solutions[fmt.Sprintf("p%02d", i)] = fmt.Sprintf("out-%02d", i)
		} else {
			sub.Solutions[fmt.Sprintf("p%02d", i)] = "wrong"
		}
	}
	return sub
}

func (h *harness) submit(t *testing.T, id string, stage Stage, sub Submission) *StepResult {
	t.Helper()
	step, err := h.engine.SubmitStageAnswers(context.Background(), id, stage, sub)
	require.NoError(t, err)
	return step
}

func (h *harness) passThrough(t *testing.T, id string, until Stage) {
	t.Helper()
	if until == StageObjective {
		return
	}
	h.submit(t, id, StageObjective, objectiveAnswers(30))
	if until == StageCommunication {
		return
	}
	h.submit(t, id, StageCommunication, communicationAnswers(100, 100))
}

func assertMonotonic(t *testing.T, s *Session) {
	t.Helper()
	for i, tr := range s.History {
		if !tr.From.CanMoveTo(tr.To) {
			t.Errorf("transition %d %s -> %s breaks stage order", i, tr.From, tr.To)
		}
		if i > 0 && s.History[i-1].To != tr.From {
			t.Errorf("transition %d starts at %s, previous ended at %s", i, tr.From, s.History[i-1].To)
		}
	}
}

func TestIntake(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	assert.Equal(t, StageObjective, s.CurrentStage)
	assert.Equal(t, "Jane Roe", s.Profile.Name)
	assert.Equal(t, "jane.roe@example.com", s.Profile.Email)
	assert.Equal(t, "Pune, India", s.Profile.Location)
	assert.Equal(t, questions.LangPython, s.Profile.PreferredLanguage)
	assert.Equal(t, []string{"Python", "SQL", "Docker"}, s.Profile.Skills)
	assert.Equal(t, s.CandidateID, s.Profile.ID)
	assert.Len(t, s.Materials.Objective, numObjective)
	assert.Empty(t, s.Results, "intake records no stage result")
	assert.Equal(t, h.clock.Now().Add(45*time.Minute), s.Deadlines[StageObjective])
	require.Len(t, h.transitions.log, 1)
	assert.Equal(t, StageResumeIntake, h.transitions.log[0].From)
}

func TestIntakeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.engine.SubmitIntake(ctx, IntakeRequest{Name: "A", Email: "a@example.com"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "resume", verr.Fields[0].Field)

	_, err = h.engine.SubmitIntake(ctx, IntakeRequest{
		Email:  "not-an-email",
		Resume: resume.File{Name: "cv.txt", Data: []byte("SKILLS\n2 years of Python\n")},
	})
	require.ErrorAs(t, err, &verr)
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Equal(t, "is required", fields["name"])
	assert.Equal(t, "must be a valid email address", fields["email"])

	_, err = h.engine.SubmitIntake(ctx, IntakeRequest{
		PreferredLanguage: "cobol",
		Resume:            resume.File{Name: "cv.txt", Data: []byte(sampleResume)},
	})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "preferred_language", verr.Fields[0].Field)

	_, err = h.engine.SubmitIntake(ctx, IntakeRequest{
		Name:   "A",
		Email:  "a@example.com",
		Resume: resume.File{Name: "cv.pdf", ContentType: "application/pdf", Data: []byte("%PDF")},
	})
	require.ErrorAs(t, err, &verr)

	sessions, _ := h.repo.List(ctx, ListFilter{})
	assert.Empty(t, sessions, "rejected intakes create nothing")
}

// Scenario 1.
func TestFullPass(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	step := h.submit(t, s.ID, StageObjective, objectiveAnswers(27))
	assert.True(t, step.Result.Passed)
	assert.Equal(t, StageCommunication, step.Next)
	require.NotNil(t, step.Materials)
	assert.Equal(t, "Write an email", step.Materials.Communication.WritingPrompt)

	step = h.submit(t, s.ID, StageCommunication, communicationAnswers(92, 91))
	assert.True(t, step.Result.Passed)
	assert.Equal(t, map[string]int{SubScoreWritten: 92, SubScoreSpoken: 91}, step.Result.SubScores)
	assert.Equal(t, StageCoding, step.Next)
	assert.Len(t, step.Materials.Coding, numProblems)
	assert.Empty(t, step.Materials.Coding[0].ExpectedOutput, "expected output is hidden")

	step = h.submit(t, s.ID, StageCoding, codingAnswers(19))
	assert.Equal(t, 95, step.Result.Score)
	assert.Equal(t, StageCompleted, step.Next)
	require.NotNil(t, step.Verdict)
	assert.Equal(t, StatusPassed, step.Verdict.FinalStatus)
	assert.True(t, step.Verdict.EligibleForInterview)
	assert.True(t, step.Verdict.SponsorshipApproved)
	assert.Nil(t, step.Materials)

	got, err := h.engine.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, CauseCompleted, got.Cause)
	assert.Len(t, got.Results, 3)
	assert.NotNil(t, got.ReportedAt)
	assertMonotonic(t, got)

	assert.Equal(t, 1, h.reporter.count())
	assert.Equal(t, StatusPassed, h.reporter.sent[0].Verdict.FinalStatus)
	assert.Len(t, h.transitions.log, 4)
}

// Scenario 2.
func TestObjectiveFailTerminates(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	step := h.submit(t, s.ID, StageObjective, objectiveAnswers(25))
	assert.False(t, step.Result.Passed)
	assert.Equal(t, StageTerminated, step.Next)
	require.NotNil(t, step.Verdict)
	assert.Equal(t, StatusFailed, step.Verdict.FinalStatus)
	assert.False(t, step.Verdict.EligibleForInterview)
	assert.NotEmpty(t, step.Verdict.Reasons)

	got, _ := h.engine.Get(context.Background(), s.ID)
	assert.Len(t, got.Results, 1)
	assert.Contains(t, got.Results, StageObjective)
	assert.Equal(t, CauseStageFailed, got.Cause)
	assert.Equal(t, 1, h.reporter.count())
	assert.Zero(t, h.gen.calls["communication"], "no materials for a stage never reached")

	_, err := h.engine.SubmitStageAnswers(context.Background(), s.ID, StageObjective, objectiveAnswers(30))
	var terr *SessionTerminatedError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, h.reporter.count(), "reported once")
}

// Scenario 3 and the overriding-termination property.
func TestWarningsDuringCodingTerminate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)
	h.passThrough(t, s.ID, StageCoding)

	_, err := h.engine.SaveDraft(ctx, s.ID, StageCoding, codingAnswers(20))
	require.NoError(t, err)

	var out *ProctorOutcome
	for i := range 3 {
		h.clock.Advance(time.Minute)
		out, err = h.engine.ReportViolation(ctx, s.ID, proctor.Signal{Kind: proctor.KindCameraOff, Active: true})
		require.NoError(t, err)
		require.NotNil(t, out.Violation, "violation %d", i)
		assert.False(t, out.Critical)

		// Camera back on closes the episode.
		_, err = h.engine.ReportViolation(ctx, s.ID, proctor.Signal{Kind: proctor.KindCameraOff, Active: false})
		if i < 2 {
			require.NoError(t, err)
		}
	}
	assert.True(t, out.Terminated)
	assert.Equal(t, 3, out.Violations)
	assert.Equal(t, StageTerminated, out.Stage)
	assert.Equal(t, StatusFailed, out.Verdict.FinalStatus)

	got, _ := h.engine.Get(ctx, s.ID)
	assert.Equal(t, StageTerminated, got.CurrentStage)
	assert.Equal(t, CauseProctoring, got.Cause)
	assert.NotContains(t, got.Results, StageCoding)
	assert.Len(t, got.Results, 2)
	assert.Len(t, got.Violations(), 3)
	assert.False(t, got.Verdict.EligibleForInterview)
	assert.Contains(t, got.Verdict.Reasons[0], "3 proctoring violations")
	assertMonotonic(t, got)

	// Perfect answers can no longer be submitted.
	_, err = h.engine.SubmitStageAnswers(ctx, s.ID, StageCoding, codingAnswers(20))
	var terr *SessionTerminatedError
	assert.ErrorAs(t, err, &terr)
	assert.Equal(t, 1, h.reporter.count())
}

// Scenario 4.
func TestExactThresholdsPass(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	h.submit(t, s.ID, StageObjective, objectiveAnswers(27))
	h.submit(t, s.ID, StageCommunication, communicationAnswers(90, 90))
	step := h.submit(t, s.ID, StageCoding, codingAnswers(18))

	assert.Equal(t, 90, step.Result.Score)
	assert.Equal(t, StatusPassed, step.Verdict.FinalStatus)
}

func TestOneBelowThresholdFails(t *testing.T) {
	tests := []struct {
		name  string
		stage Stage
		sub   Submission
	}{
		{"objective 26/30", StageObjective, objectiveAnswers(26)},
		{"written 89", StageCommunication, communicationAnswers(89, 100)},
		{"spoken 89", StageCommunication, communicationAnswers(100, 89)},
		{"coding 85", StageCoding, codingAnswers(17)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			s := h.start(t)
			h.passThrough(t, s.ID, tt.stage)

			step := h.submit(t, s.ID, tt.stage, tt.sub)
			assert.False(t, step.Result.Passed)
			assert.Equal(t, StageTerminated, step.Next)
			assert.NotEmpty(t, step.Verdict.Reasons)
		})
	}
}

// Scenario 5.
func TestEmptyObjectiveSubmission(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	step := h.submit(t, s.ID, StageObjective, Submission{})
	assert.Equal(t, 0, step.Result.Score)
	assert.Equal(t, numObjective, step.Result.MaxScore)
	assert.Equal(t, 0, step.Result.AnsweredCount)
	assert.Equal(t, StageTerminated, step.Next)
	assert.Equal(t, StatusFailed, step.Verdict.FinalStatus)
}

// Scenario 6.
func TestCriticalViolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)

	out, err := h.engine.ReportViolation(ctx, s.ID, proctor.Signal{
		Kind:   proctor.KindMultipleFaces,
		Active: true,
		Detail: "2 faces in frame",
	})
	require.NoError(t, err)
	assert.True(t, out.Critical)
	assert.True(t, out.Terminated)
	assert.Equal(t, 1, out.Violations)
	assert.Contains(t, out.Reason, "Multiple faces detected")

	got, _ := h.engine.Get(ctx, s.ID)
	assert.Equal(t, StageTerminated, got.CurrentStage)
	assert.Empty(t, got.Results)
	assert.Equal(t, 1, h.reporter.count())

	_, err = h.engine.ReportViolation(ctx, s.ID, proctor.Signal{Kind: proctor.KindScreenShare, Active: true})
	var terr *SessionTerminatedError
	assert.ErrorAs(t, err, &terr)
}

func TestHeadMovementDebounce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)

	for sec := 0; sec <= 120; sec += 5 {
		_, err := h.engine.ReportViolation(ctx, s.ID, proctor.Signal{
			Kind:   proctor.KindHeadMovement,
			Active: true,
			At:     h.clock.Now(),
		})
		require.NoError(t, err)
		h.clock.Advance(5 * time.Second)
	}

	got, _ := h.engine.Get(ctx, s.ID)
	assert.Len(t, got.Violations(), 1, "one sustained episode is one violation")
	assert.Equal(t, StageObjective, got.CurrentStage)
}

func TestFutureSignalTimeIsClamped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)

	start := h.clock.Now()
	out, err := h.engine.ReportViolation(ctx, s.ID, proctor.Signal{
		Kind:   proctor.KindHeadMovement,
		Active: true,
		At:     start.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Nil(t, out.Violation)

	// A second far-future sample must not complete the episode either.
	out, err = h.engine.ReportViolation(ctx, s.ID, proctor.Signal{
		Kind:   proctor.KindHeadMovement,
		Active: true,
		At:     start.Add(2 * time.Hour),
	})
	require.NoError(t, err)
	assert.Nil(t, out.Violation)

	got, _ := h.engine.Get(ctx, s.ID)
	ep := got.Proctor.Episodes[proctor.KindHeadMovement]
	require.NotNil(t, ep)
	assert.True(t, ep.Start.Equal(start.UTC()), "episode started at %v", ep.Start)

	h.clock.Advance(30 * time.Second)
	out, err = h.engine.ReportViolation(ctx, s.ID, proctor.Signal{
		Kind:   proctor.KindHeadMovement,
		Active: true,
		At:     h.clock.Now(),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Violation)
	assert.True(t, out.Violation.Timestamp.Equal(h.clock.Now().UTC()))
}

func TestUnknownSignalKind(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	_, err := h.engine.ReportViolation(context.Background(), s.ID, proctor.Signal{Kind: "tab_switch", Active: true})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestStageMismatch(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	_, err := h.engine.SubmitStageAnswers(context.Background(), s.ID, StageCoding, codingAnswers(20))
	var merr *StageMismatchError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, StageObjective, merr.Current)
	assert.Equal(t, StageCoding, merr.Submitted)

	got, _ := h.engine.Get(context.Background(), s.ID)
	assert.Empty(t, got.Results)
}

func TestSessionNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.SubmitStageAnswers(context.Background(), "nope", StageObjective, Submission{})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// A failing runner leaves the session untouched and a retry gives the
// result an uninterrupted run would have.
func TestGradingFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)
	h.passThrough(t, s.ID, StageCoding)

	before, _ := h.repo.Get(ctx, s.ID)

	h.runner.setFail(errors.New("sandbox unavailable"))
	_, err := h.engine.SubmitStageAnswers(ctx, s.ID, StageCoding, codingAnswers(19))
	var gf *GradingFailure
	require.ErrorAs(t, err, &gf)
	assert.Equal(t, StageCoding, gf.Stage)
	assert.ErrorContains(t, err, "sandbox unavailable")

	after, _ := h.repo.Get(ctx, s.ID)
	assert.Equal(t, before, after, "failed grading must not mutate the session")

	h.runner.setFail(nil)
	step := h.submit(t, s.ID, StageCoding, codingAnswers(19))

	ref := newHarness(t)
	rs := ref.start(t)
	ref.passThrough(t, rs.ID, StageCoding)
	want := ref.submit(t, rs.ID, StageCoding, codingAnswers(19))

	assert.Equal(t, want.Result.Score, step.Result.Score)
	assert.Equal(t, want.Result.Passed, step.Result.Passed)
	assert.Equal(t, want.Verdict.FinalStatus, step.Verdict.FinalStatus)
}

func TestGeneratorFailureIsRetryable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)
	h.passThrough(t, s.ID, StageCommunication)

	h.gen.mu.Lock()
	h.gen.fail = errors.New("llm down")
	h.gen.mu.Unlock()

	_, err := h.engine.SubmitStageAnswers(ctx, s.ID, StageCommunication, communicationAnswers(95, 95))
	var gf *GradingFailure
	require.ErrorAs(t, err, &gf)

	got, _ := h.repo.Get(ctx, s.ID)
	assert.Equal(t, StageCommunication, got.CurrentStage)
	assert.NotContains(t, got.Results, StageCommunication)

	h.gen.mu.Lock()
	h.gen.fail = nil
	h.gen.mu.Unlock()

	step := h.submit(t, s.ID, StageCommunication, communicationAnswers(95, 95))
	assert.Equal(t, StageCoding, step.Next)
}

func TestTimeoutGradesDraft(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)

	_, err := h.engine.SaveDraft(ctx, s.ID, StageObjective, objectiveAnswers(28))
	require.NoError(t, err)

	h.clock.Advance(46 * time.Minute)

	got, err := h.engine.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StageCommunication, got.CurrentStage)
	r := got.Results[StageObjective]
	assert.True(t, r.TimedOut)
	assert.True(t, r.Passed)
	assert.Equal(t, 28, r.Score)
	assert.Equal(t, 46*60, r.TimeTakenSeconds)
	assert.Equal(t, h.clock.Now().Add(30*time.Minute), got.Deadlines[StageCommunication])

	// Late answers for the expired stage are rejected.
	_, err = h.engine.SubmitStageAnswers(ctx, s.ID, StageObjective, objectiveAnswers(30))
	var merr *StageMismatchError
	assert.ErrorAs(t, err, &merr)
}

func TestTimeoutOnLateSubmission(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)
	h.clock.Advance(time.Hour)

	// Nothing was held, so the expired stage grades as empty and fails.
	_, err := h.engine.SubmitStageAnswers(ctx, s.ID, StageObjective, objectiveAnswers(30))
	var terr *SessionTerminatedError
	require.ErrorAs(t, err, &terr)

	got, _ := h.engine.Get(ctx, s.ID)
	assert.Equal(t, StageTerminated, got.CurrentStage)
	assert.True(t, got.Results[StageObjective].TimedOut)
	assert.Equal(t, 0, got.Results[StageObjective].Score)
	assert.Contains(t, got.Verdict.Reasons, "objective test time limit expired")
	assert.Equal(t, 1, h.reporter.count())
}

func TestExpireDue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s1 := h.start(t)
	s2 := h.start(t)

	_, err := h.engine.SaveDraft(ctx, s1.ID, StageObjective, objectiveAnswers(30))
	require.NoError(t, err)

	n, err := h.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Advance(45 * time.Minute)
	n, err = h.engine.ExpireDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	g1, _ := h.repo.Get(ctx, s1.ID)
	g2, _ := h.repo.Get(ctx, s2.ID)
	assert.Equal(t, StageCommunication, g1.CurrentStage)
	assert.Equal(t, StageTerminated, g2.CurrentStage)
	assert.Equal(t, 1, h.reporter.count())
}

func TestAbort(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	s := h.start(t)

	got, err := h.engine.Abort(ctx, s.ID, "candidate closed the tab")
	require.NoError(t, err)
	assert.Equal(t, StageTerminated, got.CurrentStage)
	assert.Equal(t, CauseAborted, got.Cause)
	assert.Equal(t, []string{"assessment aborted: candidate closed the tab"}, got.Verdict.Reasons)
	require.Len(t, got.Violations(), 1)
	v := got.Violations()[0]
	assert.Equal(t, proctor.KindAborted, v.Kind)
	assert.Equal(t, proctor.SeverityCritical, v.Severity)
	assert.Equal(t, "assessment aborted: candidate closed the tab", v.Description)
	assert.Equal(t, 1, h.reporter.count())

	_, err = h.engine.Abort(ctx, s.ID, "")
	var terr *SessionTerminatedError
	assert.ErrorAs(t, err, &terr)
}

func TestMaterialsAreRedacted(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	m, err := h.engine.Materials(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, StageObjective, m.Stage)
	require.Len(t, m.Objective, numObjective)
	for _, q := range m.Objective {
		assert.Empty(t, q.CorrectAnswer)
	}
}

func TestSaveDraftWrongStage(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	_, err := h.engine.SaveDraft(context.Background(), s.ID, StageCoding, codingAnswers(1))
	var merr *StageMismatchError
	assert.ErrorAs(t, err, &merr)
}

// Concurrent submissions for one session are serialised: exactly one is
// graded and the rest see the stage has moved on.
func TestConcurrentSubmissions(t *testing.T) {
	h := newHarness(t)
	s := h.start(t)

	const n = 10
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		successes  int
		mismatches int
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.SubmitStageAnswers(context.Background(), s.ID, StageObjective, objectiveAnswers(30))
			mu.Lock()
			defer mu.Unlock()
			var merr *StageMismatchError
			switch {
			case err == nil:
				successes++
			case errors.As(err, &merr):
				mismatches++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, mismatches)

	got, _ := h.engine.Get(context.Background(), s.ID)
	assert.Len(t, got.Results, 1)
	assert.Equal(t, 1, h.gen.calls["communication"])
}

func TestListFilters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.start(t)
	h.clock.Advance(time.Second)
	b := h.start(t)
	h.submit(t, b.ID, StageObjective, objectiveAnswers(0))

	all, err := h.engine.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID, "newest first")

	active, _ := h.engine.List(ctx, ListFilter{Active: true})
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	terminated, _ := h.engine.List(ctx, ListFilter{Stage: StageTerminated})
	assert.Len(t, terminated, 1)
}
