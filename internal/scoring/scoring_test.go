package scoring

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/gatekeep/internal/questions"
)

func quiz(n int) []questions.ObjectiveQuestion {
	qs := make([]questions.ObjectiveQuestion, n)
	for i := range qs {
		qs[i] = questions.ObjectiveQuestion{
			ID:            string(rune('a' + i)),
			Text:          "q",
			Format:        questions.FormatShortAnswer,
			CorrectAnswer: "yes",
		}
	}
	return qs
}

func TestScoreObjective(t *testing.T) {
	qs := quiz(4)
	answers := map[string]string{
		"a":       "yes",
		"b":       " yes ",
		"c":       "no",
		"unknown": "yes",
	}

	score, max := ScoreObjective(qs, answers)
	if score != 2 || max != 4 {
		t.Fatalf("ScoreObjective = %d/%d, want 2/4", score, max)
	}
	if n := Answered(qs, answers); n != 3 {
		t.Errorf("Answered = %d, want 3", n)
	}
}

func TestAnsweredIgnoresBlankAnswers(t *testing.T) {
	qs := quiz(4)
	answers := map[string]string{
		"a": "yes",
		"b": "   ",
		"c": "\t\n",
		"d": "",
	}
	if n := Answered(qs, answers); n != 1 {
		t.Errorf("Answered = %d, want 1", n)
	}
}

func TestScoreObjectiveEmpty(t *testing.T) {
	score, max := ScoreObjective(nil, map[string]string{"a": "yes"})
	if score != 0 || max != 0 {
		t.Fatalf("ScoreObjective(nil) = %d/%d, want 0/0", score, max)
	}

	score, max = ScoreObjective(quiz(3), nil)
	if score != 0 || max != 3 {
		t.Fatalf("no answers = %d/%d, want 0/3", score, max)
	}
}

func TestScoreObjectiveDeterministic(t *testing.T) {
	qs := quiz(10)
	answers := map[string]string{"a": "yes", "c": "yes", "e": "nope", "j": "yes"}

	s0, m0 := ScoreObjective(qs, answers)
	for range 50 {
		s, m := ScoreObjective(qs, answers)
		if s != s0 || m != m0 {
			t.Fatalf("ScoreObjective not deterministic: %d/%d vs %d/%d", s, m, s0, m0)
		}
	}
}

// keywordClassifier satisfies a criterion when the text contains its ID.
type keywordClassifier struct {
	err   error
	calls int
}

func (k *keywordClassifier) EvaluateCriterion(_ context.Context, text string, c questions.Criterion) (bool, error) {
	k.calls++
	if k.err != nil {
		return false, k.err
	}
	return strings.Contains(text, c.ID), nil
}

func TestScoreCommunication(t *testing.T) {
	rubric := questions.Rubric{
		Written: []questions.Criterion{{ID: "w1", Name: "Grammar"}, {ID: "w2", Name: "Tone"}, {ID: "w3", Name: "Clarity"}},
		Spoken:  []questions.Criterion{{ID: "s1", Name: "Fluency"}, {ID: "s2", Name: "Confidence"}},
	}

	got, err := ScoreCommunication(context.Background(), "w1 w2", "s1 s2", rubric, &keywordClassifier{})
	require.NoError(t, err)

	want := CommunicationScore{Written: 66, Spoken: 100, Unmet: []string{"Clarity"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ScoreCommunication mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreCommunicationEmptyRubric(t *testing.T) {
	got, err := ScoreCommunication(context.Background(), "text", "text", questions.Rubric{}, &keywordClassifier{})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Written)
	assert.Equal(t, 0, got.Spoken)
}

func TestScoreCommunicationBlankResponse(t *testing.T) {
	c := &keywordClassifier{}
	got, err := ScoreCommunication(context.Background(), "  ", "", questions.DefaultRubric(), c)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Written)
	assert.Equal(t, 0, got.Spoken)
	assert.Len(t, got.Unmet, 8)
	assert.Zero(t, c.calls)
}

func TestScoreCommunicationClassifierError(t *testing.T) {
	c := &keywordClassifier{err: errors.New("model unavailable")}
	_, err := ScoreCommunication(context.Background(), "a", "b", questions.DefaultRubric(), c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Equal(t, 1, c.calls, "grading stops at the first failure")
}

// echoRunner prints the code back, so a solution "passes" when the code
// equals the expected output.
type echoRunner struct {
	mu        sync.Mutex
	languages []string
	inflight  atomic.Int32
	peak      atomic.Int32
	fail      error
}

func (r *echoRunner) Execute(_ context.Context, code, language, _ string) (string, error) {
	n := r.inflight.Add(1)
	defer r.inflight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}

	r.mu.Lock()
	r.languages = append(r.languages, language)
	r.mu.Unlock()

	if r.fail != nil {
		return "", r.fail
	}
	return code + "\n", nil
}

func problems(n int) []questions.CodingProblem {
	ps := make([]questions.CodingProblem, n)
	for i := range ps {
		ps[i] = questions.CodingProblem{ID: string(rune('p' + i)), ExpectedOutput: "ok"}
	}
	return ps
}

func TestScoreCoding(t *testing.T) {
	ps := problems(4)
	solutions := map[string]string{
		"p": "ok",
		"q": "  ok  ",
		"r": "wrong",
		// "s" missing
	}
	runner := &echoRunner{}

	got, err := ScoreCoding(context.Background(), ps, solutions, "python", runner)
	require.NoError(t, err)

	assert.Equal(t, 50, got.Score)
	assert.Equal(t, 2, got.Passed)
	assert.Equal(t, 4, got.Total)
	assert.True(t, got.Results[3].Missing)
	assert.False(t, got.Results[2].Passed)
	assert.Len(t, runner.languages, 3, "missing solutions are not executed")
	for _, l := range runner.languages {
		assert.Equal(t, "python", l)
	}
}

func TestScoreCodingProblemLanguageWins(t *testing.T) {
	ps := problems(1)
	ps[0].Language = "go"
	runner := &echoRunner{}

	_, err := ScoreCoding(context.Background(), ps, map[string]string{"p": "ok"}, "python", runner)
	require.NoError(t, err)
	assert.Equal(t, []string{"go"}, runner.languages)
}

func TestScoreCodingBoundedConcurrency(t *testing.T) {
	ps := problems(10)
	solutions := make(map[string]string)
	for _, p := range ps {
		solutions[p.ID] = "ok"
	}
	runner := &echoRunner{}

	got, err := ScoreCoding(context.Background(), ps, solutions, "python", runner)
	require.NoError(t, err)
	assert.Equal(t, 100, got.Score)
	assert.LessOrEqual(t, int(runner.peak.Load()), MaxParallelRuns)
}

func TestScoreCodingRunnerError(t *testing.T) {
	runner := &echoRunner{fail: errors.New("sandbox down")}
	_, err := ScoreCoding(context.Background(), problems(2), map[string]string{"p": "ok", "q": "ok"}, "python", runner)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox down")
}

func TestScoreCodingEmpty(t *testing.T) {
	got, err := ScoreCoding(context.Background(), nil, nil, "python", &echoRunner{})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, 0, got.Total)
}
