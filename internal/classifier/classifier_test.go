package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/abhisek/gatekeep/internal/llm"
	"github.com/abhisek/gatekeep/internal/questions"
)

const goodEmail = `Dear Priya, Thank you for the update on the checkout release. I reviewed the test report this morning and found two issues with the payment form. The first affects saved cards and the second affects coupon codes. I have attached screenshots for both. Could we meet tomorrow at ten to agree on a fix? Best regards, Sam.`

const goodTranscript = `in my last project I built a small inventory service in Python for a local shop it tracked stock levels and sent alerts when items ran low I learned how to design simple APIs and write tests`

func TestMinWordsRule(t *testing.T) {
	r := &MinWordsRule{}
	c := questions.Criterion{ID: "x", MinWords: 5}

	if d := r.Check(NewInput("too short here", c)); d != Unsatisfied {
		t.Errorf("3 words: got %v, want unsatisfied", d)
	}
	if d := r.Check(NewInput("this one has five words", c)); d != Undecided {
		t.Errorf("5 words: got %v, want undecided", d)
	}
	if d := r.Check(NewInput("", questions.Criterion{ID: "x"})); d != Undecided {
		t.Errorf("no minimum: got %v, want undecided", d)
	}
}

func TestKeywordRule(t *testing.T) {
	r := &KeywordRule{}
	c := questions.Criterion{ID: "x", Keywords: []string{"unit test", "Deadline"}}

	if d := r.Check(NewInput("We missed the deadline.", c)); d != Satisfied {
		t.Errorf("got %v, want satisfied", d)
	}
	if d := r.Check(NewInput("I wrote a Unit  Test for it", c)); d != Satisfied {
		t.Errorf("multi-word keyword: got %v, want satisfied", d)
	}
	if d := r.Check(NewInput("I wrote unit tests", c)); d != Unsatisfied {
		t.Errorf("partial word: got %v, want unsatisfied", d)
	}
	if d := r.Check(NewInput("anything", questions.Criterion{ID: "x"})); d != Undecided {
		t.Errorf("no keywords: got %v, want undecided", d)
	}
}

func TestRunRules_FirstDecisionWins(t *testing.T) {
	c := questions.Criterion{ID: "x", MinWords: 10, Keywords: []string{"deadline"}}
	d, name := RunRules(DefaultRules(), NewInput("deadline", c))
	if d != Unsatisfied || name != "min-words" {
		t.Errorf("got (%v, %q), want (unsatisfied, min-words)", d, name)
	}
}

func TestService_DefaultRubricWithoutLLM(t *testing.T) {
	s := NewService(nil)
	rubric := questions.DefaultRubric()
	ctx := context.Background()

	for _, c := range rubric.Written {
		ok, err := s.EvaluateCriterion(ctx, goodEmail, c)
		if err != nil {
			t.Fatalf("%s: %v", c.ID, err)
		}
		if !ok {
			t.Errorf("written criterion %s not satisfied by a well-formed email", c.ID)
		}
	}
	for _, c := range rubric.Spoken {
		ok, err := s.EvaluateCriterion(ctx, goodTranscript, c)
		if err != nil {
			t.Fatalf("%s: %v", c.ID, err)
		}
		if !ok {
			t.Errorf("spoken criterion %s not satisfied by a clear transcript", c.ID)
		}
	}

	ok, _ := s.EvaluateCriterion(ctx, "Thanks, see you.", rubric.Written[0])
	if ok {
		t.Error("short email satisfied grammar despite MinWords")
	}
}

func TestHeuristics(t *testing.T) {
	tests := []struct {
		name      string
		criterion string
		text      string
		want      bool
	}{
		{"slang", "professionalism", "hey dude I'm gonna send it lol", false},
		{"clean", "professionalism", "I will send the report today.", true},
		{"rude", "tone", "Whatever, that was a stupid idea.", false},
		{"fillers", "fluency", "um so uh I um built uh a thing um", false},
		{"hedging", "confidence", "I think maybe it works, I guess.", false},
		{"inaudible", "pronunciation", "I worked on [inaudible] and [inaudible] systems", false},
		{"lowercase sentences", "grammar", "this is wrong. it has no capitals. none at all.", false},
		{"no terminal punctuation", "grammar", "This has no ending", false},
		{"run-on", "clarity", strings.Repeat("and then we ", 20) + "stopped.", false},
		{"repetitive", "relevance", strings.Repeat("good ", 30), false},
	}

	r := &HeuristicRule{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := r.Check(NewInput(tt.text, questions.Criterion{ID: tt.criterion}))
			if got := d == Satisfied; got != tt.want {
				t.Errorf("%s(%q) = %v, want %v", tt.criterion, tt.text, d, tt.want)
			}
		})
	}
}

func TestService_UndecidableCriterionIsUnmet(t *testing.T) {
	s := NewService(nil)
	for _, c := range []questions.Criterion{{ID: "empathy"}, {ID: "structure"}} {
		ok, err := s.EvaluateCriterion(context.Background(), "x", c)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Errorf("%s: criterion with no applicable rule should not be satisfied", c.ID)
		}
	}

	// keywords still decide criteria without a heuristic
	ok, err := s.EvaluateCriterion(context.Background(), "I added retries and structured logging.",
		questions.Criterion{ID: "structure", Keywords: []string{"retries"}})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("keyword match should satisfy the criterion")
	}
}

func TestService_UsesJudge(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"satisfied":true,"confidence":0.9,"reasoning":"Polite and clear"}`),
	})
	s := NewService(mock)
	c := questions.DefaultRubric().Written[1]

	ok, err := s.EvaluateCriterion(context.Background(), goodEmail, c)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("expected satisfied")
	}

	req := mock.LastRequest()
	if req.Schema != CriterionSchema {
		t.Errorf("schema = %v, want CriterionSchema", req.Schema)
	}
	if !strings.Contains(req.Messages[0].Content, "Criterion: Tone") {
		t.Errorf("prompt does not name the criterion:\n%s", req.Messages[0].Content)
	}
	if !strings.Contains(req.Messages[0].Content, "checkout release") {
		t.Error("prompt does not contain the response")
	}
}

func TestService_LowConfidenceIsNotSatisfied(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Content: json.RawMessage(`{"satisfied":true,"confidence":0.3,"reasoning":"Unclear"}`),
	})
	s := NewService(mock)

	ok, err := s.EvaluateCriterion(context.Background(), goodEmail, questions.Criterion{ID: "tone", Name: "Tone"})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("low-confidence approval should not satisfy the criterion")
	}
}

func TestService_RulesSkipJudge(t *testing.T) {
	mock := llm.NewMockProvider()
	s := NewService(mock)

	ok, err := s.EvaluateCriterion(context.Background(), "Too short.", questions.Criterion{ID: "tone", MinWords: 40})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected unsatisfied")
	}

	ok, _ = s.EvaluateCriterion(context.Background(), "We met the deadline.", questions.Criterion{ID: "x", Keywords: []string{"deadline"}})
	if !ok {
		t.Error("expected keyword match")
	}
	if mock.CallCount() != 0 {
		t.Errorf("judge called %d times, want 0", mock.CallCount())
	}
}

func TestService_JudgeErrorPropagates(t *testing.T) {
	boom := errors.New("rate limited")
	mock := llm.NewMockProvider(llm.MockResponse{Err: boom})
	s := NewService(mock)

	_, err := s.EvaluateCriterion(context.Background(), goodEmail, questions.Criterion{ID: "tone", Name: "Tone"})
	if !errors.Is(err, boom) {
		t.Fatalf("got %v, want wrapped %v", err, boom)
	}
}

func TestJudge_BadJSON(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Content: json.RawMessage(`not json`)})
	j := NewJudge(mock, DefaultJudgeConfig())

	if _, err := j.Judge(context.Background(), "text", questions.Criterion{ID: "tone"}); err == nil {
		t.Fatal("expected parse error")
	}
}
