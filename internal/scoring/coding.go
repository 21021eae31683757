package scoring

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/gatekeep/internal/questions"
)

// MaxParallelRuns bounds concurrent CodeRunner calls for one submission.
const MaxParallelRuns = 4

// ProblemResult is the outcome of one coding problem.
type ProblemResult struct {
	ProblemID string `json:"problem_id"`
	Passed    bool   `json:"passed"`
	Missing   bool   `json:"missing,omitempty"`
	Output    string `json:"output,omitempty"`
}

// CodingScore is the graded coding stage.
type CodingScore struct {
	Score   int
	Passed  int
	Total   int
	Results []ProblemResult
}

// ScoreCoding runs every submitted solution through runner and compares the
// trimmed output with the trimmed expected output. A problem without a
// solution fails without being run. Score is passed*100/total.
//
// Any runner error aborts the whole grading; partial results are discarded.
func ScoreCoding(ctx context.Context, problems []questions.CodingProblem, solutions map[string]string, language string, runner CodeRunner) (CodingScore, error) {
	out := CodingScore{
		Total:   len(problems),
		Results: make([]ProblemResult, len(problems)),
	}
	if len(problems) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxParallelRuns)

	for i, p := range problems {
		out.Results[i].ProblemID = p.ID

		code := solutions[p.ID]
		if strings.TrimSpace(code) == "" {
			out.Results[i].Missing = true
			continue
		}

		lang := p.Language
		if lang == "" {
			lang = language
		}

		g.Go(func() error {
			got, err := runner.Execute(gctx, code, lang, p.Input)
			if err != nil {
				return fmt.Errorf("problem %q: %w", p.ID, err)
			}
			out.Results[i].Output = got
			out.Results[i].Passed = strings.TrimSpace(got) == strings.TrimSpace(p.ExpectedOutput)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return CodingScore{}, err
	}

	for _, r := range out.Results {
		if r.Passed {
			out.Passed++
		}
	}
	out.Score = out.Passed * 100 / out.Total
	return out, nil
}
