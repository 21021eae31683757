// Package scoring grades stage submissions. The functions here hold no
// state; capability calls (classification, code execution) go through the
// interfaces below.
package scoring

import (
	"context"
	"strings"

	"github.com/abhisek/gatekeep/internal/questions"
)

// TextClassifier decides whether a piece of text satisfies a rubric
// criterion.
type TextClassifier interface {
	EvaluateCriterion(ctx context.Context, text string, criterion questions.Criterion) (bool, error)
}

// CodeRunner executes a program in a sandbox and returns its standard output.
type CodeRunner interface {
	Execute(ctx context.Context, code, language, input string) (string, error)
}

// ScoreObjective awards one point per question whose answer matches the key.
// Answers for unknown question ids are ignored. max is the question count.
func ScoreObjective(qs []questions.ObjectiveQuestion, answers map[string]string) (score, max int) {
	for _, q := range qs {
		if a, ok := answers[q.ID]; ok && questions.CheckAnswer(a, q) {
			score++
		}
	}
	return score, len(qs)
}

// Answered counts the answers that refer to a known question and are not
// blank.
func Answered(qs []questions.ObjectiveQuestion, answers map[string]string) int {
	n := 0
	for _, q := range qs {
		if a, ok := answers[q.ID]; ok && strings.TrimSpace(a) != "" {
			n++
		}
	}
	return n
}
