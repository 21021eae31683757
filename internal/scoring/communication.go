package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/abhisek/gatekeep/internal/questions"
)

// CommunicationScore is the graded communication stage.
type CommunicationScore struct {
	Written int
	Spoken  int

	// Unmet lists the names of criteria the classifier rejected.
	Unmet []string
}

// ScoreCommunication grades the written response and the audio transcript
// against their rubric lists. Each criterion is worth an equal share of 100,
// rounded down. An empty criteria list scores 0, and a blank response
// fails every criterion without consulting the classifier.
func ScoreCommunication(ctx context.Context, written, transcript string, rubric questions.Rubric, c TextClassifier) (CommunicationScore, error) {
	var out CommunicationScore

	w, unmet, err := scoreCriteria(ctx, written, rubric.Written, c)
	if err != nil {
		return CommunicationScore{}, fmt.Errorf("written response: %w", err)
	}
	out.Written = w
	out.Unmet = append(out.Unmet, unmet...)

	s, unmet, err := scoreCriteria(ctx, transcript, rubric.Spoken, c)
	if err != nil {
		return CommunicationScore{}, fmt.Errorf("spoken response: %w", err)
	}
	out.Spoken = s
	out.Unmet = append(out.Unmet, unmet...)

	return out, nil
}

func scoreCriteria(ctx context.Context, text string, criteria []questions.Criterion, c TextClassifier) (int, []string, error) {
	if len(criteria) == 0 {
		return 0, nil, nil
	}

	var (
		satisfied int
		unmet     []string
	)
	if strings.TrimSpace(text) == "" {
		for _, cr := range criteria {
			unmet = append(unmet, cr.Name)
		}
		return 0, unmet, nil
	}
	for _, cr := range criteria {
		ok, err := c.EvaluateCriterion(ctx, text, cr)
		if err != nil {
			return 0, nil, fmt.Errorf("criterion %q: %w", cr.ID, err)
		}
		if ok {
			satisfied++
		} else {
			unmet = append(unmet, cr.Name)
		}
	}
	return satisfied * 100 / len(criteria), unmet, nil
}
