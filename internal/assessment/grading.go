package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abhisek/gatekeep/internal/evaluator"
	"github.com/abhisek/gatekeep/internal/scoring"
)

// grade scores sub for stage and evaluates it. It never modifies s.
func (e *Engine) grade(ctx context.Context, s *Session, stage Stage, sub Submission) (StageResult, evaluator.Outcome, error) {
	result := StageResult{Stage: stage, Answers: cloneSubmission(sub)}
	var outcome evaluator.Outcome

	switch stage {
	case StageObjective:
		qs := s.Materials.Objective
		result.Score, result.MaxScore = scoring.ScoreObjective(qs, sub.Objective)
		result.AnsweredCount = scoring.Answered(qs, sub.Objective)
		outcome = e.thresholds.EvaluateObjective(result.Score, result.MaxScore)

	case StageCommunication:
		ct := s.Materials.Communication
		if ct == nil {
			return StageResult{}, evaluator.Outcome{}, errors.New("session has no communication materials")
		}
		cs, err := scoring.ScoreCommunication(ctx, sub.WrittenResponse, sub.AudioTranscript, ct.Rubric, e.classifier)
		if err != nil {
			return StageResult{}, evaluator.Outcome{}, err
		}
		result.Score = (cs.Written + cs.Spoken) / 2
		result.MaxScore = 100
		result.SubScores = map[string]int{SubScoreWritten: cs.Written, SubScoreSpoken: cs.Spoken}
		for _, text := range []string{sub.WrittenResponse, sub.AudioTranscript} {
			if strings.TrimSpace(text) != "" {
				result.AnsweredCount++
			}
		}
		outcome = e.thresholds.EvaluateCommunication(cs.Written, cs.Spoken)

	case StageCoding:
		ps := s.Materials.Coding
		cs, err := scoring.ScoreCoding(ctx, ps, sub.Solutions, s.Profile.PreferredLanguage, e.runner)
		if err != nil {
			return StageResult{}, evaluator.Outcome{}, err
		}
		result.Score = cs.Score
		result.MaxScore = 100
		result.Details = cs.Results
		for _, r := range cs.Results {
			if !r.Missing {
				result.AnsweredCount++
			}
		}
		outcome = e.thresholds.EvaluateCoding(cs.Score, cs.Total)

	default:
		return StageResult{}, evaluator.Outcome{}, fmt.Errorf("stage %s is not graded", stage)
	}

	result.Passed = outcome.Passed
	result.Reasons = outcome.Reasons
	return result, outcome, nil
}

// generate produces the materials for stage from the candidate's skills.
func (e *Engine) generate(ctx context.Context, s *Session, stage Stage) (Materials, error) {
	skills := s.Profile.Skills
	var m Materials

	switch stage {
	case StageObjective:
		qs, err := e.generator.GenerateObjective(ctx, skills)
		if err != nil {
			return Materials{}, fmt.Errorf("generate objective questions: %w", err)
		}
		if len(qs) == 0 {
			return Materials{}, errors.New("generator returned no objective questions")
		}
		m.Objective = qs

	case StageCommunication:
		ct, err := e.generator.GenerateCommunication(ctx, skills)
		if err != nil {
			return Materials{}, fmt.Errorf("generate communication test: %w", err)
		}
		if ct == nil {
			return Materials{}, errors.New("generator returned no communication test")
		}
		m.Communication = ct

	case StageCoding:
		ps, err := e.generator.GenerateCoding(ctx, s.Profile.PreferredLanguage, skills)
		if err != nil {
			return Materials{}, fmt.Errorf("generate coding problems: %w", err)
		}
		if len(ps) == 0 {
			return Materials{}, errors.New("generator returned no coding problems")
		}
		m.Coding = ps
	}
	return m, nil
}

func mergeMaterials(dst *Materials, src Materials) {
	if src.Objective != nil {
		dst.Objective = src.Objective
	}
	if src.Communication != nil {
		dst.Communication = src.Communication
	}
	if src.Coding != nil {
		dst.Coding = src.Coding
	}
}

func cloneSubmission(sub Submission) Submission {
	out := sub
	if sub.Objective != nil {
		out.Objective = make(map[string]string, len(sub.Objective))
		for k, v := range sub.Objective {
			out.Objective[k] = v
		}
	}
	if sub.Solutions != nil {
		out.Solutions = make(map[string]string, len(sub.Solutions))
		for k, v := range sub.Solutions {
			out.Solutions[k] = v
		}
	}
	return out
}
