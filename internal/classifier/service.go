package classifier

import (
	"context"

	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/llm"
	"github.com/abhisek/gatekeep/internal/questions"
)

// Service decides rubric criteria. Mechanical rules run first; criteria
// they leave open go to the LLM judge when one is configured, and to the
// text heuristics otherwise. Criteria nothing can judge are satisfied.
type Service struct {
	rules     []Rule
	heuristic Rule
	judge     *Judge
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithRules replaces the mechanical rules.
func WithRules(rules ...Rule) Option {
	return func(s *Service) { s.rules = rules }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a classifier. If provider is nil, only rule-based
// classification is available.
func NewService(provider llm.Provider, opts ...Option) *Service {
	s := &Service{
		rules:     DefaultRules(),
		heuristic: &HeuristicRule{},
		logger:    zap.NewNop(),
	}
	if provider != nil {
		s.judge = NewJudge(provider, DefaultJudgeConfig())
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// EvaluateCriterion reports whether text meets c. LLM failures are
// returned so the caller can retry the whole grading.
func (s *Service) EvaluateCriterion(ctx context.Context, text string, c questions.Criterion) (bool, error) {
	in := NewInput(text, c)

	d, by := RunRules(s.rules, in)
	if d == Undecided {
		if s.judge != nil {
			j, err := s.judge.Judge(ctx, text, c)
			if err != nil {
				return false, err
			}
			s.logger.Debug("criterion judged",
				zap.String("criterion", c.ID),
				zap.Bool("satisfied", j.Satisfied),
				zap.Float64("confidence", j.Confidence))
			return j.Satisfied, nil
		}
		d, by = s.heuristic.Check(in), s.heuristic.Name()
	}

	if d == Undecided {
		s.logger.Warn("no rule applies to criterion, counting it as unmet",
			zap.String("criterion", c.ID))
		return false, nil
	}
	s.logger.Debug("criterion classified",
		zap.String("criterion", c.ID),
		zap.String("rule", by),
		zap.Stringer("decision", d))
	return d == Satisfied, nil
}
