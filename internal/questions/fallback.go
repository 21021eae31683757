package questions

import (
	"context"

	"go.uber.org/zap"
)

// Fallback serves from Primary and switches to Secondary for any call the
// primary cannot satisfy.
type Fallback struct {
	Primary   Generator
	Secondary Generator
	Logger    *zap.Logger
}

// NewFallback returns a Generator that prefers primary.
func NewFallback(primary, secondary Generator, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{Primary: primary, Secondary: secondary, Logger: logger}
}

func (f *Fallback) GenerateObjective(ctx context.Context, skills []string) ([]ObjectiveQuestion, error) {
	qs, err := f.Primary.GenerateObjective(ctx, skills)
	if err == nil {
		return qs, nil
	}
	f.Logger.Warn("primary generator failed, using fallback", zap.String("stage", "objective"), zap.Error(err))
	return f.Secondary.GenerateObjective(ctx, skills)
}

func (f *Fallback) GenerateCommunication(ctx context.Context, skills []string) (*CommunicationTest, error) {
	ct, err := f.Primary.GenerateCommunication(ctx, skills)
	if err == nil {
		return ct, nil
	}
	f.Logger.Warn("primary generator failed, using fallback", zap.String("stage", "communication"), zap.Error(err))
	return f.Secondary.GenerateCommunication(ctx, skills)
}

func (f *Fallback) GenerateCoding(ctx context.Context, language string, skills []string) ([]CodingProblem, error) {
	ps, err := f.Primary.GenerateCoding(ctx, language, skills)
	if err == nil {
		return ps, nil
	}
	f.Logger.Warn("primary generator failed, using fallback",
		zap.String("stage", "coding"), zap.String("language", language), zap.Error(err))
	return f.Secondary.GenerateCoding(ctx, language, skills)
}
