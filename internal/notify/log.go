package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/assessment"
)

// LogSender writes verdicts to the log.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(_ context.Context, s assessment.Session) error {
	sum := Summarize(s)
	fields := []zap.Field{
		zap.String("session_id", sum.SessionID),
		zap.String("candidate", sum.CandidateName),
		zap.String("email", sum.CandidateEmail),
		zap.String("status", string(sum.Status)),
		zap.String("cause", string(sum.Cause)),
		zap.Bool("eligible_for_interview", sum.EligibleForInterview),
		zap.Bool("sponsorship_approved", sum.SponsorshipApproved),
		zap.Int("violations", sum.Violations),
		zap.Strings("reasons", sum.Reasons),
	}
	for _, st := range sum.Stages {
		fields = append(fields, zap.Int(string(st.Stage), st.Percent))
	}
	l.logger.Info("assessment verdict", fields...)
	return nil
}
