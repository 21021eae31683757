package assessment

import (
	"context"
	"time"
)

// ListFilter narrows SessionRepo.List.
type ListFilter struct {
	// Stage matches the current stage when set.
	Stage Stage

	// Active keeps sessions without a verdict.
	Active bool

	// CandidateID matches the owning candidate when set.
	CandidateID string

	Limit int
}

// SessionRepo persists sessions, one record per id.
type SessionRepo interface {
	Create(ctx context.Context, s *Session) error

	// Get returns ErrSessionNotFound for an unknown id.
	Get(ctx context.Context, id string) (*Session, error)

	Save(ctx context.Context, s *Session) error

	// List returns matching sessions, most recently started first.
	List(ctx context.Context, f ListFilter) ([]*Session, error)
}

// Reporter receives the snapshot of a finished session. It is called once
// per session, after the verdict is stored.
type Reporter interface {
	Send(ctx context.Context, s Session) error
}

// Locker serialises work on one session across goroutines (or replicas).
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// TransitionRecorder receives each stage transition for auditing.
type TransitionRecorder interface {
	AppendTransition(ctx context.Context, sessionID string, t Transition) error
}

// Durations are the time limits per graded stage. Zero disables the limit.
type Durations struct {
	Objective     time.Duration `yaml:"objective" json:"objective"`
	Communication time.Duration `yaml:"communication" json:"communication"`
	Coding        time.Duration `yaml:"coding" json:"coding"`
}

// DefaultDurations returns the standard stage time limits.
func DefaultDurations() Durations {
	return Durations{
		Objective:     45 * time.Minute,
		Communication: 30 * time.Minute,
		Coding:        60 * time.Minute,
	}
}

func (d Durations) For(s Stage) time.Duration {
	switch s {
	case StageObjective:
		return d.Objective
	case StageCommunication:
		return d.Communication
	case StageCoding:
		return d.Coding
	}
	return 0
}
