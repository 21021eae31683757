package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/evaluator"
	"github.com/abhisek/gatekeep/internal/llm"
	"github.com/abhisek/gatekeep/internal/lock"
	"github.com/abhisek/gatekeep/internal/proctor"
	"github.com/abhisek/gatekeep/internal/questions"
	"github.com/abhisek/gatekeep/internal/resume"
	"github.com/abhisek/gatekeep/internal/scoring"
)

// Options configures an Engine. Repo, Generator, Extractor, Classifier and
// Runner are required.
type Options struct {
	Repo        SessionRepo
	Locker      Locker
	Generator   questions.Generator
	Extractor   resume.Extractor
	Classifier  scoring.TextClassifier
	Runner      scoring.CodeRunner
	Reporter    Reporter
	Transitions TransitionRecorder

	Thresholds evaluator.Thresholds
	Policy     proctor.Policy
	Durations  Durations

	// DefaultLanguage is used when the candidate names no coding language.
	DefaultLanguage string

	Clock  func() time.Time
	NewID  func() string
	Logger *zap.Logger
}

// Engine is the assessment state machine. All changes to one session are
// serialised through the Locker; different sessions proceed in parallel.
type Engine struct {
	repo        SessionRepo
	locker      Locker
	generator   questions.Generator
	extractor   resume.Extractor
	classifier  scoring.TextClassifier
	runner      scoring.CodeRunner
	reporter    Reporter
	transitions TransitionRecorder

	thresholds evaluator.Thresholds
	policy     proctor.Policy
	durations  Durations
	language   string

	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
	validate *validator.Validate
}

// New builds an Engine. Zero-valued thresholds, policy and durations take
// their defaults.
func New(opts Options) (*Engine, error) {
	switch {
	case opts.Repo == nil:
		return nil, errors.New("assessment: a session repository is required")
	case opts.Generator == nil:
		return nil, errors.New("assessment: a question generator is required")
	case opts.Extractor == nil:
		return nil, errors.New("assessment: a resume extractor is required")
	case opts.Classifier == nil:
		return nil, errors.New("assessment: a text classifier is required")
	case opts.Runner == nil:
		return nil, errors.New("assessment: a code runner is required")
	}

	e := &Engine{
		repo:        opts.Repo,
		locker:      opts.Locker,
		generator:   opts.Generator,
		extractor:   opts.Extractor,
		classifier:  opts.Classifier,
		runner:      opts.Runner,
		reporter:    opts.Reporter,
		transitions: opts.Transitions,
		thresholds:  opts.Thresholds,
		policy:      opts.Policy,
		durations:   opts.Durations,
		language:    opts.DefaultLanguage,
		now:         opts.Clock,
		newID:       opts.NewID,
		logger:      opts.Logger,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	if e.locker == nil {
		e.locker = lock.NewLocal()
	}
	if e.thresholds == (evaluator.Thresholds{}) {
		e.thresholds = evaluator.DefaultThresholds()
	}
	if e.policy.Rules == nil {
		e.policy = proctor.DefaultPolicy()
	}
	if e.durations == (Durations{}) {
		e.durations = DefaultDurations()
	}
	if e.language == "" {
		e.language = questions.LangPython
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	if err := e.thresholds.Validate(); err != nil {
		return nil, err
	}
	if err := e.policy.Validate(); err != nil {
		return nil, err
	}
	if _, ok := questions.NormalizeLanguage(e.language); !ok {
		return nil, fmt.Errorf("assessment: unsupported default language %q", e.language)
	}
	return e, nil
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// withSession loads a session under its lock.
func (e *Engine) withSession(ctx context.Context, id string, fn func(s *Session) error) error {
	unlock, err := e.locker.Lock(ctx, id)
	if err != nil {
		return fmt.Errorf("lock session %s: %w", id, err)
	}
	defer unlock()

	s, err := e.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return fn(s)
}

// Get returns a session, first applying any expired deadline. A grading
// failure during expiry is logged and the stored session returned.
func (e *Engine) Get(ctx context.Context, id string) (*Session, error) {
	var out, final *Session
	err := e.withSession(ctx, id, func(s *Session) error {
		step, err := e.expire(ctx, s)
		if err != nil {
			var gf *GradingFailure
			if !errors.As(err, &gf) {
				return err
			}
			e.logger.Warn("deadline expiry failed", zap.String("session_id", id), zap.Error(err))
		}
		if step != nil && step.Session.Final() {
			final = step.Session
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.report(ctx, final)
	return out, nil
}

// List returns stored sessions without applying deadlines.
func (e *Engine) List(ctx context.Context, f ListFilter) ([]*Session, error) {
	return e.repo.List(ctx, f)
}

// Materials returns the candidate's view of the current stage.
func (e *Engine) Materials(ctx context.Context, id string) (*StageMaterials, error) {
	s, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Final() {
		return nil, &SessionTerminatedError{SessionID: s.ID, Stage: s.CurrentStage}
	}
	return s.ViewFor(s.CurrentStage), nil
}

// SaveDraft stores the answers currently held for the active stage. They
// are graded if the stage deadline passes before a submission.
func (e *Engine) SaveDraft(ctx context.Context, id string, stage Stage, sub Submission) (*Session, error) {
	var out, final *Session
	err := e.withSession(ctx, id, func(s *Session) error {
		if s.Final() {
			return &SessionTerminatedError{SessionID: s.ID, Stage: s.CurrentStage}
		}
		if step, err := e.expire(ctx, s); err != nil {
			return err
		} else if step != nil {
			if step.Session.Final() {
				final = step.Session
				return &SessionTerminatedError{SessionID: s.ID, Stage: step.Session.CurrentStage}
			}
			s = step.Session
		}
		if stage != s.CurrentStage {
			return &StageMismatchError{SessionID: s.ID, Current: s.CurrentStage, Submitted: stage}
		}

		s.Draft = sub
		s.UpdatedAt = e.clock()
		if err := e.repo.Save(ctx, s); err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
		out = s
		return nil
	})
	e.report(ctx, final)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SubmitStageAnswers grades the answers for stage, which must be the
// current stage.
//
// A pass records the result and moves to the next stage, generating its
// materials, or completes the session. A fail records the result and
// terminates the session. Scoring and capability errors return a
// GradingFailure and leave the session untouched.
//
// An expired deadline is applied first: the held draft is graded in place
// of these answers, and the call then fails with StageMismatchError or
// SessionTerminatedError.
func (e *Engine) SubmitStageAnswers(ctx context.Context, id string, stage Stage, sub Submission) (*StepResult, error) {
	var out *StepResult
	var final *Session
	err := e.withSession(ctx, id, func(s *Session) error {
		if s.Final() {
			return &SessionTerminatedError{SessionID: s.ID, Stage: s.CurrentStage}
		}
		if step, err := e.expire(ctx, s); err != nil {
			return err
		} else if step != nil {
			s = step.Session
			if s.Final() {
				final = s
				return &SessionTerminatedError{SessionID: s.ID, Stage: s.CurrentStage}
			}
		}
		if stage != s.CurrentStage {
			return &StageMismatchError{SessionID: s.ID, Current: s.CurrentStage, Submitted: stage}
		}

		step, err := e.conclude(ctx, s, sub, false)
		if err != nil {
			return err
		}
		if step.Session.Final() {
			final = step.Session
		}
		out = step
		return nil
	})
	e.report(ctx, final)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReportViolation feeds a proctoring signal to the session's monitor. When
// the monitor calls for termination the session ends as failed, whatever
// the scores so far.
func (e *Engine) ReportViolation(ctx context.Context, id string, sig proctor.Signal) (*ProctorOutcome, error) {
	var out *ProctorOutcome
	var final *Session
	err := e.withSession(ctx, id, func(s *Session) error {
		if s.Final() {
			return &SessionTerminatedError{SessionID: s.ID, Stage: s.CurrentStage}
		}
		if step, err := e.expire(ctx, s); err != nil {
			return err
		} else if step != nil {
			s = step.Session
			if s.Final() {
				final = s
				return &SessionTerminatedError{SessionID: s.ID, Stage: s.CurrentStage}
			}
		}

		now := e.clock()
		from := len(s.History)
		// Client clocks drift; a timestamp ahead of ours would fast-forward
		// the episode's sustain window.
		if sig.At.IsZero() || sig.At.After(now) {
			sig.At = now
		}

		mon := proctor.NewMonitor(e.policy, &s.Proctor, proctor.WithIDGenerator(e.newID))
		v, err := mon.RecordSignal(sig)
		if err != nil {
			return invalid("kind", err.Error())
		}

		out = &ProctorOutcome{Violation: v, Stage: s.CurrentStage}
		if v != nil {
			out.Critical = v.Severity == proctor.SeverityCritical
			e.logger.Info("proctoring violation recorded",
				zap.String("session_id", s.ID),
				zap.String("kind", string(v.Kind)),
				zap.String("severity", string(v.Severity)),
				zap.Int("violations", len(s.Proctor.Violations)))

			if mon.ShouldTerminate() {
				reason := mon.TerminationReason()
				e.terminate(s, CauseProctoring, []string{reason}, now)
				out.Terminated = true
				out.Reason = reason
				out.Stage = s.CurrentStage
				out.Verdict = s.Verdict
			}
		}
		out.Violations = len(s.Proctor.Violations)

		s.UpdatedAt = now
		if err := e.commit(ctx, s, from); err != nil {
			return err
		}
		if s.Final() {
			final = s
		}
		return nil
	})
	e.report(ctx, final)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Abort ends the session immediately as failed, recording a critical
// violation so the proctoring log shows why.
func (e *Engine) Abort(ctx context.Context, id, reason string) (*Session, error) {
	var out *Session
	err := e.withSession(ctx, id, func(s *Session) error {
		if s.Final() {
			return &SessionTerminatedError{SessionID: s.ID, Stage: s.CurrentStage}
		}
		msg := "assessment aborted"
		if r := strings.TrimSpace(reason); r != "" {
			msg += ": " + r
		}
		now := e.clock()
		from := len(s.History)
		proctor.NewMonitor(e.policy, &s.Proctor, proctor.WithIDGenerator(e.newID)).
			Force(proctor.KindAborted, proctor.SeverityCritical, now, msg)
		e.terminate(s, CauseAborted, []string{msg}, now)
		s.UpdatedAt = now
		if err := e.commit(ctx, s, from); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.report(ctx, out)
	return out, nil
}

// ExpireDue applies every passed deadline among active sessions and returns
// how many sessions it concluded. Sessions that fail to grade are retried
// on the next call.
func (e *Engine) ExpireDue(ctx context.Context) (int, error) {
	active, err := e.repo.List(ctx, ListFilter{Active: true})
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	now := e.clock()
	var (
		n    int
		errs []error
	)
	for _, s := range active {
		if d, ok := s.Deadline(); !ok || now.Before(d) {
			continue
		}
		var final *Session
		err := e.withSession(ctx, s.ID, func(s *Session) error {
			step, err := e.expire(ctx, s)
			if err != nil || step == nil {
				return err
			}
			n++
			if step.Session.Final() {
				final = step.Session
			}
			return nil
		})
		e.report(ctx, final)
		if err != nil {
			e.logger.Warn("failed to expire session", zap.String("session_id", s.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return n, errors.Join(errs...)
}

// expire grades the draft when the current stage's deadline has passed.
// It returns nil when nothing expired.
func (e *Engine) expire(ctx context.Context, s *Session) (*StepResult, error) {
	if s.Final() || !s.CurrentStage.Graded() {
		return nil, nil
	}
	d, ok := s.Deadline()
	if !ok || e.clock().Before(d) {
		return nil, nil
	}

	e.logger.Info("stage deadline expired, grading held answers",
		zap.String("session_id", s.ID),
		zap.String("stage", string(s.CurrentStage)),
		zap.Time("deadline", d))
	return e.conclude(ctx, s, s.Draft, true)
}

// conclude grades sub for the current stage and applies the outcome.
// Nothing is mutated unless grading and next-stage generation succeed.
func (e *Engine) conclude(ctx context.Context, s *Session, sub Submission, timedOut bool) (*StepResult, error) {
	stage := s.CurrentStage
	now := e.clock()
	gctx := llm.WithSession(ctx, s.ID)

	result, outcome, err := e.grade(gctx, s, stage, sub)
	if err != nil {
		return nil, &GradingFailure{SessionID: s.ID, Stage: stage, Err: err}
	}
	result.TimedOut = timedOut
	result.CompletedAt = now
	result.TimeTakenSeconds = int(now.Sub(s.StageStartedAt).Seconds())
	if result.TimeTakenSeconds < 0 {
		result.TimeTakenSeconds = 0
	}

	next := stage.Next()
	var materials Materials
	if outcome.Passed && next.Graded() {
		materials, err = e.generate(gctx, s, next)
		if err != nil {
			return nil, &GradingFailure{SessionID: s.ID, Stage: stage, Err: err}
		}
	}

	// Commit point.
	from := len(s.History)
	if s.Results == nil {
		s.Results = make(map[Stage]StageResult)
	}
	if _, dup := s.Results[stage]; dup {
		return nil, fmt.Errorf("session %s already has a %s result", s.ID, stage)
	}
	s.Results[stage] = result
	s.Draft = Submission{}

	switch {
	case !outcome.Passed:
		reasons := append([]string{}, outcome.Reasons...)
		if timedOut {
			reasons = append(reasons, fmt.Sprintf("%s time limit expired", strings.ToLower(stage.Label())))
		}
		e.terminate(s, CauseStageFailed, reasons, now)
	case next == StageCompleted:
		e.complete(s, now)
	default:
		mergeMaterials(&s.Materials, materials)
		reason := "passed"
		if timedOut {
			reason = "passed on time limit"
		}
		e.move(s, next, now, reason)
		s.StageStartedAt = now
		if d := e.durations.For(next); d > 0 {
			s.Deadlines[next] = now.Add(d)
		}
	}
	s.UpdatedAt = now

	if err := e.commit(ctx, s, from); err != nil {
		return nil, err
	}

	e.logger.Info("stage concluded",
		zap.String("session_id", s.ID),
		zap.String("stage", string(stage)),
		zap.Int("score", result.Score),
		zap.Int("max_score", result.MaxScore),
		zap.Bool("passed", result.Passed),
		zap.Bool("timed_out", timedOut),
		zap.String("next", string(s.CurrentStage)))

	step := &StepResult{
		Session: s,
		Result:  result,
		Next:    s.CurrentStage,
		Verdict: s.Verdict,
	}
	if !s.Final() {
		step.Materials = s.ViewFor(s.CurrentStage)
	}
	return step, nil
}

// commit persists s and records the transitions from History[from:].
func (e *Engine) commit(ctx context.Context, s *Session, from int) error {
	if s.Final() && s.ReportedAt == nil && e.reporter != nil {
		// Marked before the send so a verdict is reported at most once.
		t := s.UpdatedAt
		s.ReportedAt = &t
	}
	if err := e.repo.Save(ctx, s); err != nil {
		return fmt.Errorf("save session %s: %w", s.ID, err)
	}
	e.recordTransitions(ctx, s, from)
	return nil
}

// move appends a transition and changes the current stage. Transitions that
// would break the stage order are programming errors.
func (e *Engine) move(s *Session, to Stage, at time.Time, reason string) {
	if !s.CurrentStage.CanMoveTo(to) {
		panic(fmt.Sprintf("assessment: illegal transition %s -> %s", s.CurrentStage, to))
	}
	s.History = append(s.History, Transition{From: s.CurrentStage, To: to, At: at, Reason: reason})
	s.CurrentStage = to
}

func (e *Engine) terminate(s *Session, cause Cause, reasons []string, at time.Time) {
	if len(reasons) == 0 {
		reasons = []string{"assessment terminated"}
	}
	e.move(s, StageTerminated, at, string(cause))
	s.Cause = cause
	s.Draft = Submission{}
	s.Verdict = &Verdict{
		FinalStatus: StatusFailed,
		Reasons:     reasons,
		DecidedAt:   at,
	}
}

func (e *Engine) complete(s *Session, at time.Time) {
	e.move(s, StageCompleted, at, "passed")
	s.Cause = CauseCompleted
	s.Verdict = decide(s, at)
}

// decide computes the verdict of a completed session: passed only when
// every graded stage has a passing result.
func decide(s *Session, at time.Time) *Verdict {
	var reasons []string
	for _, st := range GradedStages() {
		r, ok := s.Results[st]
		switch {
		case !ok:
			reasons = append(reasons, fmt.Sprintf("%s has no result", strings.ToLower(st.Label())))
		case !r.Passed:
			reasons = append(reasons, r.Reasons...)
		}
	}

	passed := len(reasons) == 0
	v := &Verdict{
		FinalStatus:          StatusFailed,
		EligibleForInterview: passed,
		SponsorshipApproved:  passed,
		Reasons:              reasons,
		DecidedAt:            at,
	}
	if passed {
		v.FinalStatus = StatusPassed
		v.Reasons = []string{"all stages passed"}
	}
	return v
}

func (e *Engine) recordTransitions(ctx context.Context, s *Session, from int) {
	if e.transitions == nil {
		return
	}
	for _, t := range s.History[min(from, len(s.History)):] {
		if err := e.transitions.AppendTransition(ctx, s.ID, t); err != nil {
			e.logger.Warn("failed to record transition", zap.String("session_id", s.ID), zap.Error(err))
		}
	}
}

// report sends a finished session to the reporter. s is nil when nothing
// finished.
func (e *Engine) report(ctx context.Context, s *Session) {
	if s == nil || e.reporter == nil {
		return
	}
	if err := e.reporter.Send(ctx, *s.Clone()); err != nil {
		e.logger.Error("failed to report verdict",
			zap.String("session_id", s.ID),
			zap.String("status", string(s.Verdict.FinalStatus)),
			zap.Error(err))
	}
}

