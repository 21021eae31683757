package assessment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/llm"
	"github.com/abhisek/gatekeep/internal/questions"
	"github.com/abhisek/gatekeep/internal/resume"
)

// IntakeRequest starts an assessment. Name and email fall back to the
// resume's contact block when empty.
type IntakeRequest struct {
	Name              string
	Email             string
	Phone             string
	Location          string
	Skills            []string
	PreferredLanguage string
	Resume            resume.File
}

type profileInput struct {
	Name     string `validate:"required,max=200"`
	Email    string `validate:"required,email,max=254"`
	Phone    string `validate:"omitempty,max=40"`
	Location string `validate:"omitempty,max=200"`
}

// SubmitIntake parses the resume, validates the profile, generates the
// objective questions and opens the session at the objective test.
func (e *Engine) SubmitIntake(ctx context.Context, req IntakeRequest) (*Session, error) {
	if len(req.Resume.Data) == 0 {
		return nil, invalid("resume", "a resume is required")
	}

	parsed, err := e.extractor.Parse(ctx, req.Resume)
	if err != nil {
		if errors.Is(err, resume.ErrEmptyResume) || errors.Is(err, resume.ErrUnsupportedFormat) {
			return nil, invalid("resume", err.Error())
		}
		return nil, &GradingFailure{Stage: StageResumeIntake, Err: fmt.Errorf("parse resume: %w", err)}
	}

	in := profileInput{
		Name:     firstNonEmpty(req.Name, parsed.Contact.Name),
		Email:    firstNonEmpty(req.Email, parsed.Contact.Email),
		Phone:    firstNonEmpty(req.Phone, parsed.Contact.Phone),
		Location: firstNonEmpty(req.Location, parsed.Contact.Location),
	}
	if err := e.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	lang := e.language
	if req.PreferredLanguage != "" {
		l, ok := questions.NormalizeLanguage(req.PreferredLanguage)
		if !ok {
			return nil, invalid("preferred_language", fmt.Sprintf("unsupported language %q", req.PreferredLanguage))
		}
		lang = l
	}
	lang, _ = questions.NormalizeLanguage(lang)

	now := e.clock()
	s := &Session{
		ID:          e.newID(),
		CandidateID: e.newID(),
		Profile: CandidateProfile{
			Name:              in.Name,
			Email:             strings.ToLower(in.Email),
			Phone:             in.Phone,
			Location:          in.Location,
			Skills:            resume.MergeSkills(req.Skills, parsed.Skills),
			Experience:        parsed.Experience,
			PreferredLanguage: lang,
		},
		CurrentStage:   StageResumeIntake,
		Results:        make(map[Stage]StageResult),
		Deadlines:      make(map[Stage]time.Time),
		StartedAt:      now,
		StageStartedAt: now,
		UpdatedAt:      now,
	}
	s.Profile.ID = s.CandidateID

	m, err := e.generate(llm.WithSession(ctx, s.ID), s, StageObjective)
	if err != nil {
		return nil, &GradingFailure{SessionID: s.ID, Stage: StageResumeIntake, Err: err}
	}
	s.Materials = m

	e.move(s, StageObjective, now, "intake accepted")
	if d := e.durations.For(StageObjective); d > 0 {
		s.Deadlines[StageObjective] = now.Add(d)
	}

	if err := e.repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	e.recordTransitions(ctx, s, 0)

	e.logger.Info("assessment started",
		zap.String("session_id", s.ID),
		zap.String("candidate_id", s.CandidateID),
		zap.Int("skills", len(s.Profile.Skills)),
		zap.Int("questions", len(s.Materials.Objective)),
		zap.String("language", lang))
	return s, nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []FieldError{{Field: "profile", Message: err.Error()}}}
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: describeTag(fe),
		})
	}
	return out
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag() + " validation"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
