// Package simulate drives an assessment from a YAML script. It backs the
// simulate command and is handy for demos against a local config.
package simulate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/proctor"
	"github.com/abhisek/gatekeep/internal/resume"
)

// Script is a scripted candidate.
type Script struct {
	Candidate Candidate `yaml:"candidate"`
	Steps     []Step    `yaml:"steps"`
	Expect    *Expect   `yaml:"expect"`
}

type Candidate struct {
	Name     string   `yaml:"name"`
	Email    string   `yaml:"email"`
	Phone    string   `yaml:"phone"`
	Location string   `yaml:"location"`
	Skills   []string `yaml:"skills"`
	Language string   `yaml:"language"`

	// Resume is inline resume text. ResumeFile is read relative to the
	// script when Resume is empty.
	Resume     string `yaml:"resume"`
	ResumeFile string `yaml:"resume_file"`
}

// Step is one scripted action. Exactly one of Stage, Violation or Abort
// is set.
type Step struct {
	Stage string `yaml:"stage"`
	Draft bool   `yaml:"draft"`

	Answers map[string]string `yaml:"answers"`
	// AnswerKey answers every objective question with its key.
	AnswerKey bool              `yaml:"answer_key"`
	Written   string            `yaml:"written"`
	Spoken    string            `yaml:"spoken"`
	Solutions map[string]string `yaml:"solutions"`

	Violation *Violation `yaml:"violation"`
	Abort     string     `yaml:"abort"`
}

type Violation struct {
	Kind   proctor.Kind `yaml:"kind"`
	Active *bool        `yaml:"active"`
	Detail string       `yaml:"detail"`
}

// Expect is checked against the final session.
type Expect struct {
	Stage  string            `yaml:"stage"`
	Status assessment.Status `yaml:"status"`
}

// Driver is the engine surface a script uses.
type Driver interface {
	SubmitIntake(ctx context.Context, req assessment.IntakeRequest) (*assessment.Session, error)
	Get(ctx context.Context, id string) (*assessment.Session, error)
	SaveDraft(ctx context.Context, id string, stage assessment.Stage, sub assessment.Submission) (*assessment.Session, error)
	SubmitStageAnswers(ctx context.Context, id string, stage assessment.Stage, sub assessment.Submission) (*assessment.StepResult, error)
	ReportViolation(ctx context.Context, id string, sig proctor.Signal) (*assessment.ProctorOutcome, error)
	Abort(ctx context.Context, id, reason string) (*assessment.Session, error)
}

// ExpectationError reports a final session that does not match Expect.
type ExpectationError struct {
	Field string
	Want  string
	Got   string
}

func (e *ExpectationError) Error() string {
	return fmt.Sprintf("expected %s %q, got %q", e.Field, e.Want, e.Got)
}

// LoadFile reads a script and resolves resume_file against its directory.
func LoadFile(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse script %s: %w", path, err)
	}
	if s.Candidate.Resume == "" && s.Candidate.ResumeFile != "" {
		rf := s.Candidate.ResumeFile
		if !filepath.IsAbs(rf) {
			rf = filepath.Join(filepath.Dir(path), rf)
		}
		text, err := os.ReadFile(rf)
		if err != nil {
			return nil, fmt.Errorf("read resume: %w", err)
		}
		s.Candidate.Resume = string(text)
	}
	return s, nil
}

// Parse decodes and checks a script.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("script is empty")
		}
		return nil, err
	}
	for i, st := range s.Steps {
		set := 0
		if st.Stage != "" {
			set++
			stage, err := assessment.ParseStage(st.Stage)
			if err != nil || !stage.Graded() {
				return nil, fmt.Errorf("step %d: %q is not a graded stage", i+1, st.Stage)
			}
		}
		if st.Violation != nil {
			set++
		}
		if st.Abort != "" {
			set++
		}
		if set != 1 {
			return nil, fmt.Errorf("step %d: set exactly one of stage, violation or abort", i+1)
		}
	}
	return &s, nil
}

// Run plays the script and returns the final session. Progress goes to
// out. Steps after the session has ended are skipped.
func Run(ctx context.Context, d Driver, s *Script, out io.Writer) (*assessment.Session, error) {
	c := s.Candidate
	sess, err := d.SubmitIntake(ctx, assessment.IntakeRequest{
		Name:              c.Name,
		Email:             c.Email,
		Phone:             c.Phone,
		Location:          c.Location,
		Skills:            c.Skills,
		PreferredLanguage: c.Language,
		Resume:            resume.File{Name: "resume.txt", ContentType: "text/plain", Data: []byte(c.Resume)},
	})
	if err != nil {
		return nil, fmt.Errorf("intake: %w", err)
	}
	fmt.Fprintf(out, "session %s started for %s <%s>\n", sess.ID, sess.Profile.Name, sess.Profile.Email)

	for i, st := range s.Steps {
		if sess.Final() {
			fmt.Fprintf(out, "step %d skipped: session is %s\n", i+1, sess.CurrentStage)
			continue
		}
		sess, err = play(ctx, d, sess, st, out)
		if err != nil {
			return sess, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if s.Expect != nil {
		if err := check(sess, s.Expect); err != nil {
			return sess, err
		}
	}
	return sess, nil
}

func play(ctx context.Context, d Driver, sess *assessment.Session, st Step, out io.Writer) (*assessment.Session, error) {
	switch {
	case st.Violation != nil:
		active := true
		if st.Violation.Active != nil {
			active = *st.Violation.Active
		}
		oc, err := d.ReportViolation(ctx, sess.ID, proctor.Signal{
			Kind:   st.Violation.Kind,
			Active: active,
			Detail: st.Violation.Detail,
		})
		if err != nil {
			return sess, err
		}
		if oc.Violation != nil {
			fmt.Fprintf(out, "violation %s (%s), %d recorded\n", oc.Violation.Kind, oc.Violation.Severity, oc.Violations)
		}
		if oc.Terminated {
			fmt.Fprintf(out, "session terminated: %s\n", oc.Reason)
		}
		return d.Get(ctx, sess.ID)

	case st.Abort != "":
		s, err := d.Abort(ctx, sess.ID, st.Abort)
		if err != nil {
			return sess, err
		}
		fmt.Fprintf(out, "session aborted: %s\n", st.Abort)
		return s, nil
	}

	stage, _ := assessment.ParseStage(st.Stage)
	sub := submission(sess, stage, st)

	if st.Draft {
		s, err := d.SaveDraft(ctx, sess.ID, stage, sub)
		if err != nil {
			return sess, err
		}
		fmt.Fprintf(out, "%s draft saved\n", stage.Label())
		return s, nil
	}

	res, err := d.SubmitStageAnswers(ctx, sess.ID, stage, sub)
	if err != nil {
		return sess, err
	}
	mark := "failed"
	if res.Result.Passed {
		mark = "passed"
	}
	fmt.Fprintf(out, "%s %s: %d/%d\n", stage.Label(), mark, res.Result.Score, res.Result.MaxScore)
	if res.Verdict != nil {
		fmt.Fprintf(out, "verdict: %s\n", res.Verdict.FinalStatus)
	}
	return res.Session, nil
}

func submission(sess *assessment.Session, stage assessment.Stage, st Step) assessment.Submission {
	switch stage {
	case assessment.StageObjective:
		answers := make(map[string]string, len(sess.Materials.Objective))
		if st.AnswerKey {
			for _, q := range sess.Materials.Objective {
				answers[q.ID] = q.CorrectAnswer
			}
		}
		for id, a := range st.Answers {
			answers[id] = a
		}
		return assessment.Submission{Objective: answers}
	case assessment.StageCommunication:
		return assessment.Submission{WrittenResponse: st.Written, AudioTranscript: st.Spoken}
	default:
		return assessment.Submission{Solutions: st.Solutions}
	}
}

func check(sess *assessment.Session, want *Expect) error {
	if want.Stage != "" && string(sess.CurrentStage) != want.Stage {
		return &ExpectationError{Field: "stage", Want: want.Stage, Got: string(sess.CurrentStage)}
	}
	if want.Status != "" {
		got := ""
		if sess.Verdict != nil {
			got = string(sess.Verdict.FinalStatus)
		}
		if got != string(want.Status) {
			return &ExpectationError{Field: "status", Want: string(want.Status), Got: got}
		}
	}
	return nil
}
