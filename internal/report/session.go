// Package report renders sessions and cohort statistics for the terminal.
package report

import (
	"fmt"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/evaluator"
	"github.com/abhisek/gatekeep/internal/notify"
	"github.com/abhisek/gatekeep/internal/proctor"
)

const barWidth = 48

// RenderSession draws one session: profile, stage results against their
// pass marks, violations and the verdict.
func RenderSession(s *assessment.Session, t evaluator.Thresholds) string {
	var sections []string

	sections = append(sections, titleStyle.Render(s.Profile.Name)+" "+dimStyle.Render("<"+s.Profile.Email+">"))
	sections = append(sections, field("Session", s.ID))
	sections = append(sections, field("Stage", s.CurrentStage.Label()))
	if len(s.Profile.Skills) > 0 {
		sections = append(sections, field("Skills", strings.Join(s.Profile.Skills, ", ")))
	}
	sections = append(sections, field("Language", s.Profile.PreferredLanguage))
	sections = append(sections, field("Started", s.StartedAt.Local().Format("2006-01-02 15:04")))
	if d, ok := s.Deadline(); ok && !s.Final() {
		sections = append(sections, field("Deadline", d.Local().Format("15:04:05")))
	}

	if len(s.Results) > 0 {
		sections = append(sections, headingStyle.Render("Results"))
		sections = append(sections, resultBars(s, t)...)
	}

	if vs := s.Violations(); len(vs) > 0 {
		sections = append(sections, headingStyle.Render(fmt.Sprintf("Violations (%d)", len(vs))))
		for _, v := range vs {
			style := warnStyle
			if v.Severity == proctor.SeverityCritical {
				style = failStyle
			}
			sections = append(sections, fmt.Sprintf("%s  %s  %s",
				dimStyle.Render(v.Timestamp.Local().Format("15:04:05")),
				style.Render(string(v.Severity)),
				bodyStyle.Render(v.Description)))
		}
	}

	if s.Verdict != nil {
		sum := notify.Summarize(*s)
		sections = append(sections, headingStyle.Render("Verdict"))
		if s.Verdict.FinalStatus == assessment.StatusPassed {
			sections = append(sections, passStyle.Render("PASSED")+"  "+bodyStyle.Render(sum.Headline()))
		} else {
			sections = append(sections, failStyle.Render("FAILED")+"  "+bodyStyle.Render(sum.Headline()))
		}
		for _, r := range s.Verdict.Reasons {
			sections = append(sections, dimStyle.Render("  - "+r))
		}
	}

	return cardStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

func field(label, value string) string {
	return labelStyle.Render(label) + bodyStyle.Render(value)
}

func resultBars(s *assessment.Session, t evaluator.Thresholds) []string {
	var out []string
	for _, line := range notify.Summarize(*s).Stages {
		r := s.Results[line.Stage]
		switch line.Stage {
		case assessment.StageObjective:
			out = append(out, ScoreBar{Label: "Objective", Percent: line.Percent, Mark: t.Objective.MinPercent, Width: barWidth}.View())
		case assessment.StageCommunication:
			out = append(out,
				ScoreBar{Label: "Written", Percent: r.SubScores[assessment.SubScoreWritten], Mark: t.Communication.MinWritten, Width: barWidth}.View(),
				ScoreBar{Label: "Spoken", Percent: r.SubScores[assessment.SubScoreSpoken], Mark: t.Communication.MinSpoken, Width: barWidth}.View())
		case assessment.StageCoding:
			out = append(out, ScoreBar{Label: "Coding", Percent: line.Percent, Mark: t.Coding.MinScore, Width: barWidth}.View())
		}
		note := fmt.Sprintf("%17s%d answered in %s", "", r.AnsweredCount, (time.Duration(r.TimeTakenSeconds) * time.Second).String())
		if r.TimedOut {
			note += ", time limit expired"
		}
		out = append(out, dimStyle.Render(note))
	}
	return out
}
