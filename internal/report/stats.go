package report

import (
	"fmt"
	"sort"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/notify"
	"github.com/abhisek/gatekeep/internal/proctor"
)

// StageStats aggregates one graded stage across sessions.
type StageStats struct {
	Stage      assessment.Stage
	Reached    int // sessions that entered the stage
	Graded     int // sessions with a stored result
	Passed     int
	TimedOut   int
	AvgPercent float64
}

// DropOff is the number of sessions that entered the stage but did not
// advance past it, including those still working on it.
func (s StageStats) DropOff() int {
	return s.Reached - s.Passed
}

// Stats aggregates a set of sessions.
type Stats struct {
	Total      int
	Active     int
	Passed     int
	Failed     int
	Stages     []StageStats
	Causes     map[assessment.Cause]int
	Violations map[proctor.Kind]int
}

// PassRate is the share of finished sessions that passed, in percent.
func (s Stats) PassRate() float64 {
	done := s.Passed + s.Failed
	if done == 0 {
		return 0
	}
	return float64(s.Passed) * 100 / float64(done)
}

// Summarize computes cohort statistics.
func Summarize(sessions []*assessment.Session) Stats {
	st := Stats{
		Causes:     make(map[assessment.Cause]int),
		Violations: make(map[proctor.Kind]int),
	}
	stages := assessment.GradedStages()
	sums := make([]int, len(stages))
	st.Stages = make([]StageStats, len(stages))
	for i, g := range stages {
		st.Stages[i].Stage = g
	}

	for _, s := range sessions {
		st.Total++
		switch {
		case s.Verdict == nil:
			st.Active++
		case s.Verdict.FinalStatus == assessment.StatusPassed:
			st.Passed++
		default:
			st.Failed++
		}
		if s.Cause != "" {
			st.Causes[s.Cause]++
		}
		for _, v := range s.Violations() {
			st.Violations[v.Kind]++
		}

		lines := notify.Summarize(*s).Stages
		for i, g := range stages {
			if reached(s, g) {
				st.Stages[i].Reached++
			}
			for _, l := range lines {
				if l.Stage != g {
					continue
				}
				st.Stages[i].Graded++
				sums[i] += l.Percent
				if l.Passed {
					st.Stages[i].Passed++
				}
				if l.TimedOut {
					st.Stages[i].TimedOut++
				}
			}
		}
	}

	for i := range st.Stages {
		if st.Stages[i].Graded > 0 {
			st.Stages[i].AvgPercent = float64(sums[i]) / float64(st.Stages[i].Graded)
		}
	}
	return st
}

func reached(s *assessment.Session, stage assessment.Stage) bool {
	if s.CurrentStage == stage {
		return true
	}
	if _, ok := s.Results[stage]; ok {
		return true
	}
	for _, t := range s.History {
		if t.To == stage {
			return true
		}
	}
	return false
}

// RenderStats draws the cohort overview.
func RenderStats(st Stats) string {
	if st.Total == 0 {
		return dimStyle.Render("No sessions recorded yet.")
	}

	var sections []string
	sections = append(sections, titleStyle.Render("Assessment statistics"))
	sections = append(sections,
		field("Sessions", fmt.Sprintf("%d (%d active)", st.Total, st.Active)),
		field("Passed", passStyle.Render(fmt.Sprint(st.Passed))),
		field("Failed", failStyle.Render(fmt.Sprint(st.Failed))),
		field("Pass rate", fmt.Sprintf("%.1f%%", st.PassRate())),
	)

	stageTable := NewTable("Stage", "Reached", "Graded", "Passed", "Drop-off", "Timed out", "Avg %")
	for _, s := range st.Stages {
		stageTable.Row(
			s.Stage.Label(),
			fmt.Sprint(s.Reached),
			fmt.Sprint(s.Graded),
			fmt.Sprint(s.Passed),
			fmt.Sprint(s.DropOff()),
			fmt.Sprint(s.TimedOut),
			fmt.Sprintf("%.1f", s.AvgPercent),
		)
	}
	sections = append(sections, headingStyle.Render("Stages"), stageTable.Render())

	if len(st.Causes) > 0 {
		sections = append(sections, headingStyle.Render("Outcomes"))
		for _, k := range sortedKeys(st.Causes) {
			sections = append(sections, field(string(k), fmt.Sprint(st.Causes[k])))
		}
	}
	if len(st.Violations) > 0 {
		sections = append(sections, headingStyle.Render("Violations"))
		for _, k := range sortedKeys(st.Violations) {
			sections = append(sections, field(string(k), fmt.Sprint(st.Violations[k])))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// NewTable returns a table in the report palette.
func NewTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Border)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(Primary).Padding(0, 1)
			}
			return lipgloss.NewStyle().Foreground(Text).Padding(0, 1)
		})
}

func sortedKeys[K ~string](m map[K]int) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
