// Package evaluator turns stage scores into pass/fail decisions.
package evaluator

import (
	"fmt"
)

// ObjectiveThreshold is the share of objective questions that must be
// answered correctly, in percent.
type ObjectiveThreshold struct {
	MinPercent int `yaml:"min_percent" json:"min_percent"`
}

// CommunicationThreshold holds the minimum written and spoken scores.
type CommunicationThreshold struct {
	MinWritten int `yaml:"min_written" json:"min_written"`
	MinSpoken  int `yaml:"min_spoken" json:"min_spoken"`
}

// CodingThreshold holds the minimum coding score.
type CodingThreshold struct {
	MinScore int `yaml:"min_score" json:"min_score"`
}

// Thresholds configures every stage's pass mark.
type Thresholds struct {
	Objective     ObjectiveThreshold     `yaml:"objective" json:"objective"`
	Communication CommunicationThreshold `yaml:"communication" json:"communication"`
	Coding        CodingThreshold        `yaml:"coding" json:"coding"`
}

// DefaultThresholds returns the 90% pass marks used for every stage.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Objective:     ObjectiveThreshold{MinPercent: 90},
		Communication: CommunicationThreshold{MinWritten: 90, MinSpoken: 90},
		Coding:        CodingThreshold{MinScore: 90},
	}
}

// Validate checks every threshold lies in [0, 100].
func (t Thresholds) Validate() error {
	for name, v := range map[string]int{
		"objective.min_percent":     t.Objective.MinPercent,
		"communication.min_written": t.Communication.MinWritten,
		"communication.min_spoken":  t.Communication.MinSpoken,
		"coding.min_score":          t.Coding.MinScore,
	} {
		if v < 0 || v > 100 {
			return fmt.Errorf("threshold %s must be between 0 and 100, got %d", name, v)
		}
	}
	return nil
}

// Outcome is a pass/fail decision. Reasons lists every failed criterion and
// is empty when Passed.
type Outcome struct {
	Passed  bool
	Reasons []string
}

// RequiredObjective returns the smallest passing objective score for a quiz
// of max questions: ceil(MinPercent*max/100).
func (t Thresholds) RequiredObjective(max int) int {
	return (t.Objective.MinPercent*max + 99) / 100
}

// EvaluateObjective passes when at least RequiredObjective(max) answers are
// correct. A quiz with no questions was not attempted and fails.
func (t Thresholds) EvaluateObjective(score, max int) Outcome {
	if max <= 0 {
		return fail("objective test was not attempted")
	}
	need := t.RequiredObjective(max)
	if score < need {
		return fail(fmt.Sprintf("objective score %d/%d is below the required %d/%d", score, max, need, max))
	}
	return Outcome{Passed: true}
}

// EvaluateCommunication requires both the written and spoken score to reach
// their minimums.
func (t Thresholds) EvaluateCommunication(written, spoken int) Outcome {
	var reasons []string
	if written < t.Communication.MinWritten {
		reasons = append(reasons, fmt.Sprintf("written communication score %d is below the required %d", written, t.Communication.MinWritten))
	}
	if spoken < t.Communication.MinSpoken {
		reasons = append(reasons, fmt.Sprintf("spoken communication score %d is below the required %d", spoken, t.Communication.MinSpoken))
	}
	if len(reasons) > 0 {
		return Outcome{Reasons: reasons}
	}
	return Outcome{Passed: true}
}

// EvaluateCoding passes when score reaches the minimum. total is the number
// of problems set; zero means the stage was not attempted.
func (t Thresholds) EvaluateCoding(score, total int) Outcome {
	if total <= 0 {
		return fail("coding test was not attempted")
	}
	if score < t.Coding.MinScore {
		return fail(fmt.Sprintf("coding score %d is below the required %d", score, t.Coding.MinScore))
	}
	return Outcome{Passed: true}
}

func fail(reason string) Outcome {
	return Outcome{Reasons: []string{reason}}
}
