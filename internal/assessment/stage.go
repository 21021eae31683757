package assessment

import "fmt"

// Stage is a position in the assessment pipeline.
type Stage string

const (
	StageResumeIntake  Stage = "resume_intake"
	StageObjective     Stage = "objective_test"
	StageCommunication Stage = "communication_test"
	StageCoding        Stage = "coding_test"
	StageCompleted     Stage = "completed"
	StageTerminated    Stage = "terminated"
)

var stageOrder = map[Stage]int{
	StageResumeIntake:  0,
	StageObjective:     1,
	StageCommunication: 2,
	StageCoding:        3,
	StageCompleted:     4,
}

// GradedStages are the stages that end in a StageResult, in order.
func GradedStages() []Stage {
	return []Stage{StageObjective, StageCommunication, StageCoding}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	st := Stage(s)
	if _, ok := stageOrder[st]; ok || st == StageTerminated {
		return st, nil
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Final reports whether no further transitions are possible.
func (s Stage) Final() bool {
	return s == StageCompleted || s == StageTerminated
}

// Graded reports whether answers are submitted for this stage.
func (s Stage) Graded() bool {
	return s == StageObjective || s == StageCommunication || s == StageCoding
}

// Next returns the stage after s in the fixed order. Final stages return
// themselves.
func (s Stage) Next() Stage {
	switch s {
	case StageResumeIntake:
		return StageObjective
	case StageObjective:
		return StageCommunication
	case StageCommunication:
		return StageCoding
	case StageCoding:
		return StageCompleted
	}
	return s
}

// CanMoveTo reports whether a transition from s to next keeps the stage
// order monotonic. Terminated is reachable from any non-final stage.
func (s Stage) CanMoveTo(next Stage) bool {
	if s.Final() {
		return false
	}
	if next == StageTerminated {
		return true
	}
	return stageOrder[next] > stageOrder[s]
}

// Label is a human readable stage name.
func (s Stage) Label() string {
	switch s {
	case StageResumeIntake:
		return "Resume intake"
	case StageObjective:
		return "Objective test"
	case StageCommunication:
		return "Communication test"
	case StageCoding:
		return "Coding test"
	case StageCompleted:
		return "Completed"
	case StageTerminated:
		return "Terminated"
	}
	return string(s)
}
