// Package proctor turns raw proctoring signals into violations and decides
// when a session must be terminated.
package proctor

import "time"

// Kind identifies a proctoring anomaly.
type Kind string

const (
	KindCameraOff     Kind = "camera_off"
	KindHeadMovement  Kind = "head_movement"
	KindMultipleFaces Kind = "multiple_faces"
	KindScreenShare   Kind = "screen_share"

	// KindAborted marks a session ended by an operator. It has no policy
	// rule, so signals of this kind are rejected.
	KindAborted Kind = "aborted"
)

// Kinds returns every kind a client may signal.
func Kinds() []Kind {
	return []Kind{KindCameraOff, KindHeadMovement, KindMultipleFaces, KindScreenShare}
}

// Severity grades a violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Signal is one observation from the device layer. Active reports whether
// the anomaly is present at At; an inactive signal ends the current episode.
type Signal struct {
	Kind   Kind      `json:"kind"`
	Active bool      `json:"active"`
	At     time.Time `json:"at"`
	Detail string    `json:"detail,omitempty"`
}

// Violation is a recorded anomaly. Violations are never removed.
type Violation struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Severity    Severity  `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// Episode tracks one continuous run of active signals of a kind.
type Episode struct {
	Start    time.Time `json:"start"`
	Last     time.Time `json:"last"`
	Recorded bool      `json:"recorded"`
}

// State is the monitor's persisted state.
type State struct {
	Violations []Violation       `json:"violations,omitempty"`
	Counts     map[Kind]int      `json:"counts,omitempty"`
	Episodes   map[Kind]*Episode `json:"episodes,omitempty"`
}
