package proctor

import (
	"fmt"
	"time"
)

// Rule describes how signals of one kind become violations. A signal must
// stay active for Sustain before a violation is recorded; zero records on
// the first active signal.
type Rule struct {
	Severity    Severity      `yaml:"severity" json:"severity"`
	Sustain     time.Duration `yaml:"sustain" json:"sustain"`
	Description string        `yaml:"description" json:"description"`
}

// Policy configures the monitor.
type Policy struct {
	Rules map[Kind]Rule `yaml:"rules" json:"rules"`

	// MaxViolations terminates the session once reached.
	MaxViolations int `yaml:"max_violations" json:"max_violations"`

	// EpisodeGap, when set, is the longest silence between active signals
	// that still counts as the same episode. Zero keeps an episode open
	// until an inactive signal arrives, whatever the device's sampling rate.
	EpisodeGap time.Duration `yaml:"episode_gap" json:"episode_gap"`
}

// DefaultPolicy returns the standard proctoring rules.
func DefaultPolicy() Policy {
	return Policy{
		Rules: map[Kind]Rule{
			KindHeadMovement: {
				Severity:    SeverityWarning,
				Sustain:     30 * time.Second,
				Description: "Sustained head movement away from the screen",
			},
			KindCameraOff: {
				Severity:    SeverityWarning,
				Description: "Camera turned off",
			},
			KindMultipleFaces: {
				Severity:    SeverityCritical,
				Description: "Multiple faces detected",
			},
			KindScreenShare: {
				Severity:    SeverityCritical,
				Description: "Screen sharing detected",
			},
		},
		MaxViolations: 3,
	}
}

// Validate checks the policy is usable.
func (p Policy) Validate() error {
	if p.MaxViolations < 1 {
		return fmt.Errorf("proctor: max_violations must be at least 1, got %d", p.MaxViolations)
	}
	if p.EpisodeGap < 0 {
		return fmt.Errorf("proctor: episode_gap must not be negative")
	}
	for kind, r := range p.Rules {
		if r.Severity != SeverityWarning && r.Severity != SeverityCritical {
			return fmt.Errorf("proctor: rule %s has unknown severity %q", kind, r.Severity)
		}
		if r.Sustain < 0 {
			return fmt.Errorf("proctor: rule %s has a negative sustain", kind)
		}
	}
	return nil
}
