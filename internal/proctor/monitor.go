package proctor

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Monitor applies a Policy to a session's State. It is not safe for
// concurrent use; callers serialise access per session.
type Monitor struct {
	policy Policy
	state  *State
	newID  func() string
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithIDGenerator overrides uuid-based violation ids.
func WithIDGenerator(fn func() string) Option {
	return func(m *Monitor) { m.newID = fn }
}

// NewMonitor wraps state, which is updated in place. A nil state starts
// empty.
func NewMonitor(policy Policy, state *State, opts ...Option) *Monitor {
	if state == nil {
		state = &State{}
	}
	m := &Monitor{
		policy: policy,
		state:  state,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the live state.
func (m *Monitor) State() *State { return m.state }

// Violations returns a copy of the recorded violations in order.
func (m *Monitor) Violations() []Violation {
	return append([]Violation(nil), m.state.Violations...)
}

// RecordSignal feeds one signal through the debounce policy and returns the
// violation it produced, if any.
//
// An active signal opens an episode or continues the open one. The episode
// yields a single violation once it has lasted Sustain; later signals in the
// same episode never add another. An inactive signal, or a silence longer
// than a non-zero EpisodeGap, closes the episode so the next active signal
// starts a new timer.
func (m *Monitor) RecordSignal(sig Signal) (*Violation, error) {
	rule, ok := m.policy.Rules[sig.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown proctoring signal kind %q", sig.Kind)
	}
	at := sig.At.UTC()

	if m.state.Episodes == nil {
		m.state.Episodes = make(map[Kind]*Episode)
	}

	if !sig.Active {
		delete(m.state.Episodes, sig.Kind)
		return nil, nil
	}

	ep := m.state.Episodes[sig.Kind]
	if ep != nil && m.policy.EpisodeGap > 0 && at.Sub(ep.Last) > m.policy.EpisodeGap {
		ep = nil
	}
	if ep == nil {
		ep = &Episode{Start: at, Last: at}
		m.state.Episodes[sig.Kind] = ep
	}
	if at.After(ep.Last) {
		ep.Last = at
	}

	if ep.Recorded || at.Sub(ep.Start) < rule.Sustain {
		return nil, nil
	}
	ep.Recorded = true

	v := m.record(sig.Kind, rule.Severity, at, describe(rule, sig))
	return &v, nil
}

// Force records a violation without debouncing.
func (m *Monitor) Force(kind Kind, severity Severity, at time.Time, description string) Violation {
	return m.record(kind, severity, at.UTC(), description)
}

// ShouldTerminate reports whether the violations seen so far end the
// session: MaxViolations reached, or any critical violation.
func (m *Monitor) ShouldTerminate() bool {
	if m.policy.MaxViolations > 0 && len(m.state.Violations) >= m.policy.MaxViolations {
		return true
	}
	for _, v := range m.state.Violations {
		if v.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// TerminationReason explains why ShouldTerminate is true.
func (m *Monitor) TerminationReason() string {
	for _, v := range m.state.Violations {
		if v.Severity == SeverityCritical {
			return fmt.Sprintf("critical proctoring violation: %s", v.Description)
		}
	}
	return fmt.Sprintf("%d proctoring violations recorded (limit %d)", len(m.state.Violations), m.policy.MaxViolations)
}

func (m *Monitor) record(kind Kind, severity Severity, at time.Time, description string) Violation {
	v := Violation{
		ID:          m.newID(),
		Kind:        kind,
		Severity:    severity,
		Timestamp:   at,
		Description: description,
	}
	m.state.Violations = append(m.state.Violations, v)
	if m.state.Counts == nil {
		m.state.Counts = make(map[Kind]int)
	}
	m.state.Counts[kind]++
	return v
}

func describe(rule Rule, sig Signal) string {
	d := rule.Description
	if d == "" {
		d = string(sig.Kind)
	}
	if sig.Detail != "" {
		d += ": " + sig.Detail
	}
	return d
}
