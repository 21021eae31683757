package proctor

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func seqIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("v-%d", n)
	})
}

func active(kind Kind, offset time.Duration) Signal {
	return Signal{Kind: kind, Active: true, At: t0.Add(offset)}
}

func TestHeadMovementNeedsSustain(t *testing.T) {
	m := NewMonitor(DefaultPolicy(), nil, seqIDs())

	// Signals every 5s: recorded once the episode reaches 30s.
	for s := 0; s < 30; s += 5 {
		v, err := m.RecordSignal(active(KindHeadMovement, time.Duration(s)*time.Second))
		require.NoError(t, err)
		require.Nil(t, v, "violation at %ds", s)
	}

	v, err := m.RecordSignal(active(KindHeadMovement, 30*time.Second))
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "v-1", v.ID)
	assert.Equal(t, SeverityWarning, v.Severity)
	assert.Equal(t, t0.Add(30*time.Second), v.Timestamp)

	// The same episode never produces a second violation.
	for s := 35; s <= 90; s += 5 {
		v, err := m.RecordSignal(active(KindHeadMovement, time.Duration(s)*time.Second))
		require.NoError(t, err)
		assert.Nil(t, v)
	}
	assert.Len(t, m.Violations(), 1)
	assert.Equal(t, 1, m.State().Counts[KindHeadMovement])
}

func TestInactiveSignalResetsTimer(t *testing.T) {
	m := NewMonitor(DefaultPolicy(), nil)

	for s := 0; s <= 25; s += 5 {
		_, _ = m.RecordSignal(active(KindHeadMovement, time.Duration(s)*time.Second))
	}
	_, _ = m.RecordSignal(Signal{Kind: KindHeadMovement, Active: false, At: t0.Add(26 * time.Second)})

	// A new episode starts at 27s, so nothing is recorded before 57s.
	for s := 27; s < 57; s += 4 {
		v, _ := m.RecordSignal(active(KindHeadMovement, time.Duration(s)*time.Second))
		assert.Nil(t, v, "violation at %ds", s)
	}
	v, _ := m.RecordSignal(active(KindHeadMovement, 57*time.Second))
	assert.NotNil(t, v)
}

func TestSlowSamplingStillSustains(t *testing.T) {
	for _, every := range []time.Duration{10 * time.Second, 30 * time.Second} {
		m := NewMonitor(DefaultPolicy(), nil)
		for at := time.Duration(0); at <= 120*time.Second; at += every {
			_, err := m.RecordSignal(active(KindHeadMovement, at))
			require.NoError(t, err)
		}
		assert.Len(t, m.Violations(), 1, "head movement sampled every %s", every)
	}
}

func TestGapClosesEpisode(t *testing.T) {
	p := DefaultPolicy()
	p.EpisodeGap = 5 * time.Second
	m := NewMonitor(p, nil)

	_, _ = m.RecordSignal(active(KindHeadMovement, 0))
	// 20s of silence exceeds the 5s gap.
	for s := 20; s < 50; s += 5 {
		v, _ := m.RecordSignal(active(KindHeadMovement, time.Duration(s)*time.Second))
		assert.Nil(t, v, "the episode restarted at 20s, violation at %ds", s)
	}
	v, _ := m.RecordSignal(active(KindHeadMovement, 50*time.Second))
	assert.NotNil(t, v)
}

func TestSecondEpisodeRecordsAgain(t *testing.T) {
	m := NewMonitor(DefaultPolicy(), nil)

	v, _ := m.RecordSignal(active(KindCameraOff, 0))
	require.NotNil(t, v)
	v, _ = m.RecordSignal(active(KindCameraOff, time.Second))
	assert.Nil(t, v)

	_, _ = m.RecordSignal(Signal{Kind: KindCameraOff, At: t0.Add(2 * time.Second)})
	v, _ = m.RecordSignal(active(KindCameraOff, 3*time.Second))
	assert.NotNil(t, v)
	assert.Equal(t, 2, m.State().Counts[KindCameraOff])
}

func TestShouldTerminate(t *testing.T) {
	m := NewMonitor(DefaultPolicy(), nil)

	for i := range 2 {
		_, _ = m.RecordSignal(active(KindCameraOff, time.Duration(i)*time.Minute))
		_, _ = m.RecordSignal(Signal{Kind: KindCameraOff, At: t0.Add(time.Duration(i)*time.Minute + time.Second)})
	}
	assert.Len(t, m.Violations(), 2)
	assert.False(t, m.ShouldTerminate())

	_, _ = m.RecordSignal(active(KindCameraOff, 10*time.Minute))
	assert.True(t, m.ShouldTerminate())
	assert.Contains(t, m.TerminationReason(), "3 proctoring violations")
}

func TestCriticalTerminatesImmediately(t *testing.T) {
	m := NewMonitor(DefaultPolicy(), nil)

	v, err := m.RecordSignal(Signal{Kind: KindMultipleFaces, Active: true, At: t0, Detail: "2 faces"})
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, SeverityCritical, v.Severity)
	assert.Equal(t, "Multiple faces detected: 2 faces", v.Description)
	assert.True(t, m.ShouldTerminate())
	assert.Contains(t, m.TerminationReason(), "critical")
}

func TestUnknownKind(t *testing.T) {
	m := NewMonitor(DefaultPolicy(), nil)
	_, err := m.RecordSignal(Signal{Kind: "tab_switch", Active: true, At: t0})
	assert.Error(t, err)
}

func TestStateRoundTripsThroughJSON(t *testing.T) {
	m := NewMonitor(DefaultPolicy(), nil)
	_, _ = m.RecordSignal(active(KindHeadMovement, 0))
	_, _ = m.RecordSignal(active(KindHeadMovement, 5*time.Second))

	raw, err := json.Marshal(m.State())
	require.NoError(t, err)

	var restored State
	require.NoError(t, json.Unmarshal(raw, &restored))

	// The open episode survives, so the violation fires on schedule.
	m2 := NewMonitor(DefaultPolicy(), &restored)
	for s := 10; s < 30; s += 5 {
		v, _ := m2.RecordSignal(active(KindHeadMovement, time.Duration(s)*time.Second))
		assert.Nil(t, v)
	}
	v, _ := m2.RecordSignal(active(KindHeadMovement, 30*time.Second))
	assert.NotNil(t, v)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.MaxViolations = 0
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.Rules[KindScreenShare] = Rule{Severity: "fatal"}
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.EpisodeGap = -time.Second
	assert.Error(t, p.Validate())
}
