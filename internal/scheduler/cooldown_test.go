package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielNunesIT/event-buffer/internal/testutil"
)

func newTestCooldown(window time.Duration, onExpire func()) (*Cooldown, *testutil.ManualClock) {
	clock := testutil.NewManualClock()
	return NewCooldown(window, onExpire, testutil.NewTestLogger(), WithClock(clock)), clock
}

func TestCooldown_CoalescesBurst(t *testing.T) {
	var fired atomic.Int32
	s, clock := newTestCooldown(5*time.Second, func() { fired.Add(1) })

	assert.Equal(t, Idle, s.State())
	assert.True(t, s.RequestFlush())
	for i := 0; i < 10; i++ {
		clock.Advance(100 * time.Millisecond)
		assert.False(t, s.RequestFlush(), "request while pending must be absorbed")
	}
	assert.Equal(t, 1, clock.Pending())

	clock.Advance(5 * time.Second)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, Idle, s.State())
}

func TestCooldown_DueTime(t *testing.T) {
	s, clock := newTestCooldown(3*time.Second, func() {})

	_, ok := s.Due()
	assert.False(t, ok)

	start := clock.Now()
	s.RequestFlush()

	due, ok := s.Due()
	require.True(t, ok)
	assert.Equal(t, start.Add(3*time.Second), due)
	assert.Equal(t, Pending, s.State())
	assert.Equal(t, "pending", s.State().String())

	clock.Advance(2999 * time.Millisecond)
	assert.Equal(t, Pending, s.State(), "must not fire before the window elapses")
}

func TestCooldown_IdleBeforeCallback(t *testing.T) {
	var s *Cooldown
	var stateInCallback State
	var rescheduled bool

	s, clock := newTestCooldown(time.Second, func() {
		stateInCallback = s.State()
		// A record arriving during dispatch must open a new window.
		rescheduled = s.RequestFlush()
	})

	s.RequestFlush()
	clock.Advance(time.Second)

	assert.Equal(t, Idle, stateInCallback)
	assert.True(t, rescheduled)
	assert.Equal(t, Pending, s.State())
	assert.Equal(t, 1, clock.Pending())
}

func TestCooldown_RequestImmediate(t *testing.T) {
	var fired atomic.Int32
	s, clock := newTestCooldown(time.Minute, func() { fired.Add(1) })

	assert.True(t, s.RequestImmediate())
	assert.False(t, s.RequestFlush())

	clock.Advance(0)
	assert.Equal(t, int32(1), fired.Load())
	assert.Equal(t, Idle, s.State())
}

func TestCooldown_SetWindow(t *testing.T) {
	var fired atomic.Int32
	s, clock := newTestCooldown(10*time.Second, func() { fired.Add(1) })

	s.RequestFlush()
	s.SetWindow(time.Second)
	assert.Equal(t, time.Second, s.Window())

	// The pending flush keeps its original wake time.
	clock.Advance(time.Second)
	assert.Equal(t, int32(0), fired.Load())
	clock.Advance(9 * time.Second)
	assert.Equal(t, int32(1), fired.Load())

	// The next one uses the new window.
	s.RequestFlush()
	clock.Advance(time.Second)
	assert.Equal(t, int32(2), fired.Load())
}

func TestCooldown_RealClock(t *testing.T) {
	done := make(chan struct{})
	s := NewCooldown(10*time.Millisecond, func() { close(done) }, testutil.NewTestLogger())

	s.RequestFlush()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cooldown never fired")
	}
	assert.Eventually(t, func() bool { return s.State() == Idle }, time.Second, time.Millisecond)
}
