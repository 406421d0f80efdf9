// Package scheduler coalesces bursts of flush requests into a single delayed flush.
package scheduler

import (
	"sync"
	"time"

	"github.com/GabrielNunesIT/go-libs/logger"
)

// Clock is the time source of the scheduler.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d and returns a function that stops the timer.
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// RealClock is backed by the time package.
var RealClock Clock = realClock{}

// State of the cooldown machine.
type State int

const (
	// Idle means no flush is scheduled.
	Idle State = iota
	// Pending means exactly one flush is scheduled.
	Pending
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// Cooldown is a single-flight debounce timer.
// At most one flush is pending at any time; requests made while pending are absorbed by it.
type Cooldown struct {
	mu       sync.Mutex
	clock    Clock
	window   time.Duration
	state    State
	due      time.Time
	onExpire func()
	logger   logger.ILogger
}

// Option configures a Cooldown.
type Option func(*Cooldown)

// WithClock replaces the real clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(s *Cooldown) {
		s.clock = c
	}
}

// NewCooldown creates an idle scheduler that calls onExpire when a scheduled flush is due.
func NewCooldown(window time.Duration, onExpire func(), log logger.ILogger, opts ...Option) *Cooldown {
	s := &Cooldown{
		clock:    RealClock,
		window:   window,
		onExpire: onExpire,
		logger:   log.SubLogger("Cooldown"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestFlush schedules a flush one window from now unless one is already pending.
// It reports whether a new flush was scheduled.
func (s *Cooldown) RequestFlush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(s.window)
}

// RequestImmediate schedules a flush with no delay unless one is already pending.
func (s *Cooldown) RequestImmediate() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(0)
}

func (s *Cooldown) scheduleLocked(d time.Duration) bool {
	if s.state == Pending {
		return false
	}

	s.state = Pending
	s.due = s.clock.Now().Add(d)
	s.clock.AfterFunc(d, s.expire)

	s.logger.Debugf("flush scheduled: in=%v", d)
	return true
}

// expire returns to Idle before running the callback, so requests made during the
// flush start a fresh window instead of being absorbed by the one that just ended.
func (s *Cooldown) expire() {
	s.mu.Lock()
	s.state = Idle
	s.due = time.Time{}
	s.mu.Unlock()

	s.onExpire()
}

// State returns the current state.
func (s *Cooldown) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Due returns the wake time of the pending flush; ok is false when idle.
func (s *Cooldown) Due() (due time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, s.state == Pending
}

// Window returns the current debounce window.
func (s *Cooldown) Window() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// SetWindow changes the debounce window. A flush already pending keeps its wake time.
func (s *Cooldown) SetWindow(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.window = d
}
