package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeSleeper records requested sleeps instead of waiting.
//
// OnSleep, when set, runs on every call before returning. Tests use it to
// advance a fake server between poll attempts.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeSleeper struct {
	mu      sync.Mutex
	slept   []time.Duration
	OnSleep func(n int)
}

// Sleep records d and returns ctx.Err() if the context is already done.
func (s *FakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.slept = append(s.slept, d)
	n := len(s.slept)
	hook := s.OnSleep
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return ctx.Err()
}

// Calls returns the number of sleeps so far.
func (s *FakeSleeper) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slept)
}

// Slept returns a copy of the recorded durations.
func (s *FakeSleeper) Slept() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.slept...)
}
