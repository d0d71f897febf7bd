package job

import (
	"context"
	"sync"
	"time"
)

// signals carries the cooperative pause and stop requests for one run.
// Every change closes and replaces changed so waiters wake immediately.
type signals struct {
	mu      sync.Mutex
	pause   bool
	stop    bool
	changed chan struct{}
	stopped chan struct{}
}

func newSignals() *signals {
	return &signals{
		changed: make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

func (s *signals) requestPause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pause || s.stop {
		return
	}
	s.pause = true
	s.broadcastLocked()
}

func (s *signals) requestResume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pause {
		return
	}
	s.pause = false
	s.broadcastLocked()
}

func (s *signals) requestStop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop {
		return
	}
	s.stop = true
	s.pause = false
	close(s.stopped)
	s.broadcastLocked()
}

func (s *signals) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *signals) load() (pause, stop bool, changed <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pause, s.stop, s.changed
}

func (s *signals) stopRequested() bool {
	_, stop, _ := s.load()
	return stop
}

// waitWhilePaused blocks while a pause is requested. onPause runs each time
// the wait loop observes the pause. It reports whether a stop was requested.
func (s *signals) waitWhilePaused(poll time.Duration, onPause func()) bool {
	for {
		pause, stop, changed := s.load()
		if stop {
			return true
		}
		if !pause {
			return false
		}
		onPause()
		timer := time.NewTimer(poll)
		select {
		case <-changed:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// sleep waits for d, until a stop is requested, or until ctx is done. It
// reports whether the wait was cut short.
func (s *signals) sleep(ctx context.Context, d time.Duration) bool {
	if s.stopRequested() || ctx.Err() != nil {
		return true
	}
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return false
	case <-s.stopped:
		return true
	case <-ctx.Done():
		return true
	}
}
