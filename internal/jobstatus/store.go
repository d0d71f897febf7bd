package jobstatus

import (
	"slices"
	"sync"
	"time"
)

// ErrorScope distinguishes per-item failures from run-level records.
type ErrorScope string

const (
	ScopeItem   ErrorScope = "item"
	ScopeGlobal ErrorScope = "global"
	ScopeNote   ErrorScope = "note"
)

// ErrorRecord is one entry in the run's error list. Index is the 1-based
// item position and is zero for global and note records.
type ErrorRecord struct {
	Scope   ErrorScope
	Index   int
	Title   string
	Message string
}

// Snapshot is the observable status of the current or most recent run.
type Snapshot struct {
	RunID       string
	Mode        string
	Total       int
	Current     int
	Success     int
	Failed      int
	State       State
	Errors      []ErrorRecord
	CurrentItem string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Progress returns the fraction of items visited, in [0, 1].
func (s Snapshot) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	current := min(max(s.Current, 0), s.Total)
	return float64(current) / float64(s.Total)
}

// GlobalErrors counts run-level error records.
func (s Snapshot) GlobalErrors() int {
	count := 0
	for _, rec := range s.Errors {
		if rec.Scope == ScopeGlobal {
			count++
		}
	}
	return count
}

// Elapsed reports the run duration, measured to now while it is active.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	end := s.FinishedAt
	if end.IsZero() {
		end = now
	}
	return end.Sub(s.StartedAt)
}

func (s Snapshot) clone() Snapshot {
	out := s
	out.Errors = slices.Clone(s.Errors)
	return out
}

// Store guards the single status value shared between the run and observers.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
}

// NewStore returns a store in the idle state.
func NewStore() *Store {
	return &Store{snapshot: Snapshot{State: StateIdle}}
}

// Reset replaces the status with a fresh value for a new run.
func (s *Store) Reset(next Snapshot) {
	next = next.clone()
	s.mu.Lock()
	s.snapshot = next
	s.mu.Unlock()
}

// Update applies fn under the write lock so compound changes are observed
// atomically.
func (s *Store) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snapshot)
}

// Snapshot returns a deep copy of the current status.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.clone()
}

// State returns only the current lifecycle state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.State
}
