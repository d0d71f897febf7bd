package jobstatus

import (
	"sync"
	"testing"
	"time"
)

func TestSnapshotIsDeepCopy(t *testing.T) {
	store := NewStore()
	store.Reset(Snapshot{Total: 2, State: StateRunning})
	store.Update(func(s *Snapshot) {
		s.Errors = append(s.Errors, ErrorRecord{Scope: ScopeItem, Index: 1, Title: "A", Message: "boom"})
	})

	snap := store.Snapshot()
	snap.Errors[0].Message = "mutated"
	snap.Errors = append(snap.Errors, ErrorRecord{Scope: ScopeGlobal})

	again := store.Snapshot()
	if len(again.Errors) != 1 || again.Errors[0].Message != "boom" {
		t.Fatalf("snapshot shares storage with store: %+v", again.Errors)
	}
}

func TestNewStoreIsIdle(t *testing.T) {
	if state := NewStore().State(); state != StateIdle {
		t.Fatalf("expected idle, got %s", state)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		snap Snapshot
		want float64
	}{
		{Snapshot{}, 0},
		{Snapshot{Total: 4, Current: 1}, 0.25},
		{Snapshot{Total: 4, Current: 9}, 1},
	}
	for _, tt := range tests {
		if got := tt.snap.Progress(); got != tt.want {
			t.Errorf("Progress(%+v) = %v, want %v", tt.snap, got, tt.want)
		}
	}
}

func TestElapsed(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	snap := Snapshot{StartedAt: start}
	if got := snap.Elapsed(start.Add(time.Minute)); got != time.Minute {
		t.Fatalf("Elapsed active = %v", got)
	}
	snap.FinishedAt = start.Add(30 * time.Second)
	if got := snap.Elapsed(start.Add(time.Hour)); got != 30*time.Second {
		t.Fatalf("Elapsed finished = %v", got)
	}
}

func TestUpdateIsAtomicForReaders(t *testing.T) {
	store := NewStore()
	store.Reset(Snapshot{Total: 1000, State: StateRunning})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 1000 {
			store.Update(func(s *Snapshot) {
				s.Current = i + 1
				if i%2 == 0 {
					s.Success++
				} else {
					s.Failed++
				}
			})
		}
	}()
	for range 1000 {
		snap := store.Snapshot()
		if snap.Success+snap.Failed != snap.Current {
			t.Fatalf("observed torn update: %+v", snap)
		}
	}
	wg.Wait()
}
