package job

import (
	"context"
	"testing"
	"time"
)

func TestSignalsStopClearsPause(t *testing.T) {
	s := newSignals()
	s.requestPause()
	s.requestStop()
	pause, stop, _ := s.load()
	if pause || !stop {
		t.Fatalf("expected stop without pause, got pause=%v stop=%v", pause, stop)
	}
	s.requestPause()
	if pause, _, _ := s.load(); pause {
		t.Fatal("pause must not be re-armed after stop")
	}
}

func TestWaitWhilePausedWakesOnResume(t *testing.T) {
	s := newSignals()
	s.requestPause()

	observed := make(chan struct{}, 1)
	result := make(chan bool, 1)
	go func() {
		result <- s.waitWhilePaused(time.Hour, func() {
			select {
			case observed <- struct{}{}:
			default:
			}
		})
	}()

	<-observed
	s.requestResume()
	select {
	case stopped := <-result:
		if stopped {
			t.Fatal("expected resume, got stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not wake on resume")
	}
}

func TestWaitWhilePausedReturnsOnStop(t *testing.T) {
	s := newSignals()
	s.requestPause()
	result := make(chan bool, 1)
	go func() { result <- s.waitWhilePaused(time.Hour, func() {}) }()
	s.requestStop()
	select {
	case stopped := <-result:
		if !stopped {
			t.Fatal("expected stop")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("wait did not wake on stop")
	}
}

func TestSleepInterruptedByStop(t *testing.T) {
	s := newSignals()
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.requestStop()
	}()
	start := time.Now()
	if !s.sleep(context.Background(), time.Hour) {
		t.Fatal("expected sleep to report stop")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("sleep was not interrupted")
	}
	if !s.sleep(context.Background(), time.Millisecond) {
		t.Fatal("sleep after stop should report stop immediately")
	}
}

func TestSleepInterruptedByContext(t *testing.T) {
	s := newSignals()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	if !s.sleep(ctx, time.Hour) {
		t.Fatal("expected sleep to report cancellation")
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("sleep was not interrupted by context")
	}
	if s.sleep(context.Background(), 0) {
		t.Fatal("zero sleep without stop should not report interruption")
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		raw     string
		want    Mode
		wantErr bool
	}{
		{"", ModeLive, false},
		{"LIVE", ModeLive, false},
		{" stub ", ModeStub, false},
		{"dry-run", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.raw)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %q, %v", tt.raw, got, err)
		}
	}
}
