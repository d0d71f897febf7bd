package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"merchbatch/internal/imagemap"
	"merchbatch/internal/items"
	"merchbatch/internal/jobstatus"
	"merchbatch/internal/processor"
	"merchbatch/internal/services"
)

const (
	waitFor = 5 * time.Second
	tick    = 5 * time.Millisecond
)

type fakeProcessor struct {
	mu        sync.Mutex
	openErr   error
	closeErr  error
	failOn    map[int]error
	panicOn   int
	gates     map[int]chan struct{}
	opens     int
	closes    int
	processed []int
	paths     []string
}

func (f *fakeProcessor) Open(context.Context) (processor.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f, nil
}

func (f *fakeProcessor) Process(ctx context.Context, item items.Item) error {
	f.mu.Lock()
	gate := f.gates[item.Index]
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.processed = append(f.processed, item.Index)
	f.paths = append(f.paths, item.ResolvedPath)
	if f.panicOn == item.Index {
		panic("automation exploded")
	}
	return f.failOn[item.Index]
}

func (f *fakeProcessor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return f.closeErr
}

func (f *fakeProcessor) counts() (opens, closes int, processed []int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens, f.closes, append([]int(nil), f.processed...)
}

func makeItems(titles ...string) []items.Item {
	list := make([]items.Item, len(titles))
	for i, title := range titles {
		list[i] = items.Item{Index: i + 1, Title: title, ResourcePath: fmt.Sprintf("designs/%s.png", title)}
	}
	return list
}

func newTestController(t *testing.T, proc processor.Processor, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithPollInterval(10 * time.Millisecond), WithStubDuration(20 * time.Millisecond)}, opts...)
	c := NewControllerWithNotifier(nil, proc, imagemap.New(), nil, nil, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

func waitDone(t *testing.T, c *Controller) jobstatus.Snapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	return c.Status()
}

func TestIdleControllerRejectsControlRequests(t *testing.T) {
	c := newTestController(t, &fakeProcessor{})

	assert.Equal(t, jobstatus.StateIdle, c.Status().State)
	assert.ErrorIs(t, c.RequestPause(), ErrNotRunning)
	assert.ErrorIs(t, c.RequestResume(), ErrNotPaused)
	assert.ErrorIs(t, c.RequestStop(), ErrNoActiveJob)
	assert.ErrorIs(t, c.RequestStop(), services.ErrValidation)
	require.NoError(t, c.Wait(context.Background()))
}

func TestFailureIsolationScenario(t *testing.T) {
	proc := &fakeProcessor{failOn: map[int]error{2: errors.New("listing rejected")}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B", "C"), Options{})
	require.NoError(t, err)
	snap := waitDone(t, c)

	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 3, snap.Current)
	assert.Equal(t, 2, snap.Success)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, jobstatus.StateCompleted, snap.State)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, jobstatus.ErrorRecord{Scope: jobstatus.ScopeItem, Index: 2, Title: "B", Message: "listing rejected"}, snap.Errors[0])

	opens, closes, processed := proc.counts()
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, closes)
	assert.Equal(t, []int{1, 2, 3}, processed)
}

func TestStopAfterFirstItemScenario(t *testing.T) {
	proc := &fakeProcessor{}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B", "C"), Options{Delay: time.Hour})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Success == 1 }, waitFor, tick)
	require.NoError(t, c.RequestStop())

	snap := waitDone(t, c)
	assert.Equal(t, 1, snap.Current)
	assert.Equal(t, 1, snap.Success)
	assert.Equal(t, 0, snap.Failed)
	assert.Equal(t, jobstatus.StateStopped, snap.State)

	_, closes, processed := proc.counts()
	assert.Equal(t, []int{1}, processed)
	assert.Equal(t, 1, closes)
}

func TestStopDoesNotProcessBeyondInFlightItem(t *testing.T) {
	gate := make(chan struct{})
	proc := &fakeProcessor{gates: map[int]chan struct{}{2: gate}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B", "C", "D"), Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Current == 2 }, waitFor, tick)
	require.NoError(t, c.RequestStop())
	close(gate)

	snap := waitDone(t, c)
	assert.Equal(t, jobstatus.StateStopped, snap.State)
	assert.Equal(t, 2, snap.Current)
	assert.Equal(t, 2, snap.Success)
	_, _, processed := proc.counts()
	assert.Equal(t, []int{1, 2}, processed)
}

func TestStopDuringLastItemEndsStopped(t *testing.T) {
	gate := make(chan struct{})
	proc := &fakeProcessor{gates: map[int]chan struct{}{2: gate}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B"), Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Current == 2 }, waitFor, tick)
	require.NoError(t, c.RequestStop())
	close(gate)

	snap := waitDone(t, c)
	assert.Equal(t, jobstatus.StateStopped, snap.State)
	assert.Equal(t, 2, snap.Success)
}

func TestPauseResumeContinuesAtSameIndex(t *testing.T) {
	gate := make(chan struct{})
	proc := &fakeProcessor{gates: map[int]chan struct{}{2: gate}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B", "C", "D"), Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Current == 2 }, waitFor, tick)

	require.NoError(t, c.RequestPause())
	assert.ErrorIs(t, c.RequestResume(), ErrNotPaused, "resume before the pause is observed")
	close(gate)

	require.Eventually(t, func() bool { return c.Status().State == jobstatus.StatePaused }, waitFor, tick)
	assert.ErrorIs(t, c.RequestPause(), ErrNotRunning)
	time.Sleep(30 * time.Millisecond)
	_, _, processed := proc.counts()
	assert.Equal(t, []int{1, 2}, processed)
	assert.Equal(t, 2, c.Status().Current)

	require.NoError(t, c.RequestResume())
	snap := waitDone(t, c)
	assert.Equal(t, jobstatus.StateCompleted, snap.State)
	assert.Equal(t, 4, snap.Success)
	_, _, processed = proc.counts()
	assert.Equal(t, []int{1, 2, 3, 4}, processed)
}

func TestStopWhilePaused(t *testing.T) {
	gate := make(chan struct{})
	proc := &fakeProcessor{gates: map[int]chan struct{}{1: gate}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B"), Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Current == 1 }, waitFor, tick)
	require.NoError(t, c.RequestPause())
	close(gate)
	require.Eventually(t, func() bool { return c.Status().State == jobstatus.StatePaused }, waitFor, tick)

	require.NoError(t, c.RequestStop())
	snap := waitDone(t, c)
	assert.Equal(t, jobstatus.StateStopped, snap.State)
	assert.Equal(t, 1, snap.Current)
	_, closes, processed := proc.counts()
	assert.Equal(t, []int{1}, processed)
	assert.Equal(t, 1, closes)
}

func TestStartRejectedWhileActive(t *testing.T) {
	gate := make(chan struct{})
	proc := &fakeProcessor{gates: map[int]chan struct{}{1: gate}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A"), Options{})
	require.NoError(t, err)
	assert.Equal(t, jobstatus.StateRunning, c.Status().State)

	_, err = c.Start(context.Background(), makeItems("B"), Options{})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.ErrorIs(t, err, services.ErrValidation)

	close(gate)
	waitDone(t, c)
}

func TestStartResetsCountersAndErrors(t *testing.T) {
	proc := &fakeProcessor{failOn: map[int]error{1: errors.New("bad")}}
	c := newTestController(t, proc)

	firstID, err := c.Start(context.Background(), makeItems("A", "B"), Options{})
	require.NoError(t, err)
	first := waitDone(t, c)
	require.Equal(t, 1, first.Failed)
	require.Len(t, first.Errors, 1)

	proc.mu.Lock()
	proc.failOn = nil
	proc.mu.Unlock()

	secondID, err := c.Start(context.Background(), makeItems("C", "D", "E"), Options{})
	require.NoError(t, err)
	assert.NotEqual(t, firstID, secondID)
	snap := c.Status()
	assert.Equal(t, 3, snap.Total)
	assert.Empty(t, snap.Errors)
	assert.Equal(t, 0, snap.Failed)

	final := waitDone(t, c)
	assert.Equal(t, jobstatus.StateCompleted, final.State)
	assert.Equal(t, 3, final.Success)
	assert.Equal(t, secondID, final.RunID)
}

func TestStartRejectsInvalidOptions(t *testing.T) {
	c := newTestController(t, &fakeProcessor{})
	_, err := c.Start(context.Background(), makeItems("A"), Options{Delay: -time.Second})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	_, err = c.Start(context.Background(), makeItems("A"), Options{Mode: "turbo"})
	assert.ErrorIs(t, err, ErrInvalidOptions)
	assert.Equal(t, jobstatus.StateIdle, c.Status().State)
}

func TestSnapshotInvariantHoldsThroughoutRun(t *testing.T) {
	failOn := map[int]error{}
	for i := 1; i <= 50; i += 3 {
		failOn[i] = errors.New("flaky")
	}
	c := newTestController(t, &fakeProcessor{failOn: failOn})

	_, err := c.Start(context.Background(), makeItems(make([]string, 50)...), Options{})
	require.NoError(t, err)
	for {
		snap := c.Status()
		require.LessOrEqual(t, snap.Success+snap.Failed, snap.Current)
		require.LessOrEqual(t, snap.Current, snap.Total)
		if snap.State.Terminal() {
			break
		}
	}
	final := waitDone(t, c)
	assert.Equal(t, 50, final.Success+final.Failed)
}

func TestImageMappingResolvedDuringRun(t *testing.T) {
	proc := &fakeProcessor{}
	c := newTestController(t, proc)
	require.NoError(t, c.SubmitImageMapping("designs/A.png", "/uploads/a-final.png"))
	assert.Equal(t, "/uploads/a-final.png", c.Resolver().Resolve("designs/A.png"))
	assert.Equal(t, "designs/unknown.png", c.Resolver().Resolve("designs/unknown.png"))

	list := makeItems("A", "B")
	_, err := c.Start(context.Background(), list, Options{})
	require.NoError(t, err)
	waitDone(t, c)

	proc.mu.Lock()
	paths := append([]string(nil), proc.paths...)
	proc.mu.Unlock()
	assert.Equal(t, []string{"/uploads/a-final.png", "designs/B.png"}, paths)
	assert.Empty(t, list[0].ResolvedPath, "caller's items must not be mutated")
}

func TestOpenFailureIsFatal(t *testing.T) {
	proc := &fakeProcessor{openErr: errors.New("browser unavailable")}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B"), Options{})
	require.NoError(t, err)
	snap := waitDone(t, c)

	assert.Equal(t, jobstatus.StateError, snap.State)
	assert.Equal(t, 0, snap.Current)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, jobstatus.ScopeGlobal, snap.Errors[0].Scope)
	assert.Contains(t, snap.Errors[0].Message, "browser unavailable")
	_, closes, processed := proc.counts()
	assert.Zero(t, closes)
	assert.Empty(t, processed)
}

func TestNilProcessorIsFatal(t *testing.T) {
	c := newTestController(t, nil)
	_, err := c.Start(context.Background(), makeItems("A"), Options{})
	require.NoError(t, err)
	snap := waitDone(t, c)
	assert.Equal(t, jobstatus.StateError, snap.State)
	assert.Equal(t, 1, snap.GlobalErrors())
	assert.False(t, c.ProcessorHealth(context.Background()).Ready)
}

func TestCloseFailureIsFatal(t *testing.T) {
	proc := &fakeProcessor{closeErr: errors.New("session leak"), failOn: map[int]error{1: errors.New("bad item")}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B"), Options{})
	require.NoError(t, err)
	snap := waitDone(t, c)

	assert.Equal(t, jobstatus.StateError, snap.State)
	assert.Equal(t, 2, snap.Current)
	assert.Equal(t, 1, snap.GlobalErrors())
	require.Len(t, snap.Errors, 2)
	assert.Equal(t, jobstatus.ScopeItem, snap.Errors[0].Scope)
	assert.Contains(t, snap.Errors[1].Message, "session leak")
}

func TestPanicIsRecordedOnceAndProcessorReleased(t *testing.T) {
	proc := &fakeProcessor{panicOn: 2, closeErr: errors.New("also broken")}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B", "C"), Options{})
	require.NoError(t, err)
	snap := waitDone(t, c)

	assert.Equal(t, jobstatus.StateError, snap.State)
	assert.Equal(t, 1, snap.GlobalErrors())
	assert.Contains(t, snap.Errors[len(snap.Errors)-1].Message, "automation exploded")
	_, closes, processed := proc.counts()
	assert.Equal(t, 1, closes)
	assert.Equal(t, []int{1, 2}, processed)

	_, err = c.Start(context.Background(), makeItems("D"), Options{Mode: ModeStub})
	require.NoError(t, err, "controller must accept a new run after a fatal one")
	waitDone(t, c)
}

func TestStubModeNeverOpensProcessor(t *testing.T) {
	proc := &fakeProcessor{}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B"), Options{Mode: ModeStub})
	require.NoError(t, err)
	snap := waitDone(t, c)

	assert.Equal(t, jobstatus.StateCompleted, snap.State)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 0, snap.Current)
	require.Len(t, snap.Errors, 1)
	assert.Equal(t, jobstatus.ScopeNote, snap.Errors[0].Scope)
	assert.Equal(t, "Local Execution Required", snap.Errors[0].Title)
	opens, _, _ := proc.counts()
	assert.Zero(t, opens)
}

func TestStubModeStop(t *testing.T) {
	c := newTestController(t, &fakeProcessor{}, WithStubDuration(time.Hour))
	_, err := c.Start(context.Background(), makeItems("A"), Options{Mode: ModeStub})
	require.NoError(t, err)
	require.NoError(t, c.RequestStop())
	assert.Equal(t, jobstatus.StateStopped, waitDone(t, c).State)
}

func TestShutdownStopsActiveRun(t *testing.T) {
	gate := make(chan struct{})
	proc := &fakeProcessor{gates: map[int]chan struct{}{2: gate}}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), makeItems("A", "B", "C"), Options{})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return c.Status().Current == 2 }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))

	snap := c.Status()
	assert.Equal(t, jobstatus.StateStopped, snap.State)
	assert.Equal(t, 1, snap.Success)
	assert.Equal(t, 0, snap.Failed)
	_, closes, _ := proc.counts()
	assert.Equal(t, 1, closes)

	_, err = c.Start(context.Background(), makeItems("D"), Options{})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestEmptyListCompletes(t *testing.T) {
	proc := &fakeProcessor{}
	c := newTestController(t, proc)

	_, err := c.Start(context.Background(), nil, Options{})
	require.NoError(t, err)

	snap := waitDone(t, c)
	assert.Equal(t, jobstatus.StateCompleted, snap.State)
	assert.Equal(t, 0, snap.Total)
	assert.Empty(t, snap.Errors)
	opens, closes, _ := proc.counts()
	assert.Equal(t, opens, closes)
}

func TestShutdownRacingStartDoesNotWaitForStub(t *testing.T) {
	for range 20 {
		c := NewControllerWithNotifier(nil, &fakeProcessor{}, imagemap.New(), nil, nil,
			WithPollInterval(10*time.Millisecond), WithStubDuration(time.Hour))

		started := make(chan struct{})
		go func() {
			defer close(started)
			_, _ = c.Start(context.Background(), makeItems("A"), Options{Mode: ModeStub})
		}()

		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		require.NoError(t, c.Shutdown(ctx))
		<-started
		require.NoError(t, c.Shutdown(ctx))
		cancel()

		state := c.Status().State
		assert.False(t, state.Active(), "run still active after shutdown: %s", state)
	}
}
