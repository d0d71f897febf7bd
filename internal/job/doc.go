// Package job runs one batch of items at a time in the background.
//
// The Controller owns the run lifecycle: Start launches the execution loop,
// RequestPause/RequestResume/RequestStop set cooperative signals the loop
// observes before each item and while paused, and Status returns a snapshot
// that never waits on the loop. Per-item failures are recorded and the run
// continues; processor acquisition or release failures and panics end the
// run in the error state with a single global record. The processor session
// is closed on every exit path.
package job
