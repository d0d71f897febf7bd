package job

import "merchbatch/internal/services"

var (
	// ErrAlreadyRunning rejects Start while a run is active.
	ErrAlreadyRunning = services.Wrap(services.ErrValidation, "job", "start", "a run is already in progress", nil)
	// ErrNotRunning rejects RequestPause outside the running state.
	ErrNotRunning = services.Wrap(services.ErrValidation, "job", "pause", "no running job to pause", nil)
	// ErrNotPaused rejects RequestResume outside the paused state.
	ErrNotPaused = services.Wrap(services.ErrValidation, "job", "resume", "no paused job to resume", nil)
	// ErrNoActiveJob rejects RequestStop when nothing is running or paused.
	ErrNoActiveJob = services.Wrap(services.ErrValidation, "job", "stop", "no active job to stop", nil)
	// ErrInvalidOptions rejects Start with a negative delay or unknown mode.
	ErrInvalidOptions = services.Wrap(services.ErrValidation, "job", "start", "invalid run options", nil)
)
