// Package daemon coordinates the long-running merchbatch process.
//
// It wires configuration, the job controller, the staged item list and the
// HTTP control API into a single lifecycle with flock-based locking to
// prevent multiple instances. The daemon validates and stores uploaded item
// lists and replacement images, translates transport requests into controller
// operations, and reports dependency health alongside the run snapshot.
//
// Keep orchestration logic here: the run loop itself lives in internal/job
// while the daemon focuses on startup, shutdown, and request plumbing.
package daemon
