// Package logs reads the daemon log file for the CLI.
//
// Tail returns the last N lines with the byte offset to resume from, and in
// follow mode polls for appended lines until the wait window closes. The IPC
// server exposes it so `merchbatch logs --follow` can stream a running
// daemon's output without knowing where the log lives.
package logs
