// Command merchbatch is the operator CLI for the merchbatch daemon.
//
// Commands talk to merchbatchd over its JSON-RPC socket: stage an item list
// and start a run, pause/resume/stop it, map replacement images, and watch
// progress in a live terminal dashboard. A few commands (items preview,
// config) work without a running daemon.
package main
