// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. Run
// status travels as the same api.StatusResponse the HTTP API serves, so the
// CLI and browser clients render identical fields.
package ipc
