// Package api defines wire-format types and converters for the HTTP and IPC
// control surfaces. It translates controller snapshots into transport-friendly
// DTOs so the CLI, the dashboard and browser clients can render status without
// depending on internal types.
//
// # Key Types
//
// StatusResponse: the run snapshot. Field names follow the uploader's
// original JSON contract (total, current, success, failed, status, errors,
// current_product) so existing front ends keep working; run_id, mode,
// progress, image_mappings and processor health are additions.
//
// ErrorEntry: one error log row. Product is the 1-based item number, or the
// strings "global" and "note" for run-level records.
//
// # Converters
//
// FromSnapshot: jobstatus.Snapshot -> StatusResponse.
//
// ToSnapshot: the inverse, used by clients that want the typed form back.
package api
