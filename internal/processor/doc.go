// Package processor defines the resource-holding side effect a batch run
// applies to each item, and ships the external-command implementation used in
// live mode.
//
// A Processor is opened once per run. The returned Session handles items one
// at a time and must be closed on every exit path; close failures surface as
// resource errors.
package processor
