// Package services defines shared utilities consumed by the job controller,
// the item processor and the transport layers.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, item positions, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the batch error taxonomy (input, validation, item, resource,
//     internal).
//
// Use these helpers when wiring new components so operational behaviour
// (error classification, observability) stays uniform across the daemon.
package services
