// Package engine implements the duoplan sync engine.
//
// The engine owns the one in-memory SharedState. Every mutation, every
// accepted update and every read goes through it, and every value handed
// out is a deep copy.
//
// ARCHITECTURE:
//
// Mutations:
// Plan and star operations run to completion under the engine mutex:
// lazy monthly rollover, the mutation itself, persistence, and (when
// auto-publish is on) re-encoding into the shareable address. No partial
// update is observable.
//
// Reconciliation:
// CheckForUpdates reads the token from the link transport, decodes it and
// replaces the local state wholesale when the decoded version is strictly
// greater. It is single-flight: a call arriving while another is running
// returns false at once. Run drives it from a ticker (default every 5s)
// and from optional extra triggers such as a file watcher, one goroutine
// per tick, so a slow check never delays the schedule.
//
// Sharing:
// GenerateShareLink encodes the state with version+1 and writes the token
// into the address. The local version only advances when the token was
// written.
//
// ERROR HANDLING:
//
// Nothing is fatal. Passive polling logs decode and storage failures and
// keeps the previous state. Explicit actions (share, sync now, create
// document) also raise a Notice and return the error.
package engine
