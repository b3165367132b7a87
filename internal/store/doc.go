// Package store provides SQLite-backed durable storage for tallybridge.
//
// One schema serves both roles of the binary:
//   - queue: outbound payloads waiting for the accounting terminal (edge)
//   - clients: registered edge installations and their bearer tokens (backend)
//   - tasks: uploaded documents and their admission status (backend)
//
// # Invariants
//
// Queue rows are append-only. Status moves pending -> complete exactly once
// and rows are never deleted, so the table doubles as an audit trail.
// Pending rows are always read in ascending id order (AUTOINCREMENT ids are
// never reused, even after a crash).
//
// A task is rejected if and only if it carries missing_fields. The schema
// enforces this with a CHECK constraint.
//
// A client's token is written once on insert. Upserts never touch it.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=FULL: a committed enqueue survives power loss
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: tasks must reference a known client
//
// The pool is capped at one connection, which serialises every statement
// issued by the foreground path and the retry worker.
//
// Every database failure is returned as a *Fault so callers can tell storage
// problems apart from transport and validation errors.
package store
