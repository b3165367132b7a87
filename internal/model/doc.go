// Package model defines the records shared by the edge queue and the
// ingestion backend.
//
// Three record kinds exist:
//   - QueueItem: an outbound payload waiting for the accounting terminal
//   - Client: an edge installation identified by client_id and a bearer token
//   - Task: an uploaded document and its admission status
//
// Status values are lowercase strings so they read the same in SQLite rows,
// JSON responses and log lines.
package model
