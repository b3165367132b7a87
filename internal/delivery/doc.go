// Package delivery moves payloads from the edge to the accounting terminal.
//
// ARCHITECTURE:
//
// Foreground path (Front):
// A caller hands over a payload. The front probes the terminal, sends once
// if it answers, and otherwise appends the payload to the durable queue.
// The caller always learns which of the two happened.
//
// Background path (Worker):
// A single worker sleeps for the retry interval, lists pending items, probes
// the terminal, and replays the items in id order. The first failure ends
// the pass; the rest wait for the next wake-up. Each delivered item is marked
// complete before the next one is sent.
//
// State machine:
//
//	sleeping --tick--> checking --empty--> sleeping
//	                   checking --items--> draining --done/fail/unreachable--> sleeping
//
// Failure classes:
//   - terminal.UnreachableError, terminal.TransportError: absorbed, item stays pending
//   - store.Fault: returned; ends Worker.Run
//   - terminal.ConfigError: returned; ends Worker.Run
//
// Both paths share one store handle whose single connection serialises
// every statement.
package delivery
