// Package ledger holds the task coordination model: repositories, worktrees,
// tasks and their append-only history.
//
// Every field change made through Service produces a history row attributed
// to the acting agent. Task status is a label, not a workflow: any status may
// follow any other and the ledger only guarantees that each change is
// recorded.
//
// Persistence is delegated to a Store. The sqlite subpackage provides the
// production implementation.
package ledger
