// Package expensebuddy provides the data model and reconciliation logic for
// a personal expense ledger that is replicated across devices through a
// git-style file hosting service. It is designed to be local-first,
// auditable, and cheap to host: the whole ledger lives as small plain-text
// files in a private repository.
//
// The core functionalities include:
//   - Record Model: expense entries with stable ids, decimal amounts and
//     full lifecycle timestamps. Deletion is soft: a deleted record keeps
//     syncing forever, it is never physically erased.
//   - Merge Engine: a pure function reconciling the local and remote record
//     sets. Divergences on the same record are settled by update time when
//     the versions are far apart, and escalated as true conflicts when they
//     are too close to trust the clocks.
//   - Settings Merger: the same newest-wins reconciliation for the small
//     replicated settings document (currency, preferences, saved payment
//     instruments).
//   - Partitioning: records are grouped by calendar day and encoded as
//     canonical CSV partitions, so that a day's bytes are stable and
//     comparable across devices.
//   - Local Replica: a plain-file store of all records and settings that is
//     replaced wholesale, and atomically, after every successful sync.
//
// This package serves as the foundational logic for the `xb` command-line
// tool; the sync cycle itself (fetch, merge, push) is driven by the
// companion sync package.
package expensebuddy
