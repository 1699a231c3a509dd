// Package core provides the depositor reconciliation and import pipeline.
//
// This package holds the domain logic that turns registration data exported
// by the ticketing platform into event registrations. It is independent of
// any transport or storage technology: HTTP handlers, the CLI and the sync
// scheduler all drive it through [Service], and persistence is reached
// through the [Store] port.
//
// # Pipeline
//
// Every run goes through the same stages, whatever the origin of the rows:
//
//  1. A [Source] fetches raw rows (uploaded file or ticketing API).
//  2. Rows that are not both paid and valid are skipped.
//  3. [RowValidator] normalizes each remaining row or reports a [RowError].
//  4. [Reconciler] drops in-file duplicates, matches accounts, detects
//     existing registrations and computes slot occupancy.
//  5. Preview stops here. Commit continues with [AccountProvisioner] inside
//     one write transaction, records an [ImportLog], optionally advances the
//     sync watermark, then enqueues emails through a [Dispatcher].
//
// # Idempotency
//
// Registrations are unique on (event, account). Re-importing the same source
// reclassifies every row as already registered and writes nothing new.
//
// # Error Handling
//
// Row-level problems are data, never Go errors. Run-level failures are typed
// so callers can tell a retryable upstream failure ([APIError]) from one that
// needs an operator ([AuthError], [MissingColumnsError], [ErrCredentialsMissing]).
// [MapError] turns any of them into an operator-facing message with a code:
//
//   - DB001-DB004: Database errors
//   - SRC001-SRC004: Source file errors
//   - AUTH001, API001-API002, CFG001-CFG003: Ticketing errors
//   - IMP001-IMP005: Import run errors
package core
