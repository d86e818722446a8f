// Package enrich resolves missing economic values in a transaction ledger
// through an ordered cascade of inference strategies and scores the
// resulting data quality per row.
//
// The cascade never overwrites a row whose revenue is already positive, never
// fails on missing reference data (rows degrade to unresolved instead), and
// is idempotent: rows carrying a terminal price source are not re-inferred on
// subsequent passes. Every run emits a Report; the report is the audit trail
// required before the ledger is trusted downstream, not a log line.
package enrich
