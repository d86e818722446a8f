// Package feature turns an enriched transaction ledger into a per-entity,
// per-week feature table with lag, rolling-window, trend and seasonality
// columns.
//
// Leakage discipline: every lag and rolling column of a week is computed from
// strictly earlier weeks of the same entity. Rolling statistics shift the
// series by one before windowing so a week never sees its own value.
package feature
