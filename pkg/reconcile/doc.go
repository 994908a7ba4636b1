// Package reconcile keeps display-facing statistics consistent across all
// versions of a record family.
//
// # Overview
//
// Aggregations close on a schedule; once a window of per-period statistics
// has been (re)computed, every record touched in that window is stale in the
// records index, and because family-scoped metrics are shared, so is every
// sibling version. The reconciler derives the un-reconciled window from each
// aggregation's bookmark history and index existence, collects the distinct
// family identifiers touched in that window, resolves each family's version
// instances, and submits them for bulk re-indexing.
//
// Window derivation is a pure function (DeriveWindow) so that the somewhat
// fiddly oldest-event / bookmark-history rules are testable without a live
// index.
package reconcile
