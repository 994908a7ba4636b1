// Package stats builds per-record statistics snapshots from the aggregation
// indices.
//
// # Overview
//
// Display-facing counters (views, downloads, volume, and their
// across-all-versions counterparts) are pre-computed by the aggregation
// subsystem into per-period indices. This package runs one named query per
// metric and folds the results into a Snapshot that the indexer writes into
// the record's searchable representation.
//
// A single metric failing — index not created yet, record with zero
// activity, backend hiccup — is normal and never an error: the metric is
// simply absent from the snapshot, and the Snapshot records which metrics
// were dropped and why so callers and tests can tell partial from complete.
package stats
