// Package search is the pipeline's client for the search/aggregation engine.
//
// # Overview
//
// The engine itself (how it computes counts, how indexing completes) is a
// black box; this package only needs a small read surface plus a bulk
// re-index submission:
//
//   - existence checks for event and aggregation indices
//   - the oldest event timestamp in an index
//   - a range-filtered scan in strict ascending timestamp order
//   - distinct term collection over a day-granularity window
//   - field sums for the statistics queries
//   - a fire-and-forget bulk re-index request
//
// Client is the interface consumed by the exporter, reconciler and stats
// engine; HTTPClient implements it against an OpenSearch-compatible HTTP API.
// Ordering of Scan results is load-bearing: the export bookmark is advanced
// to the last timestamp of each delivered batch, so the scan must never
// deliver out of order.
package search
