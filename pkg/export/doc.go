// Package export implements the checkpointed event export loop.
//
// # Overview
//
// The exporter streams usage events out of the event index in ascending
// timestamp order, transforms each into the analytics sink's wire format,
// posts them in bounded batches, and advances a bookmark to the timestamp of
// the last event of each verified batch. Delivery is at-least-once: a batch
// whose POST fails is never bookmarked, so the next run replays it, and the
// payload carries dedup-friendly identifiers for the sink to reconcile.
//
// # Ordering and the race guard
//
// The bookmark is only ever set to the last timestamp of a completed batch,
// which is only correct because the scan is strictly ascending. Before each
// POST the exporter re-reads the bookmark; if another run has already
// advanced past this batch, the run is superseded and stops without posting,
// preventing duplicate delivery from overlapping schedules. The final
// advance uses an atomic conditional write so the bookmark can never move
// backward.
package export
