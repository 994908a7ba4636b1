// Package events defines the usage event model and the builders that turn
// raw interaction data into events.
//
// # Overview
//
// An event is an immutable fact: somebody viewed a record page or downloaded
// a file at some instant. Events carry a denormalized snapshot of the
// record's metadata captured at build time, so downstream consumers (the
// exporter, the aggregation queries) never have to join back to the record
// store for historical data.
//
// Builder turns raw interaction rows (IP, user agent, URL, epoch timestamp,
// referrer) into record-view or file-download events, resolving the record
// referenced by the URL. Rows whose record cannot be resolved are skipped by
// the importer, not failed.
package events
