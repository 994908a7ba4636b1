// Package bookmark persists per-pipeline checkpoint instants.
//
// # Overview
//
// A bookmark is a single instant stored under a well-known key, recording the
// timestamp of the last event a pipeline successfully delivered. Absence is a
// normal state: a pipeline that has never completed a batch has no bookmark,
// and its first run must be given an explicit start boundary.
//
// Bookmarks live in Redis with no expiry. The plain Set is a blind write;
// SetIfLater performs an atomic conditional advance (WATCH/MULTI) and is what
// the exporter uses so that an overlapping run can never move a bookmark
// backward.
package bookmark
