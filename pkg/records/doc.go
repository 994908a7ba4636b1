// Package records resolves record and file identifiers against the
// repository API.
//
// # Overview
//
// Every versioned record belongs to exactly one family (the "concept"
// identifier shared by all of its versions). The pipeline needs three
// lookups: a record by id, a file object within a record, and all sibling
// versions of a family. Resolution is read-only here; permission checks and
// record lifecycle are the repository's concern.
//
// CachedResolver fronts any Resolver with a bounded in-process LRU so that
// export runs touching the same record thousands of times do not hammer the
// repository API.
package records
