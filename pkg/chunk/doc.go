// Package chunk provides order-preserving, fixed-size batching of lazy
// sequences.
//
// # Overview
//
// The export pipeline streams events out of the search index in ascending
// timestamp order and delivers them to the analytics sink in bounded batches.
// This package is the single place that batching behavior lives: a batch holds
// at most n elements, order is preserved, and at most one batch is buffered at
// a time, so unbounded sources are safe to chunk.
//
// # Usage Example
//
//	batches, err := chunk.Chunks(events, 50)
//	if err != nil {
//		return err
//	}
//	for batch := range batches {
//		// post batch
//	}
package chunk
