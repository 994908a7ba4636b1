package search

import (
	"context"
	"encoding/json"
	"iter"
	"time"
)

// TimeRange bounds a query by timestamp. Either bound may be nil (open).
type TimeRange struct {
	Start *time.Time
	End   *time.Time

	// ExclusiveStart makes Start an exclusive bound. The exporter uses this
	// for bookmark-derived starts so an already-delivered event is not
	// selected again.
	ExclusiveStart bool

	// DayGranularity rounds both bounds to whole days, the granularity the
	// aggregation indices are keyed at.
	DayGranularity bool
}

// Bounded reports whether at least one bound is set.
func (r TimeRange) Bounded() bool {
	return r.Start != nil || r.End != nil
}

// Hit is one document returned by a scan.
type Hit struct {
	ID        string
	Timestamp time.Time
	Source    json.RawMessage
}

// Client is the read-and-reindex surface the pipeline needs from the search
// engine.
type Client interface {
	// IndexExists reports whether index exists.
	IndexExists(ctx context.Context, index string) (bool, error)

	// OldestTimestamp returns the smallest timestamp present in index. The
	// boolean reports whether the index holds any document at all.
	OldestTimestamp(ctx context.Context, index string) (time.Time, bool, error)

	// Scan streams every document in index whose timestamp falls inside rng,
	// in strict ascending timestamp order. Errors are yielded in-band and
	// terminate the sequence.
	Scan(ctx context.Context, index string, rng TimeRange) iter.Seq2[Hit, error]

	// Terms returns the distinct values of field across documents in index
	// whose timestamp falls inside rng.
	Terms(ctx context.Context, index, field string, rng TimeRange) ([]string, error)

	// LatestValues returns field from the n most recent documents in index,
	// newest first. Missing indices yield an empty result.
	LatestValues(ctx context.Context, index, field string, n int) ([]string, error)

	// Sum returns the sums of the named numeric fields over documents in
	// index matching all filters. A missing index is reported via the
	// boolean, not an error.
	Sum(ctx context.Context, index string, filters map[string]string, fields []string) (map[string]float64, bool, error)

	// GetSource fetches one document's source from index, or nil if the
	// document does not exist.
	GetSource(ctx context.Context, index, id string) (json.RawMessage, error)
}

// Indexer accepts bulk re-index submissions. Completion is asynchronous and
// is the indexing subsystem's concern.
type Indexer interface {
	BulkIndex(ctx context.Context, recordIDs []string) error
}
