package reconcile

import (
	"time"
)

// AggregationState is the reconciler's view of one aggregation when no
// explicit window was given: whether its indices exist, the oldest event in
// its source index, and its most recent bookmarks (newest first, at most
// two).
type AggregationState struct {
	Name string

	// IndexExists reports whether the aggregation's output index exists.
	IndexExists bool
	// EventIndexExists reports whether the aggregation's source event index
	// exists.
	EventIndexExists bool
	// OldestEvent is the oldest event timestamp in the source index, when
	// known.
	OldestEvent *time.Time

	// Bookmarks holds the aggregation's most recent bookmarks, newest
	// first.
	Bookmarks []time.Time
}

// Window is a closed reconciliation time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// DeriveWindow computes the un-reconciled window across aggregations.
//
// Per aggregation: a missing output index pulls the window start back to the
// oldest source event (or leaves it at now when the source index is missing
// too, nothing having ever been aggregated); the newest bookmark pushes the
// window end forward; the second-newest pulls the window start back. The
// result is the union over all aggregations, so one reconciliation pass
// covers every aggregation's newly closed period.
func DeriveWindow(now time.Time, aggs []AggregationState) Window {
	start, end := now, now

	for _, agg := range aggs {
		if !agg.IndexExists {
			if agg.EventIndexExists && agg.OldestEvent != nil && agg.OldestEvent.Before(start) {
				start = *agg.OldestEvent
			}
		}

		if len(agg.Bookmarks) >= 1 && agg.Bookmarks[0].After(end) {
			end = agg.Bookmarks[0]
		}
		if len(agg.Bookmarks) >= 2 && agg.Bookmarks[1].Before(start) {
			start = agg.Bookmarks[1]
		}
	}

	return Window{Start: start, End: end}
}
