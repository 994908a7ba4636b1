package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2023, 6, 3, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2023, 6, d, 0, 0, 0, 0, time.UTC)
}

func TestDeriveWindow_NoAggregations(t *testing.T) {
	w := DeriveWindow(now, nil)
	assert.True(t, w.Start.Equal(now))
	assert.True(t, w.End.Equal(now))
}

func TestDeriveWindow_FreshAggregationUsesOldestEvent(t *testing.T) {
	oldest := day(1)
	w := DeriveWindow(now, []AggregationState{{
		Name:             "record-view-agg",
		IndexExists:      false,
		EventIndexExists: true,
		OldestEvent:      &oldest,
	}})

	assert.True(t, w.Start.Equal(oldest), "window reaches back to the oldest event")
	assert.True(t, w.End.Equal(now))
}

func TestDeriveWindow_NoIndicesCollapsesToNow(t *testing.T) {
	w := DeriveWindow(now, []AggregationState{{
		Name:             "record-view-agg",
		IndexExists:      false,
		EventIndexExists: false,
	}})

	assert.True(t, w.Start.Equal(now), "nothing to reconcile without any events")
	assert.True(t, w.End.Equal(now))
}

func TestDeriveWindow_BookmarksStretchTheWindow(t *testing.T) {
	w := DeriveWindow(now, []AggregationState{{
		Name:        "record-view-agg",
		IndexExists: true,
		// Newest first: the newest bookmark extends the end, the
		// second-newest pulls the start back.
		Bookmarks: []time.Time{day(5), day(1)},
	}})

	assert.True(t, w.Start.Equal(day(1)))
	assert.True(t, w.End.Equal(day(5)))
}

func TestDeriveWindow_SingleBookmarkOnlyMovesEnd(t *testing.T) {
	w := DeriveWindow(now, []AggregationState{{
		Name:        "record-view-agg",
		IndexExists: true,
		Bookmarks:   []time.Time{day(5)},
	}})

	assert.True(t, w.Start.Equal(now))
	assert.True(t, w.End.Equal(day(5)))
}

func TestDeriveWindow_UnionAcrossAggregations(t *testing.T) {
	oldest := day(2)
	w := DeriveWindow(now, []AggregationState{
		{
			Name:             "record-view-agg",
			IndexExists:      false,
			EventIndexExists: true,
			OldestEvent:      &oldest,
		},
		{
			Name:        "file-download-agg",
			IndexExists: true,
			Bookmarks:   []time.Time{day(6), day(1)},
		},
	})

	assert.True(t, w.Start.Equal(day(1)), "earliest contribution wins the start")
	assert.True(t, w.End.Equal(day(6)), "latest contribution wins the end")
}

func TestDeriveWindow_PastBookmarkDoesNotShrinkEnd(t *testing.T) {
	w := DeriveWindow(now, []AggregationState{{
		Name:        "record-view-agg",
		IndexExists: true,
		Bookmarks:   []time.Time{day(1)},
	}})

	assert.True(t, w.End.Equal(now), "end never moves before now")
}
