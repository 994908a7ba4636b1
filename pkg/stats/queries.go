package stats

import (
	"context"
	"fmt"

	"github.com/openarchive/statspipe/pkg/search"
)

// Result maps source field names to aggregated values.
type Result map[string]float64

// Query is one named aggregation query.
type Query interface {
	Run(ctx context.Context, params map[string]string) (Result, error)
}

// Registry maps query names to their implementations. It mirrors the
// aggregation subsystem's named-query configuration.
type Registry map[string]Query

// IndexSumQuery sums numeric fields over an aggregation index, filtered by
// one identifier field. It satisfies Query for every metric backed by a
// pre-aggregated per-period index.
type IndexSumQuery struct {
	Client search.Client
	// Index is the backing aggregation index.
	Index string
	// FilterField selects which params key (and index field) scopes the
	// query, e.g. "record_id" or "family_id".
	FilterField string
	// Fields are the numeric fields summed by the query.
	Fields []string
}

// Run executes the query with the given params.
func (q *IndexSumQuery) Run(ctx context.Context, params map[string]string) (Result, error) {
	value, ok := params[q.FilterField]
	if !ok || value == "" {
		return nil, fmt.Errorf("query on %s requires param %q", q.Index, q.FilterField)
	}

	sums, found, err := q.Client.Sum(ctx, q.Index, map[string]string{q.FilterField: value}, q.Fields)
	if err != nil {
		return nil, fmt.Errorf("sum query on %s failed: %w", q.Index, err)
	}
	if !found {
		return nil, fmt.Errorf("aggregation index %s does not exist", q.Index)
	}

	out := make(Result, len(sums))
	for k, v := range sums {
		out[k] = v
	}
	return out, nil
}

// DefaultRegistry wires the standard view/download queries against the
// aggregation indices named with the given prefix.
func DefaultRegistry(client search.Client, prefix string) Registry {
	index := func(name string) string { return prefix + name }

	return Registry{
		"record-view": &IndexSumQuery{
			Client:      client,
			Index:       index("stats-record-view"),
			FilterField: "record_id",
			Fields:      []string{"count", "unique_count"},
		},
		"record-download": &IndexSumQuery{
			Client:      client,
			Index:       index("stats-file-download"),
			FilterField: "record_id",
			Fields:      []string{"count", "unique_count", "volume"},
		},
		"record-view-all-versions": &IndexSumQuery{
			Client:      client,
			Index:       index("stats-record-view"),
			FilterField: "family_id",
			Fields:      []string{"count", "unique_count"},
		},
		"record-download-all-versions": &IndexSumQuery{
			Client:      client,
			Index:       index("stats-file-download"),
			FilterField: "family_id",
			Fields:      []string{"count", "unique_count", "volume"},
		},
	}
}
