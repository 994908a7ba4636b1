package stats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openarchive/statspipe/pkg/search"
)

// Snapshot is the per-record statistics mapping written into the record's
// searchable representation. Dropped records the metrics that could not be
// computed, keyed by metric name; a snapshot with dropped metrics is still
// valid output.
type Snapshot struct {
	Metrics map[string]float64
	Dropped map[string]error
}

// Complete reports whether every metric was computed.
func (s Snapshot) Complete() bool {
	return len(s.Dropped) == 0
}

// metricSpec binds one destination metric to a named query and the source
// field extracted from its result.
type metricSpec struct {
	Metric string
	Query  string
	Param  string // params key carrying the identifier
	Field  string // source field in the query result
}

// recordMetrics is the fixed set of per-record metrics. The version_*
// entries are family-scoped: identical for every sibling version.
var recordMetrics = []metricSpec{
	{Metric: "views", Query: "record-view", Param: "record_id", Field: "count"},
	{Metric: "unique_views", Query: "record-view", Param: "record_id", Field: "unique_count"},
	{Metric: "downloads", Query: "record-download", Param: "record_id", Field: "count"},
	{Metric: "unique_downloads", Query: "record-download", Param: "record_id", Field: "unique_count"},
	{Metric: "volume", Query: "record-download", Param: "record_id", Field: "volume"},
	{Metric: "version_views", Query: "record-view-all-versions", Param: "family_id", Field: "count"},
	{Metric: "version_unique_views", Query: "record-view-all-versions", Param: "family_id", Field: "unique_count"},
	{Metric: "version_downloads", Query: "record-download-all-versions", Param: "family_id", Field: "count"},
	{Metric: "version_unique_downloads", Query: "record-download-all-versions", Param: "family_id", Field: "unique_count"},
	{Metric: "version_volume", Query: "record-download-all-versions", Param: "family_id", Field: "volume"},
}

// Engine builds statistics snapshots from a query registry.
type Engine struct {
	registry Registry
}

// NewEngine creates a statistics engine over the given registry.
func NewEngine(registry Registry) *Engine {
	return &Engine{registry: registry}
}

// BuildRecordStats computes the statistics snapshot for one record and its
// family. One query runs per metric; any single query failing drops only
// that metric. The call itself never fails.
func (e *Engine) BuildRecordStats(ctx context.Context, recordID, familyID string) Snapshot {
	snap := Snapshot{
		Metrics: make(map[string]float64),
		Dropped: make(map[string]error),
	}

	params := map[string]string{
		"record_id": recordID,
		"family_id": familyID,
	}

	for _, spec := range recordMetrics {
		query, ok := e.registry[spec.Query]
		if !ok {
			snap.Dropped[spec.Metric] = fmt.Errorf("no query named %q registered", spec.Query)
			continue
		}

		result, err := query.Run(ctx, map[string]string{spec.Param: params[spec.Param]})
		if err != nil {
			snap.Dropped[spec.Metric] = err
			continue
		}

		value, ok := result[spec.Field]
		if !ok {
			snap.Dropped[spec.Metric] = fmt.Errorf("query %q result has no field %q", spec.Query, spec.Field)
			continue
		}
		snap.Metrics[spec.Metric] = value
	}

	return snap
}

// FetchRecordStats fetches the stored statistics of an already-indexed record
// from the records index. A missing record yields nil.
func FetchRecordStats(ctx context.Context, client search.Client, recordsIndex, recordID string) (map[string]float64, error) {
	src, err := client.GetSource(ctx, recordsIndex, recordID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return nil, nil
	}

	var doc struct {
		Stats map[string]float64 `json:"stats"`
	}
	if err := json.Unmarshal(src, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode record source: %w", err)
	}
	return doc.Stats, nil
}
