package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openarchive/statspipe/pkg/observability"
	"github.com/openarchive/statspipe/pkg/records"
	"github.com/openarchive/statspipe/pkg/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("statspipe/reconcile")

// AggregationConfig describes one statistics aggregation. It is owned by the
// aggregation subsystem; the reconciler only reads it.
type AggregationConfig struct {
	// Name identifies the aggregation, e.g. "record-view-agg".
	Name string
	// Index is the aggregation's output index.
	Index string
	// EventIndex is the source event index the aggregation is computed
	// from.
	EventIndex string
	// BookmarkIndex holds the aggregation's bookmark documents.
	BookmarkIndex string
	// DocIDSuffix is the Go time layout of the aggregation's bookmark
	// dates (its document-id date suffix), e.g. "2006-01-02".
	DocIDSuffix string
	// FamilyField is the family identifier field in the output index.
	FamilyField string
}

// Reconciler finds record families with newly aggregated statistics and
// re-indexes every version instance of each.
type Reconciler struct {
	aggs     []AggregationConfig
	search   search.Client
	resolver records.Resolver
	indexer  search.Indexer
	logger   *observability.Logger
	metrics  *observability.Metrics

	// now is overridable for tests.
	now func() time.Time
}

// New creates a reconciler over the given aggregations.
func New(aggs []AggregationConfig, sc search.Client, resolver records.Resolver, indexer search.Indexer, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		aggs:     aggs,
		search:   sc,
		resolver: resolver,
		indexer:  indexer,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// state gathers the window-derivation inputs for one aggregation.
func (r *Reconciler) state(ctx context.Context, cfg AggregationConfig) (AggregationState, error) {
	st := AggregationState{Name: cfg.Name}

	var err error
	st.IndexExists, err = r.search.IndexExists(ctx, cfg.Index)
	if err != nil {
		return st, fmt.Errorf("failed to check index %s: %w", cfg.Index, err)
	}

	if !st.IndexExists {
		st.EventIndexExists, err = r.search.IndexExists(ctx, cfg.EventIndex)
		if err != nil {
			return st, fmt.Errorf("failed to check event index %s: %w", cfg.EventIndex, err)
		}
		if st.EventIndexExists {
			oldest, ok, err := r.search.OldestTimestamp(ctx, cfg.EventIndex)
			if err != nil {
				return st, fmt.Errorf("failed to find oldest event in %s: %w", cfg.EventIndex, err)
			}
			if ok {
				st.OldestEvent = &oldest
			}
		}
	}

	raw, err := r.search.LatestValues(ctx, cfg.BookmarkIndex, "date", 2)
	if err != nil {
		return st, fmt.Errorf("failed to list bookmarks of %s: %w", cfg.Name, err)
	}
	for _, v := range raw {
		ts, err := time.Parse(cfg.DocIDSuffix, v)
		if err != nil {
			return st, fmt.Errorf("bad bookmark date %q for %s: %w", v, cfg.Name, err)
		}
		st.Bookmarks = append(st.Bookmarks, ts)
	}

	return st, nil
}

// Reconcile re-indexes every version of every record family whose
// aggregated statistics changed inside the window. Both bounds must be given
// together; supplying exactly one is insufficient input and the run does
// nothing. With neither bound, the window is derived from the aggregations'
// bookmark histories.
func (r *Reconciler) Reconcile(ctx context.Context, start, end *time.Time) error {
	ctx, span := tracer.Start(ctx, "reconcile.Reconcile")
	defer span.End()

	if (start == nil) != (end == nil) {
		r.logger.Warn("reconciliation needs both start and end dates (or neither), skipping run")
		span.SetStatus(codes.Ok, "ambiguous window")
		return nil
	}

	var window Window
	if start != nil {
		window = Window{Start: *start, End: *end}
	} else {
		states := make([]AggregationState, 0, len(r.aggs))
		for _, cfg := range r.aggs {
			st, err := r.state(ctx, cfg)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to gather aggregation state")
				r.metrics.ReconcileFailures.Inc()
				return err
			}
			states = append(states, st)
		}
		window = DeriveWindow(r.now().UTC(), states)
	}

	span.SetAttributes(
		attribute.String("window_start", window.Start.Format(time.RFC3339)),
		attribute.String("window_end", window.End.Format(time.RFC3339)),
	)

	// Collect the distinct families touched in the window across all
	// aggregation indices.
	families := make(map[string]struct{})
	rng := search.TimeRange{Start: &window.Start, End: &window.End, DayGranularity: true}
	for _, cfg := range r.aggs {
		field := cfg.FamilyField
		if field == "" {
			field = "family_id"
		}
		values, err := r.search.Terms(ctx, cfg.Index, field, rng)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to collect families")
			r.metrics.ReconcileFailures.Inc()
			return fmt.Errorf("failed to collect families from %s: %w", cfg.Index, err)
		}
		for _, v := range values {
			families[v] = struct{}{}
		}
	}

	ordered := make([]string, 0, len(families))
	for f := range families {
		ordered = append(ordered, f)
	}
	sort.Strings(ordered)

	reindexed := 0
	for _, family := range ordered {
		siblings, err := r.resolver.Siblings(ctx, family)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to resolve family")
			r.metrics.ReconcileFailures.Inc()
			return fmt.Errorf("failed to resolve family %q: %w", family, err)
		}

		ids := make([]string, 0, len(siblings))
		for _, rec := range siblings {
			ids = append(ids, rec.ID)
		}
		if err := r.indexer.BulkIndex(ctx, ids); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bulk index failed")
			r.metrics.ReconcileFailures.Inc()
			return fmt.Errorf("failed to submit family %q for re-indexing: %w", family, err)
		}
		reindexed += len(ids)
	}

	r.metrics.ReconcileRuns.Inc()
	r.metrics.TouchedFamilies.Add(float64(len(ordered)))
	r.metrics.ReindexedRecords.Add(float64(reindexed))
	r.logger.WithFields(map[string]interface{}{
		"families":     len(ordered),
		"records":      reindexed,
		"window_start": window.Start.Format(time.RFC3339),
		"window_end":   window.End.Format(time.RFC3339),
	}).Info("reconciliation run completed")
	span.SetStatus(codes.Ok, fmt.Sprintf("reindexed %d records in %d families", reindexed, len(ordered)))
	return nil
}
