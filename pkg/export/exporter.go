package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openarchive/statspipe/pkg/bookmark"
	"github.com/openarchive/statspipe/pkg/chunk"
	"github.com/openarchive/statspipe/pkg/events"
	"github.com/openarchive/statspipe/pkg/observability"
	"github.com/openarchive/statspipe/pkg/records"
	"github.com/openarchive/statspipe/pkg/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("statspipe/export")

// DefaultTimeout bounds each POST to the analytics sink.
const DefaultTimeout = 60 * time.Second

// Config holds the exporter's settings.
type Config struct {
	// URL is the analytics sink endpoint.
	URL string
	// Token authenticates export requests.
	Token string
	// SiteID is the sink-side site identifier.
	SiteID int
	// ChunkSize is the number of events per batch.
	ChunkSize int
	// EventIndex is the event index scanned for exportable events.
	EventIndex string
	// Timeout bounds each POST; zero means DefaultTimeout.
	Timeout time.Duration
}

// Exporter is the checkpointed event export loop.
type Exporter struct {
	cfg      Config
	store    bookmark.Store
	search   search.Client
	resolver records.Resolver
	links    records.Links
	client   *http.Client
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// New creates an exporter.
func New(cfg Config, store bookmark.Store, sc search.Client, resolver records.Resolver, links records.Links, logger *observability.Logger, metrics *observability.Metrics) *Exporter {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Exporter{
		cfg:      cfg,
		store:    store,
		search:   sc,
		resolver: resolver,
		links:    links,
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   logger,
		metrics:  metrics,
	}
}

// RunOptions controls one export run.
type RunOptions struct {
	// Start and End bound the exported window; either may be nil. When
	// Start is nil the bookmark supplies it; no bookmark means nothing to
	// do.
	Start *time.Time
	End   *time.Time

	// UpdateBookmark advances the bookmark after each verified batch.
	UpdateBookmark bool
}

// sinkResponse is the analytics sink's reply to a batch POST.
type sinkResponse struct {
	Status  string `json:"status"`
	Invalid int    `json:"invalid"`
}

// Run executes one export. It returns nil both on full success and on the
// graceful no-op paths (no start boundary, superseded by a concurrent run);
// a *RequestError is returned when the sink rejects a batch.
func (e *Exporter) Run(ctx context.Context, opts RunOptions) error {
	ctx, span := tracer.Start(ctx, "export.Run")
	defer span.End()

	started := time.Now()
	defer func() {
		e.metrics.ExportDuration.Observe(time.Since(started).Seconds())
	}()

	start := opts.Start
	fromBookmark := false
	if start == nil {
		bm, ok, err := e.store.Get(ctx, bookmark.ExportKey)
		if err != nil {
			return fmt.Errorf("failed to read bookmark: %w", err)
		}
		if !ok {
			e.logger.Warn("bookmark not found and no start date specified, nothing to export")
			span.SetStatus(codes.Ok, "no start boundary")
			return nil
		}
		start = &bm
		fromBookmark = true
	}

	// A bookmark-derived start is exclusive: the event at the bookmark
	// timestamp was already delivered by the run that set it.
	rng := search.TimeRange{Start: start, End: opts.End, ExclusiveStart: fromBookmark}

	var scanErr error
	seq := func(yield func(*events.Event) bool) {
		for hit, err := range e.search.Scan(ctx, e.cfg.EventIndex, rng) {
			if err != nil {
				scanErr = err
				return
			}
			var ev events.Event
			if err := json.Unmarshal(hit.Source, &ev); err != nil {
				e.logger.WithError(err).WithField("doc_id", hit.ID).Warn("skipping undecodable event")
				e.metrics.ExportSkipped.Inc()
				continue
			}
			if !yield(&ev) {
				return
			}
		}
	}

	batches, err := chunk.Chunks(seq, e.cfg.ChunkSize)
	if err != nil {
		return fmt.Errorf("invalid export configuration: %w", err)
	}

	exported := 0
	for batch := range batches {
		done, err := e.exportBatch(ctx, batch, opts.UpdateBookmark)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch export failed")
			e.metrics.ExportFailures.Inc()
			return err
		}
		if done {
			span.SetStatus(codes.Ok, "superseded by concurrent run")
			e.metrics.ExportSuperseded.Inc()
			return nil
		}
		exported += len(batch)
	}
	if scanErr != nil {
		span.RecordError(scanErr)
		span.SetStatus(codes.Error, "event scan failed")
		return fmt.Errorf("event scan failed: %w", scanErr)
	}

	span.SetAttributes(attribute.Int("exported_events", exported))
	span.SetStatus(codes.Ok, fmt.Sprintf("exported %d events", exported))
	return nil
}

// exportBatch delivers one batch. The boolean reports that the run has been
// superseded by a concurrent run and must stop without error.
func (e *Exporter) exportBatch(ctx context.Context, batch []*events.Event, updateBookmark bool) (superseded bool, err error) {
	ctx, span := tracer.Start(ctx, "export.batch",
		trace.WithAttributes(attribute.Int("events", len(batch))),
	)
	defer span.End()

	first := batch[0].Timestamp
	last := batch[len(batch)-1].Timestamp

	queryStrings := make([]string, 0, len(batch))
	for _, ev := range batch {
		if ev.RecordID == "" {
			e.metrics.ExportSkipped.Inc()
			continue
		}
		rec, err := e.resolver.Resolve(ctx, ev.RecordID)
		if errors.Is(err, records.ErrNotFound) {
			// Record deleted since the event was captured; drop the
			// event, not the batch.
			e.metrics.ExportSkipped.Inc()
			continue
		} else if err != nil {
			return false, fmt.Errorf("failed to resolve record %q: %w", ev.RecordID, err)
		}

		qs, err := buildQueryString(ev, rec, e.cfg.SiteID, e.links)
		if err != nil {
			return false, fmt.Errorf("failed to encode event for record %q: %w", ev.RecordID, err)
		}
		queryStrings = append(queryStrings, qs)
	}

	// Race guard: a concurrent or duplicate run may have advanced the
	// bookmark past this batch while we were resolving records. Posting now
	// would deliver these events twice.
	bm, ok, err := e.store.Get(ctx, bookmark.ExportKey)
	if err != nil {
		return false, fmt.Errorf("failed to re-read bookmark: %w", err)
	}
	if ok && bm.After(last) {
		e.logger.WithFields(map[string]interface{}{
			"bookmark":   bm.Format(time.RFC3339),
			"batch_last": last.Format(time.RFC3339),
		}).Info("bookmark has progressed past this batch, aborting superseded run")
		return true, nil
	}

	if err := e.post(ctx, queryStrings, first, last); err != nil {
		return false, err
	}

	e.metrics.ExportedBatches.Inc()
	e.metrics.ExportedEvents.Add(float64(len(queryStrings)))

	if updateBookmark {
		advanced, err := e.store.SetIfLater(ctx, bookmark.ExportKey, last)
		if err != nil {
			return false, fmt.Errorf("failed to advance bookmark: %w", err)
		}
		if advanced {
			e.metrics.BookmarkAdvances.Inc()
		}
	}

	span.SetStatus(codes.Ok, fmt.Sprintf("delivered %d events", len(queryStrings)))
	return false, nil
}

// post delivers one payload to the sink and verifies the success contract:
// HTTP 200 and a body status of "success". Anything else is a hard failure.
func (e *Exporter) post(ctx context.Context, queryStrings []string, first, last time.Time) error {
	payload, err := json.Marshal(map[string]interface{}{
		"requests":   queryStrings,
		"token_auth": e.cfg.Token,
	})
	if err != nil {
		return fmt.Errorf("failed to encode export payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build export request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return &RequestError{Begin: first, End: last, Err: err}
	}
	defer res.Body.Close()

	var parsed sinkResponse
	decodeErr := json.NewDecoder(res.Body).Decode(&parsed)

	if res.StatusCode != http.StatusOK || decodeErr != nil || parsed.Status != "success" {
		return &RequestError{
			StatusCode: res.StatusCode,
			BodyStatus: parsed.Status,
			Begin:      first,
			End:        last,
			Err:        decodeErr,
		}
	}

	if parsed.Invalid != 0 {
		// TODO: decide whether a non-zero invalid count should fail the
		// batch instead of advancing past it.
		e.logger.WithFields(map[string]interface{}{
			"begin_event_timestamp": first.Format(time.RFC3339),
			"end_event_timestamp":   last.Format(time.RFC3339),
			"invalid_events":        parsed.Invalid,
		}).Warn("sink reported invalid events in export request")
		e.metrics.InvalidSinkEvents.Add(float64(parsed.Invalid))
	}

	return nil
}
