package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openarchive/statspipe/pkg/bookmark"
	"github.com/openarchive/statspipe/pkg/config"
	"github.com/openarchive/statspipe/pkg/events"
	"github.com/openarchive/statspipe/pkg/export"
	"github.com/openarchive/statspipe/pkg/observability"
	"github.com/openarchive/statspipe/pkg/ops"
	"github.com/openarchive/statspipe/pkg/reconcile"
	"github.com/openarchive/statspipe/pkg/records"
	"github.com/openarchive/statspipe/pkg/search"
	"github.com/openarchive/statspipe/pkg/stats"
	"github.com/openarchive/statspipe/pkg/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

var (
	exportOnce     = flag.Bool("export", false, "Run one export and exit")
	reconcileOnce  = flag.Bool("reconcile", false, "Run one reconciliation and exit")
	importFile     = flag.String("import", "", "Import a CSV file of raw interactions and exit")
	eventType      = flag.String("event-type", events.TypeRecordView, "Event type for -import (record-view or file-download)")
	startDate      = flag.String("start-date", "", "Window start (YYYY-MM-DD or RFC 3339)")
	endDate        = flag.String("end-date", "", "Window end (YYYY-MM-DD or RFC 3339)")
	updateBookmark = flag.Bool("update-bookmark", true, "Advance the export bookmark after verified batches")
	retryOnError   = flag.Bool("retry", false, "Retry a failed export run, up to the configured retry count")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	store, err := bookmark.NewRedisStore(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer store.Close()

	searchClient := search.NewHTTPClient(cfg.Search.URL,
		search.WithHTTPClient(&http.Client{Timeout: cfg.Search.Timeout}))
	indexer := search.NewHTTPIndexer(cfg.Search.IndexerURL)

	resolver, err := records.NewCachedResolver(
		records.NewHTTPResolver(cfg.Records.APIBaseURL), cfg.Records.CacheSize)
	if err != nil {
		log.Fatalf("Failed to create record resolver: %v", err)
	}
	links := records.Links{BaseURL: cfg.Records.SiteBaseURL}

	exporter := export.New(export.Config{
		URL:        cfg.Export.URL,
		Token:      cfg.Export.Token,
		SiteID:     cfg.Export.SiteID,
		ChunkSize:  cfg.Export.ChunkSize,
		EventIndex: cfg.Reconcile.IndexPrefix + cfg.Export.EventIndex,
		Timeout:    cfg.Export.Timeout,
	}, store, searchClient, resolver, links, logger, metrics)

	reconciler := reconcile.New(defaultAggregations(cfg.Reconcile.IndexPrefix),
		searchClient, resolver, indexer, logger, metrics)

	exportTask := tasks.NewExportTask(exporter, cfg.Export.Enabled,
		cfg.Export.RetryCount, cfg.Export.RetryDelay, logger)
	// Manual runs (-export and the ops trigger) bypass the export enable
	// gate; an operator asking for a run means it.
	manualExportTask := tasks.NewExportTask(exporter, true,
		cfg.Export.RetryCount, cfg.Export.RetryDelay, logger)
	reconcileTask := tasks.NewReconcileTask(reconciler, logger)

	start, err := parseDateFlag(*startDate)
	if err != nil {
		log.Fatalf("Invalid -start-date: %v", err)
	}
	end, err := parseDateFlag(*endDate)
	if err != nil {
		log.Fatalf("Invalid -end-date: %v", err)
	}

	// Run-once modes (for operators and backfills).
	switch {
	case *importFile != "":
		if err := runImport(ctx, cfg, *importFile, *eventType, resolver, searchClient, logger); err != nil {
			log.Fatalf("Import failed: %v", err)
		}
		return
	case *exportOnce:
		opts := export.RunOptions{Start: start, End: end, UpdateBookmark: *updateBookmark}
		if err := manualExportTask.Run(ctx, opts, *retryOnError); err != nil {
			log.Fatalf("Export failed: %v", err)
		}
		return
	case *reconcileOnce:
		if err := reconcileTask.Run(ctx, start, end); err != nil {
			log.Fatalf("Reconciliation failed: %v", err)
		}
		return
	}

	// Scheduled mode.
	c := cron.New()

	// Scheduled runs do not retry; the next run resumes from the bookmark.
	if _, err := c.AddFunc(cfg.Export.Schedule, func() {
		if err := exportTask.Run(ctx, export.RunOptions{UpdateBookmark: true}, false); err != nil {
			logger.WithError(err).Error("scheduled export failed")
		}
	}); err != nil {
		log.Fatalf("Failed to schedule export: %v", err)
	}

	if _, err := c.AddFunc(cfg.Reconcile.Schedule, func() {
		if err := reconcileTask.Run(ctx, nil, nil); err != nil {
			logger.WithError(err).Error("scheduled reconciliation failed")
		}
	}); err != nil {
		log.Fatalf("Failed to schedule reconciliation: %v", err)
	}

	c.Start()
	logger.WithFields(map[string]interface{}{
		"export_schedule":    cfg.Export.Schedule,
		"reconcile_schedule": cfg.Reconcile.Schedule,
		"export_enabled":     cfg.Export.Enabled,
	}).Info("statspipe scheduler started")

	statsEngine := stats.NewEngine(stats.DefaultRegistry(searchClient, cfg.Reconcile.IndexPrefix))
	opsServer := ops.NewServer(manualExportTask, reconcileTask, statsEngine, resolver,
		searchClient, cfg.Reconcile.IndexPrefix+cfg.Records.Index, registry, logger)
	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Ops.Host, cfg.Ops.Port),
		Handler:      opsServer,
		ReadTimeout:  cfg.Ops.ReadTimeout,
		WriteTimeout: cfg.Ops.WriteTimeout,
		IdleTimeout:  cfg.Ops.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", srv.Addr).Info("ops server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("ops server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Ops.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("ops server shutdown failed")
		}

		<-c.Stop().Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Shutdown with error: %v", err)
	}
	logger.Info("statspipe stopped")
}

// defaultAggregations describes the statistics aggregations the
// reconciliation covers.
func defaultAggregations(prefix string) []reconcile.AggregationConfig {
	return []reconcile.AggregationConfig{
		{
			Name:          "record-view-agg",
			Index:         prefix + "stats-record-view",
			EventIndex:    prefix + "events-stats-record-view",
			BookmarkIndex: prefix + "stats-bookmarks-record-view",
			DocIDSuffix:   "2006-01-02",
			FamilyField:   "family_id",
		},
		{
			Name:          "file-download-agg",
			Index:         prefix + "stats-file-download",
			EventIndex:    prefix + "events-stats-file-download",
			BookmarkIndex: prefix + "stats-bookmarks-file-download",
			DocIDSuffix:   "2006-01-02",
			FamilyField:   "family_id",
		},
	}
}

func runImport(ctx context.Context, cfg *config.Config, path, eventType string, resolver records.Resolver, client *search.HTTPClient, logger *observability.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	builder := events.NewBuilder(resolver, cfg.Records.HostSuffix)
	pub := events.NewIndexPublisher(client, cfg.Reconcile.IndexPrefix)

	stats, err := events.ImportCSV(ctx, f, eventType, builder, pub, cfg.Export.ChunkSize)
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"file":     path,
		"imported": stats.Imported,
		"skipped":  stats.Skipped,
	}).Info("import completed")
	return nil
}

func parseDateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if ts, err := time.Parse(layout, value); err == nil {
			ts = ts.UTC()
			return &ts, nil
		}
	}
	return nil, fmt.Errorf("%q is not a YYYY-MM-DD or RFC 3339 timestamp", value)
}
