// Package observability provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for the pipeline.
//
// # Logging
//
// Logger wraps log/slog with a JSON handler and chainable field helpers:
//
//	logger.WithField("run_id", id).Warn("bookmark not found")
//
// # Metrics
//
// Metrics holds the pipeline's Prometheus collectors: exported events and
// batches, export failures, bookmark advances, reconcile runs and re-indexed
// records. Register once per process and expose via promhttp on the ops
// server.
//
// # Tracing
//
// InitTracing wires an OTLP gRPC trace exporter when enabled; spans are
// created by the export, reconcile and search packages.
package observability
