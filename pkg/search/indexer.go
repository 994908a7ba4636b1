package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTPIndexer submits bulk re-index requests to the indexing service.
// Submission is fire-and-forget: the service queues the records and indexes
// them on its own schedule.
type HTTPIndexer struct {
	endpoint string
	client   *http.Client
}

// NewHTTPIndexer creates an indexer posting to the given endpoint.
func NewHTTPIndexer(endpoint string) *HTTPIndexer {
	return &HTTPIndexer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// BulkIndex submits recordIDs for re-indexing as one request.
func (i *HTTPIndexer) BulkIndex(ctx context.Context, recordIDs []string) error {
	ctx, span := tracer.Start(ctx, "search.BulkIndex",
		trace.WithAttributes(attribute.Int("records", len(recordIDs))),
	)
	defer span.End()

	if len(recordIDs) == 0 {
		span.SetStatus(codes.Ok, "nothing to index")
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"record_ids": recordIDs,
	})
	if err != nil {
		return fmt.Errorf("failed to encode bulk index request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build bulk index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := i.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk index request failed")
		return fmt.Errorf("bulk index request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		err := fmt.Errorf("bulk index returned status %d: %s", res.StatusCode, msg)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk index rejected")
		return err
	}

	span.SetStatus(codes.Ok, fmt.Sprintf("submitted %d records", len(recordIDs)))
	return nil
}
