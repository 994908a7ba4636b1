package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// BulkIndexDocs writes docs into index through the engine's bulk API. An
// empty batch is a no-op.
func (c *HTTPClient) BulkIndexDocs(ctx context.Context, index string, docs []json.RawMessage) error {
	ctx, span := tracer.Start(ctx, "search.BulkIndexDocs")
	defer span.End()
	span.SetAttributes(
		attribute.String("index", index),
		attribute.Int("docs", len(docs)),
	)

	if len(docs) == 0 {
		span.SetStatus(codes.Ok, "empty batch")
		return nil
	}

	var body bytes.Buffer
	action := []byte("{\"index\":{}}\n")
	for _, doc := range docs {
		body.Write(action)
		body.Write(doc)
		body.WriteByte('\n')
	}

	u := fmt.Sprintf("%s/%s/_bulk", c.baseURL, url.PathEscape(index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &body)
	if err != nil {
		return fmt.Errorf("failed to build bulk request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	res, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk request failed")
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		err := fmt.Errorf("bulk write to %s returned status %d: %s", index, res.StatusCode, msg)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk write rejected")
		return err
	}

	var parsed struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if parsed.Errors {
		err := fmt.Errorf("bulk write to %s reported item failures", index)
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk items failed")
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
