package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("statspipe/search")

// defaultScanPageSize is the page size used by Scan's search_after paging.
const defaultScanPageSize = 500

// maxTermBuckets bounds the distinct terms collected per window.
const maxTermBuckets = 65536

// HTTPClient implements Client against an OpenSearch-compatible HTTP API.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	pageSize int
}

// HTTPClientOption customizes an HTTPClient.
type HTTPClientOption func(*HTTPClient)

// WithPageSize overrides the scan page size.
func WithPageSize(n int) HTTPClientOption {
	return func(c *HTTPClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) HTTPClientOption {
	return func(c *HTTPClient) { c.client = hc }
}

// NewHTTPClient creates a search client for the engine at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		pageSize: defaultScanPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// rangeClause renders rng as a range query over the timestamp field, or nil
// when both bounds are open.
func rangeClause(rng TimeRange) map[string]interface{} {
	if !rng.Bounded() {
		return nil
	}

	bounds := map[string]interface{}{}
	if rng.Start != nil {
		start := rng.Start.UTC()
		op := "gte"
		if rng.ExclusiveStart {
			op = "gt"
		}
		if rng.DayGranularity {
			start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
		}
		bounds[op] = start.Format(time.RFC3339Nano)
	}
	if rng.End != nil {
		end := rng.End.UTC()
		if rng.DayGranularity {
			end = time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, 0, time.UTC)
		}
		bounds["lte"] = end.Format(time.RFC3339Nano)
	}

	return map[string]interface{}{
		"range": map[string]interface{}{"timestamp": bounds},
	}
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string            `json:"_id"`
			Source json.RawMessage   `json:"_source"`
			Sort   []json.RawMessage `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]json.RawMessage `json:"aggregations"`
}

// errIndexMissing marks a 404 from the engine so callers that tolerate
// missing indices can tell it apart from real failures.
var errIndexMissing = fmt.Errorf("index missing")

func (c *HTTPClient) doSearch(ctx context.Context, index string, body interface{}) (*searchResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search body: %w", err)
	}

	u := fmt.Sprintf("%s/%s/_search", c.baseURL, url.PathEscape(index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, errIndexMissing
	}
	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("search on %s returned status %d: %s", index, res.StatusCode, msg)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return &parsed, nil
}

// IndexExists reports whether index exists.
func (c *HTTPClient) IndexExists(ctx context.Context, index string) (bool, error) {
	u := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(index))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build index request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("index existence check failed: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("index existence check on %s returned status %d", index, res.StatusCode)
	}
}

// OldestTimestamp returns the smallest timestamp in index.
func (c *HTTPClient) OldestTimestamp(ctx context.Context, index string) (time.Time, bool, error) {
	body := map[string]interface{}{
		"size": 1,
		"sort": []interface{}{map[string]string{"timestamp": "asc"}},
	}

	res, err := c.doSearch(ctx, index, body)
	if err == errIndexMissing {
		return time.Time{}, false, nil
	} else if err != nil {
		return time.Time{}, false, err
	}
	if len(res.Hits.Hits) == 0 {
		return time.Time{}, false, nil
	}

	ts, err := timestampFromSource(res.Hits.Hits[0].Source)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts, true, nil
}

func timestampFromSource(src json.RawMessage) (time.Time, error) {
	var doc struct {
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.Unmarshal(src, &doc); err != nil {
		return time.Time{}, fmt.Errorf("document missing parseable timestamp: %w", err)
	}
	return doc.Timestamp, nil
}

// Scan streams documents in ascending timestamp order using search_after
// paging. The (timestamp, _id) sort key makes the order total, so paging can
// never skip or repeat a document.
func (c *HTTPClient) Scan(ctx context.Context, index string, rng TimeRange) iter.Seq2[Hit, error] {
	return func(yield func(Hit, error) bool) {
		ctx, span := tracer.Start(ctx, "search.Scan",
			trace.WithAttributes(attribute.String("index", index)),
		)
		defer span.End()

		var cursor []json.RawMessage
		total := 0
		for {
			body := map[string]interface{}{
				"size": c.pageSize,
				"sort": []interface{}{
					map[string]string{"timestamp": "asc"},
					map[string]string{"_id": "asc"},
				},
			}
			if clause := rangeClause(rng); clause != nil {
				body["query"] = clause
			}
			if cursor != nil {
				body["search_after"] = cursor
			}

			res, err := c.doSearch(ctx, index, body)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "scan page failed")
				yield(Hit{}, err)
				return
			}
			if len(res.Hits.Hits) == 0 {
				break
			}

			for _, h := range res.Hits.Hits {
				ts, err := timestampFromSource(h.Source)
				if err != nil {
					span.RecordError(err)
					yield(Hit{}, err)
					return
				}
				if !yield(Hit{ID: h.ID, Timestamp: ts, Source: h.Source}, nil) {
					return
				}
				total++
			}
			cursor = res.Hits.Hits[len(res.Hits.Hits)-1].Sort
		}

		span.SetStatus(codes.Ok, fmt.Sprintf("scanned %d documents", total))
	}
}

// Terms returns the distinct values of field inside rng.
func (c *HTTPClient) Terms(ctx context.Context, index, field string, rng TimeRange) ([]string, error) {
	ctx, span := tracer.Start(ctx, "search.Terms",
		trace.WithAttributes(
			attribute.String("index", index),
			attribute.String("field", field),
		),
	)
	defer span.End()

	body := map[string]interface{}{
		"size": 0,
		"aggs": map[string]interface{}{
			"values": map[string]interface{}{
				"terms": map[string]interface{}{
					"field": field,
					"size":  maxTermBuckets,
				},
			},
		},
	}
	if clause := rangeClause(rng); clause != nil {
		body["query"] = clause
	}

	res, err := c.doSearch(ctx, index, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "terms query failed")
		return nil, err
	}

	var agg struct {
		Buckets []struct {
			Key string `json:"key"`
		} `json:"buckets"`
	}
	if raw, ok := res.Aggregations["values"]; ok {
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, fmt.Errorf("failed to decode terms aggregation: %w", err)
		}
	}

	values := make([]string, 0, len(agg.Buckets))
	for _, b := range agg.Buckets {
		values = append(values, b.Key)
	}
	span.SetStatus(codes.Ok, fmt.Sprintf("collected %d terms", len(values)))
	return values, nil
}

// LatestValues returns field from the n most recent documents in index,
// newest first.
func (c *HTTPClient) LatestValues(ctx context.Context, index, field string, n int) ([]string, error) {
	body := map[string]interface{}{
		"size":    n,
		"sort":    []interface{}{map[string]string{"timestamp": "desc"}},
		"_source": []string{field},
	}

	res, err := c.doSearch(ctx, index, body)
	if err == errIndexMissing {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		var doc map[string]interface{}
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		if v, ok := doc[field].(string); ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// Sum returns the sums of the named numeric fields over documents matching
// all filters. A missing index is reported via the boolean.
func (c *HTTPClient) Sum(ctx context.Context, index string, filters map[string]string, fields []string) (map[string]float64, bool, error) {
	var clauses []interface{}
	for k, v := range filters {
		clauses = append(clauses, map[string]interface{}{
			"term": map[string]string{k: v},
		})
	}

	aggs := map[string]interface{}{}
	for _, f := range fields {
		aggs[f] = map[string]interface{}{
			"sum": map[string]string{"field": f},
		}
	}

	body := map[string]interface{}{
		"size": 0,
		"aggs": aggs,
	}
	if len(clauses) > 0 {
		body["query"] = map[string]interface{}{
			"bool": map[string]interface{}{"filter": clauses},
		}
	}

	res, err := c.doSearch(ctx, index, body)
	if err == errIndexMissing {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}

	out := make(map[string]float64, len(fields))
	for _, f := range fields {
		raw, ok := res.Aggregations[f]
		if !ok {
			continue
		}
		var agg struct {
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(raw, &agg); err != nil {
			return nil, true, fmt.Errorf("failed to decode sum aggregation %q: %w", f, err)
		}
		out[f] = agg.Value
	}
	return out, true, nil
}

// GetSource fetches one document's source from index, or nil if absent.
func (c *HTTPClient) GetSource(ctx context.Context, index, id string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/%s/_source/%s", c.baseURL, url.PathEscape(index), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build source request: %w", err)
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("source request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source fetch on %s returned status %d", index, res.StatusCode)
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read source response: %w", err)
	}
	return data, nil
}
