package events

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/openarchive/statspipe/pkg/chunk"
)

// Publisher accepts built events for indexing into the event index.
type Publisher interface {
	Publish(ctx context.Context, eventType string, batch []*Event) error
}

// ImportStats summarizes one CSV import.
type ImportStats struct {
	Imported int
	Skipped  int
}

// ImportCSV reads raw interaction rows from r (columns: ipAddress,
// userAgent, url, timestamp, referrer), builds events of the given type, and
// publishes them in chunks. Rows that fail to build — unresolvable record,
// foreign host, bad timestamp — are counted as skipped, not failed.
func ImportCSV(ctx context.Context, r io.Reader, eventType string, builder *Builder, pub Publisher, chunkSize int) (ImportStats, error) {
	var stats ImportStats

	build := builder.RecordView
	switch eventType {
	case TypeRecordView:
	case TypeFileDownload:
		build = builder.FileDownload
	default:
		return stats, fmt.Errorf("unknown event type %q", eventType)
	}

	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return stats, nil
	} else if err != nil {
		return stats, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"ipAddress", "userAgent", "url", "timestamp", "referrer"} {
		if _, ok := col[required]; !ok {
			return stats, fmt.Errorf("CSV is missing required column %q", required)
		}
	}

	var readErr error
	rows := func(yield func(*Event) bool) {
		for {
			row, err := reader.Read()
			if err == io.EOF {
				return
			} else if err != nil {
				readErr = fmt.Errorf("failed to read CSV row: %w", err)
				return
			}

			raw := RawInteraction{
				IPAddress: row[col["ipAddress"]],
				UserAgent: row[col["userAgent"]],
				URL:       row[col["url"]],
				Timestamp: row[col["timestamp"]],
				Referrer:  row[col["referrer"]],
			}

			ev, err := build(ctx, raw)
			if err != nil {
				stats.Skipped++
				continue
			}
			if !yield(ev) {
				return
			}
		}
	}

	batches, err := chunk.Chunks(rows, chunkSize)
	if err != nil {
		return stats, err
	}

	for batch := range batches {
		if err := pub.Publish(ctx, eventType, batch); err != nil {
			return stats, fmt.Errorf("failed to publish %s batch: %w", eventType, err)
		}
		stats.Imported += len(batch)
	}
	if readErr != nil {
		return stats, readErr
	}
	return stats, nil
}
