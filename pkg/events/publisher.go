package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// DocWriter is the bulk document write surface of the search engine.
type DocWriter interface {
	BulkIndexDocs(ctx context.Context, index string, docs []json.RawMessage) error
}

// IndexPublisher publishes built events into the per-type event indices.
type IndexPublisher struct {
	writer DocWriter
	prefix string
}

// NewIndexPublisher creates a publisher writing into prefix-namespaced event
// indices.
func NewIndexPublisher(writer DocWriter, prefix string) *IndexPublisher {
	return &IndexPublisher{writer: writer, prefix: prefix}
}

// IndexFor returns the event index for eventType, e.g.
// "events-stats-record-view".
func (p *IndexPublisher) IndexFor(eventType string) string {
	return fmt.Sprintf("%sevents-stats-%s", p.prefix, eventType)
}

// Publish indexes a batch of events.
func (p *IndexPublisher) Publish(ctx context.Context, eventType string, batch []*Event) error {
	docs := make([]json.RawMessage, 0, len(batch))
	for _, ev := range batch {
		doc, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		docs = append(docs, doc)
	}
	return p.writer.BulkIndexDocs(ctx, p.IndexFor(eventType), docs)
}
