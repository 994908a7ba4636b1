package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocWriter struct {
	index string
	docs  []json.RawMessage
}

func (f *fakeDocWriter) BulkIndexDocs(_ context.Context, index string, docs []json.RawMessage) error {
	f.index = index
	f.docs = append(f.docs, docs...)
	return nil
}

func TestIndexPublisher_WritesToPrefixedEventIndex(t *testing.T) {
	writer := &fakeDocWriter{}
	pub := NewIndexPublisher(writer, "zenodo-")

	ev := &Event{
		Timestamp: time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC),
		RecordID:  "12345",
	}
	require.NoError(t, pub.Publish(context.Background(), TypeRecordView, []*Event{ev}))

	assert.Equal(t, "zenodo-events-stats-record-view", writer.index)
	require.Len(t, writer.docs, 1)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(writer.docs[0], &decoded))
	assert.Equal(t, "12345", decoded["record_id"])
}

func TestIndexPublisher_IndexFor(t *testing.T) {
	pub := NewIndexPublisher(&fakeDocWriter{}, "")
	assert.Equal(t, "events-stats-file-download", pub.IndexFor(TypeFileDownload))
}
