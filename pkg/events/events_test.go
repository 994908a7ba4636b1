package events

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/openarchive/statspipe/pkg/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResolver struct {
	records map[string]*records.Record
	files   map[string]*records.FileObject
}

func (s *stubResolver) Resolve(_ context.Context, id string) (*records.Record, error) {
	if rec, ok := s.records[id]; ok {
		return rec, nil
	}
	return nil, records.ErrNotFound
}

func (s *stubResolver) ResolveFile(_ context.Context, id, filename string) (*records.FileObject, error) {
	if f, ok := s.files[id+"/"+filename]; ok {
		return f, nil
	}
	return nil, records.ErrNotFound
}

func (s *stubResolver) Siblings(_ context.Context, _ string) ([]*records.Record, error) {
	return nil, nil
}

func testResolver() *stubResolver {
	return &stubResolver{
		records: map[string]*records.Record{
			"1001": {
				ID:          "1001",
				FamilyID:    "1000",
				Title:       "Climate dataset",
				DOI:         "10.5072/1001",
				OAIID:       "oai:archive.example.org:1001",
				AccessRight: "open",
			},
		},
		files: map[string]*records.FileObject{
			"1001/data.csv": {Key: "data.csv", BucketID: "b-1", FileID: "f-1", Size: 2048},
		},
	}
}

func TestParseRecordURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantID   string
		wantFile string
		wantErr  bool
	}{
		{"record page", "https://archive.example.org/record/1001", "1001", "", false},
		{"record export page", "https://archive.example.org/record/1001/export/json", "1001", "", false},
		{"file page", "https://archive.example.org/record/1001/files/data.csv", "1001", "data.csv", false},
		{"foreign host", "https://evil.example.com/record/1001", "", "", true},
		{"non-record path", "https://archive.example.org/communities/foo", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, file, err := ParseRecordURL(tt.url, "archive.example.org")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantFile, file)
		})
	}
}

func TestBuilder_RecordView(t *testing.T) {
	b := NewBuilder(testResolver(), "archive.example.org")

	ev, err := b.RecordView(context.Background(), RawInteraction{
		IPAddress: "192.0.2.10",
		UserAgent: "curl/8.0",
		URL:       "https://archive.example.org/record/1001",
		Timestamp: "1388506249",
		Referrer:  "https://www.example.com/search",
	})
	require.NoError(t, err)

	assert.Equal(t, "1001", ev.RecordID)
	assert.Equal(t, "1000", ev.FamilyID)
	assert.Equal(t, "Climate dataset", ev.Title)
	assert.Equal(t, "oai:archive.example.org:1001", ev.OAIID)
	assert.Equal(t, int64(1388506249), ev.Timestamp.Unix())
	assert.False(t, ev.IsDownload())
}

func TestBuilder_FractionalTimestamp(t *testing.T) {
	b := NewBuilder(testResolver(), "archive.example.org")

	ev, err := b.RecordView(context.Background(), RawInteraction{
		URL:       "https://archive.example.org/record/1001",
		Timestamp: "1685606400.25",
	})
	require.NoError(t, err)

	want := time.Date(2023, 6, 1, 8, 0, 0, 250_000_000, time.UTC)
	assert.Equal(t, want, ev.Timestamp)
}

func TestBuilder_FileDownload(t *testing.T) {
	b := NewBuilder(testResolver(), "archive.example.org")
	ctx := context.Background()

	ev, err := b.FileDownload(ctx, RawInteraction{
		URL:       "https://archive.example.org/record/1001/files/data.csv",
		Timestamp: "1388506249",
	})
	require.NoError(t, err)

	assert.True(t, ev.IsDownload())
	assert.Equal(t, "data.csv", ev.FileKey)
	assert.Equal(t, "b-1", ev.BucketID)
	assert.Equal(t, int64(2048), ev.FileSize)

	// A record URL without a filename cannot be a download.
	_, err = b.FileDownload(ctx, RawInteraction{
		URL:       "https://archive.example.org/record/1001",
		Timestamp: "1388506249",
	})
	assert.Error(t, err)
}

func TestBuilder_UnresolvableRecord(t *testing.T) {
	b := NewBuilder(testResolver(), "archive.example.org")

	_, err := b.RecordView(context.Background(), RawInteraction{
		URL:       "https://archive.example.org/record/9999",
		Timestamp: "1388506249",
	})
	assert.ErrorIs(t, err, records.ErrNotFound)
}

type capturingPublisher struct {
	batches [][]*Event
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, batch []*Event) error {
	p.batches = append(p.batches, batch)
	return nil
}

func TestImportCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"ipAddress,userAgent,url,timestamp,referrer",
		"192.0.2.1,ua,https://archive.example.org/record/1001,1388506249,ref",
		"192.0.2.2,ua,https://archive.example.org/record/9999,1388506250,ref", // unresolvable
		"192.0.2.3,ua,https://archive.example.org/record/1001,1388506251,ref",
		"192.0.2.4,ua,https://archive.example.org/record/1001,1388506252,ref",
	}, "\n")

	b := NewBuilder(testResolver(), "archive.example.org")
	pub := &capturingPublisher{}

	stats, err := ImportCSV(context.Background(), strings.NewReader(csvData), TypeRecordView, b, pub, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Imported)
	assert.Equal(t, 1, stats.Skipped)
	require.Len(t, pub.batches, 2)
	assert.Len(t, pub.batches[0], 2)
	assert.Len(t, pub.batches[1], 1)
}

func TestImportCSV_MissingColumn(t *testing.T) {
	b := NewBuilder(testResolver(), "archive.example.org")

	_, err := ImportCSV(context.Background(), strings.NewReader("url,timestamp\n"), TypeRecordView, b, &capturingPublisher{}, 2)
	assert.Error(t, err)
}
