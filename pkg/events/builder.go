package events

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/openarchive/statspipe/pkg/records"
)

// RawInteraction is one row of raw interaction data, as delivered by access
// logs or an upstream collector.
type RawInteraction struct {
	IPAddress string
	UserAgent string
	URL       string
	// Timestamp is a unix epoch in seconds, fractional seconds allowed.
	Timestamp string
	Referrer  string
}

// recordPathRe matches "/record/<id>" and "/record/<id>/files/<filename>".
var recordPathRe = regexp.MustCompile(`^/record/(?P<id>[^/]+)(?:/files/(?P<filename>.+))?`)

// ParseRecordURL extracts the record id and optional filename from a
// record-like URL. hostSuffix, when non-empty, restricts which hosts are
// accepted.
func ParseRecordURL(raw, hostSuffix string) (id, filename string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("unparseable record URL %q: %w", raw, err)
	}
	if hostSuffix != "" && !strings.HasSuffix(strings.ToLower(u.Hostname()), strings.ToLower(hostSuffix)) {
		return "", "", fmt.Errorf("URL host %q is not under %q", u.Hostname(), hostSuffix)
	}

	m := recordPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", "", fmt.Errorf("URL path %q is not a record path", u.Path)
	}
	return m[1], m[2], nil
}

// Builder constructs events from raw interaction rows.
type Builder struct {
	resolver records.Resolver
	// hostSuffix restricts accepted record URLs, e.g. "archive.example.org".
	hostSuffix string
}

// NewBuilder creates an event builder using resolver for record lookups.
func NewBuilder(resolver records.Resolver, hostSuffix string) *Builder {
	return &Builder{resolver: resolver, hostSuffix: hostSuffix}
}

func (b *Builder) common(ctx context.Context, raw RawInteraction) (*Event, *records.Record, string, error) {
	id, filename, err := ParseRecordURL(raw.URL, b.hostSuffix)
	if err != nil {
		return nil, nil, "", err
	}

	rec, err := b.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to resolve record %q: %w", id, err)
	}

	epoch, err := strconv.ParseFloat(raw.Timestamp, 64)
	if err != nil {
		return nil, nil, "", fmt.Errorf("bad timestamp %q: %w", raw.Timestamp, err)
	}
	// Keep the fractional part; float64 holds sub-microsecond precision for
	// current epochs, so round at microseconds.
	sec, frac := math.Modf(epoch)

	ev := &Event{
		Timestamp: time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC(),
		Referrer:  raw.Referrer,
		IPAddress: raw.IPAddress,
		UserAgent: raw.UserAgent,
	}
	ev.applySnapshot(rec)
	return ev, rec, filename, nil
}

// RecordView builds a record-view event from raw. The URL must reference a
// record page.
func (b *Builder) RecordView(ctx context.Context, raw RawInteraction) (*Event, error) {
	ev, _, _, err := b.common(ctx, raw)
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// FileDownload builds a file-download event from raw. The URL must reference
// a file within a record.
func (b *Builder) FileDownload(ctx context.Context, raw RawInteraction) (*Event, error) {
	ev, rec, filename, err := b.common(ctx, raw)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, fmt.Errorf("URL %q has no filename for a download event", raw.URL)
	}

	obj, err := b.resolver.ResolveFile(ctx, rec.ID, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %q of record %q: %w", filename, rec.ID, err)
	}

	ev.FileKey = obj.Key
	ev.BucketID = obj.BucketID
	ev.FileID = obj.FileID
	ev.FileSize = obj.Size
	return ev, nil
}
