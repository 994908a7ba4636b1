package records

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// ErrNotFound is returned when a record or file does not exist or has been
// deleted. The exporter treats this as data-quality noise, not a failure.
var ErrNotFound = errors.New("record not found")

// Record is the metadata the pipeline needs about one versioned record
// instance.
type Record struct {
	// ID is the record's own identifier.
	ID string `json:"id"`
	// FamilyID is the concept identifier shared by every version of this
	// record.
	FamilyID string `json:"family_id"`

	Title        string `json:"title"`
	DOI          string `json:"doi,omitempty"`
	FamilyDOI    string `json:"family_doi,omitempty"`
	OAIID        string `json:"oai_id,omitempty"`
	AccessRight  string `json:"access_right,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
}

// FileObject identifies one stored file within a record.
type FileObject struct {
	Key      string `json:"key"`
	BucketID string `json:"bucket_id"`
	FileID   string `json:"file_id"`
	Size     int64  `json:"size"`
}

// Resolver maps identifiers to records and files.
type Resolver interface {
	// Resolve returns the record with the given id, or ErrNotFound.
	Resolve(ctx context.Context, id string) (*Record, error)

	// ResolveFile returns the named file object within a record, or
	// ErrNotFound.
	ResolveFile(ctx context.Context, id, filename string) (*FileObject, error)

	// Siblings returns every version instance belonging to familyID.
	Siblings(ctx context.Context, familyID string) ([]*Record, error)
}

// Links builds display-facing URLs for records and files. The exporter embeds
// these in the analytics payload as the visited page.
type Links struct {
	// BaseURL is the public root of the repository, without trailing slash.
	BaseURL string
}

// RecordHTML returns the public landing page URL for a record.
func (l Links) RecordHTML(id string) string {
	return fmt.Sprintf("%s/record/%s", l.BaseURL, url.PathEscape(id))
}

// RecordFile returns the public download URL for a file within a record.
func (l Links) RecordFile(id, filename string) string {
	return fmt.Sprintf("%s/record/%s/files/%s", l.BaseURL, url.PathEscape(id), url.PathEscape(filename))
}
