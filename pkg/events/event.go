package events

import (
	"time"

	"github.com/openarchive/statspipe/pkg/records"
)

// Event types recognized by the pipeline.
const (
	TypeRecordView   = "record-view"
	TypeFileDownload = "file-download"
)

// Event is one immutable usage fact. It is created once when raw interaction
// data is transformed, indexed into the event index, and never mutated.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RecordID  string    `json:"record_id"`
	VisitorID string    `json:"visitor_id"`
	Referrer  string    `json:"referrer,omitempty"`
	Country   string    `json:"country,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`

	// File fields, set only for file-download events.
	FileKey  string `json:"file_key,omitempty"`
	BucketID string `json:"bucket_id,omitempty"`
	FileID   string `json:"file_id,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	// Denormalized record metadata snapshot captured at build time.
	FamilyID     string `json:"family_id,omitempty"`
	Title        string `json:"title,omitempty"`
	DOI          string `json:"doi,omitempty"`
	FamilyDOI    string `json:"family_doi,omitempty"`
	OAIID        string `json:"oai_id,omitempty"`
	AccessRight  string `json:"access_right,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
}

// IsDownload reports whether the event is a file download.
func (e *Event) IsDownload() bool {
	return e.FileKey != ""
}

// applySnapshot copies the record metadata snapshot into the event.
func (e *Event) applySnapshot(rec *records.Record) {
	e.RecordID = rec.ID
	e.FamilyID = rec.FamilyID
	e.Title = rec.Title
	e.DOI = rec.DOI
	e.FamilyDOI = rec.FamilyDOI
	e.OAIID = rec.OAIID
	e.AccessRight = rec.AccessRight
	e.ResourceType = rec.ResourceType
}
