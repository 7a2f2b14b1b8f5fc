package urlkeep

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Record field names as they appear in the flattened field map.
const (
	FieldTitle        = "title"
	FieldText         = "text"
	FieldLocation     = "location"
	FieldDescription  = "description"
	FieldURLTiddler   = "url_tiddler"
	FieldURLExtractor = "url_extractor"
	FieldCreated      = "created"
	FieldModified     = "modified"
)

// reservedFields are owned by the merge engine and the store; overrides and
// extractors cannot set them.
var reservedFields = map[string]bool{
	FieldLocation:     true,
	FieldURLTiddler:   true,
	FieldURLExtractor: true,
	FieldCreated:      true,
	FieldModified:     true,
}

// IsReservedField reports whether name is managed by urlkeep itself.
func IsReservedField(name string) bool {
	return reservedFields[name]
}

// FormatTimestamp renders t the way the knowledge base stores created and
// modified: UTC, YYYYMMDDhhmmss followed by three millisecond digits.
func FormatTimestamp(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s%03d", t.Format("20060102150405"), t.Nanosecond()/int(time.Millisecond))
}

// Record represents one imported page in the knowledge base.
type Record struct {
	ID           string            `json:"id"`
	Title        string            `json:"title"`
	Location     string            `json:"location"`
	CanonicalURL string            `json:"canonicalUrl"`
	Text         string            `json:"text"`
	Extractor    string            `json:"extractor,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	ContentHash  string            `json:"contentHash,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	ModifiedAt   time.Time         `json:"modifiedAt"`
}

// Validate returns an error if the record contains invalid fields.
func (r *Record) Validate() error {
	if r.Title == "" {
		return Errorf(EINVALID, "record title required")
	}
	if r.Location == "" {
		return Errorf(EINVALID, "record location required")
	}
	if r.CanonicalURL == "" {
		return Errorf(EINVALID, "record canonical URL required")
	}
	for name := range r.Fields {
		if IsReservedField(name) || name == FieldTitle || name == FieldText {
			return Errorf(EINVALID, "record field %q is reserved", name)
		}
	}
	return nil
}

// FieldMap flattens the record into the string field set the host knowledge
// base stores, including the url_tiddler marker.
func (r *Record) FieldMap() map[string]string {
	m := make(map[string]string, len(r.Fields)+8)
	for k, v := range r.Fields {
		m[k] = v
	}
	m[FieldTitle] = r.Title
	m[FieldText] = r.Text
	m[FieldLocation] = r.Location
	m[FieldURLTiddler] = "true"
	if r.Extractor != "" {
		m[FieldURLExtractor] = r.Extractor
	}
	if !r.CreatedAt.IsZero() {
		m[FieldCreated] = FormatTimestamp(r.CreatedAt)
	}
	if !r.ModifiedAt.IsZero() {
		m[FieldModified] = FormatTimestamp(r.ModifiedAt)
	}
	return m
}

// FieldNames returns the sorted names of the record's extra fields.
func (r *Record) FieldNames() []string {
	names := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// RecordFinder looks up records by their unique keys.
type RecordFinder interface {
	// FindRecordByCanonicalURL retrieves the record for a canonical URL.
	// Returns ENOTFOUND if no record has that URL.
	FindRecordByCanonicalURL(ctx context.Context, canonicalURL string) (*Record, error)

	// FindRecordByTitle retrieves a record by its exact title.
	// Returns ENOTFOUND if no record has that title.
	FindRecordByTitle(ctx context.Context, title string) (*Record, error)
}

// RecordWriter creates records.
type RecordWriter interface {
	// CreateRecord atomically creates a record, filling ID and timestamps.
	// Returns a *DuplicateURLError if the canonical URL is taken and
	// ECOLLISION if the title is taken.
	CreateRecord(ctx context.Context, rec *Record) error
}

// RecordStore is the lookup and write surface the merge engine needs.
type RecordStore interface {
	RecordFinder
	RecordWriter
}

// RecordStager buffers record writes and flushes them in one step.
// Lookups see staged records as well as stored ones.
type RecordStager interface {
	RecordStore

	// Commit flushes all staged records atomically, re-checking uniqueness,
	// and returns them as stored.
	Commit(ctx context.Context) ([]*Record, error)

	// Abort discards all staged records.
	Abort() error
}

// RecordService represents a service for managing records.
type RecordService interface {
	RecordStore

	// FindRecords retrieves records matching the filter.
	FindRecords(ctx context.Context, filter RecordFilter) ([]*Record, error)

	// DeleteRecord permanently removes a record.
	// Returns ENOTFOUND if the record does not exist.
	DeleteRecord(ctx context.Context, id string) error

	// Stage begins a two-phase write.
	Stage() RecordStager
}

// RecordFilter represents a filter for FindRecords.
type RecordFilter struct {
	Extractor *string `json:"extractor"`

	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// RecordExporter writes records out of the knowledge base as one unit.
// Nothing is visible at the destination until Commit.
type RecordExporter interface {
	Save(ctx context.Context, rec *Record) error
	Commit() error
	Abort() error
}
