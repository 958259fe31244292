// Package search defines the two-tier search index abstraction the pipeline
// writes to and queries, with a Weaviate-backed implementation, a batch
// processor for bulk maintenance, and the context-window retriever used at
// query time.
package search

import (
	"context"
	"errors"
)

// Document is a flat key-value index record. Vector-typed fields hold
// []float32 values; everything else is scalar.
type Document map[string]any

// Filter restricts a query to documents whose Field equals any of Values.
type Filter struct {
	Field  string   `json:"field"`
	Values []string `json:"values"`
}

// Query describes one paged index query. An empty Text with a nil Vector
// matches everything, which is what the batch processor relies on.
type Query struct {
	Text               string    `json:"text"`
	Vector             []float32 `json:"vector,omitempty"`
	Filter             *Filter   `json:"filter,omitempty"`
	Select             []string  `json:"select,omitempty"`
	Skip               int       `json:"skip"`
	Top                int       `json:"top"`
	IncludeTotalCount  bool      `json:"include_total_count"`
	UseSemanticRanking bool      `json:"use_semantic_ranking"`
	HybridAlpha        float32   `json:"hybrid_alpha"`
}

// Page is one query result page. TotalCount is only populated when the query
// asked for it, and reflects the matching set at the time of that page.
type Page struct {
	Documents  []Document `json:"documents"`
	TotalCount int64      `json:"total_count"`
}

// UploadResult reports the outcome for one uploaded document.
type UploadResult struct {
	Key       string `json:"key"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// FieldType enumerates the index field types the schema supports.
type FieldType string

const (
	FieldTypeText   FieldType = "text"
	FieldTypeInt    FieldType = "int"
	FieldTypeDate   FieldType = "date"
	FieldTypeVector FieldType = "vector"
)

// Field describes one index field.
type Field struct {
	Name       string    `json:"name"`
	Type       FieldType `json:"type"`
	Key        bool      `json:"key"`        // primary key; exactly one per schema
	Filterable bool      `json:"filterable"`
	Searchable bool      `json:"searchable"`
}

// Schema describes one index: its name, fields, and vector dimensionality.
type Schema struct {
	Name       string  `json:"name"`
	Fields     []Field `json:"fields"`
	Dimensions int     `json:"dimensions"`
}

// KeyField returns the schema's primary key field name, or "".
func (s Schema) KeyField() string {
	for _, f := range s.Fields {
		if f.Key {
			return f.Name
		}
	}
	return ""
}

// ErrNotFound is returned by Index implementations when the named index (or
// document) does not exist. Callers that treat absence as a normal condition
// test for it with errors.Is.
var ErrNotFound = errors.New("search: not found")

// Index is the key-value search index contract the core consumes: paginated
// query, document upsert keyed by content-addressed ID, and schema
// management. Upserting a document whose key already exists overwrites it.
type Index interface {
	Name() string
	Query(ctx context.Context, q Query) (*Page, error)
	Upload(ctx context.Context, docs []Document) ([]UploadResult, error)
	EnsureSchema(ctx context.Context, schema Schema) error
	Schema(ctx context.Context) (*Schema, error)
}
