// Package records flattens parsed document hierarchies into upload-ready
// index records. Both index families the system maintains - section/chunk for
// free-form documents and process/step for procedural ones - share one
// Parent/Child shape and one builder; a FieldMap names the index fields each
// family stores its records under.
package records

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// FieldMap names the index fields of one core/detail index family. Optional
// fields are left empty when the family does not carry them.
type FieldMap struct {
	CoreKey     string `json:"core_key"`     // core record primary key
	CoreName    string `json:"core_name"`    // core display name
	DocName     string `json:"doc_name"`     // source document name
	Domain      string `json:"domain"`       // classification tag
	Summary     string `json:"summary"`      // core summary text
	SummaryVec  string `json:"summary_vec"`  // core summary embedding
	AddedAt     string `json:"added_at"`     // core ingestion timestamp
	DetailKey   string `json:"detail_key"`   // detail record primary key
	ParentRef   string `json:"parent_ref"`   // detail foreign key to CoreKey
	Sequence    string `json:"sequence"`     // detail order within the parent
	Content     string `json:"content"`      // detail text
	ContentVec  string `json:"content_vec"`  // detail text embedding
	DetailName  string `json:"detail_name"`  // optional detail title
	DetailNVec  string `json:"detail_nvec"`  // optional detail title embedding
}

// SectionFields is the field map of the section/chunk index family.
func SectionFields() FieldMap {
	return FieldMap{
		CoreKey:    "section_id",
		CoreName:   "section_name",
		DocName:    "doc_name",
		Domain:     "domain",
		Summary:    "section_llm_description",
		SummaryVec: "embedding_llm_description",
		AddedAt:    "section_added_at",
		DetailKey:  "chunk_id",
		ParentRef:  "section_id",
		Sequence:   "chunk_number",
		Content:    "chunk_content",
		ContentVec: "embedding_chunk_content",
	}
}

// ProcessFields is the field map of the process/step index family. Steps
// additionally carry a name and a name embedding.
func ProcessFields() FieldMap {
	return FieldMap{
		CoreKey:    "process_id",
		CoreName:   "process_name",
		DocName:    "doc_name",
		Domain:     "domain",
		Summary:    "non_llm_summary",
		SummaryVec: "embedding_summary",
		AddedAt:    "process_added_at",
		DetailKey:  "step_id",
		ParentRef:  "process_id",
		Sequence:   "step_number",
		Content:    "step_content",
		ContentVec: "embedding_step_content",
		DetailName: "step_name",
		DetailNVec: "embedding_step_name",
	}
}

// Parent is one summary-level unit awaiting flattening: a parsed section or a
// parsed process. It owns its children for exactly one build pass.
type Parent struct {
	Name     string            // section title or process name
	DocName  string            // source document
	Domain   string            // classification tag
	Summary  string            // summary text stored on the core record
	Extra    map[string]string // additional core fields (process metadata)
	Children []Child
}

// Child is one detail-level unit: a chunk or a step.
type Child struct {
	Sequence int    // order within the parent; chunk numbers are 1-based
	Name     string // step name; empty for chunks
	Text     string
}

// Record is a flat key-value unit ready for index upload.
type Record map[string]any

// Embedder is the vector capability the builder consumes. Implementations
// fail soft: a text that cannot be embedded yields an empty vector and the
// build continues.
type Embedder interface {
	Embed(ctx context.Context, text string) []float32
}

// Builder turns parents into one core record plus one detail record per
// child, attaching content-addressed IDs and embeddings.
type Builder struct {
	fields   FieldMap
	embedder Embedder
	logger   *slog.Logger
	now      func() time.Time
}

// NewBuilder creates a builder for one index family. The embedder may be nil,
// in which case records carry no vectors.
func NewBuilder(fields FieldMap, embedder Embedder, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		fields:   fields,
		embedder: embedder,
		logger:   logger.With("component", "record-builder"),
		now:      time.Now,
	}
}

// Build flattens parent into its core record and detail records. The core ID
// is derived from the document name, the parent name, and the joined child
// text; each detail ID is derived from the core ID, the child name, and the
// child text. Every detail record references the core record through the
// family's ParentRef field.
func (b *Builder) Build(ctx context.Context, parent Parent) (Record, []Record) {
	var childTexts []string
	for _, child := range parent.Children {
		childTexts = append(childTexts, child.Text)
	}
	coreID := ContentID(parent.DocName, parent.Name, strings.Join(childTexts, "\n"))

	core := Record{
		b.fields.CoreKey:  coreID,
		b.fields.CoreName: parent.Name,
		b.fields.DocName:  parent.DocName,
		b.fields.Domain:   parent.Domain,
		b.fields.Summary:  parent.Summary,
		b.fields.AddedAt:  b.now().UTC(),
	}
	for name, value := range parent.Extra {
		core[name] = value
	}
	if vec := b.embed(ctx, parent.Summary); len(vec) > 0 {
		core[b.fields.SummaryVec] = vec
	}

	details := make([]Record, 0, len(parent.Children))
	for _, child := range parent.Children {
		// Details repeat the domain tag so searches can filter on it
		// without resolving parents first.
		detail := Record{
			b.fields.DetailKey: ContentID(coreID, child.Name, child.Text),
			b.fields.ParentRef: coreID,
			b.fields.Domain:    parent.Domain,
			b.fields.Sequence:  child.Sequence,
			b.fields.Content:   child.Text,
		}
		if b.fields.DetailName != "" {
			detail[b.fields.DetailName] = child.Name
		}
		if vec := b.embed(ctx, child.Text); len(vec) > 0 {
			detail[b.fields.ContentVec] = vec
		}
		if b.fields.DetailNVec != "" && child.Name != "" {
			if vec := b.embed(ctx, child.Name); len(vec) > 0 {
				detail[b.fields.DetailNVec] = vec
			}
		}
		details = append(details, detail)
	}

	b.logger.Debug("records built",
		"parent", parent.Name,
		"doc_name", parent.DocName,
		"details", len(details),
	)

	return core, details
}

func (b *Builder) embed(ctx context.Context, text string) []float32 {
	if b.embedder == nil || text == "" {
		return nil
	}
	return b.embedder.Embed(ctx, text)
}

// SectionParent adapts a parsed section to the shared Parent shape. Chunk
// numbers are 1-based.
func SectionParent(docName, domain, title, summary string, chunks []string) Parent {
	children := make([]Child, 0, len(chunks))
	for i, chunk := range chunks {
		children = append(children, Child{Sequence: i + 1, Text: chunk})
	}
	return Parent{
		Name:     title,
		DocName:  docName,
		Domain:   domain,
		Summary:  summary,
		Extra:    map[string]string{"section_separator_type": "header"},
		Children: children,
	}
}
