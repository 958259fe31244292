package records

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder records what it was asked to embed and returns a fixed vector,
// or an empty one for texts listed in fail.
type stubEmbedder struct {
	calls []string
	fail  map[string]bool
}

func (s *stubEmbedder) Embed(_ context.Context, text string) []float32 {
	s.calls = append(s.calls, text)
	if s.fail[text] {
		return nil
	}
	return []float32{0.1, 0.2, 0.3}
}

func TestBuildSectionRecords(t *testing.T) {
	embedder := &stubEmbedder{}
	builder := NewBuilder(SectionFields(), embedder, nil)

	parent := SectionParent("manual.docx", "lending", "Loan Approval",
		"How loans get approved.", []string{"first chunk", "second chunk"})
	core, details := builder.Build(context.Background(), parent)

	coreID, ok := core["section_id"].(string)
	require.True(t, ok)
	assert.Equal(t, "Loan Approval", core["section_name"])
	assert.Equal(t, "manual.docx", core["doc_name"])
	assert.Equal(t, "lending", core["domain"])
	assert.Equal(t, "How loans get approved.", core["section_llm_description"])
	assert.Equal(t, "header", core["section_separator_type"])
	assert.NotEmpty(t, core["embedding_llm_description"])

	require.Len(t, details, 2)
	for i, detail := range details {
		assert.Equal(t, coreID, detail["section_id"], "detail must reference its core record")
		assert.Equal(t, "lending", detail["domain"], "details carry the domain tag")
		assert.Equal(t, i+1, detail["chunk_number"], "chunk numbers are 1-based")
		assert.NotEmpty(t, detail["chunk_id"])
		assert.NotEmpty(t, detail["embedding_chunk_content"])
		_, hasName := detail["step_name"]
		assert.False(t, hasName, "section family has no detail name field")
	}
	assert.NotEqual(t, details[0]["chunk_id"], details[1]["chunk_id"])

	// One embedding per summary plus one per chunk.
	assert.Len(t, embedder.calls, 3)
}

func TestBuildIsIdempotent(t *testing.T) {
	builder := NewBuilder(SectionFields(), nil, nil)
	parent := SectionParent("manual.docx", "lending", "Intro", "summary", []string{"a", "b"})

	coreA, detailsA := builder.Build(context.Background(), parent)
	coreB, detailsB := builder.Build(context.Background(), parent)

	assert.Equal(t, coreA["section_id"], coreB["section_id"])
	require.Len(t, detailsB, len(detailsA))
	for i := range detailsA {
		assert.Equal(t, detailsA[i]["chunk_id"], detailsB[i]["chunk_id"])
	}
}

func TestBuildIDChangesWithContent(t *testing.T) {
	builder := NewBuilder(SectionFields(), nil, nil)

	coreA, _ := builder.Build(context.Background(),
		SectionParent("manual.docx", "lending", "Intro", "summary", []string{"a"}))
	coreB, _ := builder.Build(context.Background(),
		SectionParent("manual.docx", "lending", "Intro", "summary", []string{"a changed"}))

	assert.NotEqual(t, coreA["section_id"], coreB["section_id"])
}

func TestBuildEmbeddingFailureDegrades(t *testing.T) {
	embedder := &stubEmbedder{fail: map[string]bool{"bad chunk": true}}
	builder := NewBuilder(SectionFields(), embedder, nil)

	parent := SectionParent("manual.docx", "lending", "Intro", "summary",
		[]string{"good chunk", "bad chunk"})
	_, details := builder.Build(context.Background(), parent)

	require.Len(t, details, 2)
	assert.Contains(t, details[0], "embedding_chunk_content")
	assert.NotContains(t, details[1], "embedding_chunk_content",
		"failed embedding must be omitted, not uploaded empty")
}

func TestBuildProcessRecords(t *testing.T) {
	embedder := &stubEmbedder{}
	builder := NewBuilder(ProcessFields(), embedder, nil)

	process := Process{
		Name:               "Open Current Account",
		DocName:            "accounts.docx",
		Domain:             "retail",
		SubDomain:          "deposits",
		Introduction:       "Accounts are opened at any branch.",
		ShortDescription:   "Branch account opening.",
		RelatedProducts:    []string{"Current Account"},
		ReferenceDocuments: []string{"KYC-11"},
		Steps: []Step{
			{Number: 1, Name: "Verify identity", Content: "Check the customer's ID."},
			{Number: 3, Name: "Register account", Content: "Create the account record."},
		},
	}
	core, details := builder.Build(context.Background(), process.Parent())

	processID := core["process_id"]
	assert.Equal(t, "Open Current Account", core["process_name"])
	assert.Equal(t, "deposits", core["sub_domain"])
	summary, ok := core["non_llm_summary"].(string)
	require.True(t, ok)
	assert.Contains(t, summary, "Step 1 Verify identity")
	assert.Contains(t, summary, "Short description:")

	// Step 0 is synthesized from the introduction; caller-supplied numbers
	// are preserved even when not contiguous.
	require.Len(t, details, 3)
	assert.Equal(t, 0, details[0]["step_number"])
	assert.Equal(t, "Introduction", details[0]["step_name"])
	content, ok := details[0]["step_content"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(content, "Introduction:"))
	assert.Equal(t, 1, details[1]["step_number"])
	assert.Equal(t, 3, details[2]["step_number"])

	for _, detail := range details {
		assert.Equal(t, processID, detail["process_id"])
		assert.NotEmpty(t, detail["embedding_step_content"])
		assert.NotEmpty(t, detail["embedding_step_name"], "steps embed their names too")
	}
}
