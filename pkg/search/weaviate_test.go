package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
)

func sectionTestSchema() Schema {
	return Schema{
		Name:       "Sections",
		Dimensions: 1536,
		Fields: []Field{
			{Name: "section_id", Type: FieldTypeText, Key: true},
			{Name: "section_name", Type: FieldTypeText, Searchable: true},
			{Name: "section_added_at", Type: FieldTypeDate},
			{Name: "chunk_number", Type: FieldTypeInt, Filterable: true},
			{Name: "embedding_chunk_content", Type: FieldTypeVector},
			{Name: "embedding_step_name", Type: FieldTypeVector},
		},
	}
}

func TestClassFromSchemaRoundTrip(t *testing.T) {
	class := classFromSchema(sectionTestSchema())

	assert.Equal(t, "Sections", class.Class)
	assert.Equal(t, "none", class.Vectorizer)
	// The primary vector rides on the object, so it is not a property.
	require.Len(t, class.Properties, 5)

	restored := schemaFromClass(class)
	assert.Equal(t, "Sections", restored.Name)
	assert.Equal(t, "section_id", restored.KeyField())

	types := map[string]FieldType{}
	for _, field := range restored.Fields {
		types[field.Name] = field.Type
	}
	assert.Equal(t, FieldTypeDate, types["section_added_at"])
	assert.Equal(t, FieldTypeInt, types["chunk_number"])
	assert.Equal(t, FieldTypeVector, types["embedding_step_name"])

	// The object vector has no property, so the primary vector field must
	// survive the round trip through the class description and stay first.
	require.NotEmpty(t, restored.Fields)
	assert.Equal(t, "embedding_chunk_content", restored.Fields[0].Name)
	assert.Equal(t, FieldTypeVector, restored.Fields[0].Type)
	restoredIndex := &WeaviateIndex{schema: restored}
	assert.Equal(t, "embedding_chunk_content", restoredIndex.primaryVectorField())
}

func TestClassFromSchemaPropertyFlags(t *testing.T) {
	class := classFromSchema(sectionTestSchema())

	byName := map[string]int{}
	for i, prop := range class.Properties {
		byName[prop.Name] = i
	}

	key := class.Properties[byName["section_id"]]
	require.NotNil(t, key.IndexFilterable)
	assert.True(t, *key.IndexFilterable)

	name := class.Properties[byName["section_name"]]
	require.NotNil(t, name.IndexSearchable)
	assert.True(t, *name.IndexSearchable)

	// Searchable is a text-only toggle.
	number := class.Properties[byName["chunk_number"]]
	assert.Nil(t, number.IndexSearchable)
}

func TestObjectUUIDDeterministic(t *testing.T) {
	a := objectUUID("Sections", "12345")
	b := objectUUID("Sections", "12345")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, objectUUID("Sections", "12346"))
	assert.NotEqual(t, a, objectUUID("Processes", "12345"))
}

func TestNormalizeDocumentConvertsTypes(t *testing.T) {
	index := &WeaviateIndex{schema: sectionTestSchema()}

	doc := index.normalizeDocument(map[string]any{
		"section_id":          "42",
		"chunk_number":        float64(3),
		"embedding_step_name": []any{0.25, 0.5},
		"_additional":         map[string]any{"score": "0.91"},
	})

	assert.Equal(t, "42", doc["section_id"])
	assert.Equal(t, 3, doc["chunk_number"])
	assert.Equal(t, []float32{0.25, 0.5}, doc["embedding_step_name"])
	assert.Equal(t, "0.91", doc["_score"])
}

func TestNormalizeDocumentRestoresPrimaryVector(t *testing.T) {
	index := &WeaviateIndex{schema: sectionTestSchema()}

	doc := index.normalizeDocument(map[string]any{
		"section_id": "42",
		"_additional": map[string]any{
			"score":  "0.91",
			"vector": []any{0.1, 0.2, 0.3},
		},
	})

	assert.Equal(t, []float32{0.1, 0.2, 0.3}, doc["embedding_chunk_content"],
		"the object vector must come back under the primary vector field")
}

func TestQueryFieldsRequestVector(t *testing.T) {
	index := &WeaviateIndex{schema: sectionTestSchema()}

	additionalOf := func(fields []graphql.Field) []string {
		for _, field := range fields {
			if field.Name == "_additional" {
				var names []string
				for _, sub := range field.Fields {
					names = append(names, sub.Name)
				}
				return names
			}
		}
		return nil
	}

	assert.Contains(t, additionalOf(index.queryFields(nil)), "vector")
	assert.Contains(t, additionalOf(index.queryFields([]string{"embedding_chunk_content"})), "vector")
	assert.NotContains(t, additionalOf(index.queryFields([]string{"section_id"})), "vector",
		"narrow selects must not drag the vector along")
}
