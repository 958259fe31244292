package pipeline

import (
	"github.com/hellasdata/indexpipe/pkg/records"
	"github.com/hellasdata/indexpipe/pkg/search"
)

// CoreSchema builds the index schema of a family's core (summary) index.
// extraFields are additional text properties the family stores on its core
// records, such as process metadata.
func CoreSchema(name string, fields records.FieldMap, dimensions int, extraFields ...string) search.Schema {
	schema := search.Schema{
		Name:       name,
		Dimensions: dimensions,
		Fields: []search.Field{
			{Name: fields.CoreKey, Type: search.FieldTypeText, Key: true, Filterable: true},
			{Name: fields.CoreName, Type: search.FieldTypeText, Searchable: true},
			{Name: fields.DocName, Type: search.FieldTypeText, Filterable: true},
			{Name: fields.Domain, Type: search.FieldTypeText, Filterable: true},
			{Name: fields.Summary, Type: search.FieldTypeText, Searchable: true},
			{Name: fields.AddedAt, Type: search.FieldTypeDate},
			{Name: fields.SummaryVec, Type: search.FieldTypeVector},
		},
	}
	for _, extra := range extraFields {
		schema.Fields = append(schema.Fields, search.Field{
			Name: extra, Type: search.FieldTypeText, Filterable: true,
		})
	}
	return schema
}

// DetailSchema builds the index schema of a family's detail (chunk or step)
// index.
func DetailSchema(name string, fields records.FieldMap, dimensions int) search.Schema {
	schema := search.Schema{
		Name:       name,
		Dimensions: dimensions,
		Fields: []search.Field{
			{Name: fields.DetailKey, Type: search.FieldTypeText, Key: true, Filterable: true},
			{Name: fields.ParentRef, Type: search.FieldTypeText, Filterable: true},
			{Name: fields.Domain, Type: search.FieldTypeText, Filterable: true},
			{Name: fields.Sequence, Type: search.FieldTypeInt, Filterable: true},
			{Name: fields.Content, Type: search.FieldTypeText, Searchable: true},
			{Name: fields.ContentVec, Type: search.FieldTypeVector},
		},
	}
	if fields.DetailName != "" {
		schema.Fields = append(schema.Fields, search.Field{
			Name: fields.DetailName, Type: search.FieldTypeText, Searchable: true,
		})
	}
	if fields.DetailNVec != "" {
		schema.Fields = append(schema.Fields, search.Field{
			Name: fields.DetailNVec, Type: search.FieldTypeVector,
		})
	}
	return schema
}

// SectionExtraFields lists the additional core fields of the section family.
func SectionExtraFields() []string {
	return []string{"section_separator_type"}
}

// ProcessExtraFields lists the additional core fields of the process family.
func ProcessExtraFields() []string {
	return []string{
		"sub_domain",
		"systems_manuals_used",
		"forms_documents",
		"reference_documents",
		"related_products",
	}
}
