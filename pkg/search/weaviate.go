package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

// WeaviateConfig holds connection configuration for the Weaviate backend.
type WeaviateConfig struct {
	Host    string            `json:"host"`
	Scheme  string            `json:"scheme"`
	APIKey  string            `json:"api_key"`
	Headers map[string]string `json:"headers"`
	Timeout time.Duration     `json:"timeout"`
}

// DefaultWeaviateConfig returns the default Weaviate configuration.
func DefaultWeaviateConfig() *WeaviateConfig {
	return &WeaviateConfig{
		Host:    "localhost:8080",
		Scheme:  "http",
		Timeout: 30 * time.Second,
	}
}

// WeaviateIndex implements Index on a Weaviate class. The content-addressed
// record key is mapped to a deterministic object UUID, so uploading a record
// with an unchanged key overwrites instead of duplicating.
type WeaviateIndex struct {
	client *weaviate.Client
	schema Schema
	logger *slog.Logger
}

const (
	schemaKeyMarker    = "indexpipe key field: "
	schemaVectorMarker = "; vector field: "
)

// NewWeaviateClient connects to Weaviate.
func NewWeaviateClient(config *WeaviateConfig) (*weaviate.Client, error) {
	if config == nil {
		config = DefaultWeaviateConfig()
	}
	if config.Scheme == "" {
		config.Scheme = "http"
	}

	var authConfig auth.Config
	if config.APIKey != "" {
		authConfig = auth.ApiKey{Value: config.APIKey}
	}
	client, err := weaviate.NewClient(weaviate.Config{
		Host:       config.Host,
		Scheme:     config.Scheme,
		AuthConfig: authConfig,
		Headers:    config.Headers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}
	return client, nil
}

// NewWeaviateIndex binds a client to one class described by schema. The class
// is not created; call EnsureSchema for that.
func NewWeaviateIndex(client *weaviate.Client, schema Schema, logger *slog.Logger) *WeaviateIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateIndex{
		client: client,
		schema: schema,
		logger: logger.With("component", "weaviate-index", "index", schema.Name),
	}
}

// Name returns the class name this index writes to.
func (w *WeaviateIndex) Name() string {
	return w.schema.Name
}

// EnsureSchema creates the class when it does not exist yet. An existing
// class is left untouched; schema migration is an operator task.
func (w *WeaviateIndex) EnsureSchema(ctx context.Context, schema Schema) error {
	exists, err := w.client.Schema().ClassExistenceChecker().WithClassName(schema.Name).Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to check class %q: %w", schema.Name, err)
	}
	if exists {
		w.logger.Debug("class already exists", "class", schema.Name)
		return nil
	}

	class := classFromSchema(schema)
	if err := w.client.Schema().ClassCreator().WithClass(class).Do(ctx); err != nil {
		return fmt.Errorf("failed to create class %q: %w", schema.Name, err)
	}
	w.logger.Info("class created", "class", schema.Name, "fields", len(schema.Fields))
	return nil
}

// Schema reads the live class definition back as a Schema. Returns
// ErrNotFound when the class does not exist.
func (w *WeaviateIndex) Schema(ctx context.Context) (*Schema, error) {
	class, err := w.client.Schema().ClassGetter().WithClassName(w.schema.Name).Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "404") {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read class %q: %w", w.schema.Name, err)
	}
	schema := schemaFromClass(class)
	schema.Dimensions = w.schema.Dimensions
	return &schema, nil
}

// Upload upserts documents. Each document must carry the schema's key field;
// the key is hashed into the object UUID so identical keys overwrite.
func (w *WeaviateIndex) Upload(ctx context.Context, docs []Document) ([]UploadResult, error) {
	keyField := w.schema.KeyField()
	objects := make([]*models.Object, 0, len(docs))
	keys := make([]string, 0, len(docs))

	for _, doc := range docs {
		key, _ := doc[keyField].(string)
		if key == "" {
			return nil, fmt.Errorf("document missing key field %q", keyField)
		}
		keys = append(keys, key)

		properties := map[string]any{}
		var vector []float32
		primaryVec := w.primaryVectorField()
		for _, field := range w.schema.Fields {
			value, ok := doc[field.Name]
			if !ok {
				continue
			}
			switch {
			case field.Type == FieldTypeVector && field.Name == primaryVec:
				vector, _ = value.([]float32)
			case field.Type == FieldTypeVector:
				properties[field.Name] = value
			case field.Type == FieldTypeDate:
				if ts, ok := value.(time.Time); ok {
					properties[field.Name] = ts.Format(time.RFC3339)
				} else {
					properties[field.Name] = value
				}
			default:
				properties[field.Name] = value
			}
		}

		objects = append(objects, &models.Object{
			Class:      w.schema.Name,
			ID:         strfmt.UUID(objectUUID(w.schema.Name, key)),
			Properties: properties,
			Vector:     models.C11yVector(vector),
		})
	}

	resp, err := w.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("batch upload to %q failed: %w", w.schema.Name, err)
	}

	results := make([]UploadResult, 0, len(resp))
	for i, item := range resp {
		result := UploadResult{Succeeded: true}
		if i < len(keys) {
			result.Key = keys[i]
		}
		if item.Result != nil && item.Result.Errors != nil && len(item.Result.Errors.Error) > 0 {
			result.Succeeded = false
			result.Error = item.Result.Errors.Error[0].Message
		}
		results = append(results, result)
	}

	w.logger.Debug("batch uploaded", "documents", len(docs), "results", len(results))
	return results, nil
}

// Query runs one paged query. Empty text with no vector matches everything;
// otherwise a hybrid keyword+vector search ranks the page.
func (w *WeaviateIndex) Query(ctx context.Context, q Query) (*Page, error) {
	fields := w.queryFields(q.Select)

	builder := w.client.GraphQL().Get().
		WithClassName(w.schema.Name).
		WithFields(fields...)

	searchText := q.Text
	if searchText == "*" {
		searchText = ""
	}
	if searchText != "" || len(q.Vector) > 0 {
		hybrid := w.client.GraphQL().HybridArgumentBuilder().WithQuery(searchText)
		if len(q.Vector) > 0 {
			hybrid = hybrid.WithVector(q.Vector)
		}
		alpha := q.HybridAlpha
		if alpha == 0 {
			alpha = 0.7
		}
		hybrid = hybrid.WithAlpha(alpha)
		builder = builder.WithHybrid(hybrid)
	}

	var where *filters.WhereBuilder
	if q.Filter != nil && len(q.Filter.Values) > 0 {
		where = filters.Where().
			WithPath([]string{q.Filter.Field}).
			WithOperator(filters.ContainsAny).
			WithValueText(q.Filter.Values...)
		builder = builder.WithWhere(where)
	}

	if q.Top > 0 {
		builder = builder.WithLimit(q.Top)
	}
	if q.Skip > 0 {
		builder = builder.WithOffset(q.Skip)
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("query on %q failed: %w", w.schema.Name, err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("query on %q failed: %s", w.schema.Name, result.Errors[0].Message)
	}

	page := &Page{}
	if data, ok := result.Data["Get"].(map[string]any); ok {
		if items, ok := data[w.schema.Name].([]any); ok {
			for _, item := range items {
				raw, ok := item.(map[string]any)
				if !ok {
					continue
				}
				page.Documents = append(page.Documents, w.normalizeDocument(raw))
			}
		}
	}

	if q.IncludeTotalCount {
		count, err := w.totalCount(ctx, where)
		if err != nil {
			return nil, err
		}
		page.TotalCount = count
	}
	return page, nil
}

// totalCount runs an aggregate meta count, applying the same filter as the
// query it accompanies.
func (w *WeaviateIndex) totalCount(ctx context.Context, where *filters.WhereBuilder) (int64, error) {
	builder := w.client.GraphQL().Aggregate().
		WithClassName(w.schema.Name).
		WithFields(graphql.Field{Name: "meta", Fields: []graphql.Field{{Name: "count"}}})
	if where != nil {
		builder = builder.WithWhere(where)
	}

	result, err := builder.Do(ctx)
	if err != nil {
		return 0, fmt.Errorf("count on %q failed: %w", w.schema.Name, err)
	}
	if len(result.Errors) > 0 {
		return 0, fmt.Errorf("count on %q failed: %s", w.schema.Name, result.Errors[0].Message)
	}

	if data, ok := result.Data["Aggregate"].(map[string]any); ok {
		if items, ok := data[w.schema.Name].([]any); ok && len(items) > 0 {
			if entry, ok := items[0].(map[string]any); ok {
				if meta, ok := entry["meta"].(map[string]any); ok {
					if count, ok := meta["count"].(float64); ok {
						return int64(count), nil
					}
				}
			}
		}
	}
	return 0, nil
}

// normalizeDocument converts raw GraphQL values back to schema types: ints
// arrive as float64, vectors as []any.
func (w *WeaviateIndex) normalizeDocument(raw map[string]any) Document {
	doc := Document{}
	for _, field := range w.schema.Fields {
		value, ok := raw[field.Name]
		if !ok || value == nil {
			continue
		}
		switch field.Type {
		case FieldTypeInt:
			if f, ok := value.(float64); ok {
				doc[field.Name] = int(f)
			} else {
				doc[field.Name] = value
			}
		case FieldTypeVector:
			if list, ok := value.([]any); ok {
				vec := make([]float32, 0, len(list))
				for _, v := range list {
					if f, ok := v.(float64); ok {
						vec = append(vec, float32(f))
					}
				}
				doc[field.Name] = vec
			}
		default:
			doc[field.Name] = value
		}
	}
	if additional, ok := raw["_additional"].(map[string]any); ok {
		if score, ok := additional["score"]; ok {
			doc["_score"] = score
		}
		// The primary vector travels in _additional; put it back under
		// its field name so uploads of queried documents keep it.
		if primary := w.primaryVectorField(); primary != "" {
			if list, ok := additional["vector"].([]any); ok && len(list) > 0 {
				vec := make([]float32, 0, len(list))
				for _, v := range list {
					if f, ok := v.(float64); ok {
						vec = append(vec, float32(f))
					}
				}
				doc[primary] = vec
			}
		}
	}
	return doc
}

func (w *WeaviateIndex) queryFields(selected []string) []graphql.Field {
	primaryVec := w.primaryVectorField()
	var fields []graphql.Field
	for _, field := range w.schema.Fields {
		if field.Type == FieldTypeVector && field.Name == primaryVec {
			// The primary vector lives on the object, not in properties.
			continue
		}
		if len(selected) > 0 && !contains(selected, field.Name) {
			continue
		}
		fields = append(fields, graphql.Field{Name: field.Name})
	}
	additional := []graphql.Field{{Name: "id"}, {Name: "score"}}
	if primaryVec != "" && (len(selected) == 0 || contains(selected, primaryVec)) {
		additional = append(additional, graphql.Field{Name: "vector"})
	}
	fields = append(fields, graphql.Field{Name: "_additional", Fields: additional})
	return fields
}

// primaryVectorField returns the first vector field; it is stored as the
// object vector and drives similarity search. Any further vector fields are
// stored as plain number-array properties.
func (w *WeaviateIndex) primaryVectorField() string {
	for _, field := range w.schema.Fields {
		if field.Type == FieldTypeVector {
			return field.Name
		}
	}
	return ""
}

func classFromSchema(schema Schema) *models.Class {
	primary := ""
	for _, f := range schema.Fields {
		if f.Type == FieldTypeVector {
			primary = f.Name
			break
		}
	}

	properties := make([]*models.Property, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		if field.Type == FieldTypeVector && field.Name == primary {
			continue
		}
		properties = append(properties, &models.Property{
			Name:            field.Name,
			DataType:        []string{weaviateDataType(field.Type)},
			IndexFilterable: boolPtr(field.Filterable || field.Key),
			IndexSearchable: searchablePtr(field),
		})
	}

	// The key and primary vector fields are recorded in the description so
	// structural copies can reconstruct them; Weaviate has neither concept
	// (the object vector is nameless).
	description := schemaKeyMarker + schema.KeyField()
	if primary != "" {
		description += schemaVectorMarker + primary
	}

	return &models.Class{
		Class:       schema.Name,
		Description: description,
		Vectorizer:  "none",
		Properties:  properties,
	}
}

func schemaFromClass(class *models.Class) Schema {
	description := class.Description
	vectorField := ""
	if idx := strings.Index(description, schemaVectorMarker); idx >= 0 {
		vectorField = description[idx+len(schemaVectorMarker):]
		description = description[:idx]
	}
	keyField := strings.TrimPrefix(description, schemaKeyMarker)

	schema := Schema{Name: class.Class}
	if vectorField != "" {
		// First so it stays the primary vector field.
		schema.Fields = append(schema.Fields, Field{Name: vectorField, Type: FieldTypeVector})
	}
	for _, prop := range class.Properties {
		if len(prop.DataType) == 0 {
			continue
		}
		field := Field{
			Name: prop.Name,
			Type: schemaFieldType(prop.DataType[0]),
			Key:  prop.Name == keyField,
		}
		if prop.IndexFilterable != nil {
			field.Filterable = *prop.IndexFilterable
		}
		if prop.IndexSearchable != nil {
			field.Searchable = *prop.IndexSearchable
		}
		schema.Fields = append(schema.Fields, field)
	}
	return schema
}

func weaviateDataType(t FieldType) string {
	switch t {
	case FieldTypeInt:
		return "int"
	case FieldTypeDate:
		return "date"
	case FieldTypeVector:
		return "number[]"
	default:
		return "text"
	}
}

func schemaFieldType(dataType string) FieldType {
	switch dataType {
	case "int":
		return FieldTypeInt
	case "date":
		return FieldTypeDate
	case "number[]":
		return FieldTypeVector
	default:
		return FieldTypeText
	}
}

// objectUUID maps a content-addressed record key onto a stable Weaviate
// object ID, preserving upsert-by-key semantics.
func objectUUID(class, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(class+"/"+key)).String()
}

func boolPtr(b bool) *bool { return &b }

func searchablePtr(field Field) *bool {
	// Searchable only applies to text properties.
	if field.Type != FieldTypeText {
		return nil
	}
	return boolPtr(field.Searchable)
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
