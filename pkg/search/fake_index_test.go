package search

import (
	"context"
	"fmt"
	"sort"
)

// fakeIndex is an in-memory Index used by the batch and retriever tests. It
// applies filters, offset pagination and upserts by key, which is all the
// processor and retriever rely on.
type fakeIndex struct {
	name       string
	schema     Schema
	docs       map[string]Document
	order      []string
	queryCalls int
	failQuery  int
}

func newFakeIndex(name string, schema Schema) *fakeIndex {
	schema.Name = name
	return &fakeIndex{
		name:   name,
		schema: schema,
		docs:   map[string]Document{},
	}
}

func (f *fakeIndex) Name() string { return f.name }

func (f *fakeIndex) EnsureSchema(_ context.Context, schema Schema) error {
	f.schema = schema
	return nil
}

func (f *fakeIndex) Schema(_ context.Context) (*Schema, error) {
	schema := f.schema
	return &schema, nil
}

func (f *fakeIndex) Upload(_ context.Context, docs []Document) ([]UploadResult, error) {
	results := make([]UploadResult, 0, len(docs))
	keyField := f.schema.KeyField()
	for _, doc := range docs {
		key, _ := doc[keyField].(string)
		if key == "" {
			results = append(results, UploadResult{Succeeded: false, Error: "missing key"})
			continue
		}
		if _, exists := f.docs[key]; !exists {
			f.order = append(f.order, key)
		}
		f.docs[key] = doc
		results = append(results, UploadResult{Key: key, Succeeded: true})
	}
	return results, nil
}

func (f *fakeIndex) Query(_ context.Context, q Query) (*Page, error) {
	f.queryCalls++
	if f.failQuery > 0 {
		f.failQuery--
		return nil, fmt.Errorf("backend unavailable")
	}

	var matched []Document
	for _, key := range f.order {
		doc := f.docs[key]
		if q.Filter != nil {
			value, _ := doc[q.Filter.Field].(string)
			if !contains(q.Filter.Values, value) {
				continue
			}
		}
		matched = append(matched, doc)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		ri, _ := matched[i]["rank"].(int)
		rj, _ := matched[j]["rank"].(int)
		return ri < rj
	})

	page := &Page{TotalCount: int64(len(matched))}
	if !q.IncludeTotalCount {
		page.TotalCount = 0
	}
	start := q.Skip
	if start > len(matched) {
		start = len(matched)
	}
	end := len(matched)
	if q.Top > 0 && start+q.Top < end {
		end = start + q.Top
	}
	page.Documents = append(page.Documents, matched[start:end]...)
	return page, nil
}
