package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/hellasdata/indexpipe/pkg/blobstore"
	"github.com/hellasdata/indexpipe/pkg/search"
)

// GapReport is the result of reconciling the container against the core
// index.
type GapReport struct {
	Indexed          []string `json:"indexed"`            // in both
	MissingFromIndex []string `json:"missing_from_index"` // only in the container
	OrphanedInIndex  []string `json:"orphaned_in_index"`  // only in the index
}

// CheckGaps compares the container contents against the core index.
// docNameField is the core field holding the source document name. Container
// entries are object keys; index entries are document names.
func (p *Pipeline) CheckGaps(ctx context.Context, docNameField string, pageSize int) (*GapReport, error) {
	if pageSize <= 0 {
		pageSize = 500
	}

	folders, err := p.store.ListFolderStructure(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list container: %w", err)
	}

	indexed := make(map[string]bool)
	offset := 0
	for {
		page, err := p.core.Query(ctx, search.Query{
			Select: []string{docNameField},
			Skip:   offset,
			Top:    pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan index %q: %w", p.core.Name(), err)
		}
		for _, doc := range page.Documents {
			if name, _ := doc[docNameField].(string); name != "" {
				indexed[name] = true
			}
		}
		if len(page.Documents) < pageSize {
			break
		}
		offset += pageSize
	}

	report := &GapReport{}
	inContainer := make(map[string]bool)
	for _, keys := range folders {
		for _, key := range keys {
			name := blobstore.BaseName(key)
			inContainer[name] = true
			if indexed[name] {
				report.Indexed = append(report.Indexed, key)
			} else {
				report.MissingFromIndex = append(report.MissingFromIndex, key)
			}
		}
	}
	for name := range indexed {
		if !inContainer[name] {
			report.OrphanedInIndex = append(report.OrphanedInIndex, name)
		}
	}
	sort.Strings(report.Indexed)
	sort.Strings(report.MissingFromIndex)
	sort.Strings(report.OrphanedInIndex)

	p.logger.Info("gap check finished",
		"indexed", len(report.Indexed),
		"missing", len(report.MissingFromIndex),
		"orphaned", len(report.OrphanedInIndex))
	return report, nil
}

// CheckMissing returns only the container keys with no indexed records.
func (p *Pipeline) CheckMissing(ctx context.Context, docNameField string, pageSize int) ([]string, error) {
	report, err := p.CheckGaps(ctx, docNameField, pageSize)
	if err != nil {
		return nil, err
	}
	return report.MissingFromIndex, nil
}
