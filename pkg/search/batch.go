package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Transform maps one page of source documents to documents for the target
// index. Returning an empty slice skips the batch without failing the run.
type Transform func(ctx context.Context, docs []Document) ([]Document, error)

// BatchConfig controls paginated reindexing.
type BatchConfig struct {
	BatchSize  int           `json:"batch_size"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
}

// DefaultBatchConfig returns the default batch processing configuration.
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		BatchSize:  100,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
	}
}

// BatchReport summarizes one paginated run over a source index.
type BatchReport struct {
	TotalCount int64 `json:"total_count"`
	Processed  int   `json:"processed"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	Batches    int   `json:"batches"`
}

// BatchProcessor walks a source index page by page, applies a transform and
// uploads the result to a target index.
type BatchProcessor struct {
	config *BatchConfig
	logger *slog.Logger
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(config *BatchConfig, logger *slog.Logger) *BatchProcessor {
	if config == nil {
		config = DefaultBatchConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		config: config,
		logger: logger.With("component", "batch-processor"),
	}
}

// Process pages through source with offset pagination and uploads transformed
// documents into target. The total count is captured once, from the first
// page; documents added or removed mid-run are not reconciled. Batches run
// sequentially so a slow backend is never hit by concurrent scans.
func (p *BatchProcessor) Process(ctx context.Context, source, target Index, query Query, transform Transform) (*BatchReport, error) {
	report := &BatchReport{}
	batchSize := p.config.BatchSize
	if query.Top > 0 {
		batchSize = query.Top
	}

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		pageQuery := query
		pageQuery.Skip = offset
		pageQuery.Top = batchSize
		pageQuery.IncludeTotalCount = offset == 0

		page, err := p.fetchPage(ctx, source, pageQuery)
		if err != nil {
			return report, fmt.Errorf("failed to fetch batch at offset %d: %w", offset, err)
		}
		if offset == 0 {
			report.TotalCount = page.TotalCount
			p.logger.Info("batch run started",
				"source", source.Name(),
				"target", target.Name(),
				"total", page.TotalCount,
				"batch_size", batchSize)
		}
		if len(page.Documents) == 0 {
			break
		}

		report.Batches++
		report.Processed += len(page.Documents)

		transformed, err := transform(ctx, page.Documents)
		if err != nil {
			return report, fmt.Errorf("transform failed at offset %d: %w", offset, err)
		}
		if len(transformed) > 0 {
			results, err := target.Upload(ctx, transformed)
			if err != nil {
				return report, fmt.Errorf("upload failed at offset %d: %w", offset, err)
			}
			for _, result := range results {
				if result.Succeeded {
					report.Succeeded++
				} else {
					report.Failed++
					p.logger.Warn("document rejected", "key", result.Key, "error", result.Error)
				}
			}
		}

		p.logger.Debug("batch done",
			"offset", offset,
			"fetched", len(page.Documents),
			"uploaded", len(transformed))

		if len(page.Documents) < batchSize {
			break
		}
		offset += batchSize
	}

	p.logger.Info("batch run finished",
		"processed", report.Processed,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"batches", report.Batches)
	return report, nil
}

func (p *BatchProcessor) fetchPage(ctx context.Context, source Index, query Query) (*Page, error) {
	var lastErr error
	for attempt := 0; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.Warn("retrying page fetch", "attempt", attempt, "offset", query.Skip, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.config.RetryDelay):
			}
		}
		page, err := source.Query(ctx, query)
		if err == nil {
			return page, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// CopyStructure recreates the source index schema under the target index.
func CopyStructure(ctx context.Context, source, target Index) error {
	schema, err := source.Schema(ctx)
	if err != nil {
		return fmt.Errorf("failed to read source schema: %w", err)
	}
	copied := *schema
	copied.Name = target.Name()
	if err := target.EnsureSchema(ctx, copied); err != nil {
		return fmt.Errorf("failed to create target schema: %w", err)
	}
	return nil
}

// CopyData streams every source document into the target, keeping only fields
// the target schema declares. Fields absent from the target are dropped
// silently so the two schemas may diverge.
func CopyData(ctx context.Context, processor *BatchProcessor, source, target Index) (*BatchReport, error) {
	schema, err := target.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read target schema: %w", err)
	}
	allowed := make(map[string]bool, len(schema.Fields))
	for _, field := range schema.Fields {
		allowed[field.Name] = true
	}

	transform := func(_ context.Context, docs []Document) ([]Document, error) {
		out := make([]Document, 0, len(docs))
		for _, doc := range docs {
			copied := Document{}
			for name, value := range doc {
				if allowed[name] {
					copied[name] = value
				}
			}
			out = append(out, copied)
		}
		return out, nil
	}

	return processor.Process(ctx, source, target, Query{}, transform)
}
