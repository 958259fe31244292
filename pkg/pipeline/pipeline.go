// Package pipeline orchestrates the full ingest flow: list documents in
// object storage, decode and section them, chunk, summarize, embed, and
// upload the resulting records into the core and detail indexes.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hellasdata/indexpipe/pkg/blobstore"
	"github.com/hellasdata/indexpipe/pkg/chunking"
	"github.com/hellasdata/indexpipe/pkg/content"
	"github.com/hellasdata/indexpipe/pkg/docparse"
	"github.com/hellasdata/indexpipe/pkg/records"
	"github.com/hellasdata/indexpipe/pkg/search"
)

// Summarizer produces the description stored on core records. A nil
// summarizer makes the pipeline fall back to a content prefix.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Options wires the pipeline's collaborators.
type Options struct {
	Store         blobstore.Store
	CoreIndex     search.Index
	DetailIndex   search.Index
	Chunker       *chunking.Chunker
	Builder       *records.Builder
	Summarizer    Summarizer
	TitleInferrer docparse.TitleInferrer
	Metrics       *Metrics
	Logger        *slog.Logger
}

// Report summarizes one ingest run.
type Report struct {
	RunID     string   `json:"run_id"`
	Documents int      `json:"documents"`
	Sections  int      `json:"sections"`
	Records   int      `json:"records"`
	Failed    []string `json:"failed,omitempty"`
}

// Pipeline ingests documents from a blob container into the two-tier index.
type Pipeline struct {
	store         blobstore.Store
	core          search.Index
	detail        search.Index
	chunker       *chunking.Chunker
	builder       *records.Builder
	summarizer    Summarizer
	titleInferrer docparse.TitleInferrer
	metrics       *Metrics
	logger        *slog.Logger
}

// New creates a pipeline. Store, both indexes, chunker and builder are
// required; summarizer, title inferrer and metrics are optional.
func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil || opts.CoreIndex == nil || opts.DetailIndex == nil {
		return nil, fmt.Errorf("store and both indexes are required")
	}
	if opts.Chunker == nil || opts.Builder == nil {
		return nil, fmt.Errorf("chunker and builder are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:         opts.Store,
		core:          opts.CoreIndex,
		detail:        opts.DetailIndex,
		chunker:       opts.Chunker,
		builder:       opts.Builder,
		summarizer:    opts.Summarizer,
		titleInferrer: opts.TitleInferrer,
		metrics:       opts.Metrics,
		logger:        logger.With("component", "pipeline"),
	}, nil
}

// Run ingests every document in the container. The top-level folder of each
// object key becomes the record's domain. A document that fails is reported
// and skipped; the run continues.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", report.RunID)

	folders, err := p.store.ListFolderStructure(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list container: %w", err)
	}

	domains := make([]string, 0, len(folders))
	for domain := range folders {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	for _, domain := range domains {
		for _, key := range folders[domain] {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			sections, uploaded, err := p.IngestDocument(ctx, domain, key)
			report.Documents++
			if err != nil {
				logger.Error("document ingest failed", "key", key, "error", err)
				report.Failed = append(report.Failed, key)
				continue
			}
			report.Sections += sections
			report.Records += uploaded
		}
	}

	logger.Info("ingest run finished",
		"documents", report.Documents,
		"sections", report.Sections,
		"records", report.Records,
		"failed", len(report.Failed))
	return report, nil
}

// IngestDocument ingests one document and returns the number of sections and
// uploaded records.
func (p *Pipeline) IngestDocument(ctx context.Context, domain, key string) (sections, uploaded int, err error) {
	started := time.Now()
	kind := content.KindForName(key)
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.recordDocument(string(kind), status, sections, time.Since(started))
	}()

	data, err := p.store.GetContent(ctx, key)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch %q: %w", key, err)
	}

	text, _, err := content.Decode(key, data)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	if text == "" {
		p.logger.Warn("document is empty, skipping", "key", key)
		return 0, 0, nil
	}

	docName := blobstore.BaseName(key)
	parsed := docparse.EnsureTitles(ctx,
		docparse.SplitSections(text), p.titleInferrer, content.TitleFromName(key))

	for _, section := range parsed {
		if section.Content == "" {
			continue
		}
		chunks := p.chunker.Chunk(section.Content)
		summary := p.summarize(ctx, section.Content)

		parent := records.SectionParent(docName, domain, section.Title, summary, chunks)
		core, details := p.builder.Build(ctx, parent)

		n, err := p.uploadRecords(ctx, core, details)
		if err != nil {
			return sections, uploaded, err
		}
		sections++
		uploaded += n
	}

	p.logger.Info("document ingested",
		"key", key,
		"domain", domain,
		"sections", sections,
		"records", uploaded,
		"elapsed", time.Since(started))
	return sections, uploaded, nil
}

// IngestProcess ingests one process extracted from a procedural document into
// a process-family builder's indexes. The caller supplies the process; see
// docparse.ExtractProcess for obtaining one from raw text.
func (p *Pipeline) IngestProcess(ctx context.Context, process *records.Process) (int, error) {
	core, details := p.builder.Build(ctx, process.Parent())
	return p.uploadRecords(ctx, core, details)
}

// ProcessExtractor turns one document's text into its processes. See
// docparse.ExtractProcesses.
type ProcessExtractor func(ctx context.Context, docText, docName, domain string) ([]*records.Process, error)

// RunProcesses ingests every document in the container as procedural content:
// each document is extracted into processes, which are uploaded through the
// process-family builder. Report.Sections counts extracted processes.
func (p *Pipeline) RunProcesses(ctx context.Context, extract ProcessExtractor) (*Report, error) {
	report := &Report{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", report.RunID)

	folders, err := p.store.ListFolderStructure(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list container: %w", err)
	}

	domains := make([]string, 0, len(folders))
	for domain := range folders {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	for _, domain := range domains {
		for _, key := range folders[domain] {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Documents++

			data, err := p.store.GetContent(ctx, key)
			if err != nil {
				logger.Error("document fetch failed", "key", key, "error", err)
				report.Failed = append(report.Failed, key)
				continue
			}
			text, _, err := content.Decode(key, data)
			if err != nil {
				logger.Error("document decode failed", "key", key, "error", err)
				report.Failed = append(report.Failed, key)
				continue
			}
			if text == "" {
				logger.Warn("document is empty, skipping", "key", key)
				continue
			}

			processes, err := extract(ctx, text, blobstore.BaseName(key), domain)
			if err != nil {
				logger.Error("process extraction failed", "key", key, "error", err)
				report.Failed = append(report.Failed, key)
				continue
			}
			for _, process := range processes {
				uploaded, err := p.IngestProcess(ctx, process)
				if err != nil {
					logger.Error("process ingest failed",
						"key", key, "process", process.Name, "error", err)
					report.Failed = append(report.Failed, key)
					continue
				}
				report.Sections++
				report.Records += uploaded
			}
		}
	}

	logger.Info("process ingest run finished",
		"documents", report.Documents,
		"processes", report.Sections,
		"records", report.Records,
		"failed", len(report.Failed))
	return report, nil
}

func (p *Pipeline) uploadRecords(ctx context.Context, core records.Record, details []records.Record) (int, error) {
	uploaded := 0

	results, err := p.core.Upload(ctx, []search.Document{search.Document(core)})
	if err != nil {
		return 0, fmt.Errorf("core upload failed: %w", err)
	}
	succeeded, failed := countResults(results)
	p.metrics.recordUpload(p.core.Name(), succeeded, failed)
	uploaded += succeeded

	if len(details) > 0 {
		docs := make([]search.Document, 0, len(details))
		for _, detail := range details {
			docs = append(docs, search.Document(detail))
		}
		results, err = p.detail.Upload(ctx, docs)
		if err != nil {
			return uploaded, fmt.Errorf("detail upload failed: %w", err)
		}
		succeeded, failed = countResults(results)
		p.metrics.recordUpload(p.detail.Name(), succeeded, failed)
		uploaded += succeeded
	}
	return uploaded, nil
}

func (p *Pipeline) summarize(ctx context.Context, text string) string {
	if p.summarizer != nil {
		summary, err := p.summarizer.Summarize(ctx, text)
		if err == nil && summary != "" {
			return summary
		}
		p.logger.Warn("summary generation failed, using content prefix", "error", err)
	}
	const prefixLen = 1000
	if len(text) > prefixLen {
		return text[:prefixLen]
	}
	return text
}

func countResults(results []search.UploadResult) (succeeded, failed int) {
	for _, result := range results {
		if result.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}
