// Package main implements the indexpipe CLI. It ingests documents from
// object storage into the two-tier search index, answers queries with
// context-window expansion, and runs index maintenance tasks.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hellasdata/indexpipe/pkg/config"
	"github.com/hellasdata/indexpipe/pkg/docparse"
	"github.com/hellasdata/indexpipe/pkg/pipeline"
	"github.com/hellasdata/indexpipe/pkg/records"
	"github.com/hellasdata/indexpipe/pkg/search"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(),
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	ctx := context.Background()
	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "index":
		runIndex(ctx, cfg, logger, args)
	case "index-processes":
		runIndexProcesses(ctx, cfg, logger, args)
	case "search":
		runSearch(ctx, cfg, logger, args)
	case "check-missing":
		runCheckMissing(ctx, cfg, logger, args)
	case "copy-index":
		runCopyIndex(ctx, cfg, logger, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", command)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Usage: indexpipe <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  index            ingest all documents from the configured bucket")
	fmt.Println("  index-processes  extract procedures from the bucket's documents and index them")
	fmt.Println("  search           query the detail index with context expansion")
	fmt.Println("  check-missing    list documents present in the bucket but absent from the index")
	fmt.Println("  copy-index       replicate one index's structure and data into another")
	fmt.Println()
	fmt.Println("Configuration is read from the environment; see pkg/config.")
}

func logLevel() slog.Level {
	if strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func runIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) {
	flags := flag.NewFlagSet("index", flag.ExitOnError)
	withSummaries := flags.Bool("summaries", true, "Generate section descriptions with the completion model")
	withTitles := flags.Bool("infer-titles", false, "Name untitled sections with the completion model")
	flags.Parse(args)

	if err := cfg.ValidateForIngest(); err != nil {
		log.Fatalf("%v", err)
	}

	deps := buildDependencies(ctx, cfg, logger)

	sectionFields := records.SectionFields()
	if err := deps.coreIndex.EnsureSchema(ctx,
		pipeline.CoreSchema(cfg.CoreIndex, sectionFields, cfg.Dimensions, pipeline.SectionExtraFields()...)); err != nil {
		log.Fatalf("failed to prepare core index: %v", err)
	}
	if err := deps.detailIndex.EnsureSchema(ctx,
		pipeline.DetailSchema(cfg.DetailIndex, sectionFields, cfg.Dimensions)); err != nil {
		log.Fatalf("failed to prepare detail index: %v", err)
	}

	opts := pipeline.Options{
		Store:       deps.store(ctx, cfg, logger),
		CoreIndex:   deps.coreIndex,
		DetailIndex: deps.detailIndex,
		Chunker:     deps.chunker,
		Builder:     records.NewBuilder(sectionFields, deps.gateway, logger),
		Metrics:     pipeline.NewMetrics(nil),
		Logger:      logger,
	}
	if *withSummaries {
		opts.Summarizer = docparse.NewSummarizer(&docparse.SummarizerConfig{
			Model:              cfg.OpenAIModel,
			ChunkTokens:        4000,
			ChunkSummaryTokens: 200,
			SummaryTokens:      1000,
		}, deps.gateway, deps.counter, logger)
	}
	if *withTitles {
		opts.TitleInferrer = docparse.NewLLMTitleInferrer(deps.gateway, cfg.OpenAIModel)
	}

	p, err := pipeline.New(opts)
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	started := time.Now()
	report, err := p.Run(ctx)
	if err != nil {
		log.Fatalf("ingest run failed: %v", err)
	}

	fmt.Printf("Run %s finished in %s\n", report.RunID, time.Since(started).Round(time.Second))
	fmt.Printf("  documents : %d\n", report.Documents)
	fmt.Printf("  sections  : %d\n", report.Sections)
	fmt.Printf("  records   : %d\n", report.Records)
	if len(report.Failed) > 0 {
		fmt.Printf("  failed    : %s\n", strings.Join(report.Failed, ", "))
		os.Exit(1)
	}
}

func runIndexProcesses(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) {
	flags := flag.NewFlagSet("index-processes", flag.ExitOnError)
	subDomain := flags.String("sub-domain", "", "Sub-domain tag applied when the model does not supply one")
	flags.Parse(args)

	if err := cfg.ValidateForIngest(); err != nil {
		log.Fatalf("%v", err)
	}

	deps := buildDependencies(ctx, cfg, logger)
	processCore, processDetail := deps.processIndexes(cfg, logger)

	processFields := records.ProcessFields()
	if err := processCore.EnsureSchema(ctx,
		pipeline.CoreSchema(cfg.ProcessCoreIndex, processFields, cfg.Dimensions, pipeline.ProcessExtraFields()...)); err != nil {
		log.Fatalf("failed to prepare process core index: %v", err)
	}
	if err := processDetail.EnsureSchema(ctx,
		pipeline.DetailSchema(cfg.ProcessDetailIndex, processFields, cfg.Dimensions)); err != nil {
		log.Fatalf("failed to prepare process detail index: %v", err)
	}

	p, err := pipeline.New(pipeline.Options{
		Store:       deps.store(ctx, cfg, logger),
		CoreIndex:   processCore,
		DetailIndex: processDetail,
		Chunker:     deps.chunker,
		Builder:     records.NewBuilder(processFields, deps.gateway, logger),
		Metrics:     pipeline.NewMetrics(nil),
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	extract := func(ctx context.Context, docText, docName, domain string) ([]*records.Process, error) {
		return docparse.ExtractProcesses(ctx, deps.gateway, cfg.OpenAIModel,
			docText, docName, domain, *subDomain)
	}

	started := time.Now()
	report, err := p.RunProcesses(ctx, extract)
	if err != nil {
		log.Fatalf("process ingest run failed: %v", err)
	}

	fmt.Printf("Run %s finished in %s\n", report.RunID, time.Since(started).Round(time.Second))
	fmt.Printf("  documents : %d\n", report.Documents)
	fmt.Printf("  processes : %d\n", report.Sections)
	fmt.Printf("  records   : %d\n", report.Records)
	if len(report.Failed) > 0 {
		fmt.Printf("  failed    : %s\n", strings.Join(report.Failed, ", "))
		os.Exit(1)
	}
}

func runSearch(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	top := flags.Int("top", 5, "Number of hits before expansion")
	window := flags.Int("window", 0, "Neighbouring chunks per hit (0 uses the configured default)")
	domain := flags.String("domain", "", "Restrict results to one domain")
	flags.Parse(args)

	if flags.NArg() == 0 {
		fmt.Println("Usage: indexpipe search [flags] <query text>")
		flags.PrintDefaults()
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	deps := buildDependencies(ctx, cfg, logger)
	retriever := search.NewRetriever(cfg.Retriever, deps.detailIndex, logger)
	searcher := pipeline.NewSearcher(retriever, deps.gateway, nil, logger)

	results, err := searcher.Search(ctx, strings.Join(flags.Args(), " "), *top, *window, *domain)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if len(results) == 0 {
		fmt.Println("No results.")
		return
	}
	for i, doc := range results {
		seq, _ := doc[cfg.Retriever.SequenceField].(int)
		fmt.Printf("[%d] %s (chunk %d)\n", i+1, doc[cfg.Retriever.KeyField], seq)
		if text, ok := doc["chunk_content"].(string); ok {
			fmt.Println(indent(text))
		}
		fmt.Println()
	}
}

func runCheckMissing(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) {
	flags := flag.NewFlagSet("check-missing", flag.ExitOnError)
	pageSize := flags.Int("page-size", 500, "Index scan page size")
	flags.Parse(args)

	if err := cfg.ValidateForIngest(); err != nil {
		log.Fatalf("%v", err)
	}

	deps := buildDependencies(ctx, cfg, logger)
	p, err := pipeline.New(pipeline.Options{
		Store:       deps.store(ctx, cfg, logger),
		CoreIndex:   deps.coreIndex,
		DetailIndex: deps.detailIndex,
		Chunker:     deps.chunker,
		Builder:     records.NewBuilder(records.SectionFields(), nil, logger),
		Logger:      logger,
	})
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	report, err := p.CheckGaps(ctx, records.SectionFields().DocName, *pageSize)
	if err != nil {
		log.Fatalf("gap check failed: %v", err)
	}

	fmt.Printf("%d documents indexed.\n", len(report.Indexed))
	if len(report.OrphanedInIndex) > 0 {
		fmt.Printf("%d indexed documents are gone from the container:\n", len(report.OrphanedInIndex))
		for _, name := range report.OrphanedInIndex {
			fmt.Printf("  %s\n", name)
		}
	}
	if len(report.MissingFromIndex) == 0 {
		fmt.Println("All documents are indexed.")
		return
	}
	fmt.Printf("%d documents are not indexed:\n", len(report.MissingFromIndex))
	for _, key := range report.MissingFromIndex {
		fmt.Printf("  %s\n", key)
	}
	os.Exit(1)
}

func runCopyIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) {
	flags := flag.NewFlagSet("copy-index", flag.ExitOnError)
	source := flags.String("source", "", "Source index name")
	target := flags.String("target", "", "Target index name")
	structureOnly := flags.Bool("structure-only", false, "Replicate the schema without copying documents")
	flags.Parse(args)

	if *source == "" || *target == "" {
		fmt.Println("Usage: indexpipe copy-index -source <name> -target <name> [-structure-only]")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	client, err := search.NewWeaviateClient(cfg.Weaviate)
	if err != nil {
		log.Fatalf("failed to connect to weaviate: %v", err)
	}
	sourceIndex := search.NewWeaviateIndex(client, search.Schema{Name: *source}, logger)
	sourceSchema, err := sourceIndex.Schema(ctx)
	if err != nil {
		log.Fatalf("failed to read source index: %v", err)
	}
	sourceIndex = search.NewWeaviateIndex(client, *sourceSchema, logger)

	targetSchema := *sourceSchema
	targetSchema.Name = *target
	targetIndex := search.NewWeaviateIndex(client, targetSchema, logger)

	if err := search.CopyStructure(ctx, sourceIndex, targetIndex); err != nil {
		log.Fatalf("structure copy failed: %v", err)
	}
	fmt.Printf("Structure of %s replicated to %s\n", *source, *target)
	if *structureOnly {
		return
	}

	processor := search.NewBatchProcessor(cfg.Batch, logger)
	report, err := search.CopyData(ctx, processor, sourceIndex, targetIndex)
	if err != nil {
		log.Fatalf("data copy failed: %v", err)
	}
	fmt.Printf("Copied %d documents in %d batches (%d failed)\n",
		report.Succeeded, report.Batches, report.Failed)
}

func indent(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := range lines {
		lines[i] = "    " + lines[i]
	}
	return strings.Join(lines, "\n")
}
