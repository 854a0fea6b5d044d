package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/DreamCats/docqa/cmd/docqa/internal"
	"github.com/DreamCats/docqa/internal/config"
	"github.com/DreamCats/docqa/internal/pipeline"
)

// handleIngest implements the ingest subcommand
func handleIngest(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)

	var noProgress bool
	fs.BoolVar(&noProgress, "no-progress", false, "Disable the embedding progress bar")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    docqa ingest [options] <document>

DESCRIPTION:
    Split a markdown document into header-aware chunks, embed them and
    store them in the vector collection. Re-ingesting the same document
    replaces its chunks.

    The document argument may be a path or a glob pattern matching
    exactly one file, e.g. "docs/**/protocol.md".

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # Index a protocol specification
    docqa ingest docs/protocol.md

    # Index via a glob pattern
    docqa ingest "specs/**/xyz-*.md"
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: document path is required\n\n")
		fs.Usage()
		os.Exit(1)
	}

	docPath, err := internal.ResolveDocumentPath(fs.Arg(0))
	if err != nil {
		log.Fatalf("Failed to resolve document: %v", err)
	}

	p, db, err := newPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer db.Close()

	enabled := pipeline.DefaultProgressEnabled() && !noProgress
	p.SetProgress(pipeline.NewIngestProgress(enabled))

	result, err := p.Ingest(context.Background(), docPath)
	if err != nil {
		log.Fatalf("Ingestion failed: %v", err)
	}

	fmt.Printf("Ingested %s\n", result.Path)
	fmt.Printf("  document id: %s\n", result.DocumentID)
	fmt.Printf("  chunks:      %d\n", result.Chunks)
	fmt.Printf("  collection:  %s\n", cfg.Store.Collection)
	fmt.Printf("  time:        %.2fs\n", result.Elapsed.Seconds())
}
