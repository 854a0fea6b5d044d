package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/DreamCats/docqa/cmd/docqa/internal"
	"github.com/DreamCats/docqa/internal/config"
	"github.com/DreamCats/docqa/internal/evaluate"
	"github.com/DreamCats/docqa/internal/pipeline"
)

// handleQuery implements the query subcommand
func handleQuery(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	var topK int
	var question, document string
	var noEval, noProgress bool

	fs.IntVar(&topK, "k", cfg.RetrievalTopK(), "Number of chunks to retrieve")
	fs.StringVar(&question, "q", "", "Question to ask (omit for interactive mode)")
	fs.StringVar(&document, "d", "", "Document to ingest before querying")
	fs.BoolVar(&noEval, "no-eval", false, "Skip answer quality evaluation")
	fs.BoolVar(&noProgress, "no-progress", false, "Disable the waiting spinner")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    docqa query [options] ["<question>"]

DESCRIPTION:
    Answer a question from the indexed documents. Without a question
    an interactive loop starts; type "exit" or "quit" to leave.
    With -d the document is ingested first.

OPTIONS:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
EXAMPLES:
    # One-off question
    docqa query "What is the start marker of the frame header?"

    # Ingest first, then ask
    docqa query -d docs/protocol.md -q "What is the start marker?"

    # Retrieve more context
    docqa query -k 10 "How is the checksum computed?"

    # Skip evaluation for a faster answer
    docqa query -no-eval "Which baud rates are supported?"

    # Interactive loop
    docqa query
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	cfg.Retrieval.TopK = &topK
	if noEval {
		disabled := false
		cfg.Evaluation.Enabled = &disabled
	}

	p, db, err := newPipeline(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize pipeline: %v", err)
	}
	defer db.Close()

	spinnerEnabled := pipeline.DefaultProgressEnabled() && !noProgress
	ctx := context.Background()

	if document != "" {
		docPath, err := internal.ResolveDocumentPath(document)
		if err != nil {
			log.Fatalf("Failed to resolve document: %v", err)
		}
		p.SetProgress(pipeline.NewIngestProgress(spinnerEnabled))
		result, err := p.Ingest(ctx, docPath)
		if err != nil {
			log.Fatalf("Ingestion failed: %v", err)
		}
		fmt.Printf("Ingested %s (%d chunks)\n", result.Path, result.Chunks)
	}

	if question == "" && fs.NArg() >= 1 {
		question = fs.Arg(0)
	}
	if question != "" {
		runQuery(ctx, p, question, spinnerEnabled)
		return
	}

	// Interactive loop
	fmt.Println("docqa interactive mode. Type your question, or \"exit\" to leave.")
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			return
		}
		runQuery(ctx, p, question, spinnerEnabled)
	}
}

func runQuery(ctx context.Context, p *pipeline.Pipeline, question string, spinner bool) {
	stop := pipeline.StartSpinner(spinner, "thinking")
	result, err := p.Query(ctx, question)
	stop()
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	printResult(os.Stdout, result)
}

func printResult(w io.Writer, result *pipeline.QueryResult) {
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Query: %s\n", result.Question)
	fmt.Fprintln(w, rule)

	fmt.Fprintf(w, "\n--- Retrieved Context (%d chunks) ---\n", len(result.Chunks))
	if len(result.Chunks) == 0 {
		fmt.Fprintln(w, "(no chunks in the index)")
	}
	for i, chunk := range result.Chunks {
		if i > 0 {
			fmt.Fprintln(w, "\n---")
		}
		fmt.Fprintf(w, "\n[%d] score %.4f", chunk.Rank, chunk.Score)
		if len(chunk.HeaderPath) > 0 {
			fmt.Fprintf(w, "  [%s]", strings.Join(chunk.HeaderPath, " > "))
		}
		fmt.Fprintf(w, "\n%s\n", chunk.Text)
	}

	fmt.Fprintf(w, "\n--- Answer ---\n%s\n", result.Answer)

	fmt.Fprintf(w, "\n--- Retrieval Info ---\n")
	fmt.Fprintf(w, "chunks: %d", result.Stats.Count)
	if result.Stats.Count > 0 {
		fmt.Fprintf(w, "  min: %.4f  max: %.4f  avg: %.4f", result.Stats.Min, result.Stats.Max, result.Stats.Avg)
	}
	fmt.Fprintln(w)

	if result.Evaluation != nil {
		fmt.Fprintf(w, "\n--- Evaluation ---\n")
		printMetric(w, result.Evaluation, evaluate.MetricFaithfulness)
		printMetric(w, result.Evaluation, evaluate.MetricAnswerRelevancy)
		printMetric(w, result.Evaluation, evaluate.MetricContextPrecision)
		for _, warning := range result.Evaluation.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warning)
		}
		fmt.Fprintf(w, "evaluation time: %.2fs\n", result.Evaluation.Elapsed.Seconds())
	}

	fmt.Fprintf(w, "\nProcessing time: %.2fs\n", result.Elapsed.Seconds())
}

func printMetric(w io.Writer, eval *evaluate.Result, name string) {
	if score, ok := eval.Scores[name]; ok {
		fmt.Fprintf(w, "%-20s %.4f\n", name+":", score)
	}
}
