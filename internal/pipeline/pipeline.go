package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/DreamCats/docqa/internal/chunker"
	"github.com/DreamCats/docqa/internal/config"
	"github.com/DreamCats/docqa/internal/embedding"
	"github.com/DreamCats/docqa/internal/evaluate"
	"github.com/DreamCats/docqa/internal/generate"
	"github.com/DreamCats/docqa/internal/store"
	"github.com/DreamCats/docqa/internal/trace"
)

// RetrievedChunk is a search hit with its 1-based rank.
type RetrievedChunk struct {
	store.StoredChunk
	Score float32
	Rank  int
}

// RetrievalStats summarizes the similarity scores of one retrieval.
type RetrievalStats struct {
	Count int
	Min   float64
	Max   float64
	Avg   float64
}

// IngestResult reports what one ingestion wrote.
type IngestResult struct {
	DocumentID string
	Path       string
	Chunks     int
	Elapsed    time.Duration
}

// QueryResult is the full outcome of one question.
type QueryResult struct {
	Question   string
	Chunks     []RetrievedChunk
	Answer     string
	Stats      RetrievalStats
	Evaluation *evaluate.Result
	Elapsed    time.Duration
}

// Pipeline coordinates chunking, embedding, storage, retrieval, generation
// and evaluation behind the two top-level operations: Ingest and Query.
type Pipeline struct {
	cfg       *config.Config
	embedder  *embedding.Service
	vectors   *store.VectorStore
	llm       generate.Completer
	generator *generate.Generator
	evaluator *evaluate.Evaluator
	progress  ProgressReporter
}

// New wires a pipeline from its components. A non-nil trace sink mirrors
// every model call, including evaluation judge calls.
func New(cfg *config.Config, db *store.DB, embedder *embedding.Service, llm generate.Completer, sink trace.Sink) *Pipeline {
	if sink != nil {
		llm = &tracedCompleter{llm: llm, sink: sink}
	}
	return &Pipeline{
		cfg:       cfg,
		embedder:  embedder,
		vectors:   store.NewVectorStore(db),
		llm:       llm,
		generator: generate.NewGenerator(llm, cfg.Prompt),
		evaluator: evaluate.NewEvaluator(llm, embedder),
	}
}

// SetProgress installs a progress reporter for ingestion. Nil disables it.
func (p *Pipeline) SetProgress(reporter ProgressReporter) {
	p.progress = reporter
}

// DocumentID derives a stable document id from the absolute file path, so
// re-ingesting the same file replaces its chunks instead of duplicating them.
func DocumentID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	sum := sha1.Sum([]byte(filepath.Clean(abs)))
	return filepath.Base(abs) + "-" + hex.EncodeToString(sum[:6])
}

// Ingest reads a markdown file, splits it into chunks, embeds them and
// replaces the document's chunks in the collection. Nothing is written when
// chunking or embedding fails.
func (p *Pipeline) Ingest(ctx context.Context, path string) (*IngestResult, error) {
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}

	docID := DocumentID(path)
	splitter := chunker.NewSplitter(p.cfg.Chunking.Size, p.cfg.ChunkOverlap())
	chunks, err := splitter.Split(chunker.Document{
		ID:      docID,
		Path:    path,
		Content: string(data),
	})
	if err != nil {
		return nil, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	if p.progress != nil {
		p.progress.Start(len(texts))
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts, func(done int) {
		if p.progress != nil {
			p.progress.Add(done)
		}
	})
	if p.progress != nil {
		p.progress.Finish()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	stored := make([]store.StoredChunk, len(chunks))
	for i, c := range chunks {
		stored[i] = store.StoredChunk{
			DocumentID: c.DocumentID,
			Seq:        c.Seq,
			Text:       c.Text,
			HeaderPath: c.HeaderPath,
		}
	}

	count, err := p.vectors.ReplaceDocument(p.cfg.Store.Collection, docID, stored, vectors, store.CollectionMeta{
		Provider:  p.embedder.Provider(),
		Model:     p.embedder.Model(),
		Dimension: len(vectors[0]),
	})
	if err != nil {
		return nil, err
	}

	return &IngestResult{
		DocumentID: docID,
		Path:       path,
		Chunks:     count,
		Elapsed:    time.Since(start),
	}, nil
}

// Retrieve embeds the question and returns the topK nearest chunks with
// rank and score statistics. An empty index or topK of zero degrades to
// zero chunks rather than an error, so generation can still proceed.
func (p *Pipeline) Retrieve(ctx context.Context, question string, topK int) ([]RetrievedChunk, RetrievalStats, error) {
	if topK <= 0 {
		return nil, RetrievalStats{}, nil
	}

	if err := p.checkCollectionMeta(); err != nil {
		return nil, RetrievalStats{}, err
	}

	queryVec, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, RetrievalStats{}, fmt.Errorf("failed to embed question: %w", err)
	}

	hits, err := p.vectors.Search(p.cfg.Store.Collection, queryVec, topK)
	if err != nil {
		if errors.Is(err, store.ErrEmptyIndex) {
			return nil, RetrievalStats{}, nil
		}
		return nil, RetrievalStats{}, err
	}

	chunks := make([]RetrievedChunk, len(hits))
	for i, hit := range hits {
		chunks[i] = RetrievedChunk{
			StoredChunk: hit.Chunk,
			Score:       hit.Score,
			Rank:        i + 1,
		}
	}
	return chunks, computeStats(chunks), nil
}

// Query runs the full ask path: retrieve, generate, optionally evaluate.
// Evaluation problems never fail the query; they surface as warnings on the
// result.
func (p *Pipeline) Query(ctx context.Context, question string) (*QueryResult, error) {
	start := time.Now()

	chunks, stats, err := p.Retrieve(ctx, question, p.cfg.RetrievalTopK())
	if err != nil {
		return nil, err
	}

	contextChunks := make([]generate.ContextChunk, len(chunks))
	for i, c := range chunks {
		contextChunks[i] = generate.ContextChunk{Text: c.Text, HeaderPath: c.HeaderPath}
	}

	answer, err := p.generator.Answer(ctx, question, contextChunks)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Question: question,
		Chunks:   chunks,
		Answer:   answer,
		Stats:    stats,
	}

	if p.cfg.EvaluationEnabled() {
		contexts := make([]string, len(contextChunks))
		for i, c := range contextChunks {
			contexts[i] = generate.FormatChunk(c)
		}
		result.Evaluation = p.evaluator.Evaluate(ctx, question, answer, contexts)
		for _, warning := range result.Evaluation.Warnings {
			log.Printf("Warning: evaluation: %s", warning)
		}
	}

	result.Elapsed = time.Since(start)
	return result, nil
}

// checkCollectionMeta rejects querying a collection that was built with a
// different embedding provider or model. A missing collection is fine; the
// search path reports it as empty.
func (p *Pipeline) checkCollectionMeta() error {
	meta, err := p.vectors.Meta(p.cfg.Store.Collection)
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}
	if meta.Provider != p.embedder.Provider() || meta.Model != p.embedder.Model() {
		return fmt.Errorf("collection %q was ingested with %s/%s but is configured for %s/%s; "+
			"re-ingest the documents or restore the original embedding configuration",
			p.cfg.Store.Collection, meta.Provider, meta.Model, p.embedder.Provider(), p.embedder.Model())
	}
	return nil
}

func computeStats(chunks []RetrievedChunk) RetrievalStats {
	if len(chunks) == 0 {
		return RetrievalStats{}
	}
	stats := RetrievalStats{
		Count: len(chunks),
		Min:   float64(chunks[0].Score),
		Max:   float64(chunks[0].Score),
	}
	var sum float64
	for _, c := range chunks {
		score := float64(c.Score)
		if score < stats.Min {
			stats.Min = score
		}
		if score > stats.Max {
			stats.Max = score
		}
		sum += score
	}
	stats.Avg = sum / float64(len(chunks))
	return stats
}

// tracedCompleter mirrors every model call to the trace sink, failures
// included.
type tracedCompleter struct {
	llm  generate.Completer
	sink trace.Sink
}

func (t *tracedCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := t.llm.Complete(ctx, prompt)
	elapsed := time.Since(start)
	if err != nil {
		t.sink.Record("llm_complete", prompt, "error: "+err.Error(), elapsed)
		return "", err
	}
	t.sink.Record("llm_complete", prompt, out, elapsed)
	return out, nil
}
