package generate

import (
	"context"
	"strings"

	"github.com/DreamCats/docqa/internal/config"
)

// ContextChunk is a retrieved chunk as presented to the model.
type ContextChunk struct {
	Text       string
	HeaderPath []string
}

// ContextSeparator is the visible rule between chunks in the prompt and in
// CLI output.
const ContextSeparator = "\n\n---\n\n"

// Generator assembles RAG prompts and produces answers through the LLM.
type Generator struct {
	llm      Completer
	system   string
	template string
}

// NewGenerator creates a generator using the configured prompt texts.
func NewGenerator(llm Completer, prompt config.PromptConfig) *Generator {
	system := prompt.System
	if system == "" {
		system = config.DefaultSystemPrompt
	}
	template := prompt.Template
	if template == "" {
		template = config.DefaultRAGTemplate
	}
	return &Generator{llm: llm, system: system, template: template}
}

// FormatChunk renders one chunk as "[H1 > H2]\n<text>". Chunks outside any
// heading render without the bracket line.
func FormatChunk(chunk ContextChunk) string {
	if len(chunk.HeaderPath) == 0 {
		return chunk.Text
	}
	return "[" + strings.Join(chunk.HeaderPath, " > ") + "]\n" + chunk.Text
}

// FormatContext joins the formatted chunks in rank order.
func FormatContext(chunks []ContextChunk) string {
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = FormatChunk(chunk)
	}
	return strings.Join(parts, ContextSeparator)
}

// BuildPrompt fills the RAG template with system text, formatted context and
// the question.
func (g *Generator) BuildPrompt(question string, chunks []ContextChunk) string {
	replacer := strings.NewReplacer(
		"{system_prompt}", g.system,
		"{context}", FormatContext(chunks),
		"{query}", question,
	)
	return replacer.Replace(g.template)
}

// Answer invokes the model with the assembled prompt and returns its output
// verbatim. Zero chunks yield an empty context block, not an error.
func (g *Generator) Answer(ctx context.Context, question string, chunks []ContextChunk) (string, error) {
	return g.llm.Complete(ctx, g.BuildPrompt(question, chunks))
}
