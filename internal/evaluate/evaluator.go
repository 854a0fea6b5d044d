package evaluate

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/DreamCats/docqa/internal/embedding"
	"github.com/DreamCats/docqa/internal/generate"
)

// Metric names as they appear in Result.Scores and in CLI output.
const (
	MetricFaithfulness     = "faithfulness"
	MetricAnswerRelevancy  = "answer_relevancy"
	MetricContextPrecision = "context_precision"
)

// Result holds the computed metric scores. A metric that failed or was
// undefined for this input is simply absent from Scores, with a diagnostic
// in Warnings.
type Result struct {
	Scores   map[string]float64
	Elapsed  time.Duration
	Warnings []string
}

// Embedder is the slice of the embedding service the evaluator needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Evaluator scores question/answer/context triples with reference-free
// metrics, using the language model as a judge.
type Evaluator struct {
	llm   generate.Completer
	embed Embedder
}

// NewEvaluator creates an evaluator sharing the pipeline's LLM and embedder.
func NewEvaluator(llm generate.Completer, embed Embedder) *Evaluator {
	return &Evaluator{llm: llm, embed: embed}
}

// Evaluate computes faithfulness, answer relevancy and context precision.
// Metrics are independent: one failing judge call omits that metric only.
// Evaluate never returns an error.
func (e *Evaluator) Evaluate(ctx context.Context, question, answer string, contexts []string) *Result {
	start := time.Now()
	result := &Result{Scores: make(map[string]float64)}

	type metricFn struct {
		name string
		fn   func() (float64, bool, error)
	}

	metrics := []metricFn{
		{MetricFaithfulness, func() (float64, bool, error) { return e.faithfulness(ctx, answer, contexts) }},
		{MetricAnswerRelevancy, func() (float64, bool, error) { return e.answerRelevancy(ctx, question, answer) }},
		{MetricContextPrecision, func() (float64, bool, error) { return e.contextPrecision(ctx, question, contexts) }},
	}

	for _, m := range metrics {
		score, defined, err := m.fn()
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s failed: %v", m.name, err))
			continue
		}
		if !defined {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s undefined for this input; omitted", m.name))
			continue
		}
		result.Scores[m.name] = clamp01(score)
	}

	result.Elapsed = time.Since(start)
	return result
}

// faithfulness decomposes the answer into atomic claims, verifies each
// against the context, and scores supported/total. An answer with no
// extractable claims is undefined rather than 0/0.
func (e *Evaluator) faithfulness(ctx context.Context, answer string, contexts []string) (float64, bool, error) {
	claimsOut, err := e.llm.Complete(ctx, claimsPrompt(answer))
	if err != nil {
		return 0, false, err
	}
	claims := parseItems(claimsOut)
	if len(claims) == 0 {
		return 0, false, nil
	}

	verdictOut, err := e.llm.Complete(ctx, verifyPrompt(claims, contexts))
	if err != nil {
		return 0, false, err
	}
	verdicts, err := parseVerdicts(verdictOut, len(claims))
	if err != nil {
		return 0, false, err
	}

	supported := 0
	for _, ok := range verdicts {
		if ok {
			supported++
		}
	}
	return float64(supported) / float64(len(claims)), true, nil
}

// answerRelevancy asks the judge which questions the answer would answer,
// then measures how semantically close those are to the original question.
func (e *Evaluator) answerRelevancy(ctx context.Context, question, answer string) (float64, bool, error) {
	out, err := e.llm.Complete(ctx, questionsPrompt(answer))
	if err != nil {
		return 0, false, err
	}
	generated := parseItems(out)
	if len(generated) == 0 {
		return 0, false, fmt.Errorf("judge produced no candidate questions")
	}

	original, err := e.embed.Embed(ctx, question)
	if err != nil {
		return 0, false, err
	}

	var total float64
	for _, q := range generated {
		vec, err := e.embed.Embed(ctx, q)
		if err != nil {
			return 0, false, err
		}
		total += float64(embedding.Similarity(original, vec))
	}
	return total / float64(len(generated)), true, nil
}

// contextPrecision judges each retrieved chunk for relevance and scores the
// ranking with mean precision at relevant ranks divided by the number of
// relevant chunks, so useful chunks ranked first score higher.
func (e *Evaluator) contextPrecision(ctx context.Context, question string, contexts []string) (float64, bool, error) {
	if len(contexts) == 0 {
		return 0, false, nil
	}

	out, err := e.llm.Complete(ctx, relevancePrompt(question, contexts))
	if err != nil {
		return 0, false, err
	}
	verdicts, err := parseVerdicts(out, len(contexts))
	if err != nil {
		return 0, false, err
	}

	relevant := 0
	var sum float64
	for k, ok := range verdicts {
		if !ok {
			continue
		}
		relevant++
		// precision@k with 1-based rank k+1
		sum += float64(relevant) / float64(k+1)
	}
	if relevant == 0 {
		return 0, true, nil
	}
	return sum / float64(relevant), true, nil
}

func claimsPrompt(answer string) string {
	return fmt.Sprintf(`Break the following answer into its individual factual claims.
Write exactly one claim per line, with no numbering and no commentary.
If the answer contains no factual claims, write only the word NONE.

Answer:
%s

Claims:`, answer)
}

func verifyPrompt(claims, contexts []string) string {
	var b strings.Builder
	b.WriteString("Judge each claim strictly against the context below.\n")
	b.WriteString("A claim passes only if it can be directly inferred from the context.\n\n")
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(contexts, "\n\n"))
	b.WriteString("\n\nClaims:\n")
	for i, claim := range claims {
		fmt.Fprintf(&b, "%d. %s\n", i+1, claim)
	}
	fmt.Fprintf(&b, "\nFor each of the %d claims reply with exactly one line in the form \"<number>. yes\" or \"<number>. no\", nothing else.\n\nVerdicts:", len(claims))
	return b.String()
}

func questionsPrompt(answer string) string {
	return fmt.Sprintf(`Generate 3 different questions that the following answer would directly and fully answer.
Write exactly one question per line, with no numbering and no commentary.

Answer:
%s

Questions:`, answer)
}

func relevancePrompt(question string, contexts []string) string {
	var b strings.Builder
	b.WriteString("Judge whether each context passage below is useful for answering the question.\n\n")
	fmt.Fprintf(&b, "Question: %s\n\nPassages:\n", question)
	for i, c := range contexts {
		fmt.Fprintf(&b, "%d. %s\n\n", i+1, c)
	}
	fmt.Fprintf(&b, "For each of the %d passages reply with exactly one line in the form \"<number>. yes\" or \"<number>. no\", nothing else.\n\nVerdicts:", len(contexts))
	return b.String()
}

var itemPrefixRe = regexp.MustCompile(`^\s*(?:[-*]|\d+[.)])?\s*`)

// parseItems splits judge output into non-empty lines, stripping bullet or
// number prefixes. The NONE sentinel yields an empty list.
func parseItems(out string) []string {
	var items []string
	for _, line := range strings.Split(out, "\n") {
		item := itemPrefixRe.ReplaceAllString(line, "")
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if strings.EqualFold(item, "none") {
			continue
		}
		items = append(items, item)
	}
	return items
}

var verdictRe = regexp.MustCompile(`(?i)^\s*(?:\d+\s*[.):]?\s*)?(yes|no)\b`)

// parseVerdicts extracts exactly n yes/no verdicts from judge output.
// Anything else is a metric failure; free-text judge output is not trusted.
func parseVerdicts(out string, n int) ([]bool, error) {
	var verdicts []bool
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		m := verdictRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("unparseable judge verdict line: %q", strings.TrimSpace(line))
		}
		verdicts = append(verdicts, strings.EqualFold(m[1], "yes"))
	}
	if len(verdicts) != n {
		return nil, fmt.Errorf("expected %d verdicts, got %d", n, len(verdicts))
	}
	return verdicts, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
