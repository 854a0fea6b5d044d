package evaluate

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
)

// scriptedLLM routes judge prompts to canned replies by prompt prefix.
type scriptedLLM struct {
	calls   int
	claims  string
	verify  string
	quests  string
	relev   string
	failOn  string
}

func (s *scriptedLLM) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	switch {
	case strings.HasPrefix(prompt, "Break the following answer"):
		if s.failOn == "claims" {
			return "", fmt.Errorf("judge unreachable")
		}
		return s.claims, nil
	case strings.HasPrefix(prompt, "Judge each claim"):
		if s.failOn == "verify" {
			return "", fmt.Errorf("judge unreachable")
		}
		return s.verify, nil
	case strings.HasPrefix(prompt, "Generate 3 different questions"):
		if s.failOn == "questions" {
			return "", fmt.Errorf("judge unreachable")
		}
		return s.quests, nil
	case strings.HasPrefix(prompt, "Judge whether each context"):
		if s.failOn == "relevance" {
			return "", fmt.Errorf("judge unreachable")
		}
		return s.relev, nil
	}
	return "", fmt.Errorf("unexpected prompt: %q", prompt)
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func newScriptedLLM() *scriptedLLM {
	return &scriptedLLM{
		claims: "The marker is 0xAA\nFrames carry a length byte",
		verify: "1. yes\n2. no",
		quests: "What is the marker?\nWhat starts a frame?\nWhich byte opens the header?",
		relev:  "1. yes\n2. no",
	}
}

func evalScores(t *testing.T, llm *scriptedLLM) *Result {
	t.Helper()
	e := NewEvaluator(llm, fakeEmbedder{})
	return e.Evaluate(context.Background(), "What is the marker?", "The marker is 0xAA.",
		[]string{"the start marker is 0xAA", "unrelated text"})
}

func TestEvaluateAllMetrics(t *testing.T) {
	result := evalScores(t, newScriptedLLM())

	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	tests := []struct {
		metric string
		want   float64
	}{
		{MetricFaithfulness, 0.5},     // 1 of 2 claims supported
		{MetricAnswerRelevancy, 1.0},  // identical embeddings
		{MetricContextPrecision, 1.0}, // single relevant chunk at rank 1
	}
	for _, tt := range tests {
		score, ok := result.Scores[tt.metric]
		if !ok {
			t.Errorf("%s missing from scores", tt.metric)
			continue
		}
		if math.Abs(score-tt.want) > 1e-6 {
			t.Errorf("%s = %f, want %f", tt.metric, score, tt.want)
		}
		if score < 0 || score > 1 {
			t.Errorf("%s = %f outside [0, 1]", tt.metric, score)
		}
	}
}

func TestEvaluateJudgeFailureIsPartial(t *testing.T) {
	llm := newScriptedLLM()
	llm.failOn = "verify"
	result := evalScores(t, llm)

	if _, ok := result.Scores[MetricFaithfulness]; ok {
		t.Error("faithfulness should be omitted when its judge call fails")
	}
	if _, ok := result.Scores[MetricAnswerRelevancy]; !ok {
		t.Error("answer_relevancy should survive a faithfulness failure")
	}
	if _, ok := result.Scores[MetricContextPrecision]; !ok {
		t.Error("context_precision should survive a faithfulness failure")
	}
	if len(result.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", result.Warnings)
	}
}

func TestEvaluateZeroClaimsOmitsFaithfulness(t *testing.T) {
	llm := newScriptedLLM()
	llm.claims = "NONE"
	result := evalScores(t, llm)

	if _, ok := result.Scores[MetricFaithfulness]; ok {
		t.Error("faithfulness should be undefined for an answer with no claims")
	}
	found := false
	for _, w := range result.Warnings {
		if strings.Contains(w, MetricFaithfulness) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a faithfulness warning, got %v", result.Warnings)
	}
}

func TestEvaluateUnparseableVerdicts(t *testing.T) {
	llm := newScriptedLLM()
	llm.verify = "Well, the first claim seems plausible to me."
	result := evalScores(t, llm)

	if _, ok := result.Scores[MetricFaithfulness]; ok {
		t.Error("faithfulness should fail on free-text judge output")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning for unparseable verdicts")
	}
}

func TestEvaluateEmptyContexts(t *testing.T) {
	e := NewEvaluator(newScriptedLLM(), fakeEmbedder{})
	result := e.Evaluate(context.Background(), "q", "The marker is 0xAA.", nil)

	if _, ok := result.Scores[MetricContextPrecision]; ok {
		t.Error("context_precision should be undefined without contexts")
	}
}

func TestContextPrecisionOrdering(t *testing.T) {
	tests := []struct {
		name     string
		verdicts string
		want     float64
	}{
		{"relevant first", "1. yes\n2. no\n3. no", 1.0},
		{"relevant last", "1. no\n2. no\n3. yes", 1.0 / 3.0},
		{"mixed", "1. no\n2. yes\n3. yes", (1.0/2.0 + 2.0/3.0) / 2.0},
		{"none relevant", "1. no\n2. no\n3. no", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := newScriptedLLM()
			llm.relev = tt.verdicts
			e := NewEvaluator(llm, fakeEmbedder{})

			score, defined, err := e.contextPrecision(context.Background(), "q", []string{"a", "b", "c"})
			if err != nil {
				t.Fatalf("contextPrecision failed: %v", err)
			}
			if !defined {
				t.Fatal("expected a defined score")
			}
			if math.Abs(score-tt.want) > 1e-9 {
				t.Errorf("score = %f, want %f", score, tt.want)
			}
		})
	}
}

func TestParseItems(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain lines", "first claim\nsecond claim", []string{"first claim", "second claim"}},
		{"numbered", "1. first\n2) second", []string{"first", "second"}},
		{"bulleted", "- first\n* second", []string{"first", "second"}},
		{"blank lines skipped", "first\n\n\nsecond\n", []string{"first", "second"}},
		{"none sentinel", "NONE", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseItems(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("parseItems = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("item %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseVerdicts(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		n       int
		want    []bool
		wantErr bool
	}{
		{"numbered", "1. yes\n2. no", 2, []bool{true, false}, false},
		{"bare", "yes\nno\nyes", 3, []bool{true, false, true}, false},
		{"case insensitive", "1. YES\n2. No", 2, []bool{true, false}, false},
		{"count mismatch", "1. yes", 2, nil, true},
		{"free text", "the claim is probably fine", 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdicts(tt.in, tt.n)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseVerdicts failed: %v", err)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("verdict %d: got %t, want %t", i, got[i], tt.want[i])
				}
			}
		})
	}
}
