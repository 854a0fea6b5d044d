package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/DreamCats/docqa/internal/config"
)

// ErrGenerationUnavailable indicates the language model endpoint cannot be reached.
var ErrGenerationUnavailable = errors.New("language model endpoint unavailable")

// Completer is the narrow interface to the language model. Both answer
// generation and evaluation judge calls go through it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// OllamaLLM is a synchronous client for the Ollama generate API.
type OllamaLLM struct {
	endpoint string
	model    string
	client   *http.Client
}

// OllamaGenerateRequest is the request format for the Ollama generate API
type OllamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

// OllamaGenerateResponse is the response from the Ollama generate API
type OllamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// NewOllamaLLM creates a client for the configured Ollama endpoint.
func NewOllamaLLM(cfg *config.LLMConfig) *OllamaLLM {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "mistral"
	}
	return &OllamaLLM{
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

// Complete sends the prompt and returns the model output verbatim.
// No retries: an unreachable endpoint surfaces as ErrGenerationUnavailable.
func (l *OllamaLLM) Complete(ctx context.Context, prompt string) (string, error) {
	req := OllamaGenerateRequest{
		Model:  l.model,
		Prompt: prompt,
		Stream: false,
		// Low temperature for deterministic answers
		Options: map[string]any{"temperature": 0.0},
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST",
		l.endpoint+"/api/generate", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrGenerationUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: API returned status %d: %s", ErrGenerationUnavailable, resp.StatusCode, string(body))
	}

	var apiResp OllamaGenerateResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	return apiResp.Response, nil
}
