package trace

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"
)

// Environment variables controlling the optional trace sink. Tracing is
// silently disabled when the API key is absent.
const (
	EnvAPIKey   = "DOCQA_TRACE_API_KEY"
	EnvEndpoint = "DOCQA_TRACE_ENDPOINT"
	EnvProject  = "DOCQA_TRACE_PROJECT"
)

const defaultProject = "docqa"

// Event is one mirrored model call.
type Event struct {
	Project    string  `json:"project"`
	Name       string  `json:"name"`
	Prompt     string  `json:"prompt"`
	Output     string  `json:"output"`
	DurationMS float64 `json:"duration_ms"`
	Timestamp  string  `json:"timestamp"`
}

// Sink receives mirrored model calls. Delivery is best-effort.
type Sink interface {
	Record(name, prompt, output string, duration time.Duration)
}

// HTTPSink posts events as JSON to a remote collector.
type HTTPSink struct {
	endpoint string
	apiKey   string
	project  string
	client   *http.Client
}

// FromEnv builds a sink from the environment, or nil when no API key is set.
// A nil sink disables tracing, which is never an error.
func FromEnv() Sink {
	apiKey := os.Getenv(EnvAPIKey)
	if apiKey == "" {
		return nil
	}
	endpoint := os.Getenv(EnvEndpoint)
	if endpoint == "" {
		return nil
	}
	project := os.Getenv(EnvProject)
	if project == "" {
		project = defaultProject
	}
	return &HTTPSink{
		endpoint: endpoint,
		apiKey:   apiKey,
		project:  project,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Record mirrors one model call. Delivery failures are logged as warnings
// and never affect the pipeline.
func (s *HTTPSink) Record(name, prompt, output string, duration time.Duration) {
	event := Event{
		Project:    s.project,
		Name:       name,
		Prompt:     prompt,
		Output:     output,
		DurationMS: float64(duration.Milliseconds()),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Warning: failed to encode trace event: %v", err)
		return
	}

	req, err := http.NewRequest("POST", s.endpoint, bytes.NewReader(data))
	if err != nil {
		log.Printf("Warning: failed to create trace request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		log.Printf("Warning: failed to deliver trace event: %v", err)
		return
	}
	resp.Body.Close()
}
