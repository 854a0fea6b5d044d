package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Chunking   ChunkingConfig   `yaml:"chunking,omitempty"`
	Store      StoreConfig      `yaml:"store,omitempty"`
	Retrieval  RetrievalConfig  `yaml:"retrieval,omitempty"`
	Evaluation EvaluationConfig `yaml:"evaluation,omitempty"`
	Prompt     PromptConfig     `yaml:"prompt,omitempty"`
}

// LLMConfig holds the answer/judge model configuration
type LLMConfig struct {
	Model    string `yaml:"model"`    // Ollama model name
	Endpoint string `yaml:"endpoint"` // Ollama base URL
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // "ollama" | "openai"

	// Ollama specific
	Model    string `yaml:"model"`
	Endpoint string `yaml:"endpoint"`

	// OpenAI specific
	OpenAIAPIKey   string `yaml:"openai_api_key,omitempty"`
	OpenAIModel    string `yaml:"openai_model,omitempty"`
	OpenAIEndpoint string `yaml:"openai_endpoint,omitempty"`

	BatchSize int `yaml:"batch_size"`
}

// ChunkingConfig controls how documents are split into chunks.
// Overlap is a pointer so a configured 0 is distinguishable from unset.
type ChunkingConfig struct {
	Size    int  `yaml:"size"`              // Maximum chunk size in characters
	Overlap *int `yaml:"overlap,omitempty"` // Overlap between consecutive chunks in a section
}

// StoreConfig holds vector collection storage configuration
type StoreConfig struct {
	// Path to the SQLite database file
	// If empty, uses ~/.docqa/data/docqa.db
	Path       string `yaml:"path,omitempty"`
	Collection string `yaml:"collection,omitempty"`
}

// RetrievalConfig holds retrieval configuration.
// TopK is a pointer so a configured 0 is distinguishable from unset.
type RetrievalConfig struct {
	TopK *int `yaml:"top_k,omitempty"` // Number of chunks retrieved per query
}

// EvaluationConfig toggles answer quality evaluation
type EvaluationConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

// PromptConfig holds the prompt texts used for generation
type PromptConfig struct {
	System   string `yaml:"system,omitempty"`
	Template string `yaml:"template,omitempty"`
}

// DefaultSystemPrompt instructs the model to stay within the provided context.
const DefaultSystemPrompt = `You are a technical document assistant. Your task is to provide accurate and helpful information from
technical documents, especially communication protocol specifications.

Always stay faithful to the provided context. If the information to answer the query is not present
in the context, clearly state that you don't have that information.`

// DefaultRAGTemplate is the prompt skeleton filled with system text, context and question.
// Placeholders: {system_prompt}, {context}, {query}.
const DefaultRAGTemplate = `System: {system_prompt}

Context information is below.
-----------------------------
{context}
-----------------------------

Given the context information and not prior knowledge, answer the following query.
Query: {query}

Answer:`

// Load loads configuration from the default config file
// Default location: ~/.docqa/config/docqa.yaml
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, ".docqa", "config", "docqa.yaml")
	return LoadFromFile(configPath)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			homeDir, _ := os.UserHomeDir()
			defaultPath := filepath.Join(homeDir, ".docqa", "config", "docqa.yaml")
			return nil, &ConfigNotFoundError{
				RequestedPath: path,
				DefaultPath:   defaultPath,
			}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every field set to its default value.
func Default() *Config {
	cfg := &Config{}
	_ = cfg.applyDefaults()
	return cfg
}

// ConfigNotFoundError is returned when config file is not found
type ConfigNotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Create the config file at the default location\n"+
		"  2. Specify a custom path with -config flag\n"+
		"  3. Run 'docqa ingest' once to create a default config file",
		e.RequestedPath, e.DefaultPath)
}

// IsConfigNotFound checks if error is config not found
func IsConfigNotFound(err error) bool {
	_, ok := err.(*ConfigNotFoundError)
	return ok
}

// expandPath expands ~ and $HOME to the user's home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() error {
	if c.LLM.Model == "" {
		c.LLM.Model = "mistral"
	}
	if c.LLM.Endpoint == "" {
		c.LLM.Endpoint = "http://localhost:11434"
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "ollama"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.Endpoint == "" {
		c.Embedding.Endpoint = c.LLM.Endpoint
	}
	if c.Embedding.OpenAIModel == "" {
		c.Embedding.OpenAIModel = "text-embedding-3-small"
	}
	if c.Embedding.OpenAIAPIKey == "" {
		c.Embedding.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 10
	}

	if c.Chunking.Size == 0 {
		c.Chunking.Size = 1000
	}
	if c.Chunking.Overlap == nil {
		overlap := 200
		c.Chunking.Overlap = &overlap
	}

	if c.Store.Path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.Store.Path = filepath.Join(homeDir, ".docqa", "data", "docqa.db")
	} else {
		c.Store.Path = expandPath(c.Store.Path)
	}
	if c.Store.Collection == "" {
		c.Store.Collection = "document_chunks"
	}

	if c.Retrieval.TopK == nil {
		topK := 5
		c.Retrieval.TopK = &topK
	}

	if c.Evaluation.Enabled == nil {
		enabled := true
		c.Evaluation.Enabled = &enabled
	}

	if c.Prompt.System == "" {
		c.Prompt.System = DefaultSystemPrompt
	}
	if c.Prompt.Template == "" {
		c.Prompt.Template = DefaultRAGTemplate
	}

	return nil
}

// EvaluationEnabled reports whether answer evaluation should run.
func (c *Config) EvaluationEnabled() bool {
	return c.Evaluation.Enabled != nil && *c.Evaluation.Enabled
}

// ChunkOverlap returns the effective chunk overlap in characters.
func (c *Config) ChunkOverlap() int {
	if c.Chunking.Overlap == nil {
		return 200
	}
	return *c.Chunking.Overlap
}

// RetrievalTopK returns the effective number of chunks retrieved per query.
func (c *Config) RetrievalTopK() int {
	if c.Retrieval.TopK == nil {
		return 5
	}
	return *c.Retrieval.TopK
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama":
		if c.Embedding.Model == "" {
			return fmt.Errorf("ollama provider requires model")
		}
	case "openai":
		if c.Embedding.OpenAIAPIKey == "" {
			return fmt.Errorf("openai provider requires openai_api_key (or OPENAI_API_KEY in the environment)")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}

	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got: %d", c.Chunking.Size)
	}
	if c.ChunkOverlap() < 0 {
		return fmt.Errorf("chunking.overlap must not be negative, got: %d", c.ChunkOverlap())
	}
	if c.ChunkOverlap() >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap (%d) must be smaller than chunking.size (%d)", c.ChunkOverlap(), c.Chunking.Size)
	}

	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 100 {
		return fmt.Errorf("batch_size must be between 1 and 100, got: %d", c.Embedding.BatchSize)
	}

	if c.RetrievalTopK() < 0 {
		return fmt.Errorf("retrieval.top_k must not be negative, got: %d", c.RetrievalTopK())
	}

	return nil
}

// Summary returns the effective configuration as ordered key/value pairs
// for the `docqa config` subcommand.
func (c *Config) Summary() [][2]string {
	return [][2]string{
		{"llm_model", c.LLM.Model},
		{"llm_endpoint", c.LLM.Endpoint},
		{"embedding_provider", c.Embedding.Provider},
		{"embedding_model", c.embeddingModel()},
		{"chunk_size", fmt.Sprintf("%d", c.Chunking.Size)},
		{"chunk_overlap", fmt.Sprintf("%d", c.ChunkOverlap())},
		{"store_path", c.Store.Path},
		{"collection", c.Store.Collection},
		{"top_k", fmt.Sprintf("%d", c.RetrievalTopK())},
		{"evaluation_enabled", fmt.Sprintf("%t", c.EvaluationEnabled())},
	}
}

func (c *Config) embeddingModel() string {
	if c.Embedding.Provider == "openai" {
		return c.Embedding.OpenAIModel
	}
	return c.Embedding.Model
}

// SaveToFile saves the configuration to a specific file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

const defaultConfigTemplate = `# docqa Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.docqa/config/docqa.yaml

llm:
  # Ollama model used for answer generation and evaluation judge calls
  model: mistral
  endpoint: http://localhost:11434

embedding:
  # Provider: "ollama" or "openai"
  provider: ollama
  model: nomic-embed-text
  endpoint: http://localhost:11434
  batch_size: 10

  # OpenAI configuration (alternative)
  # provider: openai
  # openai_api_key: your-openai-api-key
  # openai_model: text-embedding-3-small

chunking:
  size: 1000
  overlap: 200

store:
  # SQLite database holding the vector collection
  path: $HOME/.docqa/data/docqa.db
  collection: document_chunks

retrieval:
  top_k: 5

evaluation:
  enabled: true
`

// WriteDefaultTemplate creates a default configuration file if it does not exist.
// It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
