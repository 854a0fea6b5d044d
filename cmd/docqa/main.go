package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/DreamCats/docqa/cmd/docqa/internal"
	"github.com/DreamCats/docqa/internal/config"
	"github.com/DreamCats/docqa/internal/embedding"
	"github.com/DreamCats/docqa/internal/generate"
	"github.com/DreamCats/docqa/internal/pipeline"
	"github.com/DreamCats/docqa/internal/store"
	"github.com/DreamCats/docqa/internal/trace"
)

// main 启动 docqa 命令行工具，解析参数并执行对应子命令。
// 若参数无效或缺少子命令则打印用法并退出。
func main() {
	if len(os.Args) < 2 {
		internal.PrintUsage()
		os.Exit(1)
	}

	// Best-effort; secrets like OPENAI_API_KEY may live in a local .env
	_ = godotenv.Load()

	configPath := ""
	args := os.Args[1:]

	// Handle special flags that don't require subcommand
	for _, arg := range args {
		if arg == "-h" || arg == "-help" || arg == "--help" {
			internal.PrintUsage()
			os.Exit(0)
		}
		if arg == "-v" || arg == "-version" || arg == "--version" {
			fmt.Printf("docqa version %s\n", internal.Version)
			os.Exit(0)
		}
	}

	validSubcommands := map[string]bool{
		"ingest": true,
		"query":  true,
		"config": true,
	}

	subcommandIndex := -1
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") {
			if validSubcommands[arg] {
				subcommandIndex = i
				break
			}
		}
	}

	if subcommandIndex == -1 {
		fmt.Fprintf(os.Stderr, "Error: No subcommand specified\n\n")
		internal.PrintUsage()
		os.Exit(1)
	}

	// Parse global flags (before subcommand)
	globalFlags := args[:subcommandIndex]
	for i := 0; i < len(globalFlags); i++ {
		flag := globalFlags[i]
		if flag == "-config" || flag == "--config" {
			if i+1 < len(globalFlags) {
				configPath = globalFlags[i+1]
				i++
			}
		} else if strings.HasPrefix(flag, "-") {
			fmt.Fprintf(os.Stderr, "Error: Unknown global flag: %s\n\n", flag)
			internal.PrintUsage()
			os.Exit(1)
		}
	}

	cfg, err := loadOrCreateConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	subcommand := args[subcommandIndex]
	subcommandArgs := args[subcommandIndex+1:]

	if subcommand != "config" {
		if err := internal.SetupLogging(subcommand); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize log file: %v\n", err)
		}
	}

	switch subcommand {
	case "ingest":
		handleIngest(cfg, subcommandArgs)
	case "query":
		handleQuery(cfg, subcommandArgs)
	case "config":
		handleConfig(cfg, subcommandArgs)
	default:
		fmt.Printf("Unknown subcommand: %s\n\n", subcommand)
		internal.PrintUsage()
		os.Exit(1)
	}
}

// loadOrCreateConfig loads the configuration, writing the default template
// on first run. The defaults work against a local Ollama out of the box, so
// a freshly created config is used immediately instead of aborting.
func loadOrCreateConfig(configPath string) (*config.Config, error) {
	cfg, err := internal.LoadConfig(configPath)
	if err == nil {
		return cfg, nil
	}

	notFoundErr, ok := err.(*config.ConfigNotFoundError)
	if !ok {
		return nil, err
	}

	created, createErr := config.WriteDefaultTemplate(notFoundErr.RequestedPath)
	if createErr != nil {
		return nil, fmt.Errorf("%v (also failed to create default config: %v)", err, createErr)
	}
	if created {
		fmt.Fprintf(os.Stderr, "Created default config at %s\n", notFoundErr.RequestedPath)
	}
	return internal.LoadConfig(configPath)
}

// newPipeline wires the full pipeline from the configuration. The caller
// must close the returned store.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, *store.DB, error) {
	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := embedding.NewService(&cfg.Embedding)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	llm := generate.NewOllamaLLM(&cfg.LLM)

	sink := trace.FromEnv()
	if sink == nil {
		fmt.Fprintf(os.Stderr, "Warning: %s not set; tracing disabled\n", trace.EnvAPIKey)
	}

	return pipeline.New(cfg, db, embedder, llm, sink), db, nil
}
