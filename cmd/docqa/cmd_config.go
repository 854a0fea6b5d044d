package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/DreamCats/docqa/internal/config"
)

// handleConfig implements the config subcommand
func handleConfig(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `USAGE:
    docqa config

DESCRIPTION:
    Print the effective configuration after defaults are applied.
`)
	}

	if err := fs.Parse(args); err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	fmt.Println("Effective configuration:")
	for _, pair := range cfg.Summary() {
		fmt.Printf("  %-20s %s\n", pair[0], pair[1])
	}
}
