package internal

import (
	"fmt"
	"os"
)

const Version = "0.3.1"

// PrintUsage 向 stderr 输出 docqa 的用法与可用子命令列表。
// 无返回值，直接退出程序。
func PrintUsage() {
	fmt.Fprintf(os.Stderr, `docqa - Question Answering over Technical Documents

Version: %s

USAGE:
    docqa [global options] <command> [command options]

GLOBAL OPTIONS:
    -config <path>
        Path to config file (default: ~/.docqa/config/docqa.yaml)

    -v, -version
        Show version information

    -h, -help
        Show this help message

COMMANDS:
    ingest
        Chunk, embed and index a markdown document

    query
        Ask a question against the indexed documents

    config
        Show the effective configuration

EXAMPLES:
    # Index a protocol specification
    docqa ingest docs/protocol.md

    # Ask a one-off question
    docqa query "What is the start marker of the frame header?"

    # Interactive question loop
    docqa query

    # Ask without answer evaluation
    docqa query -no-eval "How is the checksum computed?"

    # Show effective configuration
    docqa config

For detailed help on each command, use:
    docqa <command> -help
`, Version)
}
