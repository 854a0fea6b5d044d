package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ResolveDocumentPath resolves a document argument to exactly one regular
// file. The argument may be a literal path or a doublestar glob pattern
// such as "docs/**/*.md"; a pattern matching zero or several files is an
// error so the user never ingests something they did not mean to.
func ResolveDocumentPath(arg string) (string, error) {
	if arg == "" {
		return "", fmt.Errorf("document path is empty")
	}

	if !isPattern(arg) {
		info, err := os.Stat(arg)
		if err != nil {
			return "", fmt.Errorf("document not found: %s", arg)
		}
		if info.IsDir() {
			return "", fmt.Errorf("document path is a directory: %s", arg)
		}
		return filepath.Abs(arg)
	}

	matches, err := doublestar.FilepathGlob(arg)
	if err != nil {
		return "", fmt.Errorf("invalid document pattern %q: %w", arg, err)
	}

	var files []string
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		files = append(files, match)
	}

	switch len(files) {
	case 0:
		return "", fmt.Errorf("no document matches pattern: %s", arg)
	case 1:
		return filepath.Abs(files[0])
	default:
		return "", fmt.Errorf("pattern %q matches %d files; narrow it to one:\n  %s",
			arg, len(files), strings.Join(files, "\n  "))
	}
}

// isPattern 判断参数是否包含 glob 元字符。
func isPattern(arg string) bool {
	return strings.ContainsAny(arg, "*?[{")
}
