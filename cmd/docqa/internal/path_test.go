package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveDocumentPath(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.md", "b.md", filepath.Join("sub", "c.md")} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("# doc\n"), 0644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	t.Run("literal path", func(t *testing.T) {
		got, err := ResolveDocumentPath(filepath.Join(dir, "a.md"))
		if err != nil {
			t.Fatalf("ResolveDocumentPath failed: %v", err)
		}
		if filepath.Base(got) != "a.md" {
			t.Errorf("resolved %q", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := ResolveDocumentPath(filepath.Join(dir, "missing.md")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("directory", func(t *testing.T) {
		if _, err := ResolveDocumentPath(dir); err == nil {
			t.Error("expected error for directory")
		}
	})

	t.Run("glob single match", func(t *testing.T) {
		got, err := ResolveDocumentPath(filepath.Join(dir, "**", "c.md"))
		if err != nil {
			t.Fatalf("ResolveDocumentPath failed: %v", err)
		}
		if filepath.Base(got) != "c.md" {
			t.Errorf("resolved %q", got)
		}
	})

	t.Run("glob multiple matches", func(t *testing.T) {
		_, err := ResolveDocumentPath(filepath.Join(dir, "*.md"))
		if err == nil {
			t.Fatal("expected error for ambiguous pattern")
		}
		if !strings.Contains(err.Error(), "matches 2 files") {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("glob no match", func(t *testing.T) {
		if _, err := ResolveDocumentPath(filepath.Join(dir, "*.txt")); err == nil {
			t.Error("expected error for pattern with no matches")
		}
	})

	t.Run("empty argument", func(t *testing.T) {
		if _, err := ResolveDocumentPath(""); err == nil {
			t.Error("expected error for empty argument")
		}
	})
}
