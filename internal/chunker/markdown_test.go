package chunker

import (
	"errors"
	"strings"
	"testing"
)

const sampleDoc = `# XYZ Protocol

The XYZ protocol is a binary serial protocol for sensor networks.

## Frame Format

### Header Format

Each frame starts with the start marker 0xAA followed by a length byte.
The header also carries a 16-bit sequence number.

### Payload

The payload holds up to 255 bytes of application data.

## Error Handling

A checksum mismatch causes the frame to be dropped silently.
`

func TestSplitInvalidDocument(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t\n  "},
		{"invalid utf8", "valid prefix \xff\xfe invalid"},
	}

	s := NewSplitter(1000, 200)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Split(Document{ID: "doc", Content: tt.content})
			if !errors.Is(err, ErrInvalidDocument) {
				t.Errorf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestSplitHeaderPaths(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks, err := s.Split(Document{ID: "doc", Content: sampleDoc})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}

	wantPaths := map[string]bool{
		"XYZ Protocol":                                true,
		"XYZ Protocol > Frame Format":                 true,
		"XYZ Protocol > Frame Format > Header Format": true,
		"XYZ Protocol > Frame Format > Payload":       true,
		"XYZ Protocol > Error Handling":               true,
	}

	seen := make(map[string]bool)
	for _, chunk := range chunks {
		path := strings.Join(chunk.HeaderPath, " > ")
		if !wantPaths[path] {
			t.Errorf("unexpected header path %q for chunk %q", path, chunk.Text)
		}
		seen[path] = true
	}
	for path := range wantPaths {
		if !seen[path] {
			t.Errorf("no chunk carries header path %q", path)
		}
	}
}

func TestSplitChunkInvariants(t *testing.T) {
	s := NewSplitter(120, 30)
	chunks, err := s.Split(Document{ID: "doc", Content: sampleDoc})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	for i, chunk := range chunks {
		if strings.TrimSpace(chunk.Text) == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if chunk.Seq != i {
			t.Errorf("chunk %d has seq %d", i, chunk.Seq)
		}
		if chunk.DocumentID != "doc" {
			t.Errorf("chunk %d has document id %q", i, chunk.DocumentID)
		}
		if !strings.Contains(sampleDoc, chunk.Text) {
			t.Errorf("chunk %d is not a substring of the document: %q", i, chunk.Text)
		}
	}
}

func TestSplitSizeBound(t *testing.T) {
	var b strings.Builder
	b.WriteString("## Section\n\n")
	for i := 0; i < 80; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
	}

	size := 200
	s := NewSplitter(size, 50)
	chunks, err := s.Split(Document{ID: "doc", Content: b.String()})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	for i, chunk := range chunks {
		if n := len([]rune(chunk.Text)); n > size {
			t.Errorf("chunk %d has %d runes, want <= %d", i, n, size)
		}
	}
}

func TestSplitHeadingNeverSplit(t *testing.T) {
	heading := "### A Rather Long Heading That Exceeds The Chunk Size Limit"
	content := heading + "\nbody text follows here and keeps going for a while.\n"

	s := NewSplitter(20, 5)
	chunks, err := s.Split(Document{ID: "doc", Content: content})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	if !strings.HasPrefix(chunks[0].Text, heading+"\n") {
		t.Errorf("first chunk does not contain the full heading line: %q", chunks[0].Text)
	}
	for i, chunk := range chunks[1:] {
		if strings.Contains(chunk.Text, "###") {
			t.Errorf("chunk %d contains a heading fragment: %q", i+1, chunk.Text)
		}
	}
}

func TestSplitOverlap(t *testing.T) {
	var b strings.Builder
	b.WriteString("## Overlap\n\n")
	for i := 0; i < 60; i++ {
		b.WriteString("word word word word word word word word word word ")
	}

	overlap := 40
	s := NewSplitter(160, overlap)
	chunks, err := s.Split(Document{ID: "doc", Content: b.String()})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}

	// Interior chunk pairs share exactly `overlap` runes.
	for i := 1; i < len(chunks)-1; i++ {
		prev := []rune(chunks[i].Text)
		next := []rune(chunks[i+1].Text)
		if len(prev) < overlap || len(next) < overlap {
			continue
		}
		tail := string(prev[len(prev)-overlap:])
		head := string(next[:overlap])
		if tail != head {
			t.Errorf("chunks %d/%d do not overlap: tail %q vs head %q", i, i+1, tail, head)
		}
	}
}

// runeIndexFrom returns the first rune offset >= from where needle occurs in
// haystack, or -1.
func runeIndexFrom(haystack, needle []rune, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(needle) <= len(haystack); i++ {
		match := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// checkSectionCoverage rebuilds the section from its chunks by rune offset
// and fails on any hole between consecutive chunks.
func checkSectionCoverage(t *testing.T, content string, chunks []Chunk) {
	t.Helper()
	runes := []rune(content)
	covered := 0
	minStart := 0
	for i, chunk := range chunks {
		cr := []rune(chunk.Text)
		start := runeIndexFrom(runes, cr, minStart)
		if start < 0 {
			t.Fatalf("chunk %d not found in section at or after offset %d", i, minStart)
		}
		if start > covered {
			t.Fatalf("gap before chunk %d: chunk starts at %d but only %d runes reconstructed", i, start, covered)
		}
		if end := start + len(cr); end > covered {
			covered = end
		}
		minStart = start + 1
	}
	if covered != len(runes) {
		t.Fatalf("reconstructed %d of %d section runes", covered, len(runes))
	}
}

func TestSplitSectionReconstruction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		size    int
		overlap int
	}{
		{"prose", sampleDoc, 120, 30},
		{
			// A whitespace run longer than the chunk size must not open a
			// hole between the surrounding chunks.
			"long whitespace run",
			"## S\nhead" + strings.Repeat(" ", 300) + "tail one two three end.\n",
			100,
			20,
		},
		{
			"leading whitespace run without heading",
			strings.Repeat(" ", 250) + "tail one two three end.\n",
			100,
			20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSplitter(tt.size, tt.overlap)
			chunks, err := s.Split(Document{ID: "doc", Content: tt.content})
			if err != nil {
				t.Fatalf("Split failed: %v", err)
			}

			byPath := make(map[string][]Chunk)
			for _, chunk := range chunks {
				key := strings.Join(chunk.HeaderPath, " > ")
				byPath[key] = append(byPath[key], chunk)
			}

			for _, sec := range splitSections(tt.content) {
				if strings.TrimSpace(sec.content) == "" {
					continue
				}
				key := strings.Join(sec.path, " > ")
				checkSectionCoverage(t, sec.content, byPath[key])
			}
		})
	}
}

func TestSplitWithoutHeadings(t *testing.T) {
	content := "Plain text document.\n\nNo headings anywhere, just paragraphs of prose.\n"
	s := NewSplitter(1000, 200)
	chunks, err := s.Split(Document{ID: "doc", Content: content})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected one chunk, got %d", len(chunks))
	}
	if len(chunks[0].HeaderPath) != 0 {
		t.Errorf("expected empty header path, got %v", chunks[0].HeaderPath)
	}
	if chunks[0].Text != content {
		t.Errorf("chunk text differs from document content")
	}
}

func TestParseHeading(t *testing.T) {
	tests := []struct {
		line      string
		wantLevel int
		wantTitle string
		wantOK    bool
	}{
		{"# Title", 1, "Title", true},
		{"### Deep Title", 3, "Deep Title", true},
		{"###### Max Depth", 6, "Max Depth", true},
		{"####### Too Deep", 0, "", false},
		{"#NoSpace", 0, "", false},
		{"plain text", 0, "", false},
		{"  ## Indented", 2, "Indented", true},
		{"#", 1, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			level, title, ok := parseHeading(tt.line)
			if ok != tt.wantOK || level != tt.wantLevel || title != tt.wantTitle {
				t.Errorf("parseHeading(%q) = (%d, %q, %t), want (%d, %q, %t)",
					tt.line, level, title, ok, tt.wantLevel, tt.wantTitle, tt.wantOK)
			}
		})
	}
}
