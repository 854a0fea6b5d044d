package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidDocument indicates the input document is empty or not valid text.
var ErrInvalidDocument = errors.New("invalid document")

// Document is a single markdown file loaded for ingestion.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a retrievable slice of document text with header provenance.
// Text is always an exact substring of its section, so chunks of one
// section concatenate back to the section (minus overlap).
type Chunk struct {
	DocumentID string
	Seq        int
	Text       string
	HeaderPath []string
}

// Splitter splits markdown documents into header-tagged, size-bounded chunks.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a splitter with the given maximum chunk size and
// overlap, both in runes. Overlap applies only between consecutive chunks
// of the same section.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}
	return &Splitter{size: size, overlap: overlap}
}

type section struct {
	path    []string
	content string
	// heading is the length in runes of the heading line including its
	// trailing newline, 0 when the section has no heading of its own.
	heading int
}

// Split chunks a markdown document. Sections follow the heading hierarchy;
// a document without headings is one implicit section with an empty path.
func (s *Splitter) Split(doc Document) ([]Chunk, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidDocument)
	}
	if !utf8.ValidString(doc.Content) {
		return nil, fmt.Errorf("%w: document is not valid UTF-8 text", ErrInvalidDocument)
	}

	sections := splitSections(doc.Content)

	var chunks []Chunk
	seq := 0
	for _, sec := range sections {
		if strings.TrimSpace(sec.content) == "" {
			continue
		}
		for _, text := range s.splitSection(sec) {
			if strings.TrimSpace(text) == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				DocumentID: doc.ID,
				Seq:        seq,
				Text:       text,
				HeaderPath: sec.path,
			})
			seq++
		}
	}
	return chunks, nil
}

// splitSections walks the document line by line maintaining a heading stack,
// so each section carries its full header path from the document root.
// The heading line stays at the start of its section body.
func splitSections(content string) []section {
	lines := strings.Split(content, "\n")

	var sections []section
	var current *section
	var currentLines []string
	var headingStack []string
	var headingLevels []int

	flush := func() {
		if current == nil {
			return
		}
		current.content = strings.Join(currentLines, "\n")
		sections = append(sections, *current)
		current = nil
		currentLines = nil
	}

	for _, line := range lines {
		level, title, ok := parseHeading(line)
		if ok {
			flush()

			for len(headingLevels) > 0 && headingLevels[len(headingLevels)-1] >= level {
				headingLevels = headingLevels[:len(headingLevels)-1]
				headingStack = headingStack[:len(headingStack)-1]
			}
			headingLevels = append(headingLevels, level)
			headingStack = append(headingStack, title)

			path := make([]string, len(headingStack))
			copy(path, headingStack)

			current = &section{
				path:    path,
				heading: utf8.RuneCountInString(line) + 1,
			}
			currentLines = []string{line}
			continue
		}

		if current == nil {
			current = &section{}
		}
		currentLines = append(currentLines, line)
	}
	flush()

	return sections
}

// parseHeading reports whether line is an ATX heading and returns its level
// and title. A heading marker must be followed by a space.
func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if !strings.HasPrefix(trimmed, "#") {
		return 0, "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	if len(trimmed) > level && trimmed[level] != ' ' {
		return 0, "", false
	}
	title := strings.TrimSpace(trimmed[level:])
	return level, title, true
}

// breakSeparators are tried in order when choosing a split point, preferring
// paragraph, then line, then sentence, then word boundaries.
var breakSeparators = []string{"\n\n", "\n", ". ", " "}

// splitSection cuts a section into size-bounded windows. Each window is an
// exact rune substring; consecutive windows share `overlap` runes. The split
// never lands inside the section's heading line. Whitespace-only windows are
// folded into a neighboring window, so the chunks of a section always cover
// it without holes; such a window can push a chunk past the size bound.
func (s *Splitter) splitSection(sec section) []string {
	runes := []rune(sec.content)
	if len(runes) <= s.size {
		return []string{sec.content}
	}

	type window struct{ start, end int }
	var windows []window
	start := 0
	for start < len(runes) {
		if len(runes)-start <= s.size {
			windows = append(windows, window{start, len(runes)})
			break
		}

		end := start + s.size
		if cut := findBreak(runes, start, end); cut > start {
			end = cut
		}
		// Never split the heading line: the first window extends at least
		// to its end, even when size is smaller than the line.
		if start == 0 && end < sec.heading {
			end = sec.heading
			if end > len(runes) {
				end = len(runes)
			}
		}
		windows = append(windows, window{start, end})

		next := end - s.overlap
		// Overlap reaches into the body only, never back into the heading.
		if next < sec.heading {
			next = sec.heading
		}
		if next <= start {
			next = start + 1
		}
		start = next
	}

	// Fold whitespace-only windows into the preceding window, or into the
	// following one when nothing precedes them yet.
	var merged []window
	pending := -1
	for _, w := range windows {
		if strings.TrimSpace(string(runes[w.start:w.end])) == "" {
			if len(merged) > 0 {
				if last := &merged[len(merged)-1]; w.end > last.end {
					last.end = w.end
				}
			} else if pending < 0 {
				pending = w.start
			}
			continue
		}
		if pending >= 0 {
			w.start = pending
			pending = -1
		}
		merged = append(merged, w)
	}

	out := make([]string, len(merged))
	for i, w := range merged {
		out[i] = string(runes[w.start:w.end])
	}
	return out
}

// findBreak returns the position of the best separator-aligned cut in
// runes[start:end], or -1 when no separator occurs in the window.
func findBreak(runes []rune, start, end int) int {
	window := string(runes[start:end])
	for _, sep := range breakSeparators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		// Cut after the separator so the chunk keeps its trailing boundary.
		prefix := window[:idx+len(sep)]
		return start + utf8.RuneCountInString(prefix)
	}
	return -1
}
