package segmenter

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"policyqa/internal/domain"
)

// BlankLineSegmenter splits document text into clauses on blank-line
// boundaries, falling back to fixed-size word windows with overlap for long
// single-block text.
type BlankLineSegmenter struct {
	windowWords  int
	overlapWords int
	maxChars     int
	blankLine    *regexp.Regexp
}

// New creates a segmenter. windowWords is the chunk width used for text
// without blank-line structure, overlapWords how many words consecutive
// chunks share, and maxChars the hard ceiling on clause length.
func New(windowWords, overlapWords, maxChars int) *BlankLineSegmenter {
	if windowWords <= 0 {
		windowWords = 250
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	if overlapWords >= windowWords {
		overlapWords = windowWords / 4
	}
	if maxChars <= 0 {
		maxChars = 2000
	}
	return &BlankLineSegmenter{
		windowWords:  windowWords,
		overlapWords: overlapWords,
		maxChars:     maxChars,
		blankLine:    regexp.MustCompile(`\n[ \t]*\n`),
	}
}

// Segment splits the document into ordered, non-empty clauses.
func (s *BlankLineSegmenter) Segment(doc domain.Document) []domain.Clause {
	var parts []string
	for _, p := range s.blankLine.Split(doc.Content, -1) {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	// Long single-block text carries no blank-line structure worth keeping;
	// window it so no boundary is lost at a chunk edge.
	if len(parts) == 1 {
		if words := strings.Fields(parts[0]); len(words) > s.windowWords {
			parts = s.window(words)
		}
	}
	clauses := make([]domain.Clause, 0, len(parts))
	for i, text := range parts {
		if len(text) > s.maxChars {
			text = truncate(text, s.maxChars)
		}
		clauses = append(clauses, domain.Clause{
			ID:         doc.ID + "-" + strconv.Itoa(i),
			DocumentID: doc.ID,
			Seq:        i,
			Text:       text,
		})
	}
	return clauses
}

// truncate cuts text to at most max bytes without splitting a multi-byte
// rune, backing off to the previous rune boundary.
func truncate(text string, max int) string {
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func (s *BlankLineSegmenter) window(words []string) []string {
	step := s.windowWords - s.overlapWords
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + s.windowWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
