package summarizer

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

var sentenceRe = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)

// Summarizer produces a short extractive summary of a policy document by
// ranking its sentences on normalized word frequency. It is used for the
// ingest report shown after a document has been indexed.
type Summarizer struct {
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
	maxSentences int
}

// New creates a summarizer limited to maxSentences sentences per summary.
func New(maxSentences int) *Summarizer {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	return &Summarizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
		maxSentences: maxSentences,
	}
}

// Summarize returns the highest-scoring sentences of text in their original
// order. Text without sentence punctuation is returned trimmed as-is.
func (s *Summarizer) Summarize(text string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return strings.TrimSpace(text)
	}

	tokenized := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokenized[i] = s.tokens(sent)
		for _, tok := range tokenized[i] {
			freq[tok]++
		}
	}
	maxFreq := 0.0
	for _, v := range freq {
		maxFreq = math.Max(maxFreq, v)
	}
	if maxFreq > 0 {
		for k := range freq {
			freq[k] /= maxFreq
		}
	}

	type ranked struct {
		idx   int
		score float64
	}
	scores := make([]ranked, len(sentences))
	for i := range sentences {
		total := 0.0
		for _, tok := range tokenized[i] {
			total += freq[tok]
		}
		// dampen the advantage of long sentences
		if n := float64(len(tokenized[i])); n > 0 {
			total /= math.Sqrt(n)
		}
		scores[i] = ranked{i, total}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	keep := s.maxSentences
	if keep > len(scores) {
		keep = len(scores)
	}
	selected := make([]int, keep)
	for i := 0; i < keep; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)

	out := make([]string, keep)
	for i, idx := range selected {
		out[i] = strings.TrimSpace(sentences[idx])
	}
	return strings.Join(out, " ")
}

// tokens lowercases text and keeps word tokens minus stopwords.
func (s *Summarizer) tokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := s.stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
