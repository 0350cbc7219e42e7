package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeLimitsSentenceCount(t *testing.T) {
	text := "Knee surgery is covered. Dental treatment is excluded. " +
		"A grace period of 30 days applies. Pre-existing diseases wait 36 months. " +
		"Room rent is capped at one percent."
	out := New(2).Summarize(text)

	assert.Equal(t, 2, strings.Count(out, "."))
}

func TestSummarizePreservesOriginalOrder(t *testing.T) {
	text := "Alpha covers surgery and surgery costs. Unrelated filler sentence here. " +
		"Omega covers surgery costs and surgery fees."
	out := New(2).Summarize(text)

	ai := strings.Index(out, "Alpha")
	oi := strings.Index(out, "Omega")
	assert.GreaterOrEqual(t, ai, 0)
	assert.Greater(t, oi, ai)
}

func TestSummarizeWithoutPunctuationReturnsTrimmedText(t *testing.T) {
	assert.Equal(t, "no sentence markers here", New(3).Summarize("  no sentence markers here  "))
}

func TestSummarizeShortTextWholly(t *testing.T) {
	text := "Only one sentence exists."
	assert.Equal(t, text, New(5).Summarize(text))
}
