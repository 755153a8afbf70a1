package summarizer

import (
	"context"

	"github.com/ryosukesatoh/arxiv-push/internal/fetcher"
)

// Character budgets for the fallback summary. Chinese text carries more
// information per character.
const (
	chineseBudget = 200
	englishBudget = 300
)

// Fallback summarizes without any external service by truncating the
// cleaned abstract.
type Fallback struct{}

func NewFallback() *Fallback {
	return &Fallback{}
}

func (f *Fallback) Summarize(_ context.Context, _, abstract string, lang Language) string {
	budget := englishBudget
	if lang == Chinese {
		budget = chineseBudget
	}
	return truncateRunes(fetcher.CleanText(abstract), budget)
}

// truncateRunes cuts s to max runes, appending "..." when anything was cut.
func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
