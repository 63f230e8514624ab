// Package analysis extracts term and entity frequencies from normalised
// text for industry insights.
package analysis

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// Ensure Analyzer implements the interface.
var _ driven.TextAnalyzer = (*Analyzer)(nil)

// Entity kinds.
const (
	KindMoney   = "MONEY"
	KindPercent = "PERCENT"
	KindDate    = "DATE"
	KindOrg     = "ORG"
)

const month = `(?:January|February|March|April|May|June|July|August|September|October|November|December|Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Sept|Oct|Nov|Dec)`

var (
	reMoney   = regexp.MustCompile(`(?:[$€£]\s?\d[\d,]*(?:\.\d+)?(?:\s?(?:[kKmMbB]|million|billion|thousand))?|\b\d[\d,]*(?:\.\d+)?\s?(?:USD|EUR|GBP)\b)`)
	rePercent = regexp.MustCompile(`\b\d+(?:\.\d+)?\s?%`)
	reDate    = regexp.MustCompile(`\b(?:\d{4}-\d{2}-\d{2}|` + month + `\.?\s+\d{4}|Q[1-4]\s+\d{4})\b`)
	reOrg     = regexp.MustCompile(`\b(?:[A-Z][A-Za-z0-9&]*\s+){0,3}[A-Z][A-Za-z0-9&]*,?\s+(?:Inc|LLC|Ltd|Corp|Corporation|GmbH|PLC|AG|SA)\b\.?`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// Analyzer is a rule-based term and entity extractor.
type Analyzer struct {
	minTermLen int
	stopwords  map[string]struct{}
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMinTermLength sets the shortest word counted as a term.
func WithMinTermLength(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.minTermLen = n
		}
	}
}

// WithStopwords adds words that are never counted.
func WithStopwords(words ...string) Option {
	return func(a *Analyzer) {
		for _, w := range words {
			a.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// New creates an Analyzer with the default English stopwords.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{minTermLen: 3, stopwords: make(map[string]struct{}, len(defaultStopwords))}
	for _, w := range defaultStopwords {
		a.stopwords[w] = struct{}{}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Terms counts lowercased alphabetic words that are long enough and not
// stopwords.
func (a *Analyzer) Terms(text string) map[string]int64 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	})

	counts := make(map[string]int64)
	for _, w := range words {
		w = strings.Trim(w, "-")
		if len([]rune(w)) < a.minTermLen {
			continue
		}
		if _, stop := a.stopwords[w]; stop {
			continue
		}
		counts[w]++
	}
	if len(counts) == 0 {
		return nil
	}
	return counts
}

// Entities counts money amounts, percentages, dates and organisation
// names.
func (a *Analyzer) Entities(text string) map[string]int64 {
	counts := make(map[string]int64)
	add := func(kind string, matches []string) {
		for _, m := range matches {
			v := strings.TrimSpace(reSpaces.ReplaceAllString(m, " "))
			v = strings.TrimSuffix(v, ".")
			if v != "" {
				counts[kind+":"+v]++
			}
		}
	}

	add(KindMoney, reMoney.FindAllString(text, -1))
	add(KindPercent, rePercent.FindAllString(text, -1))
	add(KindDate, reDate.FindAllString(text, -1))
	add(KindOrg, reOrg.FindAllString(text, -1))

	if len(counts) == 0 {
		return nil
	}
	return counts
}

var defaultStopwords = []string{
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her",
	"was", "one", "our", "out", "has", "have", "this", "that", "with", "from", "they",
	"will", "would", "there", "their", "what", "about", "which", "when", "were", "been",
	"into", "more", "also", "than", "then", "them", "these", "those", "such", "some",
	"other", "only", "over", "each", "your", "its", "who", "may", "per", "via", "did",
	"does", "how", "why", "where", "should", "could", "here", "just", "very", "being",
}
