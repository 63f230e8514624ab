// Package normaliser cleans extracted page text before chunking: Unicode
// compatibility folding, control-character and boilerplate removal, and
// whitespace collapsing.
package normaliser

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/opptrack/internal/core/domain"
)

// Name is the registry name of the normaliser.
const Name = "normaliser"

var (
	rePageCounter = regexp.MustCompile(`(?i)^\s*(page\s+)?\d+\s*(of|/)\s*\d+\s*$|^\s*-\s*\d+\s*-\s*$`)
	// A short bare number is only a page number on a page's first or
	// last line; elsewhere it is usually a table value.
	reEdgeNumber = regexp.MustCompile(`^\s*\d{1,3}\s*$`)
	reBanner      = regexp.MustCompile(`(?i)^\s*(strictly\s+)?(confidential|internal use only|proprietary( and confidential)?)\s*$`)
	reRule        = regexp.MustCompile(`^[\s\-_=*.·•─━│┃┌┐└┘├┤┬┴┼]+$`)
)

// Processor rewrites page text in place and passes chunks through.
// It implements the PostProcessor interface.
type Processor struct {
	patterns []*regexp.Regexp
}

// Option configures the normaliser.
type Option func(*Processor)

// WithBoilerplate adds a pattern; whole lines matching it are dropped.
func WithBoilerplate(re *regexp.Regexp) Option {
	return func(p *Processor) {
		if re != nil {
			p.patterns = append(p.patterns, re)
		}
	}
}

// New creates a normaliser with the built-in boilerplate patterns.
func New(opts ...Option) *Processor {
	p := &Processor{patterns: []*regexp.Regexp{rePageCounter, reBanner, reRule}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string { return Name }

// Process normalises page.Text.
func (p *Processor) Process(_ context.Context, page *domain.Page, chunks []domain.Chunk) ([]domain.Chunk, error) {
	page.Text = p.Normalize(page.Text)
	return chunks, nil
}

// Normalize returns the cleaned form of text. The result has no control
// characters, no runs of whitespace and no leading or trailing space.
func (p *Processor) Normalize(text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = norm.NFKC.String(text)

	lines := strings.Split(text, "\n")
	first, last := -1, -1
	for i, ln := range lines {
		ln = stripControl(ln)
		lines[i] = ln
		if strings.TrimSpace(ln) == "" {
			continue
		}
		if first < 0 {
			first = i
		}
		last = i
	}

	kept := lines[:0]
	for i, ln := range lines {
		if p.isBoilerplate(ln) {
			continue
		}
		if (i == first || i == last) && reEdgeNumber.MatchString(ln) {
			continue
		}
		kept = append(kept, ln)
	}

	return strings.Join(strings.Fields(strings.Join(kept, "\n")), " ")
}

func (p *Processor) isBoilerplate(line string) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	for _, re := range p.patterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) || r == '�' {
			return -1
		}
		return r
	}, s)
}
