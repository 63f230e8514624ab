package domain

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// pointsPerSquareInch is 72 × 72.
const pointsPerSquareInch = 5184.0

// DefaultMinChars is the low-yield threshold for a page of unknown density.
const DefaultMinChars = 200

// YieldPolicy decides whether a page produced enough text.
type YieldPolicy struct {
	// MinChars is the absolute minimum number of recognised glyphs.
	MinChars int

	// MinDensity is the minimum glyphs per square inch. Zero disables
	// the area-relative threshold.
	MinDensity float64
}

// DefaultYieldPolicy returns the policy used when nothing is configured.
func DefaultYieldPolicy() YieldPolicy {
	return YieldPolicy{MinChars: DefaultMinChars}
}

// Threshold returns the glyph count a page of the given area must reach.
func (p YieldPolicy) Threshold(area float64) int {
	threshold := p.MinChars
	if p.MinDensity > 0 && area > 0 {
		byArea := int(math.Ceil(p.MinDensity * area / pointsPerSquareInch))
		if byArea > threshold {
			threshold = byArea
		}
	}
	return threshold
}

// IsLowYield reports whether charCount falls below the threshold.
// A count equal to the threshold is sufficient.
func (p YieldPolicy) IsLowYield(charCount int, area float64) bool {
	return charCount < p.Threshold(area)
}

// CountGlyphs returns the number of recognised glyphs in text and the
// ratio of recognised glyphs to all non-space runes. Replacement
// characters, control characters and private-use runes are not glyphs.
func CountGlyphs(text string) (glyphs int, ratio float64) {
	nonSpace := 0
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		nonSpace++
		if r == utf8.RuneError || unicode.IsControl(r) || unicode.Is(unicode.Co, r) {
			continue
		}
		if unicode.IsGraphic(r) {
			glyphs++
		}
	}
	if nonSpace == 0 {
		return 0, 0
	}
	return glyphs, float64(glyphs) / float64(nonSpace)
}
