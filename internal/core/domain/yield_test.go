package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestYieldPolicy_Threshold(t *testing.T) {
	letter := 612.0 * 792.0 // 93.5 square inches

	assert.Equal(t, 200, YieldPolicy{MinChars: 200}.Threshold(letter))
	assert.Equal(t, 200, YieldPolicy{MinChars: 200, MinDensity: 1}.Threshold(letter))
	assert.Equal(t, 468, YieldPolicy{MinChars: 200, MinDensity: 5}.Threshold(letter))
	assert.Equal(t, 200, YieldPolicy{MinChars: 200, MinDensity: 5}.Threshold(0))
}

func TestYieldPolicy_IsLowYield_Boundary(t *testing.T) {
	p := YieldPolicy{MinChars: 200}

	assert.True(t, p.IsLowYield(0, 0))
	assert.True(t, p.IsLowYield(199, 0))
	assert.False(t, p.IsLowYield(200, 0))
	assert.False(t, p.IsLowYield(201, 0))
}

func TestCountGlyphs(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantGlyphs int
		wantRatio  float64
	}{
		{"empty", "", 0, 0},
		{"whitespace only", " \n\t ", 0, 0},
		{"plain", "Deal won", 7, 1},
		{"replacement runes", "ab��", 2, 0.5},
		{"private use", "a", 1, 0.5},
		{"controls", "a\x01", 1, 0.5},
		{"unicode letters", "Zürich €5", 8, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			glyphs, ratio := CountGlyphs(tt.text)
			assert.Equal(t, tt.wantGlyphs, glyphs)
			assert.InDelta(t, tt.wantRatio, ratio, 1e-9)
		})
	}
}

func TestCountGlyphs_Large(t *testing.T) {
	glyphs, _ := CountGlyphs(strings.Repeat("x ", 500))
	assert.Equal(t, 500, glyphs)
}
