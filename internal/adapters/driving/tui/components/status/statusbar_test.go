package status

import (
	"errors"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/opptrack/internal/adapters/driving/tui/styles"
)

func TestNewBar(t *testing.T) {
	bar := NewBar(styles.DefaultStyles(), keymap.DefaultKeyMap())

	require.NotNil(t, bar)
	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
	assert.Equal(t, 80, bar.Width())
}

func TestNewBar_NilStyles(t *testing.T) {
	bar := NewBar(nil, nil)

	require.NotNil(t, bar)
	assert.NotNil(t, bar.styles)
	assert.NotNil(t, bar.keymap)
}

func TestStatusBar_SetStateClearsMessage(t *testing.T) {
	bar := NewBar(nil, nil)
	bar.SetMessage("old")

	bar.SetState(StateLoading)

	assert.Equal(t, StateLoading, bar.State())
	assert.Equal(t, "", bar.Message())
}

func TestStatusBar_SetError(t *testing.T) {
	bar := NewBar(nil, nil)

	bar.SetError(errors.New("connection failed"))
	assert.Equal(t, StateError, bar.State())
	assert.Equal(t, "connection failed", bar.Message())

	bar.SetError(nil)
	assert.Equal(t, StateReady, bar.State())
	assert.Equal(t, "", bar.Message())
}

func TestStatusBar_SetCount(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0 industries"},
		{1, "1 industry"},
		{3, "3 industries"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			bar := NewBar(nil, nil)
			bar.SetState(StateError)

			bar.SetCount(tt.n, "industry")

			assert.Equal(t, StateReady, bar.State())
			assert.Equal(t, tt.expected, bar.Message())
		})
	}
}

func TestStatusBar_SetCount_RegularPlural(t *testing.T) {
	bar := NewBar(nil, nil)

	bar.SetCount(2, "document")

	assert.Equal(t, "2 documents", bar.Message())
}

func TestStatusBar_View(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*Bar)
		contains []string
	}{
		{"ready", func(*Bar) {}, []string{"Ready", "quit"}},
		{"loading", func(b *Bar) { b.SetState(StateLoading) }, []string{"Loading..."}},
		{"loading with message", func(b *Bar) {
			b.SetState(StateLoading)
			b.SetMessage("Rebuilding")
		}, []string{"Rebuilding..."}},
		{"error", func(b *Bar) { b.SetState(StateError) }, []string{"Error"}},
		{"error with message", func(b *Bar) { b.SetError(errors.New("boom")) }, []string{"Error: boom"}},
		{"help", func(b *Bar) { b.SetState(StateHelp) }, []string{"Help"}},
		{"count", func(b *Bar) { b.SetCount(5, "document") }, []string{"5 documents"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := NewBar(nil, nil)
			bar.SetWidth(120)
			tt.setup(bar)

			view := bar.View()
			for _, s := range tt.contains {
				assert.Contains(t, view, s)
			}
		})
	}
}

func TestStatusBar_SetHints(t *testing.T) {
	km := keymap.DefaultKeyMap()
	bar := NewBar(nil, km)
	bar.SetWidth(120)

	bar.SetHints([]key.Binding{km.Rebuild})
	assert.Contains(t, bar.View(), "b rebuild")
	assert.NotContains(t, bar.View(), "quit")

	bar.SetHints(nil)
	assert.Contains(t, bar.View(), "q quit")
}

func TestPlural(t *testing.T) {
	assert.Equal(t, "industry", plural(1, "industry"))
	assert.Equal(t, "industries", plural(2, "industry"))
	assert.Equal(t, "documents", plural(0, "document"))
}
