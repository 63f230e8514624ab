package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driven"
)

// buildPDF writes a minimal PDF with one Helvetica text line per page.
func buildPDF(t *testing.T, pages []string) []byte {
	t.Helper()

	var objects []string
	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")

	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i*2)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d /MediaBox [0 0 612 792] >>",
		strings.Join(kids, " "), len(pages)))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, text := range pages {
		contentID := 5 + i*2
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", contentID))
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream))
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestInterfaceCompliance(t *testing.T) {
	var _ driven.TextExtractor = (*Extractor)(nil)
}

func TestNew_Defaults(t *testing.T) {
	e := New()
	assert.Equal(t, domain.DefaultMinChars, e.Policy().MinChars)
	assert.Zero(t, e.Policy().MinDensity)
}

func TestNew_WithOptions(t *testing.T) {
	e := New(WithMinChars(50), WithMinDensity(2.5))
	assert.Equal(t, 50, e.Policy().MinChars)
	assert.InDelta(t, 2.5, e.Policy().MinDensity, 1e-9)
}

func TestNew_IgnoresNegativeOptions(t *testing.T) {
	e := New(WithMinChars(-1), WithMinDensity(-1))
	assert.Equal(t, domain.DefaultMinChars, e.Policy().MinChars)
	assert.Zero(t, e.Policy().MinDensity)
}

func TestExtract_NotAPDF(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("this is plainly not a pdf document")},
		{"truncated header", []byte("%PDF-1.4\n1 0 obj\n<<")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New().Extract(context.Background(), tt.data)
			assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
			assert.Nil(t, result)
		})
	}
}

func TestExtract_PagesAndYield(t *testing.T) {
	long := strings.TrimSpace(strings.Repeat("Revenue pipeline ", 30))
	data := buildPDF(t, []string{long, "tiny"})

	result, err := New(WithMinChars(200)).Extract(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, result.Pages, 2)

	first := result.Pages[0]
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, domain.MethodDirect, first.Method)
	assert.Contains(t, first.Text, "Revenue pipeline")
	assert.GreaterOrEqual(t, first.CharCount, 200)
	assert.False(t, first.LowYield)
	assert.InDelta(t, 612.0*792.0, first.Area, 1e-6)

	second := result.Pages[1]
	assert.Equal(t, 1, second.Index)
	assert.Less(t, second.CharCount, 200)
	assert.True(t, second.LowYield)

	assert.Equal(t, []int{1}, result.LowYieldPages())
}

func TestExtract_DensityThreshold(t *testing.T) {
	data := buildPDF(t, []string{strings.Repeat("a", 150)})

	lenient, err := New(WithMinChars(100)).Extract(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, lenient.Pages[0].LowYield)

	// 2 glyphs per square inch on a letter page requires 187.
	strict, err := New(WithMinChars(100), WithMinDensity(2)).Extract(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, strict.Pages[0].LowYield)
}

func TestExtract_CancelledContext(t *testing.T) {
	data := buildPDF(t, []string{"hello"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Extract(ctx, data)
	assert.ErrorIs(t, err, context.Canceled)
}
