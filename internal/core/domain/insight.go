package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// VectorScale is the fixed-point scale used for summed centroids.
// Integer sums keep Add and Sub exact inverses in any order.
const VectorScale = 1e6

// NormalizeIndustry case-folds and collapses whitespace in an industry
// label. It returns ErrInvalidInput if the result is empty.
func NormalizeIndustry(label string) (string, error) {
	normalized := strings.Join(strings.Fields(strings.ToLower(label)), " ")
	if normalized == "" {
		return "", ErrInvalidInput
	}
	return normalized, nil
}

// Aggregate is the commutative, associative summary of one or more
// documents. The zero value is the identity.
type Aggregate struct {
	Documents  int64
	Won        int64
	Lost       int64
	Pages      int64
	OCRPages   int64
	EmptyPages int64
	Chunks     int64
	Chars      int64

	// VectorSum is the element-wise sum of document centroids, in units
	// of 1/VectorScale.
	VectorSum []int64

	// Vectors is the number of centroids in VectorSum.
	Vectors int64

	// Terms counts normalised word tokens.
	Terms map[string]int64

	// Entities counts extracted entities keyed "KIND:value".
	Entities map[string]int64
}

// Add folds other into a.
func (a *Aggregate) Add(other Aggregate) {
	a.combine(other, 1)
}

// Sub removes a previously added other from a.
func (a *Aggregate) Sub(other Aggregate) {
	a.combine(other, -1)
}

func (a *Aggregate) combine(o Aggregate, sign int64) {
	a.Documents += sign * o.Documents
	a.Won += sign * o.Won
	a.Lost += sign * o.Lost
	a.Pages += sign * o.Pages
	a.OCRPages += sign * o.OCRPages
	a.EmptyPages += sign * o.EmptyPages
	a.Chunks += sign * o.Chunks
	a.Chars += sign * o.Chars
	a.Vectors += sign * o.Vectors

	if len(o.VectorSum) > len(a.VectorSum) {
		grown := make([]int64, len(o.VectorSum))
		copy(grown, a.VectorSum)
		a.VectorSum = grown
	}
	for i, v := range o.VectorSum {
		a.VectorSum[i] += sign * v
	}
	if a.Vectors == 0 {
		a.VectorSum = nil
	}

	a.Terms = combineCounts(a.Terms, o.Terms, sign)
	a.Entities = combineCounts(a.Entities, o.Entities, sign)
}

func combineCounts(dst, src map[string]int64, sign int64) map[string]int64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]int64, len(src))
	}
	for k, v := range src {
		n := dst[k] + sign*v
		if n == 0 {
			delete(dst, k)
		} else {
			dst[k] = n
		}
	}
	if len(dst) == 0 {
		return nil
	}
	return dst
}

// Clone returns a deep copy.
func (a Aggregate) Clone() Aggregate {
	out := a
	if a.VectorSum != nil {
		out.VectorSum = append([]int64(nil), a.VectorSum...)
	}
	out.Terms = cloneCounts(a.Terms)
	out.Entities = cloneCounts(a.Entities)
	return out
}

func cloneCounts(m map[string]int64) map[string]int64 {
	if m == nil {
		return nil
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Centroid returns the mean of the summed document centroids, or nil if
// no vectors have been added.
func (a Aggregate) Centroid() []float32 {
	if a.Vectors == 0 || len(a.VectorSum) == 0 {
		return nil
	}
	out := make([]float32, len(a.VectorSum))
	for i, v := range a.VectorSum {
		out[i] = float32(float64(v) / VectorScale / float64(a.Vectors))
	}
	return out
}

// WinRate returns won / (won + lost), or 0 when no outcomes are known.
func (a Aggregate) WinRate() float64 {
	if a.Won+a.Lost == 0 {
		return 0
	}
	return float64(a.Won) / float64(a.Won+a.Lost)
}

// Count is a key with its frequency.
type Count struct {
	Key   string
	Count int64
}

// TopTerms returns the n most frequent terms, ties broken alphabetically.
func (a Aggregate) TopTerms(n int) []Count {
	return topCounts(a.Terms, n)
}

// TopEntities returns the n most frequent entities, ties broken alphabetically.
func (a Aggregate) TopEntities(n int) []Count {
	return topCounts(a.Entities, n)
}

func topCounts(m map[string]int64, n int) []Count {
	out := make([]Count, 0, len(m))
	for k, v := range m {
		out = append(out, Count{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// QuantizeVector converts a float vector to VectorScale fixed point.
func QuantizeVector(v []float32) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(math.Round(float64(x) * VectorScale))
	}
	return out
}

// Insight is the aggregate for one industry label.
type Insight struct {
	// Industry is the normalised label.
	Industry string

	Aggregate Aggregate

	// Revision increases on every commit and detects concurrent writers.
	Revision int64

	// UpdatedAt is when the insight last changed.
	UpdatedAt time.Time
}

// Contribution is one document version's share of an insight.
type Contribution struct {
	DocumentID string
	Version    int
	Industry   string
	Aggregate  Aggregate

	// Centroid is the document's mean chunk embedding.
	Centroid []float32

	// Outcome is copied from the document for cluster reporting.
	Outcome Outcome

	// Excerpt is the start of the normalised text, used in summaries.
	Excerpt string

	AppliedAt time.Time
}

// AggregationCommit is the atomic unit written by the aggregator.
type AggregationCommit struct {
	// Document is stored with its final status.
	Document *Document

	// Contribution replaces any prior contribution for the document.
	Contribution *Contribution

	// Insight is the updated target insight. ExpectedRevision is the
	// revision it was read at (0 when it did not exist).
	Insight          *Insight
	ExpectedRevision int64

	// Retracted is set when the prior contribution belonged to another
	// industry and that insight was updated too.
	Retracted                 *Insight
	RetractedExpectedRevision int64
}
