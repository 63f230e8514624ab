// Package cluster groups embedding vectors with k-means.
package cluster

import (
	"errors"
	"math"
	"math/rand"
)

// Defaults used when grouping an industry's documents.
const (
	DefaultSeed     = 42
	DefaultMaxIters = 100
	MinK            = 2
	MaxK            = 8
)

// convergence is the largest centroid movement treated as no change.
const convergence = 1e-8

// ErrInvalidK is returned when k is not positive.
var ErrInvalidK = errors.New("k must be positive")

// Result is a k-means partition.
type Result struct {
	// Labels[i] is the cluster of vectors[i].
	Labels []int

	// Centroids has one row per cluster.
	Centroids [][]float64

	// Iterations is the number of assignment rounds run.
	Iterations int
}

// ChooseK returns clamp(round(sqrt(n)), MinK, MaxK), capped at n.
func ChooseK(n int) int {
	if n <= 0 {
		return 0
	}
	k := int(math.Round(math.Sqrt(float64(n))))
	k = max(MinK, min(MaxK, k))
	return min(k, n)
}

// KMeans partitions vectors into k clusters. k is capped at the number
// of vectors. Initial centroids are sampled without replacement using
// seed, and a cluster left empty is reseeded from a random vector, so
// results are deterministic for a given input and seed.
func KMeans(vectors [][]float32, k, maxIters int, seed int64) (*Result, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	n := len(vectors)
	if n == 0 {
		return &Result{}, nil
	}
	k = min(k, n)
	if maxIters <= 0 {
		maxIters = DefaultMaxIters
	}

	data := make([][]float64, n)
	for i, v := range vectors {
		row := make([]float64, len(v))
		for j, x := range v {
			row[j] = float64(x)
		}
		data[i] = row
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic clustering, not security
	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(n)[:k] {
		centroids[i] = append([]float64(nil), data[idx]...)
	}

	labels := make([]int, n)
	iters := 0
	for iters < maxIters {
		iters++
		for i, row := range data {
			labels[i] = nearest(row, centroids)
		}

		next := recompute(data, labels, k, rng)
		moved := 0.0
		for c := range centroids {
			moved = max(moved, sqDist(centroids[c], next[c]))
		}
		centroids = next
		if moved <= convergence {
			break
		}
	}

	return &Result{Labels: labels, Centroids: centroids, Iterations: iters}, nil
}

func recompute(data [][]float64, labels []int, k int, rng *rand.Rand) [][]float64 {
	dims := len(data[0])
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, row := range data {
		c := labels[i]
		counts[c]++
		for j := 0; j < dims && j < len(row); j++ {
			sums[c][j] += row[j]
		}
	}
	for c := range sums {
		if counts[c] == 0 {
			sums[c] = append([]float64(nil), data[rng.Intn(len(data))]...)
			continue
		}
		for j := range sums[c] {
			sums[c][j] /= float64(counts[c])
		}
	}
	return sums
}

// nearest returns the index of the closest centroid, lowest index on ties.
func nearest(row []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDist(row, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := 0; i < len(a) && i < len(b); i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
