// Public domain.

// Package gwclust partitions credible region pixels into spatial clusters
// with k-means, choosing the number of clusters by silhouette score.
package gwclust

import (
	"errors"
	"math"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// ErrK is returned for a cluster count the points cannot support.
var ErrK = errors.New("gwclust: invalid number of clusters")

// Rand is the subset of the x/exp random generator used here.
type Rand interface {
	Float64() float64
	Intn(int) int
	Perm(int) []int
}

// Model is a fitted k-means partition.
type Model struct {
	Centers [][]float64 // RA, Dec in degrees
	Inertia float64     // sum of squared distances to assigned centers
}

// Predict returns the label of the center nearest to x.
func (m *Model) Predict(x []float64) int {
	best, bestD := 0, math.Inf(1)
	for i, c := range m.Centers {
		if d := sqDist(x, c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func sqDist(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}

// seed picks k initial centers by k-means++.
func seed(x [][]float64, k int, rnd Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, append([]float64{}, x[rnd.Intn(len(x))]...))
	d2 := make([]float64, len(x))
	for i := range x {
		d2[i] = sqDist(x[i], centers[0])
	}
	for len(centers) < k {
		sum := floats.Sum(d2)
		next := 0
		if sum > 0 {
			r := rnd.Float64() * sum
			for next = 0; next < len(x)-1; next++ {
				if r -= d2[next]; r < 0 {
					break
				}
			}
		} else {
			next = rnd.Intn(len(x))
		}
		c := append([]float64{}, x[next]...)
		centers = append(centers, c)
		for i := range x {
			if d := sqDist(x[i], c); d < d2[i] {
				d2[i] = d
			}
		}
	}
	return centers
}

// lloyd runs Lloyd iterations from the given centers.  Labels are written
// to labels.  Empty clusters are re-seeded with the point farthest from
// its center, so every label in [0, k) is used when len(x) >= k.
func lloyd(x [][]float64, centers [][]float64, labels []int, maxIter int) float64 {
	k := len(centers)
	counts := make([]int, k)
	var inertia float64
	for iter := 0; iter < maxIter; iter++ {
		changed := iter == 0
		inertia = 0
		for i := range counts {
			counts[i] = 0
		}
		for i, p := range x {
			best, bestD := 0, math.Inf(1)
			for c, ctr := range centers {
				if d := sqDist(p, ctr); d < bestD {
					best, bestD = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
			counts[best]++
			inertia += bestD
		}
		for c := range counts {
			if counts[c] > 0 {
				continue
			}
			far, farD := -1, -1.
			for i, p := range x {
				if counts[labels[i]] < 2 {
					continue
				}
				if d := sqDist(p, centers[labels[i]]); d > farD {
					far, farD = i, d
				}
			}
			if far < 0 {
				break
			}
			counts[labels[far]]--
			labels[far] = c
			counts[c] = 1
			changed = true
		}
		if !changed {
			break
		}
		for c := range centers {
			for j := range centers[c] {
				centers[c][j] = 0
			}
		}
		for i, p := range x {
			floats.Add(centers[labels[i]], p)
		}
		for c := range centers {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), centers[c])
			}
		}
	}
	return inertia
}

// KMeans fits k clusters to x, keeping the lowest inertia of restarts
// k-means++ initializations.
func KMeans(x [][]float64, k, restarts, maxIter int, rnd Rand) ([]int, *Model, error) {
	if k < 1 || k > len(x) {
		return nil, nil, ErrK
	}
	if restarts < 1 {
		restarts = 1
	}
	var best *Model
	var bestLabels []int
	labels := make([]int, len(x))
	for r := 0; r < restarts; r++ {
		for i := range labels {
			labels[i] = -1
		}
		centers := seed(x, k, rnd)
		inertia := lloyd(x, centers, labels, maxIter)
		if best == nil || inertia < best.Inertia {
			best = &Model{Centers: centers, Inertia: inertia}
			bestLabels = append(bestLabels[:0], labels...)
		}
	}
	return bestLabels, best, nil
}

// Silhouette returns the mean silhouette coefficient of the labeled
// points, computed over a random sample of at most sampleSize of them.
// It returns -1 when the sample holds fewer than two clusters.
func Silhouette(x [][]float64, labels []int, sampleSize int, rnd Rand) float64 {
	idx := rnd.Perm(len(x))
	if sampleSize > 0 && len(idx) > sampleSize {
		idx = idx[:sampleSize]
	}
	k := 0
	for _, i := range idx {
		if labels[i]+1 > k {
			k = labels[i] + 1
		}
	}
	size := make([]int, k)
	for _, i := range idx {
		size[labels[i]]++
	}
	used := 0
	for _, n := range size {
		if n > 0 {
			used++
		}
	}
	if used < 2 {
		return -1
	}

	sum := make([]float64, k)
	total := 0.
	for _, i := range idx {
		for c := range sum {
			sum[c] = 0
		}
		for _, j := range idx {
			if i != j {
				sum[labels[j]] += floats.Distance(x[i], x[j], 2)
			}
		}
		own := labels[i]
		if size[own] < 2 {
			continue // silhouette of a singleton is 0
		}
		a := sum[own] / float64(size[own]-1)
		b := math.Inf(1)
		for c, s := range sum {
			if c != own && size[c] > 0 {
				b = math.Min(b, s/float64(size[c]))
			}
		}
		if m := math.Max(a, b); m > 0 {
			total += (b - a) / m
		}
	}
	return total / float64(len(idx))
}

// compile time check that the x/exp generator satisfies Rand
var _ Rand = (*xrand.Rand)(nil)
