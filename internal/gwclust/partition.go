// Public domain.

package gwclust

import (
	"context"
	"fmt"
	"time"

	xrand "golang.org/x/exp/rand"

	"github.com/soniakeys/gwagn/internal/gwsky"
	"github.com/soniakeys/gwagn/internal/logger"
)

// Options controls the cluster search.
type Options struct {
	MaxClusters int     // largest k tried
	SampleSize  int     // silhouette sample size
	Threshold   float64 // silhouette score accepting a k
	Restarts    int     // k-means++ initializations per fit
	MaxIter     int     // Lloyd iterations per fit
	Repeatable  bool    // seed with Seed rather than the clock
	Seed        uint64
}

// DefaultOptions returns the standard search parameters.
func DefaultOptions() Options {
	return Options{
		MaxClusters: 20,
		SampleSize:  2000,
		Threshold:   .5,
		Restarts:    3,
		MaxIter:     300,
		Repeatable:  true,
		Seed:        3,
	}
}

// Labeled is a credible region point with its cluster label.
type Labeled struct {
	gwsky.Point
	Label int
}

// Partition is the result of Divide.
type Partition struct {
	K      int
	Points []Labeled
	Model  *Model
}

// Partitioner finds and fits cluster partitions.
type Partitioner struct {
	Opt Options
	Log logger.Logger

	rnd *xrand.Rand
}

// New returns a Partitioner.
func New(opt Options, log logger.Logger) *Partitioner {
	if log == nil {
		log = logger.Nop()
	}
	p := &Partitioner{Opt: opt, Log: log, rnd: xrand.New(&xrand.PCGSource{})}
	if !opt.Repeatable {
		p.rnd.Seed(uint64(time.Now().UnixNano()))
	}
	return p
}

// reseed makes each fit independent of the fits before it, so results
// for a given k do not depend on the order of the search.
func (p *Partitioner) reseed() {
	if p.Opt.Repeatable {
		p.rnd.Seed(p.Opt.Seed)
	}
}

func features(pts []gwsky.Point) [][]float64 {
	x := make([][]float64, len(pts))
	for i, pt := range pts {
		x[i] = []float64{pt.RA, pt.Dec}
	}
	return x
}

// Search scores k = 2 through min(MaxClusters, len(pts)-1).  It returns the
// smallest k with a silhouette score at least Threshold or, if none
// reaches it, the best scoring k.  scores[i] is the score of k = i+2.
// Fewer than 3 points give k = 1 and no scores.
func (p *Partitioner) Search(ctx context.Context, pts []gwsky.Point) (k int, scores []float64) {
	maxK := p.Opt.MaxClusters
	if maxK > len(pts)-1 {
		maxK = len(pts) - 1
	}
	if maxK < 2 {
		return 1, nil
	}
	x := features(pts)
	best, bestScore := 2, -2.
	for k := 2; k <= maxK; k++ {
		p.reseed()
		labels, _, err := KMeans(x, k, p.Opt.Restarts, p.Opt.MaxIter, p.rnd)
		if err != nil {
			break
		}
		s := Silhouette(x, labels, p.Opt.SampleSize, p.rnd)
		scores = append(scores, s)
		p.Log.Debug(ctx, "silhouette", logger.Int("k", k), logger.Float64("score", s))
		if s >= p.Opt.Threshold {
			return k, scores
		}
		if s > bestScore {
			best, bestScore = k, s
		}
	}
	p.Log.Warn(ctx, "no cluster count reached silhouette threshold",
		logger.Float64("threshold", p.Opt.Threshold),
		logger.Int("k", best), logger.Float64("score", bestScore))
	return best, scores
}

// FindMinClusters returns the number of clusters chosen by Search.
func (p *Partitioner) FindMinClusters(ctx context.Context, pts []gwsky.Point) int {
	k, _ := p.Search(ctx, pts)
	return k
}

// Divide labels pts with a k cluster partition.  Labels run 0 through
// k-1 and every label is used.
func (p *Partitioner) Divide(ctx context.Context, k int, pts []gwsky.Point) (*Partition, error) {
	if len(pts) == 0 {
		return &Partition{K: 0, Points: []Labeled{}, Model: &Model{}}, nil
	}
	p.reseed()
	labels, m, err := KMeans(features(pts), k, p.Opt.Restarts, p.Opt.MaxIter, p.rnd)
	if err != nil {
		return nil, fmt.Errorf("%w: k=%d for %d points", err, k, len(pts))
	}
	out := make([]Labeled, len(pts))
	for i, pt := range pts {
		out[i] = Labeled{Point: pt, Label: labels[i]}
	}
	p.Log.Info(ctx, "credible region divided",
		logger.Int("k", k), logger.Count("points", len(pts)),
		logger.Float64("inertia", m.Inertia))
	return &Partition{K: k, Points: out, Model: m}, nil
}
