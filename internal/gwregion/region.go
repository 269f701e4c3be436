// Public domain.

package gwregion

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/gwclust"
	"github.com/soniakeys/gwagn/internal/logger"
	"github.com/soniakeys/gwagn/internal/metrics"
)

// ErrNoTime is returned when the skymap carries no observation time.
var ErrNoTime = errors.New("gwregion: skymap has no MJD-OBS")

const stage = "region"

// Querier is the catalog query used by Engine.
type Querier interface {
	Objects(ctx context.Context, poly []float64, first, last int) ([]catalog.Object, error)
}

// Region is the polygon of one cluster.
type Region struct {
	Label   int
	N       int // points in the cluster
	Polygon orb.Polygon
}

// Engine queries the catalog over cluster polygons.
type Engine struct {
	Alpha    float64 // alpha shape parameter, <= 0 for the convex hull
	Simplify float64 // Douglas-Peucker tolerance in degrees, 0 for none
	NDays    float64 // length of the first detection window
	Log      logger.Logger
	Metrics  *metrics.Run
}

func (e *Engine) log() logger.Logger {
	if e.Log == nil {
		return logger.Nop()
	}
	return e.Log
}

// Regions computes a polygon for each cluster label in ascending order.
// Clusters of fewer than 3 points, and clusters whose shape is degenerate,
// are logged and left out.
func (e *Engine) Regions(ctx context.Context, part *gwclust.Partition) []Region {
	groups := make([][]orb.Point, part.K)
	for _, p := range part.Points {
		if p.Label >= 0 && p.Label < part.K {
			groups[p.Label] = append(groups[p.Label], orb.Point{p.RA, p.Dec})
		}
	}
	var rs []Region
	for label, pts := range groups {
		if len(pts) < 3 {
			e.log().Debug(ctx, "cluster too small for a polygon",
				logger.Int("label", label), logger.Int("points", len(pts)))
			continue
		}
		poly, err := AlphaShape(pts, e.Alpha)
		if err != nil {
			e.Metrics.Failure(stage)
			e.log().Warn(ctx, "cluster skipped",
				logger.Int("label", label), logger.Int("points", len(pts)), logger.Error(err))
			continue
		}
		rs = append(rs, Region{Label: label, N: len(pts), Polygon: Simplify(poly, e.Simplify)})
	}
	return rs
}

// Query returns the deduplicated catalog objects inside the cluster
// polygons with first detection within NDays after mjdObs.  A failed
// cluster query is logged and skipped.
func (e *Engine) Query(ctx context.Context, part *gwclust.Partition, mjdObs float64, q Querier) ([]catalog.Object, error) {
	if math.IsNaN(mjdObs) || math.IsInf(mjdObs, 0) {
		return nil, ErrNoTime
	}
	first := int(math.Floor(mjdObs))
	last := first + int(e.NDays)
	seen := map[string]bool{}
	objs := []catalog.Object{}
	for _, r := range e.Regions(ctx, part) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.Metrics.Query(stage)
		got, err := q.Objects(ctx, Flatten(r.Polygon), first, last)
		if err != nil {
			e.Metrics.Failure(stage)
			e.log().Warn(ctx, "cluster query failed",
				logger.Int("label", r.Label), logger.Error(err))
			continue
		}
		n := 0
		for _, o := range got {
			if !seen[o.OID] {
				seen[o.OID] = true
				objs = append(objs, o)
				n++
			}
		}
		e.log().Info(ctx, "cluster queried",
			logger.Int("label", r.Label),
			logger.Int("vertices", len(r.Polygon[0])-1),
			logger.Count("rows", len(got)), logger.Count("new", n))
	}
	e.Metrics.Rows(stage, len(objs))
	return objs, nil
}

// String formats a region for display.
func (r Region) String() string {
	b := r.Polygon.Bound()
	return fmt.Sprintf("cluster %d: %d points, %d vertices, RA %.2f..%.2f Dec %.2f..%.2f",
		r.Label, r.N, len(r.Polygon[0])-1, b.Min[0], b.Max[0], b.Min[1], b.Max[1])
}
