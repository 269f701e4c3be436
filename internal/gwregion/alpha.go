// Public domain.

// Package gwregion turns clusters of credible region pixels into sky
// polygons and queries the catalog for objects inside them.
package gwregion

import (
	"errors"
	"math"

	"github.com/fogleman/delaunay"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// ErrDegenerate is returned for point sets whose alpha shape is not a
// single polygon.
var ErrDegenerate = errors.New("gwregion: degenerate alpha shape")

type edge struct{ a, b int }

func mkEdge(a, b int) edge {
	if a > b {
		a, b = b, a
	}
	return edge{a, b}
}

type triangle struct {
	v  [3]int   // counterclockwise
	r2 float64 // squared circumradius, +Inf when degenerate
}

func orient(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (c[0]-a[0])*(b[1]-a[1])
}

func newTriangle(p []orb.Point, a, b, c int) triangle {
	if orient(p[a], p[b], p[c]) < 0 {
		b, c = c, b
	}
	t := triangle{v: [3]int{a, b, c}, r2: math.Inf(1)}
	ax, ay := p[a][0], p[a][1]
	bx, by := p[b][0], p[b][1]
	cx, cy := p[c][0], p[c][1]
	d := 2 * (ax*(by-cy) + bx*(cy-ay) + cx*(ay-by))
	if d == 0 {
		return t
	}
	a2, b2, c2 := ax*ax+ay*ay, bx*bx+by*by, cx*cx+cy*cy
	ux := (a2*(by-cy) + b2*(cy-ay) + c2*(ay-by)) / d
	uy := (a2*(cx-bx) + b2*(ax-cx) + c2*(bx-ax)) / d
	t.r2 = (ax-ux)*(ax-ux) + (ay-uy)*(ay-uy)
	return t
}

func (t *triangle) edges() [3]edge {
	return [3]edge{mkEdge(t.v[0], t.v[1]), mkEdge(t.v[1], t.v[2]), mkEdge(t.v[2], t.v[0])}
}

// triangulate returns the Delaunay triangles of pts, indexing into pts.
func triangulate(pts []orb.Point) ([]triangle, error) {
	dp := make([]delaunay.Point, len(pts))
	for i, p := range pts {
		dp[i] = delaunay.Point{X: p[0], Y: p[1]}
	}
	d, err := delaunay.Triangulate(dp)
	if err != nil {
		return nil, err
	}
	tris := make([]triangle, 0, len(d.Triangles)/3)
	for i := 0; i+2 < len(d.Triangles); i += 3 {
		tris = append(tris, newTriangle(pts, d.Triangles[i], d.Triangles[i+1], d.Triangles[i+2]))
	}
	return tris, nil
}

func triArea(p []orb.Point, t triangle) float64 {
	return math.Abs(orient(p[t.v[0]], p[t.v[1]], p[t.v[2]])) / 2
}

// components counts the edge connected components of tris.
func components(tris []triangle) int {
	parent := make([]int, len(tris))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	owner := map[edge]int{}
	for i, t := range tris {
		for _, e := range t.edges() {
			if j, ok := owner[e]; ok {
				parent[find(i)] = find(j)
			} else {
				owner[e] = i
			}
		}
	}
	n := 0
	for i := range parent {
		if find(i) == i {
			n++
		}
	}
	return n
}

// rings walks boundary edges into closed rings.  ok is false if a vertex
// joins more than two boundary edges.
func rings(pts []orb.Point, boundary []edge) (rs []orb.Ring, ok bool) {
	adj := map[int][]int{}
	for _, e := range boundary {
		adj[e.a] = append(adj[e.a], e.b)
		adj[e.b] = append(adj[e.b], e.a)
	}
	for _, nb := range adj {
		if len(nb) != 2 {
			return nil, false
		}
	}
	seen := map[int]bool{}
	for _, e := range boundary {
		if seen[e.a] {
			continue
		}
		start := e.a
		r := orb.Ring{pts[start]}
		seen[start] = true
		prev, cur := start, adj[start][0]
		for cur != start {
			seen[cur] = true
			r = append(r, pts[cur])
			next := adj[cur][0]
			if next == prev {
				next = adj[cur][1]
			}
			prev, cur = cur, next
		}
		rs = append(rs, append(r, pts[start]))
	}
	return rs, true
}

// AlphaShape returns the alpha shape of pts as a polygon with exterior ring
// only, counterclockwise from its lowest leftmost vertex.
//
// Delaunay triangles with circumradius less than 1/alpha are kept; alpha
// <= 0 keeps all of them, giving the convex hull.  Point sets whose shape
// is empty, multi-part or pinched at a vertex give ErrDegenerate.  Holes
// are discarded.
func AlphaShape(pts []orb.Point, alpha float64) (orb.Polygon, error) {
	uniq := make([]orb.Point, 0, len(pts))
	dup := map[orb.Point]bool{}
	for _, p := range pts {
		if !dup[p] {
			dup[p] = true
			uniq = append(uniq, p)
		}
	}
	if len(uniq) < 3 {
		return nil, ErrDegenerate
	}
	all, err := triangulate(uniq)
	if err != nil {
		return nil, ErrDegenerate
	}
	scale := orb.MultiPoint(uniq).Bound()
	eps := 1e-12 * math.Max(1, (scale.Max[0]-scale.Min[0])*(scale.Max[1]-scale.Min[1]))
	var tris []triangle
	for _, t := range all {
		if triArea(uniq, t) <= eps {
			continue
		}
		if alpha > 0 && math.Sqrt(t.r2) >= 1/alpha {
			continue
		}
		tris = append(tris, t)
	}
	if len(tris) == 0 || components(tris) != 1 {
		return nil, ErrDegenerate
	}
	count := map[edge]int{}
	for _, t := range tris {
		for _, e := range t.edges() {
			count[e]++
		}
	}
	var boundary []edge
	for _, t := range tris {
		for _, e := range t.edges() {
			if count[e] == 1 {
				boundary = append(boundary, e)
			}
		}
	}
	rs, ok := rings(uniq, boundary)
	if !ok || len(rs) == 0 {
		return nil, ErrDegenerate
	}
	outer, big := rs[0], -1.
	for _, r := range rs {
		if a := math.Abs(planar.Area(r)); a > big {
			outer, big = r, a
		}
	}
	if outer.Orientation() == orb.CW {
		outer.Reverse()
	}
	return orb.Polygon{rotate(outer)}, nil
}

// rotate returns closed ring r starting at its lowest leftmost vertex,
// which is always a convex vertex.
func rotate(r orb.Ring) orb.Ring {
	open := r[:len(r)-1]
	m := 0
	for i, p := range open {
		if p[0] < open[m][0] || p[0] == open[m][0] && p[1] < open[m][1] {
			m = i
		}
	}
	out := make(orb.Ring, 0, len(r))
	out = append(out, open[m:]...)
	out = append(out, open[:m]...)
	return append(out, open[m])
}

// Simplify applies Douglas-Peucker simplification with tolerance tol to
// the exterior ring.  A ring that would collapse below a triangle is
// returned unchanged.
func Simplify(poly orb.Polygon, tol float64) orb.Polygon {
	if tol <= 0 || len(poly) == 0 {
		return poly
	}
	r := simplify.DouglasPeucker(tol).Ring(poly[0].Clone())
	if len(r) < 4 {
		return poly
	}
	return orb.Polygon{r}
}

// Flatten serializes the exterior ring as x0, y0, x1, y1, ... including
// the closing vertex.
func Flatten(poly orb.Polygon) []float64 {
	if len(poly) == 0 {
		return nil
	}
	f := make([]float64, 0, 2*len(poly[0]))
	for _, p := range poly[0] {
		f = append(f, p[0], p[1])
	}
	return f
}
