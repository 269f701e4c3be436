// Public domain.

// Package gwz converts a skymap distance posterior to redshift windows and
// filters crossmatched objects by them.
package gwz

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/soniakeys/gwagn/cosmo"
	"github.com/soniakeys/gwagn/internal/gwmatch"
	"github.com/soniakeys/gwagn/internal/gwsky"
	"github.com/soniakeys/gwagn/internal/logger"
)

// ErrNoDistance is returned for skymaps without a usable distance
// posterior.
var ErrNoDistance = errors.New("gwz: skymap has no distance information")

// Selector names a window width.
type Selector string

const (
	Sigma1 Selector = "1sigma" // 1.28σ
	Sigma2 Selector = "2sigma"
	Sigma3 Selector = "3sigma"
	SigmaK Selector = "ksigma" // adaptive, at most 3σ
)

// Selectors lists the valid selectors.
var Selectors = []Selector{Sigma1, Sigma2, Sigma3, SigmaK}

// ParseSelector returns the selector named by s.  An unknown name gives
// Sigma2 and a warning.
func ParseSelector(ctx context.Context, s string, log logger.Logger) Selector {
	for _, sel := range Selectors {
		if Selector(s) == sel {
			return sel
		}
	}
	if log != nil {
		log.Warn(ctx, "invalid sigma selector, using 2sigma", logger.String("selector", s))
	}
	return Sigma2
}

// Distance is a distance posterior summary in Mpc.
type Distance struct {
	Mean, Std float64
	// K is the adaptive window multiplier: 3 if Mean/Std > 3, otherwise
	// Mean/Std rounded to 3 decimals.
	K float64
	// FromPixels is true when the moments were computed from per pixel
	// distance layers rather than taken from the header.
	FromPixels bool
}

// Multiplier returns the window half width in units of Std.
func (d Distance) Multiplier(sel Selector) float64 {
	switch sel {
	case Sigma1:
		return 1.28
	case Sigma3:
		return 3
	case SigmaK:
		return d.K
	}
	return 2
}

// conditional moments of the r² weighted normal ansatz, in units of σ
func ansatz(mu, sigma float64) (mean, m2 float64) {
	x := mu / sigma
	Φ := distuv.UnitNormal.CDF(x)
	φ := distuv.UnitNormal.Prob(x)
	x2 := x * x
	b2 := (x2+1)*Φ + x*φ
	b3 := (x2*x+3*x)*Φ + (x2+2)*φ
	b4 := (x2*x2+6*x2+3)*Φ + (x2*x+5*x)*φ
	return sigma * b3 / b2, sigma * sigma * b4 / b2
}

// Moments returns the marginal distance mean and standard deviation of s.
// Pixel distance layers are used when present, weighted by pixel
// probability; otherwise the DISTMEAN and DISTSTD header values.
func Moments(s *gwsky.Skymap) (Distance, error) {
	var d Distance
	if s.HasDistance {
		var w, m1, m2 float64
		for _, p := range s.Pixels {
			if !(p.Prob > 0) || math.IsInf(p.Prob, 0) ||
				math.IsNaN(p.DistMu) || math.IsInf(p.DistMu, 0) ||
				!(p.DistSigma > 0) || math.IsInf(p.DistSigma, 0) {
				continue
			}
			mean, sq := ansatz(p.DistMu, p.DistSigma)
			if math.IsNaN(mean) || math.IsNaN(sq) || math.IsInf(sq, 0) {
				continue
			}
			w += p.Prob
			m1 += p.Prob * mean
			m2 += p.Prob * sq
		}
		if w > 0 {
			m1 /= w
			m2 /= w
			d = Distance{Mean: m1, Std: math.Sqrt(math.Max(m2-m1*m1, 0)), FromPixels: true}
		}
	}
	if !d.FromPixels {
		if !(s.DistMean > 0) || !(s.DistStd > 0) {
			return d, ErrNoDistance
		}
		d = Distance{Mean: s.DistMean, Std: s.DistStd}
	}
	if !(d.Std > 0) {
		return d, ErrNoDistance
	}
	d.K = 3
	if r := d.Mean / d.Std; r <= 3 {
		d.K = math.Round(r*1000) / 1000
	}
	return d, nil
}

// Window is a distance interval and the corresponding redshift interval.
type Window struct {
	Selector   Selector
	N          float64 // half width in units of Std
	DMin, DMax float64 // Mpc, DMin clamped at 0
	ZMin, ZMax float64
}

// Contains reports whether ZMin <= z <= ZMax.  NaN is never contained.
func (w Window) Contains(z float64) bool {
	return z >= w.ZMin && z <= w.ZMax
}

// Window returns the window for sel under cosmology c.  A bound past the
// reach of c.Redshift converts to +Inf, so a window extending beyond the
// search horizon is open above and one lying wholly beyond it is empty.
func (d Distance) Window(sel Selector, c *cosmo.Cosmology) (Window, error) {
	n := d.Multiplier(sel)
	w := Window{
		Selector: sel,
		N:        n,
		DMin:     math.Max(d.Mean-n*d.Std, 0),
		DMax:     d.Mean + n*d.Std,
	}
	var err error
	if w.ZMin, err = redshift(c, w.DMin); err != nil {
		return w, fmt.Errorf("%s lower bound %.1f Mpc: %w", sel, w.DMin, err)
	}
	if w.ZMax, err = redshift(c, w.DMax); err != nil {
		return w, fmt.Errorf("%s upper bound %.1f Mpc: %w", sel, w.DMax, err)
	}
	return w, nil
}

func redshift(c *cosmo.Cosmology, d float64) (float64, error) {
	z, err := c.Redshift(d)
	if err != nil && d > 0 && !math.IsInf(d, 1) {
		return math.Inf(1), nil
	}
	return z, err
}

// Result is the distance summary of a skymap with its redshift windows.
type Result struct {
	Event    string
	Distance Distance
	Windows  map[Selector]Window
}

// Compute returns the distance summary and all windows for s under WMAP9.
// A window that cannot be converted is recorded with NaN redshift bounds,
// which contain nothing.
func Compute(s *gwsky.Skymap) (*Result, error) {
	d, err := Moments(s)
	if err != nil {
		return nil, err
	}
	r := &Result{Event: s.Event, Distance: d, Windows: map[Selector]Window{}}
	for _, sel := range Selectors {
		w, err := d.Window(sel, cosmo.WMAP9)
		if err != nil {
			w.ZMin, w.ZMax = math.NaN(), math.NaN()
		}
		r.Windows[sel] = w
	}
	return r, nil
}

// Filter returns the matches whose reference redshift lies in w.
func Filter(ms []gwmatch.Match, w Window) []gwmatch.Match {
	out := []gwmatch.Match{}
	for _, m := range ms {
		if w.Contains(m.Z) {
			out = append(out, m)
		}
	}
	return out
}

// Stage computes windows for a skymap and filters matches by the selected
// one.
type Stage struct {
	Selector Selector
	Log      logger.Logger
}

// Apply returns the distance summary, the selected window and the matches
// inside it.
func (st *Stage) Apply(ctx context.Context, s *gwsky.Skymap, ms []gwmatch.Match) (*Result, Window, []gwmatch.Match, error) {
	r, err := Compute(s)
	if err != nil {
		return nil, Window{}, nil, err
	}
	w := r.Windows[st.Selector]
	if w.Selector == "" {
		w = r.Windows[Sigma2]
	}
	if math.IsNaN(w.ZMin) || math.IsNaN(w.ZMax) {
		return r, w, nil, fmt.Errorf("%s window %.1f-%.1f Mpc: %w",
			w.Selector, w.DMin, w.DMax, cosmo.ErrDistance)
	}
	kept := Filter(ms, w)
	if st.Log != nil {
		st.Log.Info(ctx, "redshift window applied",
			logger.Float64("dist_mean", r.Distance.Mean),
			logger.Float64("dist_std", r.Distance.Std),
			logger.Float64("k", r.Distance.K),
			logger.String("selector", string(w.Selector)),
			logger.Float64("z_min", w.ZMin), logger.Float64("z_max", w.ZMax),
			logger.Count("matches", len(ms)), logger.Count("kept", len(kept)))
	}
	return r, w, kept, nil
}
