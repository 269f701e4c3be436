// Public domain.

// Package gwext annotates candidates with ecliptic and galactic latitude
// and galactic extinction, and applies sky plane cuts.
package gwext

import (
	"context"
	"math"

	"github.com/soniakeys/unit"

	"github.com/soniakeys/gwagn/astro"
	"github.com/soniakeys/gwagn/internal/gwclass"
	"github.com/soniakeys/gwagn/internal/logger"
	"github.com/soniakeys/gwagn/internal/metrics"
)

const stage = "extinction"

// DustMap gives E(B-V) at galactic coordinates.
type DustMap interface {
	EBV(l, b unit.Angle) float64
}

// Row is an annotated candidate.  Values that could not be computed are
// NaN.
type Row struct {
	gwclass.Candidate
	EclLat float64 // degrees
	GalLat float64 // degrees
	EBV    float64
	Ag, Ar float64 // magnitudes
}

// Cuts are the retention thresholds.
type Cuts struct {
	MinEclLat float64 // degrees, waived for objects with more than one detection
	MinGalLat float64 // degrees, absolute
	MaxAg     float64 // magnitudes
}

// DefaultCuts are the standard thresholds.
var DefaultCuts = Cuts{MinEclLat: 20, MinGalLat: 20, MaxAg: 1}

// Keep reports whether r passes c.  NaN values fail.
func (c Cuts) Keep(r Row) bool {
	return (r.NDet > 1 || r.EclLat > c.MinEclLat) &&
		math.Abs(r.GalLat) > c.MinGalLat &&
		r.Ag < c.MaxAg
}

// Filter computes extinction and applies cuts.
type Filter struct {
	Dust      DustMap
	Law       *astro.F99
	ApplyCuts bool
	Cuts      Cuts
	Log       logger.Logger
	Metrics   *metrics.Run
}

// Annotate computes latitudes and extinction for one candidate.
func (f *Filter) Annotate(c gwclass.Candidate) (Row, error) {
	r := Row{Candidate: c, EclLat: math.NaN(), GalLat: math.NaN(),
		EBV: math.NaN(), Ag: math.NaN(), Ar: math.NaN()}
	α, δ, err := astro.Equatorial(c.MeanRA, c.MeanDec)
	if err != nil {
		return r, err
	}
	r.EclLat = astro.EclipticLatitude(α, δ).Deg()
	l, b := astro.Galactic(α, δ)
	r.GalLat = b.Deg()
	if f.Dust != nil {
		r.EBV = f.Dust.EBV(l, b)
		r.Ag = f.Law.Extinction(astro.WaveG, r.EBV)
		r.Ar = f.Law.Extinction(astro.WaveR, r.EBV)
	}
	return r, nil
}

// Apply annotates every candidate and returns all rows and, when cuts are
// enabled, the rows passing them.  With cuts disabled kept is all.
// Coordinate failures are logged; the row is kept with NaN values.
func (f *Filter) Apply(ctx context.Context, cands []gwclass.Candidate) (all, kept []Row) {
	log := f.Log
	if log == nil {
		log = logger.Nop()
	}
	all = make([]Row, 0, len(cands))
	for _, c := range cands {
		r, err := f.Annotate(c)
		if err != nil {
			f.Metrics.Failure(stage)
			log.Warn(ctx, "coordinate transform failed", logger.String("oid", c.OID),
				logger.Float64("ra", c.MeanRA), logger.Float64("dec", c.MeanDec),
				logger.Error(err))
		}
		all = append(all, r)
	}
	if !f.ApplyCuts {
		f.Metrics.Rows(stage, len(all))
		return all, all
	}
	kept = []Row{}
	for _, r := range all {
		if f.Cuts.Keep(r) {
			kept = append(kept, r)
		}
	}
	f.Metrics.Rows(stage, len(kept))
	log.Info(ctx, "sky plane cuts applied",
		logger.Count("before", len(all)), logger.Count("after", len(kept)))
	return all, kept
}
