// Public domain.

package gwz_test

import (
	"bytes"
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/gwagn/cosmo"
	"github.com/soniakeys/gwagn/internal/catalog"
	"github.com/soniakeys/gwagn/internal/gwmatch"
	"github.com/soniakeys/gwagn/internal/gwsky"
	"github.com/soniakeys/gwagn/internal/gwz"
	"github.com/soniakeys/gwagn/internal/logger"
)

func pixelMap(mu, sigma float64, probs ...float64) *gwsky.Skymap {
	s := &gwsky.Skymap{HasDistance: true, DistMean: math.NaN(), DistStd: math.NaN()}
	for _, p := range probs {
		s.Pixels = append(s.Pixels, gwsky.Pixel{Prob: p, DistMu: mu, DistSigma: sigma})
	}
	return s
}

func TestMomentsPixels(t *testing.T) {
	d, err := gwz.Moments(pixelMap(100, 10, .5, .3, .2))
	require.NoError(t, err)
	assert.True(t, d.FromPixels)
	assert.InDelta(t, 101.98, d.Mean, .01)
	assert.InDelta(t, 9.90, d.Std, .01)
	assert.Equal(t, 3., d.K)

	// far from zero the ansatz approaches the plain normal
	d, err = gwz.Moments(pixelMap(1000, 1, 1))
	require.NoError(t, err)
	assert.InDelta(t, 1000, d.Mean, .01)
	assert.InDelta(t, 1, d.Std, .01)
}

func TestMomentsSkipsBadPixels(t *testing.T) {
	s := pixelMap(100, 10, .5, .5)
	s.Pixels = append(s.Pixels,
		gwsky.Pixel{Prob: .5, DistMu: math.Inf(1), DistSigma: 1},
		gwsky.Pixel{Prob: .5, DistMu: 500, DistSigma: math.NaN()},
		gwsky.Pixel{Prob: 0, DistMu: 500, DistSigma: 10})
	d, err := gwz.Moments(s)
	require.NoError(t, err)
	assert.InDelta(t, 101.98, d.Mean, .01)
}

func TestMomentsHeader(t *testing.T) {
	s := &gwsky.Skymap{DistMean: 100, DistStd: 40}
	d, err := gwz.Moments(s)
	require.NoError(t, err)
	assert.False(t, d.FromPixels)
	assert.Equal(t, gwz.Distance{Mean: 100, Std: 40, K: 2.5}, d)

	// pixel layers without usable values fall back to the header
	s = pixelMap(math.NaN(), 1, 1)
	s.DistMean, s.DistStd = 200, 30
	d, err = gwz.Moments(s)
	require.NoError(t, err)
	assert.Equal(t, 200., d.Mean)
	assert.False(t, d.FromPixels)

	d, err = gwz.Moments(&gwsky.Skymap{DistMean: 90, DistStd: 40})
	require.NoError(t, err)
	assert.Equal(t, 2.25, d.K)
	d, err = gwz.Moments(&gwsky.Skymap{DistMean: 100, DistStd: 30})
	require.NoError(t, err)
	assert.Equal(t, 3., d.K) // 3.333 capped
	d, err = gwz.Moments(&gwsky.Skymap{DistMean: 100, DistStd: 70})
	require.NoError(t, err)
	assert.Equal(t, 1.429, d.K)

	_, err = gwz.Moments(&gwsky.Skymap{DistMean: math.NaN(), DistStd: math.NaN()})
	assert.ErrorIs(t, err, gwz.ErrNoDistance)
}

func TestWindows(t *testing.T) {
	d := gwz.Distance{Mean: 100, Std: 40, K: 2.5}
	w, err := d.Window(gwz.Sigma1, cosmo.WMAP9)
	require.NoError(t, err)
	assert.InDelta(t, 48.8, w.DMin, 1e-9)
	assert.InDelta(t, 151.2, w.DMax, 1e-9)
	assert.InDelta(t, w.DMin, cosmo.WMAP9.ComovingDistance(w.ZMin), 1e-4)
	assert.InDelta(t, w.DMax, cosmo.WMAP9.ComovingDistance(w.ZMax), 1e-4)

	w, err = d.Window(gwz.SigmaK, cosmo.WMAP9)
	require.NoError(t, err)
	assert.Equal(t, 0., w.DMin) // clamped
	assert.Equal(t, 0., w.ZMin)
	assert.Equal(t, 200., w.DMax)

	w3, err := d.Window(gwz.Sigma3, cosmo.WMAP9)
	require.NoError(t, err)
	w2, err := d.Window(gwz.Sigma2, cosmo.WMAP9)
	require.NoError(t, err)
	assert.Equal(t, 0., w3.ZMin)
	assert.Greater(t, w3.ZMax, w.ZMax)
	assert.Greater(t, w.ZMax, w2.ZMax)
	assert.InDelta(t, 20, w2.DMin, 1e-9)
}

func TestCompute(t *testing.T) {
	r, err := gwz.Compute(&gwsky.Skymap{Event: "S1", DistMean: 400, DistStd: 100})
	require.NoError(t, err)
	assert.Equal(t, "S1", r.Event)
	require.Len(t, r.Windows, 4)
	for _, sel := range gwz.Selectors {
		w := r.Windows[sel]
		assert.Equal(t, sel, w.Selector)
		assert.Less(t, w.ZMin, w.ZMax)
		assert.InDelta(t, w.DMax, cosmo.WMAP9.ComovingDistance(w.ZMax), 1e-4)
	}
	assert.Equal(t, 3., r.Windows[gwz.SigmaK].N)
	assert.Equal(t, 1.28, r.Windows[gwz.Sigma1].N)
}

func TestComputeFar(t *testing.T) {
	r, err := gwz.Compute(&gwsky.Skymap{Event: "S2", DistMean: 6000, DistStd: 1900})
	require.NoError(t, err)
	assert.Equal(t, 3., r.Distance.K)
	for _, sel := range gwz.Selectors {
		w := r.Windows[sel]
		assert.False(t, math.IsInf(w.ZMax, 0) || math.IsNaN(w.ZMax), "%s: %v", sel, w.ZMax)
		assert.InEpsilon(t, w.DMax, cosmo.WMAP9.ComovingDistance(w.ZMax), 1e-8)
	}
	assert.Equal(t, 11700., r.Windows[gwz.Sigma3].DMax)
	assert.Greater(t, r.Windows[gwz.Sigma3].ZMax, 10.)

	// 3σ reaches past the search horizon
	r, err = gwz.Compute(&gwsky.Skymap{DistMean: 10000, DistStd: 3000})
	require.NoError(t, err)
	w := r.Windows[gwz.Sigma3]
	assert.True(t, math.IsInf(w.ZMax, 1))
	assert.False(t, math.IsInf(w.ZMin, 0))
	assert.True(t, w.Contains(50))
	assert.False(t, math.IsInf(r.Windows[gwz.Sigma1].ZMax, 0))

	// wholly beyond it
	r, err = gwz.Compute(&gwsky.Skymap{DistMean: 20000, DistStd: 1000})
	require.NoError(t, err)
	w = r.Windows[gwz.Sigma1]
	assert.True(t, math.IsInf(w.ZMin, 1))
	assert.False(t, w.Contains(50))
	assert.Empty(t, gwz.Filter([]gwmatch.Match{{Z: .1}, {Z: 900}}, w))
}

func TestComputeUnconvertible(t *testing.T) {
	s := &gwsky.Skymap{DistMean: 100, DistStd: math.Inf(1)}
	r, err := gwz.Compute(s)
	require.NoError(t, err)
	for _, sel := range gwz.Selectors {
		assert.True(t, math.IsNaN(r.Windows[sel].ZMax), "%s", sel)
		assert.False(t, r.Windows[sel].Contains(.1))
	}
	_, _, kept, err := (&gwz.Stage{Selector: gwz.Sigma2}).Apply(context.Background(), s,
		[]gwmatch.Match{{Z: .1}})
	assert.ErrorIs(t, err, cosmo.ErrDistance)
	assert.Empty(t, kept)
}

func TestStageFar(t *testing.T) {
	s := &gwsky.Skymap{DistMean: 6000, DistStd: 1900}
	ms := []gwmatch.Match{{Z: .01}, {Z: 1.2}, {Z: 3}}
	for _, sel := range gwz.Selectors {
		_, w, kept, err := (&gwz.Stage{Selector: sel}).Apply(context.Background(), s, ms)
		require.NoError(t, err, "%s", sel)
		assert.Equal(t, sel, w.Selector)
		assert.NotEmpty(t, kept, "%s", sel)
	}
}

func TestParseSelector(t *testing.T) {
	var buf bytes.Buffer
	log, err := logger.New(&buf, "warn", false)
	require.NoError(t, err)
	ctx := context.Background()
	for _, s := range []string{"1sigma", "2sigma", "3sigma", "ksigma"} {
		assert.Equal(t, gwz.Selector(s), gwz.ParseSelector(ctx, s, log))
	}
	assert.Empty(t, buf.String())
	assert.Equal(t, gwz.Sigma2, gwz.ParseSelector(ctx, "5sigma", log))
	assert.Contains(t, buf.String(), "5sigma")
	assert.Equal(t, gwz.Sigma2, gwz.ParseSelector(ctx, "", nil))
}

func TestFilter(t *testing.T) {
	w := gwz.Window{ZMin: .1, ZMax: .2}
	var ms []gwmatch.Match
	for i, z := range []float64{.1, .2, .15, .09, .2000001, math.NaN()} {
		ms = append(ms, gwmatch.Match{Object: catalog.Object{OID: string(rune('a' + i))}, Z: z})
	}
	got := gwz.Filter(ms, w)
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].OID)
	assert.Equal(t, "b", got[1].OID)
	assert.Equal(t, "c", got[2].OID)
	assert.Len(t, ms, 6)

	assert.NotNil(t, gwz.Filter(nil, w))
}

func TestStage(t *testing.T) {
	s := &gwsky.Skymap{DistMean: 100, DistStd: 40}
	ms := []gwmatch.Match{{Z: .001}, {Z: .02}, {Z: .5}}
	st := &gwz.Stage{Selector: gwz.SigmaK}
	r, w, kept, err := st.Apply(context.Background(), s, ms)
	require.NoError(t, err)
	assert.Equal(t, 2.5, r.Distance.K)
	assert.Equal(t, gwz.SigmaK, w.Selector)
	assert.Len(t, kept, 2)

	// unknown selectors use 2sigma, which excludes the nearest match
	_, w, kept, err = (&gwz.Stage{Selector: "bogus"}).Apply(context.Background(), s, ms)
	require.NoError(t, err)
	assert.Equal(t, gwz.Sigma2, w.Selector)
	assert.Len(t, kept, 1)

	_, _, _, err = st.Apply(context.Background(), &gwsky.Skymap{DistMean: math.NaN()}, ms)
	assert.ErrorIs(t, err, gwz.ErrNoDistance)
}
