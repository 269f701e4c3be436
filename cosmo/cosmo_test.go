// Public domain.

package cosmo_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/gwagn/cosmo"
)

func ExampleCosmology_ComovingDistance() {
	fmt.Printf("%.0f Mpc\n", cosmo.WMAP9.ComovingDistance(0))
	// Output:
	// 0 Mpc
}

func TestFlat(t *testing.T) {
	c := cosmo.WMAP9
	assert.InDelta(t, 1, c.Om0+c.Or0()+c.Ode0(), 1e-12)
	assert.InDelta(t, 9e-5, c.Or0(), 2e-5)
	assert.InDelta(t, 1, c.InvE(0), 1e-12)
}

func TestComovingDistance(t *testing.T) {
	d := cosmo.WMAP9.ComovingDistance(.1)
	assert.True(t, d > 415 && d < 430, "D_C(0.1) = %v", d)

	// low redshift limit is Hubble's law
	z := 1e-4
	assert.InDelta(t, z*cosmo.WMAP9.HubbleDistance(),
		cosmo.WMAP9.ComovingDistance(z), 1e-3)

	last := 0.
	for z := .05; z < 3; z += .05 {
		d := cosmo.WMAP9.ComovingDistance(z)
		require.Greater(t, d, last, "not increasing at z=%v", z)
		last = d
	}
}

func TestRedshift(t *testing.T) {
	for _, z := range []float64{.001, .01, .05, .1, .5, 1, 2.5} {
		d := cosmo.WMAP9.ComovingDistance(z)
		got, err := cosmo.WMAP9.Redshift(d)
		require.NoError(t, err)
		assert.InDelta(t, z, got, 1e-8, "z=%v", z)
	}
	z, err := cosmo.WMAP9.Redshift(0)
	require.NoError(t, err)
	assert.Zero(t, z)

	for _, d := range []float64{-1, math.NaN(), 1e9} {
		_, err := cosmo.WMAP9.Redshift(d)
		assert.ErrorIs(t, err, cosmo.ErrDistance, "d=%v", d)
	}
}

func TestRedshiftFar(t *testing.T) {
	c := cosmo.WMAP9
	d20 := c.ComovingDistance(20)
	assert.True(t, d20 > 10900 && d20 < 11200, "D_C(20) = %v", d20)
	d1000 := c.ComovingDistance(1000)
	assert.True(t, d1000 > 13500 && d1000 < 14500, "D_C(1000) = %v", d1000)

	for _, d := range []float64{9800, 11700, 12000, 13000} {
		z, err := c.Redshift(d)
		require.NoError(t, err, "d=%v", d)
		assert.InEpsilon(t, d, c.ComovingDistance(z), 1e-9, "d=%v", d)
	}
	_, err := c.Redshift(d1000 * 1.01)
	assert.ErrorIs(t, err, cosmo.ErrDistance)

	// a finer rule agrees to well under a part per million
	assert.InEpsilon(t, d1000, c.HubbleDistance()*fine(c, 1000), 1e-6)
}

// fine integrates 1/E(z) directly by the trapezoid rule in ln(1+z) with
// many steps.
func fine(c *cosmo.Cosmology, z float64) float64 {
	const n = 200000
	a, b := -math.Log1p(z), 0.
	h := (b - a) / n
	f := func(u float64) float64 {
		zp1 := math.Exp(-u)
		return zp1 * c.InvE(zp1-1)
	}
	s := .5 * (f(a) + f(b))
	for i := 1; i < n; i++ {
		s += f(a + float64(i)*h)
	}
	return s * h
}
