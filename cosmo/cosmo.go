// Public domain.

// Package cosmo computes comoving distances for a flat ΛCDM cosmology
// with radiation, and inverts them to redshift.
package cosmo

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// C is the speed of light in km/s.
const C = 299792.458

// Cosmology holds the parameters of a flat ΛCDM model with photons and
// massless neutrinos.
type Cosmology struct {
	H0   float64 // km/s/Mpc
	Om0  float64 // matter density today
	Tcmb float64 // K
	Neff float64

	ogamma0, onu0, ode0 float64
}

// New returns a flat cosmology.  Dark energy density is whatever is left
// after matter, photons and neutrinos.
func New(h0, om0, tcmb, neff float64) *Cosmology {
	c := &Cosmology{H0: h0, Om0: om0, Tcmb: tcmb, Neff: neff}
	h := h0 / 100
	c.ogamma0 = 4.48150052e-7 * math.Pow(tcmb, 4) / (h * h)
	// 7/8 (4/11)^(4/3) per effective neutrino species
	c.onu0 = 0.22710731766 * neff * c.ogamma0
	c.ode0 = 1 - om0 - c.ogamma0 - c.onu0
	return c
}

// WMAP9 is the WMAP nine year cosmology.
var WMAP9 = New(69.32, 0.2865, 2.725, 3.04)

// Ode0 returns the dark energy density today.
func (c *Cosmology) Ode0() float64 { return c.ode0 }

// Or0 returns the radiation (photon plus neutrino) density today.
func (c *Cosmology) Or0() float64 { return c.ogamma0 + c.onu0 }

// HubbleDistance returns c/H0 in Mpc.
func (c *Cosmology) HubbleDistance() float64 { return C / c.H0 }

// InvE is 1/E(z), with E(z) = H(z)/H0.
func (c *Cosmology) InvE(z float64) float64 {
	zp1 := 1 + z
	zp2 := zp1 * zp1
	e2 := c.Om0*zp2*zp1 + c.Or0()*zp2*zp2 + c.ode0
	return 1 / math.Sqrt(e2)
}

// quadrature points.  The integral is taken over u = -ln(1+z), where the
// integrand is smooth from z = 0 out to the radiation era, so a fixed
// Gauss-Legendre rule holds its accuracy over the whole range of zMax.
const nQuad = 64

// ComovingDistance returns the line of sight comoving distance to redshift
// z in Mpc.
func (c *Cosmology) ComovingDistance(z float64) float64 {
	if z <= 0 {
		return 0
	}
	f := func(u float64) float64 {
		zp1 := math.Exp(-u)
		return zp1 * c.InvE(zp1-1)
	}
	return c.HubbleDistance() * quad.Fixed(f, -math.Log1p(z), 0, nQuad, nil, 0)
}

// ErrDistance is returned by Redshift for distances it cannot invert.
var ErrDistance = errors.New("cosmo: distance out of range")

// zMax bounds the redshift search, beyond last scattering.
const zMax = 1000.

// Redshift returns the redshift at which the comoving distance equals d
// Mpc.  A distance of zero gives redshift zero.  Distances beyond
// D_C(zMax) give ErrDistance.
func (c *Cosmology) Redshift(d float64) (float64, error) {
	switch {
	case d == 0:
		return 0, nil
	case !(d > 0) || d > c.ComovingDistance(zMax):
		return math.NaN(), ErrDistance
	}
	// bisect in ln(1+z), which spreads the range evenly
	lo, hi := 0., math.Log1p(zMax)
	for i := 0; i < 100 && hi-lo > 1e-12; i++ {
		mid := .5 * (lo + hi)
		if c.ComovingDistance(math.Expm1(mid)) < d {
			lo = mid
		} else {
			hi = mid
		}
	}
	return math.Expm1(.5 * (lo + hi)), nil
}
