// Public domain.

// Package astro, stuff generally useful in astronomy.
//
// Coordinate transforms here are thin layers over meeus, adapted to the
// degree-valued catalog columns gwagn works with.
package astro

import (
	"errors"
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/meeus/v3/base"
	mcoord "github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/precess"
	"github.com/soniakeys/unit"
)

// ErrCoord is returned for equatorial coordinates that are not finite or
// are out of range.
var ErrCoord = errors.New("astro: invalid equatorial coordinates")

// Equatorial validates RA and Dec given in degrees and converts them to
// meeus angle types.  RA may be any finite value and is wrapped; Dec must
// be within [-90, 90].
func Equatorial(raDeg, decDeg float64) (unit.RA, unit.Angle, error) {
	if math.IsNaN(raDeg) || math.IsInf(raDeg, 0) ||
		math.IsNaN(decDeg) || decDeg < -90 || decDeg > 90 {
		return 0, 0, ErrCoord
	}
	return unit.RAFromDeg(raDeg), unit.AngleFromDeg(decDeg), nil
}

// sine and cosine of J2000 mean obliquity
var sε, cε = nutation.MeanObliquity(base.J2000).Sincos()

// EclipticLatitude returns the ecliptic latitude of a J2000 equatorial
// position, referred to the J2000 mean ecliptic.
func EclipticLatitude(α unit.RA, δ unit.Angle) unit.Angle {
	_, β := mcoord.EqToEcl(α, δ, sε, cε)
	return β
}

// The IAU 1958 galactic system is defined against B1950 coordinates.
var toB1950 = precess.NewPrecessor(2000,
	base.JDEToJulianYear(base.BesselianYearToJDE(1950)))

// Galactic returns galactic longitude and latitude for a J2000 equatorial
// position.
func Galactic(α unit.RA, δ unit.Angle) (l, b unit.Angle) {
	eq := toB1950.Precess(&mcoord.Equatorial{RA: α, Dec: δ},
		&mcoord.Equatorial{})
	return mcoord.EqToGal(eq.RA, eq.Dec)
}

// UnitVector returns the unit vector in the direction of α, δ.
func UnitVector(α unit.RA, δ unit.Angle) *coord.Cart {
	sα, cα := math.Sincos(α.Rad())
	sδ, cδ := δ.Sincos()
	return &coord.Cart{X: cδ * cα, Y: cδ * sα, Z: sδ}
}

// Separation returns the angular separation of two unit vectors.
// Accurate at arc second scale.
func Separation(a, b *coord.Cart) unit.Angle {
	var c coord.Cart
	c.Cross(a, b)
	return unit.Angle(math.Atan2(math.Sqrt(c.Square()), a.Dot(b)))
}
