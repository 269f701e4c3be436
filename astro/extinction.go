// Public domain.

package astro

import (
	"math"

	"gonum.org/v1/gonum/interp"
)

// Effective wavelengths in Å of the ZTF g and r filters.
const (
	WaveG = 4716.7
	WaveR = 6165.1
)

// F99 is the Fitzpatrick (1999) R_V dependent extinction law.
//
// Optical and IR are a natural cubic spline through anchor points; the UV
// follows the Fitzpatrick & Massa (1990) parameterization.
type F99 struct {
	Rv float64

	c1, c2 float64
	spline interp.NaturalCubic
}

// FM90 constants for the F99 curve
const (
	fmX0    = 4.596
	fmGamma = 0.99
	fmC3    = 3.23
	fmC4    = 0.41
)

// anchor inverse wavelengths, 1/µm
var f99x = []float64{0, 1e4 / 26500, 1e4 / 12200, 1e4 / 6000, 1e4 / 5470,
	1e4 / 4670, 1e4 / 4110, 1e4 / 2700, 1e4 / 2600}

// NewF99 fits the law for the given R_V.
func NewF99(rv float64) (*F99, error) {
	f := &F99{Rv: rv}
	f.c2 = -0.824 + 4.717/rv
	f.c1 = 2.030 - 3.007*f.c2
	ir := rv / 3.1
	y := []float64{
		0,
		0.26469 * ir,
		0.82925 * ir,
		-0.422809 + 1.00270*rv + 2.13572e-04*rv*rv,
		-5.13540e-02 + 1.00216*rv - 7.35778e-05*rv*rv,
		0.700127 + 1.00184*rv - 3.32598e-05*rv*rv,
		1.19456 + 1.01707*rv - 5.46959e-03*rv*rv + 7.97809e-04*rv*rv*rv -
			4.45636e-05*rv*rv*rv*rv,
		f.uv(f99x[7]),
		f.uv(f99x[8]),
	}
	if err := f.spline.Fit(f99x, y); err != nil {
		return nil, err
	}
	return f, nil
}

// uv returns A(x)/E(B-V) from the FM90 form.
func (f *F99) uv(x float64) float64 {
	x2 := x * x
	d := x2 - fmX0*fmX0
	k := f.c1 + f.c2*x + fmC3*x2/(d*d+x2*fmGamma*fmGamma)
	if x >= 5.9 {
		y := x - 5.9
		k += fmC4 * (0.5392*y*y + 0.05644*y*y*y)
	}
	return k + f.Rv
}

// Ratio returns A(λ)/E(B-V) at wavelength wave in Å.  The law is defined
// from 910 Å to 6 µm; outside that range Ratio returns NaN.
func (f *F99) Ratio(wave float64) float64 {
	if !(wave >= 910 && wave <= 60000) {
		return math.NaN()
	}
	x := 1e4 / wave
	if x >= f99x[7] {
		return f.uv(x)
	}
	return f.spline.Predict(x)
}

// Extinction returns A(λ) in magnitudes for color excess ebv.
func (f *F99) Extinction(wave, ebv float64) float64 {
	return ebv * f.Ratio(wave)
}
