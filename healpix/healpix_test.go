// Public domain.

package healpix_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soniakeys/gwagn/healpix"
)

func TestUniqRoundTrip(t *testing.T) {
	for level := 0; level <= 12; level++ {
		nside := healpix.LevelToNside(level)
		for _, ipix := range []int64{0, 1, healpix.Npix(nside) / 2, healpix.Npix(nside) - 1} {
			u := healpix.LevelIpixToUniq(level, ipix)
			l, p, err := healpix.UniqToLevelIpix(u)
			require.NoError(t, err)
			assert.Equal(t, level, l, "uniq %d", u)
			assert.Equal(t, ipix, p, "uniq %d", u)
		}
	}
}

func TestUniqInvalid(t *testing.T) {
	for _, u := range []int64{-1, 0, 1, 3} {
		_, _, err := healpix.UniqToLevelIpix(u)
		assert.ErrorIs(t, err, healpix.ErrUniq)
	}
}

func TestBasePixels(t *testing.T) {
	capLat := math.Asin(2. / 3)
	want := []struct{ lon, lat float64 }{
		{45, capLat}, {135, capLat}, {225, capLat}, {315, capLat},
		{0, 0}, {90, 0}, {180, 0}, {270, 0},
		{45, -capLat}, {135, -capLat}, {225, -capLat}, {315, -capLat},
	}
	for p, w := range want {
		lon, lat := healpix.NestToLonLat(1, int64(p))
		assert.InDelta(t, w.lon, lon*180/math.Pi, 1e-9, "pixel %d lon", p)
		assert.InDelta(t, w.lat, lat, 1e-12, "pixel %d lat", p)
	}
}

func TestTotalArea(t *testing.T) {
	for _, nside := range []int64{1, 2, 64, 1024} {
		total := healpix.PixelArea(nside) * float64(healpix.Npix(nside))
		assert.InDelta(t, 4*math.Pi, total, 1e-9)
	}
}

// children of a nested pixel lie close to the parent center.
func TestNestedHierarchy(t *testing.T) {
	unit := func(lon, lat float64) [3]float64 {
		return [3]float64{
			math.Cos(lat) * math.Cos(lon),
			math.Cos(lat) * math.Sin(lon),
			math.Sin(lat)}
	}
	for p := int64(0); p < healpix.Npix(4); p++ {
		plon, plat := healpix.NestToLonLat(4, p)
		pu := unit(plon, plat)
		for c := 4 * p; c < 4*p+4; c++ {
			clon, clat := healpix.NestToLonLat(8, c)
			require.True(t, clon >= 0 && clon < 2*math.Pi, "lon out of range")
			cu := unit(clon, clat)
			dot := pu[0]*cu[0] + pu[1]*cu[1] + pu[2]*cu[2]
			assert.Greater(t, dot, math.Cos(15*math.Pi/180),
				"child %d of %d too far from parent", c, p)
		}
	}
}

func TestNestPanicsOutOfRange(t *testing.T) {
	assert.Panics(t, func() { healpix.NestToLonLat(2, 48) })
}
