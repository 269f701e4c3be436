// Public domain.

// Package healpix implements the small part of the HEALPix pixelization
// needed to read multi-order sky maps: NUNIQ decoding and NESTED pixel
// centers.
//
// Longitudes and latitudes are returned in radians.  Longitude is in the
// range [0, 2π), latitude in [-π/2, π/2].
package healpix

import (
	"errors"
	"math"
	"math/bits"
)

// MaxLevel is the deepest order representable in a 64 bit NUNIQ index.
const MaxLevel = 29

// ErrUniq is returned for NUNIQ values that do not encode a pixel.
var ErrUniq = errors.New("healpix: invalid NUNIQ index")

// UniqToLevelIpix decodes a NUNIQ index, uniq = 4·4^level + ipix.
func UniqToLevelIpix(uniq int64) (level int, ipix int64, err error) {
	if uniq < 4 {
		return 0, 0, ErrUniq
	}
	msb := bits.Len64(uint64(uniq)) - 1
	level = msb/2 - 1
	if level > MaxLevel {
		return 0, 0, ErrUniq
	}
	ipix = uniq - int64(1)<<(2*(level+1))
	return level, ipix, nil
}

// LevelIpixToUniq is the inverse of UniqToLevelIpix.
func LevelIpixToUniq(level int, ipix int64) int64 {
	return int64(1)<<(2*(level+1)) + ipix
}

// LevelToNside returns 2^level.
func LevelToNside(level int) int64 {
	return int64(1) << level
}

// Npix is the number of pixels of a map with the given nside.
func Npix(nside int64) int64 {
	return 12 * nside * nside
}

// PixelArea returns the area of a single pixel in steradians.
func PixelArea(nside int64) float64 {
	return 4 * math.Pi / float64(Npix(nside))
}

// compact extracts the even bits of v.
func compact(v uint64) uint64 {
	v &= 0x5555555555555555
	v = (v | v>>1) & 0x3333333333333333
	v = (v | v>>2) & 0x0f0f0f0f0f0f0f0f
	v = (v | v>>4) & 0x00ff00ff00ff00ff
	v = (v | v>>8) & 0x0000ffff0000ffff
	v = (v | v>>16) & 0x00000000ffffffff
	return v
}

// ring and longitude offsets of the twelve base pixels
var (
	jrll = [12]int64{2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4}
	jpll = [12]int64{1, 3, 5, 7, 0, 2, 4, 6, 1, 3, 5, 7}
)

// NestToLonLat returns the center of NESTED pixel ipix.
//
// It panics if ipix is outside [0, Npix(nside)).
func NestToLonLat(nside, ipix int64) (lon, lat float64) {
	npface := nside * nside
	npix := 12 * npface
	if ipix < 0 || ipix >= npix {
		panic("healpix: pixel index out of range")
	}
	face := ipix / npface
	ipf := uint64(ipix % npface)
	ix := int64(compact(ipf))
	iy := int64(compact(ipf >> 1))

	fact2 := 4 / float64(npix)
	fact1 := float64(2*nside) * fact2
	nl4 := 4 * nside
	jr := jrll[face]*nside - ix - iy - 1

	var nr, kshift int64
	var z float64
	switch {
	case jr < nside: // north polar cap
		nr = jr
		z = 1 - float64(nr*nr)*fact2
	case jr > 3*nside: // south polar cap
		nr = nl4 - jr
		z = float64(nr*nr)*fact2 - 1
	default:
		nr = nside
		z = float64(2*nside-jr) * fact1
		kshift = (jr - nside) & 1
	}

	jp := (jpll[face]*nr + ix - iy + 1 + kshift) / 2
	if jp > nl4 {
		jp -= nl4
	}
	if jp < 1 {
		jp += nl4
	}
	lon = (float64(jp) - float64(kshift+1)*.5) * (math.Pi / 2 / float64(nr))
	lat = math.Asin(z)
	return
}

// UniqToLonLat returns the center of the pixel with the given NUNIQ index.
func UniqToLonLat(uniq int64) (lon, lat float64, err error) {
	level, ipix, err := UniqToLevelIpix(uniq)
	if err != nil {
		return 0, 0, err
	}
	lon, lat = NestToLonLat(LevelToNside(level), ipix)
	return lon, lat, nil
}
